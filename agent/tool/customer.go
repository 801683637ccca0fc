package tool

import (
	"context"
	"errors"

	"github.com/tanpawarit/chinook-concierge/agent/approval"
	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	"github.com/tanpawarit/chinook-concierge/agent/musicstore"
)

const (
	msgIdentityRequired = "Customer ID, First Name, and Last Name are required."
	msgUpdateRequired   = "Customer ID and at least one update field are required."
	msgCustomerID       = "Customer ID is required."
	msgNotApproved      = "Update not approved by human."
	msgPendingApproval  = "Update is waiting for human approval. Let the user know it will be applied once a reviewer approves it."
)

type customerTools struct {
	store    musicstore.Store
	approver Approver
}

// UpdateResult is returned when an approved update has been applied.
type UpdateResult struct {
	CustomerID int64             `json:"customer_id"`
	Updated    int64             `json:"rows_updated"`
	Updates    map[string]string `json:"updates"`
	ApprovalID string            `json:"approval_id"`
}

func customerKey(args Args) (musicstore.CustomerKey, bool) {
	id, ok := args.ID("customer_id")
	first, last := args.String("first_name"), args.String("last_name")
	if !ok || first == "" || last == "" {
		return musicstore.CustomerKey{}, false
	}
	return musicstore.CustomerKey{ID: id, FirstName: first, LastName: last}, true
}

func notFound(key musicstore.CustomerKey) *contractx.ToolError {
	return contractx.NewToolError(contractx.ToolErrNotFound,
		"Could not find customer with CustomerId = %d AND FirstName = '%s' AND LastName = '%s'",
		key.ID, key.FirstName, key.LastName)
}

func (c customerTools) getCustomerInfo(ctx context.Context, args Args) (any, *contractx.ToolError) {
	key, ok := customerKey(args)
	if !ok {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, msgIdentityRequired)
	}
	rows, err := c.store.GetCustomer(ctx, key)
	if err != nil {
		return nil, storeError("get customer", err)
	}
	if len(rows) == 0 {
		return nil, notFound(key)
	}
	return rows, nil
}

func (c customerTools) updateCustomerInfo(ctx context.Context, args Args) (any, *contractx.ToolError) {
	updates, err := args.Updates("updates")
	if err != nil {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, "%v", err)
	}
	if _, ok := args.ID("customer_id"); !ok || len(updates) == 0 {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, msgUpdateRequired)
	}
	key, ok := customerKey(args)
	if !ok {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, msgIdentityRequired)
	}
	if _, err := musicstore.CheckColumns(updates); err != nil {
		terr := contractx.NewToolError(contractx.ToolErrValidation, "%v", err)
		terr.Details = map[string]any{"allowed_columns": musicstore.UpdatableColumns}
		return nil, terr
	}

	rec, err := c.approver.Check(ctx, approval.Request{
		SessionID:  contractx.SessionIDFrom(ctx),
		CustomerID: key.ID,
		FirstName:  key.FirstName,
		LastName:   key.LastName,
		Updates:    updates,
	})
	if err != nil {
		return nil, storeError("check approval", err)
	}

	switch rec.Status {
	case approval.StatusPending:
		terr := contractx.NewToolError(contractx.ToolErrPendingApproval, msgPendingApproval)
		terr.Details = map[string]any{"approval_id": rec.ID}
		return nil, terr
	case approval.StatusDenied:
		return nil, contractx.NewToolError(contractx.ToolErrNotApproved, msgNotApproved)
	case approval.StatusApproved:
	default:
		return nil, contractx.NewToolError(contractx.ToolErrInternal, "unexpected approval status %q", rec.Status)
	}

	n, err := c.store.UpdateCustomer(ctx, key, updates)
	switch {
	case errors.Is(err, musicstore.ErrInvalidColumn), errors.Is(err, musicstore.ErrNoUpdates):
		return nil, contractx.NewToolError(contractx.ToolErrValidation, "%v", err)
	case err != nil:
		return nil, storeError("update customer", err)
	case n == 0:
		return nil, notFound(key)
	}
	return UpdateResult{CustomerID: key.ID, Updated: n, Updates: updates, ApprovalID: rec.ID}, nil
}

func (c customerTools) getInvoices(ctx context.Context, args Args) (any, *contractx.ToolError) {
	id, ok := args.ID("customer_id")
	if !ok {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, msgCustomerID)
	}
	rows, err := c.store.InvoicesByCustomer(ctx, id)
	if err != nil {
		return nil, storeError("get invoices", err)
	}
	return rows, nil
}

func (c customerTools) getPurchasedAlbums(ctx context.Context, args Args) (any, *contractx.ToolError) {
	id, ok := args.ID("customer_id")
	if !ok {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, msgCustomerID)
	}
	rows, err := c.store.PurchasedAlbumsByCustomer(ctx, id)
	if err != nil {
		return nil, storeError("get purchased albums", err)
	}
	return rows, nil
}

func (c customerTools) getTopArtists(ctx context.Context, args Args) (any, *contractx.ToolError) {
	id, ok := args.ID("customer_id")
	if !ok {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, msgCustomerID)
	}
	rows, err := c.store.TopPurchasedArtistsByCustomer(ctx, id)
	if err != nil {
		return nil, storeError("get top artists", err)
	}
	return rows, nil
}
