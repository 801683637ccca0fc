package tool

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chinook-concierge/agent/approval"
	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	"github.com/tanpawarit/chinook-concierge/agent/musicstore"
	"github.com/tanpawarit/chinook-concierge/agent/retrieval"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
	"github.com/tanpawarit/chinook-concierge/pkg/metrics"
)

// Approver gates customer updates behind a human decision.
type Approver interface {
	Check(ctx context.Context, req approval.Request) (approval.Record, error)
}

type Retriever interface {
	SimilarArtists(ctx context.Context, query string) ([]retrieval.Match, error)
	SimilarTracks(ctx context.Context, query string) ([]retrieval.Match, error)
}

type Deps struct {
	Store     musicstore.Store
	Retriever Retriever
	Approver  Approver
	Metrics   *metrics.Metrics
}

// Executor runs one tool. Failures are returned as a structured payload, never
// as a Go error.
type Executor func(ctx context.Context, args Args) (any, *contractx.ToolError)

type Gateway struct {
	executors map[statex.Target]map[string]Executor
	metrics   *metrics.Metrics
}

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(deps Deps) (*Gateway, error) {
	if deps.Store == nil {
		return nil, errors.New("tool gateway: store is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("tool gateway: retriever is required")
	}
	if deps.Approver == nil {
		return nil, errors.New("tool gateway: approver is required")
	}

	c := customerTools{store: deps.Store, approver: deps.Approver}
	m := musicTools{store: deps.Store, retriever: deps.Retriever}

	return &Gateway{
		executors: map[statex.Target]map[string]Executor{
			statex.TargetCustomer: {
				GetCustomerInfo:              c.getCustomerInfo,
				UpdateCustomerInfo:           c.updateCustomerInfo,
				GetInvoicesByCustomer:        c.getInvoices,
				GetPurchasedAlbumsByCustomer: c.getPurchasedAlbums,
				GetTopPurchasedArtists:       c.getTopArtists,
			},
			statex.TargetMusic: {
				GetAlbumsByArtist: m.getAlbumsByArtist,
				GetTracksByArtist: m.getTracksByArtist,
				CheckForSongs:     m.checkForSongs,
			},
		},
		metrics: deps.Metrics,
	}, nil
}

// Execute runs calls in order and returns one result per call, correlated by
// call id.
func (g *Gateway) Execute(ctx context.Context, target statex.Target, calls []schema.ToolCall) []contractx.ToolResult {
	results := make([]contractx.ToolResult, 0, len(calls))
	for _, call := range calls {
		res := g.run(ctx, target, call)

		kind := ""
		if res.Error != nil {
			kind = string(res.Error.Kind)
		}
		g.metrics.ObserveTool(target.String(), call.Function.Name, kind)

		evt := log.Debug()
		if res.Error != nil {
			evt = log.Warn().Str("kind", kind).Str("error", res.Error.Message)
		}
		evt.Str("session_id", contractx.SessionIDFrom(ctx)).
			Str("target", target.String()).
			Str("tool", call.Function.Name).
			Str("call_id", call.ID).
			Msg("tool executed")

		results = append(results, res)
	}
	return results
}

func (g *Gateway) run(ctx context.Context, target statex.Target, call schema.ToolCall) (res contractx.ToolResult) {
	res = contractx.ToolResult{CallID: call.ID, Tool: call.Function.Name}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", call.Function.Name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("tool panicked")
			res.Result = nil
			res.Error = contractx.NewToolError(contractx.ToolErrInternal, "tool %s failed: %v", call.Function.Name, r)
		}
	}()

	exec, ok := g.executors[target][call.Function.Name]
	if !ok {
		res.Error = contractx.NewToolError(contractx.ToolErrUnknownTool,
			"tool %s is not available to the %s agent", call.Function.Name, target)
		return res
	}

	args, err := decodeArgs(call.Function.Arguments)
	if err != nil {
		res.Error = contractx.NewToolError(contractx.ToolErrValidation, "%v", err)
		return res
	}

	out, terr := exec(ctx, args)
	if terr != nil {
		res.Error = terr
		return res
	}
	res.Result = out
	return res
}

func storeError(op string, err error) *contractx.ToolError {
	return contractx.NewToolError(contractx.ToolErrStore, "%s: %v", op, err)
}
