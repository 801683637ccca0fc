// Package approval holds customer-record changes until a human reviewer
// approves or denies them. Checks never block: an unseen change is queued and
// reported as pending, and a later retry of the same change picks up the
// reviewer's decision.
package approval

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

var (
	ErrNotFound        = errors.New("approval not found")
	ErrAlreadyResolved = errors.New("approval already resolved")
	ErrInvalidStatus   = errors.New("invalid approval status")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusDenied:
		return st, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Request is a proposed change to one customer record.
type Request struct {
	SessionID  string
	CustomerID int64
	FirstName  string
	LastName   string
	Updates    map[string]string
}

// Fingerprint identifies the change independent of the session it came from.
func (r Request) Fingerprint() string {
	keys := make([]string, 0, len(r.Updates))
	for k := range r.Updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(r.CustomerID, 10)))
	h.Write([]byte{0})
	h.Write([]byte(r.FirstName))
	h.Write([]byte{0})
	h.Write([]byte(r.LastName))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(r.Updates[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type Record struct {
	bun.BaseModel `bun:"table:pending_approvals"`

	ID          string            `bun:"id,pk" json:"id"`
	Fingerprint string            `bun:"fingerprint" json:"fingerprint"`
	SessionID   string            `bun:"session_id" json:"session_id"`
	CustomerID  int64             `bun:"customer_id" json:"customer_id"`
	FirstName   string            `bun:"first_name" json:"first_name"`
	LastName    string            `bun:"last_name" json:"last_name"`
	UpdatesJSON string            `bun:"updates" json:"-"`
	Updates     map[string]string `bun:"-" json:"updates"`
	Status      Status            `bun:"status" json:"status"`
	Reviewer    string            `bun:"reviewer" json:"reviewer,omitempty"`
	Consumed    bool              `bun:"consumed" json:"consumed"`
	CreatedAt   time.Time         `bun:"created_at" json:"created_at"`
	ResolvedAt  time.Time         `bun:"resolved_at,nullzero" json:"resolved_at,omitzero"`
}

func (r *Record) decode() error {
	if r.UpdatesJSON == "" {
		r.Updates = map[string]string{}
		return nil
	}
	return json.Unmarshal([]byte(r.UpdatesJSON), &r.Updates)
}

// Notifier tells reviewers a new change is waiting.
type Notifier interface {
	Notify(ctx context.Context, rec Record) error
}

type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, rec Record) error {
	log.Info().
		Str("approval_id", rec.ID).
		Int64("customer_id", rec.CustomerID).
		Interface("updates", rec.Updates).
		Msg("customer update awaiting approval")
	return nil
}

type Option func(*Queue)

func WithNotifier(n Notifier) Option {
	return func(q *Queue) {
		if n != nil {
			q.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

type Queue struct {
	db       bun.IDB
	notifier Notifier
	now      func() time.Time
}

func NewQueue(db bun.IDB, opts ...Option) *Queue {
	q := &Queue{db: db, notifier: LogNotifier{}, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Check returns the reviewer's decision for req. A change seen for the first
// time is queued and reported as pending. A decided record is consumed by the
// check that reads it, so the same change proposed again later starts over.
func (q *Queue) Check(ctx context.Context, req Request) (Record, error) {
	fp := req.Fingerprint()

	var rec Record
	err := q.db.NewSelect().
		Model(&rec).
		Where("fingerprint = ?", fp).
		Where("consumed = ?", false).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return q.enqueue(ctx, req, fp)
	case err != nil:
		return Record{}, fmt.Errorf("lookup approval: %w", err)
	}
	if err := rec.decode(); err != nil {
		return Record{}, fmt.Errorf("decode approval %s: %w", rec.ID, err)
	}

	if rec.Status == StatusPending {
		return rec, nil
	}

	rec.Consumed = true
	if _, err := q.db.NewUpdate().
		Model(&rec).
		Column("consumed").
		WherePK().
		Exec(ctx); err != nil {
		return Record{}, fmt.Errorf("consume approval %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (q *Queue) enqueue(ctx context.Context, req Request, fp string) (Record, error) {
	updates := req.Updates
	if updates == nil {
		updates = map[string]string{}
	}
	raw, err := json.Marshal(updates)
	if err != nil {
		return Record{}, fmt.Errorf("encode updates: %w", err)
	}

	rec := Record{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		SessionID:   req.SessionID,
		CustomerID:  req.CustomerID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		UpdatesJSON: string(raw),
		Updates:     updates,
		Status:      StatusPending,
		CreatedAt:   q.now().UTC(),
	}
	if _, err := q.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		return Record{}, fmt.Errorf("insert approval: %w", err)
	}

	if err := q.notifier.Notify(ctx, rec); err != nil {
		log.Warn().Err(err).Str("approval_id", rec.ID).Msg("failed to notify reviewers")
	}
	return rec, nil
}

// Resolve records a reviewer decision on a pending approval.
func (q *Queue) Resolve(ctx context.Context, id string, approve bool, reviewer string) (Record, error) {
	rec, err := q.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusPending {
		return rec, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, rec.Status)
	}

	rec.Status = StatusDenied
	if approve {
		rec.Status = StatusApproved
	}
	rec.Reviewer = strings.TrimSpace(reviewer)
	rec.ResolvedAt = q.now().UTC()

	res, err := q.db.NewUpdate().
		Model(&rec).
		Column("status", "reviewer", "resolved_at").
		WherePK().
		Where("status = ?", StatusPending).
		Exec(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("resolve approval %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}

	log.Info().
		Str("approval_id", id).
		Str("status", string(rec.Status)).
		Str("reviewer", rec.Reviewer).
		Msg("approval resolved")
	return rec, nil
}

func (q *Queue) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := q.db.NewSelect().Model(&rec).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get approval %s: %w", id, err)
	}
	if err := rec.decode(); err != nil {
		return Record{}, fmt.Errorf("decode approval %s: %w", id, err)
	}
	return rec, nil
}

// List returns approvals oldest first. An empty status lists everything.
func (q *Queue) List(ctx context.Context, status Status) ([]Record, error) {
	recs := make([]Record, 0)
	sel := q.db.NewSelect().Model(&recs).Order("created_at ASC")
	if status != "" {
		sel = sel.Where("status = ?", status)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	for i := range recs {
		if err := recs[i].decode(); err != nil {
			return nil, fmt.Errorf("decode approval %s: %w", recs[i].ID, err)
		}
	}
	return recs, nil
}
