package approval_test

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"

	"github.com/tanpawarit/chinook-concierge/agent/approval"
	"github.com/tanpawarit/chinook-concierge/internal/testdb"
)

type recordingNotifier struct {
	mu   sync.Mutex
	seen []approval.Record
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, rec approval.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, rec)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.seen)
}

func bobCityChange() approval.Request {
	return approval.Request{
		SessionID:  "s1",
		CustomerID: 7,
		FirstName:  "Bob",
		LastName:   "Smith",
		Updates:    map[string]string{"City": "Austin"},
	}
}

func TestCheckQueuesOnceThenReturnsDecision(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	q := approval.NewQueue(testdb.Open(t), approval.WithNotifier(notifier))
	ctx := context.Background()

	first, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if first.Status != approval.StatusPending || first.ID == "" {
		t.Fatalf("expected a new pending record, got %+v", first)
	}
	if n := notifier.count(); n != 1 {
		t.Fatalf("expected one notification, got %d", n)
	}

	again, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if again.ID != first.ID || again.Status != approval.StatusPending {
		t.Fatalf("repeat check should return the same pending record, got %+v", again)
	}
	if n := notifier.count(); n != 1 {
		t.Fatalf("repeat check notified again, got %d", n)
	}

	resolved, err := q.Resolve(ctx, first.ID, true, "alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != approval.StatusApproved {
		t.Fatalf("unexpected resolved status %q", resolved.Status)
	}

	decided, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decided.ID != first.ID || decided.Status != approval.StatusApproved {
		t.Fatalf("expected the approved decision, got %+v", decided)
	}
	if !maps.Equal(decided.Updates, map[string]string{"City": "Austin"}) {
		t.Fatalf("unexpected updates %v", decided.Updates)
	}

	// The decision was consumed, so the same change asks again.
	next, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if next.ID == first.ID || next.Status != approval.StatusPending {
		t.Fatalf("expected a fresh pending record, got %+v", next)
	}
}

func TestDeniedDecision(t *testing.T) {
	t.Parallel()

	q := approval.NewQueue(testdb.Open(t))
	ctx := context.Background()

	rec, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if _, err := q.Resolve(ctx, rec.ID, false, "alice"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	decided, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decided.Status != approval.StatusDenied || decided.Reviewer != "alice" {
		t.Fatalf("expected denial by alice, got %+v", decided)
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	q := approval.NewQueue(testdb.Open(t))
	ctx := context.Background()

	if _, err := q.Resolve(ctx, "missing", true, "alice"); !errors.Is(err, approval.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if _, err := q.Resolve(ctx, rec.ID, true, "alice"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := q.Resolve(ctx, rec.ID, false, "bob"); !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestDifferentChangesAreTrackedSeparately(t *testing.T) {
	t.Parallel()

	q := approval.NewQueue(testdb.Open(t))
	ctx := context.Background()

	a, err := q.Check(ctx, bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	other := bobCityChange()
	other.Updates = map[string]string{"City": "Boston"}
	b, err := q.Check(ctx, other)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("different changes share record %s", a.ID)
	}

	pending, err := q.List(ctx, approval.StatusPending)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	if _, err := q.Resolve(ctx, a.ID, true, "alice"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	pending, err = q.List(ctx, approval.StatusPending)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("expected only %s pending, got %+v", b.ID, pending)
	}

	all, err := q.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
}

func TestNotifyFailureDoesNotFailCheck(t *testing.T) {
	t.Parallel()

	q := approval.NewQueue(testdb.Open(t), approval.WithNotifier(&recordingNotifier{err: errors.New("down")}))

	rec, err := q.Check(context.Background(), bobCityChange())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if rec.Status != approval.StatusPending {
		t.Fatalf("unexpected status %q", rec.Status)
	}
}

func TestFingerprintIgnoresSessionAndMapOrder(t *testing.T) {
	t.Parallel()

	a := approval.Request{CustomerID: 7, FirstName: "Bob", LastName: "Smith", Updates: map[string]string{"City": "Austin", "State": "TX"}, SessionID: "a"}
	b := approval.Request{CustomerID: 7, FirstName: "Bob", LastName: "Smith", Updates: map[string]string{"State": "TX", "City": "Austin"}, SessionID: "b"}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprint depends on session or map order")
	}

	c := a
	c.Updates = map[string]string{"City": "Austin"}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("different updates share a fingerprint")
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	st, err := approval.ParseStatus(" Approved ")
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if st != approval.StatusApproved {
		t.Fatalf("unexpected status %q", st)
	}
	if _, err := approval.ParseStatus("maybe"); !errors.Is(err, approval.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
