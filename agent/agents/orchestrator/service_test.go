package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	nodex "github.com/tanpawarit/chinook-concierge/agent/nodes"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
	"github.com/tanpawarit/chinook-concierge/agent/tool"
)

type scriptedReply struct {
	msg *schema.Message
	err error
}

// scripted replays replies in order and repeats the last one.
type scripted struct {
	mu      sync.Mutex
	replies []scriptedReply
	seen    [][]*schema.Message
}

func (s *scripted) next(history []*schema.Message) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, history)
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	cp := *r.msg
	return &cp, nil
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type fakeRouter struct{ scripted }

func (f *fakeRouter) Route(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	return f.next(history)
}

type fakeSpecialist struct {
	scripted
	target statex.Target
}

func (f *fakeSpecialist) Target() statex.Target { return f.target }

func (f *fakeSpecialist) Respond(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	return f.next(history)
}

type fakeRegistry struct {
	router      *fakeRouter
	specialists map[statex.Target]*fakeSpecialist
}

func newFakeRegistry() *fakeRegistry {
	r := &fakeRegistry{
		router:      &fakeRouter{},
		specialists: map[statex.Target]*fakeSpecialist{},
	}
	for _, t := range statex.Targets {
		r.specialists[t] = &fakeSpecialist{target: t}
	}
	r.specialists[statex.TargetOther].replies = []scriptedReply{{msg: schema.AssistantMessage("I can only help with music and your account.", nil)}}
	return r
}

func (f *fakeRegistry) Router() contractx.Router { return f.router }

func (f *fakeRegistry) Specialist(target statex.Target) (contractx.Specialist, error) {
	s, ok := f.specialists[target]
	if !ok {
		return nil, statex.ErrUnknownTarget
	}
	return s, nil
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []schema.ToolCall
}

func (f *fakeGateway) Execute(ctx context.Context, target statex.Target, calls []schema.ToolCall) []contractx.ToolResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]contractx.ToolResult, 0, len(calls))
	for _, c := range calls {
		f.calls = append(f.calls, c)
		out = append(out, contractx.ToolResult{
			CallID: c.ID,
			Tool:   c.Function.Name,
			Result: map[string]any{"target": target.String(), "tool": c.Function.Name},
		})
	}
	return out
}

func call(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func routeTo(id string, labels ...string) *schema.Message {
	quoted := make([]string, 0, len(labels))
	for _, l := range labels {
		quoted = append(quoted, fmt.Sprintf("%q", l))
	}
	args := fmt.Sprintf(`{"choices":[%s]}`, strings.Join(quoted, ","))
	return schema.AssistantMessage("", []schema.ToolCall{call(id, tool.RouterTool, args)})
}

func reply(msg *schema.Message) []scriptedReply {
	return []scriptedReply{{msg: msg}}
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
}

func newTestOrchestrator(t *testing.T, store statex.Store, reg *fakeRegistry, gw *fakeGateway, maxSteps int) *Orchestrator {
	t.Helper()
	o, err := New(store, reg, gw, Config{MaxSteps: maxSteps}, WithClock(fixedNow))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func loadState(t *testing.T, store statex.Store, sessionID string) *statex.SessionState {
	t.Helper()
	st, err := store.Load(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", sessionID, err)
	}
	return st
}

func roles(msgs []*schema.Message) []schema.RoleType {
	out := make([]schema.RoleType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	gw := &fakeGateway{}

	if _, err := New(nil, reg, gw, Config{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := New(store, nil, gw, Config{}); err == nil {
		t.Fatalf("expected error for nil registry")
	}
	if _, err := New(store, reg, nil, Config{}); err == nil {
		t.Fatalf("expected error for nil gateway")
	}

	o, err := New(store, reg, gw, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if o.maxSteps != DefaultMaxSteps {
		t.Fatalf("expected default max steps %d, got %d", DefaultMaxSteps, o.maxSteps)
	}
}

func TestHandleMessageRouterAnswersDirectly(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	reg.router.replies = reply(schema.AssistantMessage("Hi! How can I help you today?", nil))
	o := newTestOrchestrator(t, store, reg, &fakeGateway{}, 0)

	got, err := o.HandleMessage(context.Background(), "s-direct", "hello")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if got != "Hi! How can I help you today?" {
		t.Fatalf("unexpected reply %q", got)
	}

	st := loadState(t, store, "s-direct")
	if st.Next != "" {
		t.Fatalf("expected completed turn, next=%q", st.Next)
	}
	if !st.Plan.Empty() {
		t.Fatalf("expected cleared plan, got %+v", st.Plan)
	}
	if len(st.Messages) != 2 {
		t.Fatalf("expected user+assistant messages, got %v", roles(st.Messages))
	}
	for target, spec := range reg.specialists {
		if spec.calls() != 0 {
			t.Fatalf("specialist %s should not run", target)
		}
	}
}

func TestHandleMessageCustomerToolLoop(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	gw := &fakeGateway{}
	reg.router.replies = reply(routeTo("r1", "customer"))
	reg.specialists[statex.TargetCustomer].replies = []scriptedReply{
		{msg: schema.AssistantMessage("", []schema.ToolCall{call("c1", tool.GetCustomerInfo, `{"customer_id":1}`)})},
		{msg: schema.AssistantMessage("Your email is luisg@embraer.com.br.", nil)},
	}
	o := newTestOrchestrator(t, store, reg, gw, 0)

	out, err := o.Run(context.Background(), nodex.GraphInput{SessionID: "s-customer", Text: "what is my email? I'm customer 1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != "Your email is luisg@embraer.com.br." {
		t.Fatalf("unexpected reply %q", out.Reply)
	}

	want := []schema.RoleType{schema.User, schema.Assistant, schema.Tool, schema.Assistant, schema.Tool, schema.Assistant}
	got := roles(out.Messages)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("turn roles = %v, want %v", got, want)
	}
	if out.Messages[2].Content != "Routing to [customer]" {
		t.Fatalf("unexpected router ack %q", out.Messages[2].Content)
	}
	if out.Messages[4].ToolCallID != "c1" {
		t.Fatalf("tool result not correlated: %q", out.Messages[4].ToolCallID)
	}
	if len(gw.calls) != 1 || gw.calls[0].Function.Name != tool.GetCustomerInfo {
		t.Fatalf("unexpected gateway calls %+v", gw.calls)
	}

	// The second customer invocation sees its own tool result.
	seen := reg.specialists[statex.TargetCustomer].seen
	if len(seen) != 2 {
		t.Fatalf("expected 2 customer invocations, got %d", len(seen))
	}
	if last := seen[1][len(seen[1])-1]; last.Role != schema.Tool || last.ToolCallID != "c1" {
		t.Fatalf("customer did not see tool result, last=%+v", last)
	}

	st := loadState(t, store, "s-customer")
	if st.Next != "" || st.Plan.Index != 0 {
		t.Fatalf("expected finished turn with reset cursor, got next=%q plan=%+v", st.Next, st.Plan)
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("stored session invalid: %v", err)
	}
}

func TestHandleMessageRunsPlanInOrder(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	reg.router.replies = reply(routeTo("r1", "music", "customer"))
	reg.specialists[statex.TargetMusic].replies = reply(schema.AssistantMessage("AC/DC has 2 albums.", nil))
	reg.specialists[statex.TargetCustomer].replies = reply(schema.AssistantMessage("You have 7 invoices.", nil))
	o := newTestOrchestrator(t, store, reg, &fakeGateway{}, 0)

	got, err := o.HandleMessage(context.Background(), "s-multi", "albums by AC/DC and my invoices")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if got != "AC/DC has 2 albums.\n\nYou have 7 invoices." {
		t.Fatalf("unexpected reply %q", got)
	}

	// Customer runs after music, so its history ends with music's answer.
	seen := reg.specialists[statex.TargetCustomer].seen
	if len(seen) != 1 {
		t.Fatalf("expected one customer run, got %d", len(seen))
	}
	if last := seen[0][len(seen[0])-1]; last.Content != "AC/DC has 2 albums." {
		t.Fatalf("customer ran before music, last=%q", last.Content)
	}
}

func TestHandleMessageOtherTarget(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	reg.router.replies = reply(routeTo("r1", "other"))
	o := newTestOrchestrator(t, store, reg, &fakeGateway{}, 0)

	got, err := o.HandleMessage(context.Background(), "s-other", "what's the weather?")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if got != "I can only help with music and your account." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestHandleMessageMalformedPlan(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	reg.router.replies = reply(routeTo("r1", "billing"))
	o := newTestOrchestrator(t, store, reg, &fakeGateway{}, 0)

	_, err := o.HandleMessage(context.Background(), "s-bad", "refund please")
	if !errors.Is(err, contractx.ErrMalformedPlan) {
		t.Fatalf("expected ErrMalformedPlan, got %v", err)
	}

	st := loadState(t, store, "s-bad")
	if len(st.Messages) != 1 || st.Messages[0].Role != schema.User {
		t.Fatalf("router message must not be appended, got %v", roles(st.Messages))
	}
	if st.Next != nodex.NodeRouter {
		t.Fatalf("expected checkpoint at router, got %q", st.Next)
	}
}

func TestHandleMessageValidation(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, statex.NewMemoryStore(), newFakeRegistry(), &fakeGateway{}, 0)

	if _, err := o.HandleMessage(context.Background(), " ", "hello"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := o.HandleMessage(context.Background(), "s1", "   "); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestStepLimitThenNewMessageClosesOpenCalls(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	gw := &fakeGateway{}
	reg.router.replies = []scriptedReply{
		{msg: routeTo("r1", "customer")},
		{msg: schema.AssistantMessage("Sorry about that. What else can I do?", nil)},
	}
	customer := reg.specialists[statex.TargetCustomer]
	for i := range 10 {
		customer.replies = append(customer.replies, scriptedReply{
			msg: schema.AssistantMessage("", []schema.ToolCall{call(fmt.Sprintf("c%d", i), tool.GetInvoicesByCustomer, `{"customer_id":1}`)}),
		})
	}
	o := newTestOrchestrator(t, store, reg, gw, 6)

	_, err := o.HandleMessage(context.Background(), "s-loop", "show my invoices")
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}

	st := loadState(t, store, "s-loop")
	if open := st.OpenToolCalls(); len(open) != 1 {
		t.Fatalf("expected one open call at the checkpoint, got %d", len(open))
	}

	got, err := o.HandleMessage(context.Background(), "s-loop", "never mind")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if got != "Sorry about that. What else can I do?" {
		t.Fatalf("unexpected reply %q", got)
	}

	st = loadState(t, store, "s-loop")
	if open := st.OpenToolCalls(); len(open) != 0 {
		t.Fatalf("expected open calls closed, got %d", len(open))
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("stored session invalid: %v", err)
	}
}

func TestResumeContinuesInterruptedTurn(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	reg.router.replies = reply(routeTo("r1", "customer", "music"))
	reg.specialists[statex.TargetCustomer].replies = reply(schema.AssistantMessage("Your last invoice was $1.98.", nil))
	reg.specialists[statex.TargetMusic].replies = []scriptedReply{
		{err: fmt.Errorf("%w: upstream timeout", contractx.ErrModelInvoke)},
		{msg: schema.AssistantMessage("Here are some rock tracks.", nil)},
	}
	o := newTestOrchestrator(t, store, reg, &fakeGateway{}, 0)

	if _, err := o.HandleMessage(context.Background(), "s-resume", "my last invoice and some rock"); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
	st := loadState(t, store, "s-resume")
	if st.Next != nodex.NodeMusic {
		t.Fatalf("expected checkpoint at music, got %q", st.Next)
	}

	out, err := o.Resume(context.Background(), "s-resume")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if out.Reply != "Your last invoice was $1.98.\n\nHere are some rock tracks." {
		t.Fatalf("unexpected reply %q", out.Reply)
	}
	if reg.router.calls() != 1 {
		t.Fatalf("resume must not re-route, router calls=%d", reg.router.calls())
	}
	if reg.specialists[statex.TargetCustomer].calls() != 1 {
		t.Fatalf("resume must not repeat finished steps")
	}

	if _, err := o.Resume(context.Background(), "s-resume"); !errors.Is(err, ErrNothingToResume) {
		t.Fatalf("expected ErrNothingToResume after completion, got %v", err)
	}
}

func TestResumeUnknownSession(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, statex.NewMemoryStore(), newFakeRegistry(), &fakeGateway{}, 0)
	if _, err := o.Resume(context.Background(), "never-seen"); !errors.Is(err, ErrNothingToResume) {
		t.Fatalf("expected ErrNothingToResume, got %v", err)
	}
}

func TestConversationPersistsAcrossTurns(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	reg := newFakeRegistry()
	reg.router.replies = []scriptedReply{
		{msg: schema.AssistantMessage("Hello!", nil)},
		{msg: schema.AssistantMessage("Still here.", nil)},
	}
	o := newTestOrchestrator(t, store, reg, &fakeGateway{}, 0)

	for _, text := range []string{"hi", "are you there?"} {
		if _, err := o.HandleMessage(context.Background(), "s-history", text); err != nil {
			t.Fatalf("HandleMessage(%q) error = %v", text, err)
		}
	}

	if len(reg.router.seen) != 2 {
		t.Fatalf("expected two router calls, got %d", len(reg.router.seen))
	}
	if n := len(reg.router.seen[1]); n != 3 {
		t.Fatalf("second turn should see 3 prior messages, got %d", n)
	}
	st := loadState(t, store, "s-history")
	if st.TurnStart != 2 {
		t.Fatalf("expected turn start 2, got %d", st.TurnStart)
	}
}
