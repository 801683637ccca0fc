package specialist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	promptx "github.com/tanpawarit/chinook-concierge/agent/prompt"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
	"github.com/tanpawarit/chinook-concierge/agent/tool"
)

type fakeToolCallingModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
	tools     []*schema.ToolInfo
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = tools
	return f, nil
}

type upperModerator struct {
	calls int
}

func (m *upperModerator) Moderate(_ context.Context, text string) (string, error) {
	m.calls++
	return strings.ToUpper(text), nil
}

func TestRouterBindsRouterToolAndPrependsPrompt(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			schema.AssistantMessage("", []schema.ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: schema.FunctionCall{Name: tool.RouterTool, Arguments: `{"choices":["music"]}`},
			}}),
		},
	}

	router, err := newRouter(context.Background(), fake, "router prompt", nil)
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	history := []*schema.Message{schema.UserMessage("What albums do you have by Queen?")}
	msg, err := router.Route(context.Background(), history)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != tool.RouterTool {
		t.Fatalf("unexpected tool calls: %#v", msg.ToolCalls)
	}

	if len(fake.tools) != 1 || fake.tools[0].Name != tool.RouterTool {
		t.Fatalf("router tool not bound: %#v", fake.tools)
	}
	in := fake.inputs[0]
	if len(in) != 2 || in[0].Role != schema.System || in[0].Content != "router prompt" {
		t.Fatalf("system prompt not prepended: %#v", in)
	}
	if len(history) != 1 {
		t.Fatalf("history must not be modified, got %d messages", len(history))
	}
}

func TestSpecialistModeratesOutput(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{{Content: "here are some albums"}},
	}
	mod := &upperModerator{}

	spec, err := newSpecialist(context.Background(), statex.TargetMusic, fake, "music prompt", mod)
	if err != nil {
		t.Fatalf("newSpecialist() error = %v", err)
	}

	msg, err := spec.Respond(context.Background(), []*schema.Message{schema.UserMessage("queen?")})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if msg.Content != "HERE ARE SOME ALBUMS" {
		t.Fatalf("output not moderated: %q", msg.Content)
	}
	if msg.Role != schema.Assistant {
		t.Fatalf("expected assistant role, got %q", msg.Role)
	}
	if fake.responses[0].Content != "here are some albums" {
		t.Fatal("model response must not be mutated in place")
	}
	if len(fake.tools) != len(tool.InfosFor(statex.TargetMusic)) {
		t.Fatalf("music tools not bound: %d", len(fake.tools))
	}
}

func TestSpecialistSkipsModerationForToolCalls(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			schema.AssistantMessage("", []schema.ToolCall{{
				ID:       "call_1",
				Function: schema.FunctionCall{Name: tool.GetCustomerInfo, Arguments: `{"customer_id":7}`},
			}}),
		},
	}
	mod := &upperModerator{}

	spec, err := newSpecialist(context.Background(), statex.TargetCustomer, fake, "customer prompt", mod)
	if err != nil {
		t.Fatalf("newSpecialist() error = %v", err)
	}

	msg, err := spec.Respond(context.Background(), []*schema.Message{schema.UserMessage("my profile")})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls lost: %#v", msg)
	}
	if mod.calls != 0 {
		t.Fatalf("empty content must not be moderated, got %d calls", mod.calls)
	}
}

func TestSpecialistModelFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{err: errors.New("upstream 500")}
	spec, err := newSpecialist(context.Background(), statex.TargetCustomer, fake, "customer prompt", nil)
	if err != nil {
		t.Fatalf("newSpecialist() error = %v", err)
	}

	_, err = spec.Respond(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestOtherSpecialistFixedReply(t *testing.T) {
	t.Parallel()

	msg, err := otherSpecialist{}.Respond(context.Background(), nil)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if msg.Content != promptx.OtherReply || len(msg.ToolCalls) != 0 {
		t.Fatalf("unexpected reply: %#v", msg)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	models := Models{
		Router:   &fakeToolCallingModel{},
		Customer: &fakeToolCallingModel{},
		Music:    &fakeToolCallingModel{},
	}
	reg, err := NewRegistryWithModels(context.Background(), models, promptx.LoadPromptSet(), nil)
	if err != nil {
		t.Fatalf("NewRegistryWithModels() error = %v", err)
	}
	if reg.Router() == nil {
		t.Fatal("router must not be nil")
	}
	for _, target := range statex.Targets {
		s, err := reg.Specialist(target)
		if err != nil {
			t.Fatalf("Specialist(%s) error = %v", target, err)
		}
		if s.Target() != target {
			t.Fatalf("Specialist(%s) returned %s", target, s.Target())
		}
	}
	if _, err := reg.Specialist(statex.Target(0)); !errors.Is(err, statex.ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}

	if _, err := NewRegistryWithModels(context.Background(), Models{}, promptx.LoadPromptSet(), nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing models, got %v", err)
	}
}
