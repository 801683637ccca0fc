package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

// ShouldContinue reports whether a specialist's message asks for tools.
func ShouldContinue(msg *schema.Message) bool {
	return msg != nil && len(msg.ToolCalls) > 0
}

// RunSpecialist invokes the specialist for target on the full history and
// appends its message. Tool calls send the turn to the target's tool node;
// otherwise the dispatcher picks the next step.
func RunSpecialist(ctx context.Context, in *GraphState, registry contractx.Registry, target statex.Target) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session

	spec, err := registry.Specialist(target)
	if err != nil {
		return nil, err
	}
	msg, err := spec.Respond(ctx, st.History())
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: %s returned no message", contractx.ErrSchemaViolation, target)
	}
	if msg.Role == "" {
		msg.Role = schema.Assistant
	}
	st.Append(msg)

	if !ShouldContinue(msg) {
		st.Next = NodeDispatcher
		return in, nil
	}
	next, err := ToolsNode(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s requested tools: %v", contractx.ErrSchemaViolation, target, err)
	}
	st.Next = next
	return in, nil
}
