package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

// ExecuteTools answers the open tool calls of the latest assistant message
// with one tool message each, then hands control back to the specialist.
func ExecuteTools(ctx context.Context, in *GraphState, gateway contractx.ToolGateway, target statex.Target) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session

	calls := st.OpenToolCalls()
	results := gateway.Execute(ctx, target, calls)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("%w: %d tool calls produced %d results", contractx.ErrValidation, len(calls), len(results))
	}
	for _, res := range results {
		st.Append(schema.ToolMessage(res.Content(), res.CallID))
	}

	next, err := SpecialistNode(target)
	if err != nil {
		return nil, err
	}
	st.Next = next
	return in, nil
}
