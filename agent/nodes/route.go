package orchestratornode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
	"github.com/tanpawarit/chinook-concierge/agent/tool"
)

// RoutingDecision is what the router's message asks for. Acks holds one tool
// message per tool call on the router message, in call order.
type RoutingDecision struct {
	Routed bool
	Steps  []statex.Target
	Acks   []*schema.Message
}

type routerArgs struct {
	Choices []string `json:"choices"`
}

// ParseRoutingDecision interprets the Router calls on msg. Only the first Router
// call sets the plan; later ones are acknowledged and ignored. Calls to any
// other tool are acknowledged with an error payload.
func ParseRoutingDecision(msg *schema.Message) (RoutingDecision, error) {
	var out RoutingDecision
	if msg == nil {
		return out, fmt.Errorf("%w: router message is nil", contractx.ErrSchemaViolation)
	}

	for _, call := range msg.ToolCalls {
		if call.Function.Name != tool.RouterTool {
			res := contractx.ToolResult{
				CallID: call.ID,
				Tool:   call.Function.Name,
				Error: contractx.NewToolError(contractx.ToolErrUnknownTool,
					"tool %s is not available to the router", call.Function.Name),
			}
			out.Acks = append(out.Acks, schema.ToolMessage(res.Content(), call.ID))
			continue
		}

		if out.Routed {
			log.Warn().
				Str("call_id", call.ID).
				Str("arguments", call.Function.Arguments).
				Msg("ignoring repeated Router call")
			out.Acks = append(out.Acks, schema.ToolMessage(
				fmt.Sprintf("Ignored: already routing to %s", formatTargets(out.Steps)), call.ID))
			continue
		}

		steps, err := parseChoices(call.Function.Arguments)
		if err != nil {
			return RoutingDecision{}, err
		}
		out.Routed = true
		out.Steps = steps
		out.Acks = append(out.Acks, schema.ToolMessage(
			fmt.Sprintf("Routing to %s", formatTargets(steps)), call.ID))
	}
	return out, nil
}

func parseChoices(raw string) ([]statex.Target, error) {
	var args routerArgs
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &args); err != nil {
		return nil, fmt.Errorf("%w: router arguments: %v", contractx.ErrMalformedPlan, err)
	}
	if len(args.Choices) == 0 {
		return nil, fmt.Errorf("%w: router returned no choices", contractx.ErrMalformedPlan)
	}
	steps := make([]statex.Target, 0, len(args.Choices))
	for _, label := range args.Choices {
		t, err := statex.ParseTarget(label)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrMalformedPlan, err)
		}
		steps = append(steps, t)
	}
	return steps, nil
}

func formatTargets(steps []statex.Target) string {
	labels := make([]string, 0, len(steps))
	for _, t := range steps {
		labels = append(labels, t.String())
	}
	return "[" + strings.Join(labels, ", ") + "]"
}

// Route asks the router for a decision. When it routes, the plan is replaced
// and the dispatcher runs next; otherwise the plan is cleared and the router's
// reply ends the turn.
func Route(ctx context.Context, in *GraphState, router contractx.Router) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session

	msg, err := router.Route(ctx, st.History())
	if err != nil {
		return nil, err
	}
	decision, err := ParseRoutingDecision(msg)
	if err != nil {
		return nil, err
	}

	st.Append(msg)
	st.Append(decision.Acks...)

	if decision.Routed {
		st.Plan.Reset(decision.Steps)
		st.Next = NodeDispatcher
	} else {
		st.Plan.Clear()
		st.Next = NodeFinalize
	}

	log.Debug().
		Str("session_id", st.SessionID).
		Bool("routed", decision.Routed).
		Str("plan", formatTargets(st.Plan.Steps)).
		Msg("router decided")
	return in, nil
}
