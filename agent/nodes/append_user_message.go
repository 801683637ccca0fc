package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
)

const interruptedToolResult = "tool call was interrupted before it completed"

// AppendUserMessage moderates the user's text and appends it. Tool calls left
// open by an interrupted turn are closed first so every call keeps exactly one
// result.
func AppendUserMessage(ctx context.Context, in *GraphState, moderator contractx.Moderator) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session

	if open := st.OpenToolCalls(); len(open) > 0 {
		log.Warn().
			Str("session_id", st.SessionID).
			Int("open_calls", len(open)).
			Msg("closing tool calls from an interrupted turn")
		for _, call := range open {
			payload := contractx.ToolResult{
				CallID: call.ID,
				Tool:   call.Function.Name,
				Error:  contractx.NewToolError(contractx.ToolErrInternal, interruptedToolResult),
			}
			st.Append(schema.ToolMessage(payload.Content(), call.ID))
		}
	}

	text := in.Text
	if moderator != nil {
		moderated, err := moderator.Moderate(ctx, text)
		if err != nil {
			return nil, err
		}
		text = moderated
	}

	st.TurnStart = len(st.Messages)
	st.Append(schema.UserMessage(text))
	st.Next = NodeRouter
	return in, nil
}
