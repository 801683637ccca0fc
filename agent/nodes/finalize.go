package orchestratornode

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
)

// Finalize closes the turn. The reply joins the text of every assistant
// message produced during the turn.
func Finalize(in *GraphState) (*GraphState, GraphOutput, error) {
	if in == nil || in.Session == nil {
		return nil, GraphOutput{}, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session
	st.Next = ""

	turn := st.TurnMessages()
	return in, GraphOutput{
		SessionID: st.SessionID,
		Reply:     ReplyText(turn),
		Messages:  turn,
	}, nil
}

func ReplyText(msgs []*schema.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Role != schema.Assistant {
			continue
		}
		if text := strings.TrimSpace(m.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
