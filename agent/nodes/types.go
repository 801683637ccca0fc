package orchestratornode

import (
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

var ErrInvalidMessage = errors.New("message is empty")

// Graph node names. A node stores the name of its successor in
// SessionState.Next before its checkpoint is written.
const (
	NodeLoadCheckpoint    = "load_checkpoint"
	NodeAppendUserMessage = "append_user_message"
	NodeRouter            = "router"
	NodeDispatcher        = "dispatcher"
	NodeCustomer          = "customer"
	NodeMusic             = "music"
	NodeOther             = "other"
	NodeCustomerTools     = "customer_tools"
	NodeMusicTools        = "music_tools"
	NodeFinalize          = "finalize"
)

// ResumableNodes are the nodes a checkpointed Next may point at.
var ResumableNodes = []string{
	NodeAppendUserMessage,
	NodeRouter,
	NodeDispatcher,
	NodeCustomer,
	NodeMusic,
	NodeOther,
	NodeCustomerTools,
	NodeMusicTools,
	NodeFinalize,
}

type GraphInput struct {
	SessionID string
	Text      string
	Resume    bool
}

type GraphOutput struct {
	SessionID string            `json:"session_id"`
	Reply     string            `json:"reply"`
	Messages  []*schema.Message `json:"messages"`
}

type GraphState struct {
	SessionID string
	Text      string
	Resume    bool
	Now       time.Time

	Session *statex.SessionState
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, statex.ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && !in.Resume {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Resume:    in.Resume,
		Now:       nowFn().UTC(),
	}, nil
}
