package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
)

var (
	ErrOrphanToolResult    = errors.New("tool result without matching tool call")
	ErrDuplicateToolResult = errors.New("tool call answered more than once")
)

// SessionState is the checkpointed conversation for one session.
// - Messages is append-only; Append is the only mutator.
// - Plan/Next carry the dispatcher position so an interrupted turn can resume.
type SessionState struct {
	SessionID string            `json:"session_id"`
	Messages  []*schema.Message `json:"messages,omitempty"`

	Plan      Plan   `json:"plan"`
	Next      string `json:"next,omitempty"`       // node to run next; empty when the turn is complete
	Steps     int    `json:"steps,omitempty"`      // nodes executed in the current turn
	TurnStart int    `json:"turn_start,omitempty"` // index of the current turn's user message

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSessionState(sessionID string, now time.Time) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		Messages:  make([]*schema.Message, 0, 16),
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Append adds messages to the end of the conversation. Nil messages are skipped.
func (s *SessionState) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		s.Messages = append(s.Messages, m)
	}
}

// LastMessage returns the most recent message (or nil).
func (s *SessionState) LastMessage() *schema.Message {
	if s == nil || len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// LastAssistant returns the most recent assistant message (or nil).
func (s *SessionState) LastAssistant() *schema.Message {
	if s == nil {
		return nil
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m != nil && m.Role == schema.Assistant {
			return m
		}
	}
	return nil
}

// History returns a copy of the message slice safe to hand to a model.
func (s *SessionState) History() []*schema.Message {
	if s == nil {
		return nil
	}
	return append([]*schema.Message(nil), s.Messages...)
}

// BeginTurn resets per-turn counters.
func (s *SessionState) BeginTurn() {
	s.Steps = 0
}

// TurnMessages returns the messages appended since the current turn began.
func (s *SessionState) TurnMessages() []*schema.Message {
	if s == nil || s.TurnStart < 0 || s.TurnStart >= len(s.Messages) {
		return nil
	}
	return append([]*schema.Message(nil), s.Messages[s.TurnStart:]...)
}

// OpenToolCalls returns the tool calls of the most recent assistant message
// that have no tool result after it, in the order they were made. Call ids
// are only matched within that message, so providers that reuse ids across
// turns still get every call answered.
func (s *SessionState) OpenToolCalls() []schema.ToolCall {
	if s == nil {
		return nil
	}
	last := -1
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m != nil && m.Role == schema.Assistant {
			last = i
			break
		}
	}
	if last < 0 {
		return nil
	}

	answered := map[string]int{}
	for _, m := range s.Messages[last+1:] {
		if m != nil && m.Role == schema.Tool {
			answered[m.ToolCallID]++
		}
	}
	var open []schema.ToolCall
	for _, call := range s.Messages[last].ToolCalls {
		if answered[call.ID] > 0 {
			answered[call.ID]--
			continue
		}
		open = append(open, call)
	}
	return open
}

// Validate checks tool-call/tool-result pairing and plan shape.
func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if err := s.Plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	// open counts unanswered calls per id; ids may repeat across messages.
	open := map[string]int{}
	for i, m := range s.Messages {
		if m == nil {
			return fmt.Errorf("message %d is nil", i)
		}
		switch m.Role {
		case schema.Assistant:
			for _, call := range m.ToolCalls {
				open[call.ID]++
			}
		case schema.Tool:
			n, ok := open[m.ToolCallID]
			if !ok {
				return fmt.Errorf("%w: message=%d call_id=%q", ErrOrphanToolResult, i, m.ToolCallID)
			}
			if n == 0 {
				return fmt.Errorf("%w: call_id=%q", ErrDuplicateToolResult, m.ToolCallID)
			}
			open[m.ToolCallID] = n - 1
		}
	}
	return nil
}
