package contract

import (
	"encoding/json"
	"fmt"

	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

type AgentType string

const (
	AgentTypeRouter   AgentType = "router"
	AgentTypeCustomer AgentType = "customer"
	AgentTypeMusic    AgentType = "music"
	AgentTypeOther    AgentType = "other"
)

// AgentTypeFor maps a routing target to the agent that serves it.
func AgentTypeFor(target statex.Target) AgentType {
	return AgentType(target.String())
}

// ToolErrorKind classifies a structured tool failure.
type ToolErrorKind string

const (
	ToolErrValidation      ToolErrorKind = "validation"
	ToolErrNotFound        ToolErrorKind = "not_found"
	ToolErrNotApproved     ToolErrorKind = "not_approved"
	ToolErrPendingApproval ToolErrorKind = "pending_approval"
	ToolErrUnknownTool     ToolErrorKind = "unknown_tool"
	ToolErrStore           ToolErrorKind = "store"
	ToolErrInternal        ToolErrorKind = "internal"
)

// ToolError is the payload a tool returns instead of raising.
type ToolError struct {
	Message string         `json:"error"`
	Kind    ToolErrorKind  `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewToolError(kind ToolErrorKind, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

type ToolResult struct {
	CallID string     `json:"call_id"`
	Tool   string     `json:"tool"`
	Result any        `json:"result,omitempty"`
	Error  *ToolError `json:"error,omitempty"`
}

// Failed reports whether the tool returned a structured error.
func (r ToolResult) Failed() bool {
	return r.Error != nil
}

// Content renders the result as the body of a tool message: the error payload
// on failure, otherwise the JSON-encoded result.
func (r ToolResult) Content() string {
	var v any = r.Result
	if r.Error != nil {
		v = r.Error
	}
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(NewToolError(ToolErrInternal, "encode tool result: %v", err))
	}
	return string(raw)
}
