package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

// Router produces the entry assistant message for a user turn. The message may
// carry a Router tool call naming the specialists to run.
type Router interface {
	Route(ctx context.Context, history []*schema.Message) (*schema.Message, error)
}

// Specialist produces exactly one assistant message per invocation.
type Specialist interface {
	Target() statex.Target
	Respond(ctx context.Context, history []*schema.Message) (*schema.Message, error)
}

type Registry interface {
	Router() Router
	Specialist(target statex.Target) (Specialist, error)
}

// ToolGateway runs the tool calls requested by a specialist. Tool failures are
// reported inside the returned results, never as an error.
type ToolGateway interface {
	Execute(ctx context.Context, target statex.Target, calls []schema.ToolCall) []ToolResult
}

// Moderator rewrites text that violates content policy.
type Moderator interface {
	Moderate(ctx context.Context, text string) (string, error)
}
