package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
)

// compileAgentGraph wires system prompt -> model -> output moderation. The
// system prompt is prepended per call and never returned to the caller.
func compileAgentGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	moderator contractx.Moderator,
	graphName string,
) (compose.Runnable[[]*schema.Message, *schema.Message], error) {
	graph := compose.NewGraph[[]*schema.Message, *schema.Message]()

	if err := graph.AddLambdaNode("prompt",
		compose.InvokableLambda(func(ctx context.Context, history []*schema.Message) ([]*schema.Message, error) {
			msgs := make([]*schema.Message, 0, len(history)+1)
			msgs = append(msgs, schema.SystemMessage(systemPrompt))
			msgs = append(msgs, history...)
			return msgs, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddLambdaNode("moderate",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
			return moderateOutput(ctx, moderator, msg)
		}),
	); err != nil {
		return nil, fmt.Errorf("add moderate node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "moderate"); err != nil {
		return nil, fmt.Errorf("add edge model->moderate: %w", err)
	}
	if err := graph.AddEdge("moderate", compose.END); err != nil {
		return nil, fmt.Errorf("add edge moderate->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}

func moderateOutput(ctx context.Context, moderator contractx.Moderator, msg *schema.Message) (*schema.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}
	out := *msg
	if out.Role == "" {
		out.Role = schema.Assistant
	}
	if moderator == nil || strings.TrimSpace(out.Content) == "" {
		return &out, nil
	}
	content, err := moderator.Moderate(ctx, out.Content)
	if err != nil {
		return nil, err
	}
	out.Content = content
	return &out, nil
}
