package specialist

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	"github.com/tanpawarit/chinook-concierge/agent/tool"
)

type routerImpl struct {
	runner compose.Runnable[[]*schema.Message, *schema.Message]
}

var _ contractx.Router = (*routerImpl)(nil)

func newRouter(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	moderator contractx.Moderator,
) (*routerImpl, error) {
	routerModel, err := chatModel.WithTools([]*schema.ToolInfo{tool.RouterInfo()})
	if err != nil {
		return nil, fmt.Errorf("%w: bind router tool: %v", contractx.ErrModelInvoke, err)
	}

	runner, err := compileAgentGraph(ctx, routerModel, systemPrompt, moderator, "router")
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrModelInvoke, err)
	}
	return &routerImpl{runner: runner}, nil
}

// Route returns the router's assistant message. Any Router tool calls on it are
// interpreted by the caller.
func (r *routerImpl) Route(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	msg, err := r.runner.Invoke(ctx, history)
	if err != nil {
		if errors.Is(err, contractx.ErrSchemaViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: router: %v", contractx.ErrModelInvoke, err)
	}
	return msg, nil
}
