package specialist

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	promptx "github.com/tanpawarit/chinook-concierge/agent/prompt"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
	"github.com/tanpawarit/chinook-concierge/agent/tool"
)

// specialistImpl answers with its own tool set bound to the model.
type specialistImpl struct {
	target statex.Target
	runner compose.Runnable[[]*schema.Message, *schema.Message]
}

var _ contractx.Specialist = (*specialistImpl)(nil)

func newSpecialist(
	ctx context.Context,
	target statex.Target,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	moderator contractx.Moderator,
) (*specialistImpl, error) {
	tools := tool.InfosFor(target)
	if len(tools) == 0 {
		return nil, fmt.Errorf("%w: no tools for specialist=%s", contractx.ErrValidation, target)
	}

	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for specialist=%s: %v", contractx.ErrModelInvoke, target, err)
	}

	runner, err := compileAgentGraph(ctx, toolModel, systemPrompt, moderator, "specialist."+target.String())
	if err != nil {
		return nil, fmt.Errorf("%w: compile specialist graph: %v", contractx.ErrModelInvoke, err)
	}

	return &specialistImpl{target: target, runner: runner}, nil
}

func (s *specialistImpl) Target() statex.Target {
	return s.target
}

func (s *specialistImpl) Respond(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	msg, err := s.runner.Invoke(ctx, history)
	if err != nil {
		if errors.Is(err, contractx.ErrSchemaViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: specialist=%s: %v", contractx.ErrModelInvoke, s.target, err)
	}
	return msg, nil
}

// otherSpecialist declines every request with a fixed reply and no model call.
type otherSpecialist struct{}

var _ contractx.Specialist = otherSpecialist{}

func (otherSpecialist) Target() statex.Target {
	return statex.TargetOther
}

func (otherSpecialist) Respond(context.Context, []*schema.Message) (*schema.Message, error) {
	return schema.AssistantMessage(promptx.OtherReply, nil), nil
}
