package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	llmx "github.com/tanpawarit/chinook-concierge/agent/llm"
	promptx "github.com/tanpawarit/chinook-concierge/agent/prompt"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

type registryImpl struct {
	router      contractx.Router
	specialists map[statex.Target]contractx.Specialist
}

func (r *registryImpl) Router() contractx.Router {
	return r.router
}

func (r *registryImpl) Specialist(target statex.Target) (contractx.Specialist, error) {
	s, ok := r.specialists[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", statex.ErrUnknownTarget, target)
	}
	return s, nil
}

// Models are the chat models behind the router and the tool-using specialists.
type Models struct {
	Router   einomodel.ToolCallingChatModel
	Customer einomodel.ToolCallingChatModel
	Music    einomodel.ToolCallingChatModel
}

func NewRegistry(ctx context.Context, cfg llmx.Config, moderator contractx.Moderator) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var models Models
	for _, m := range []struct {
		agentType contractx.AgentType
		dst       *einomodel.ToolCallingChatModel
	}{
		{contractx.AgentTypeRouter, &models.Router},
		{contractx.AgentTypeCustomer, &models.Customer},
		{contractx.AgentTypeMusic, &models.Music},
	} {
		modelCfg := cfg.OpenRouterFor(m.agentType)
		chatModel, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, m.agentType, err)
		}
		*m.dst = chatModel
	}

	return NewRegistryWithModels(ctx, models, promptx.LoadPromptSet(), moderator)
}

func NewRegistryWithModels(
	ctx context.Context,
	models Models,
	prompts promptx.PromptSet,
	moderator contractx.Moderator,
) (contractx.Registry, error) {
	if models.Router == nil || models.Customer == nil || models.Music == nil {
		return nil, fmt.Errorf("%w: router, customer and music models are required", contractx.ErrValidation)
	}
	if prompts.Router == "" {
		return nil, fmt.Errorf("%w: router prompt is empty", contractx.ErrPromptMissing)
	}

	router, err := newRouter(ctx, models.Router, prompts.Router, moderator)
	if err != nil {
		return nil, err
	}

	reg := &registryImpl{
		router: router,
		specialists: map[statex.Target]contractx.Specialist{
			statex.TargetOther: otherSpecialist{},
		},
	}

	for target, chatModel := range map[statex.Target]einomodel.ToolCallingChatModel{
		statex.TargetCustomer: models.Customer,
		statex.TargetMusic:    models.Music,
	} {
		systemPrompt, err := prompts.ForTarget(target)
		if err != nil {
			return nil, err
		}
		spec, err := newSpecialist(ctx, target, chatModel, systemPrompt, moderator)
		if err != nil {
			return nil, err
		}
		reg.specialists[target] = spec
	}

	return reg, nil
}
