package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	nodex "github.com/tanpawarit/chinook-concierge/agent/nodes"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

type stepFunc func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error)

// step wraps a node body: it counts the node against the turn's step limit,
// runs it, then checkpoints the session so the turn can resume after it.
func (o *Orchestrator) step(name string, fn stepFunc) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
		if in == nil || in.Session == nil {
			return nil, fmt.Errorf("%w: graph session is nil at %s", contractx.ErrValidation, name)
		}
		st := in.Session
		st.Steps++
		if st.Steps > o.maxSteps {
			err := fmt.Errorf("%w: %d nodes, stopped before %s", contractx.ErrStepLimit, o.maxSteps, name)
			o.metrics.ObserveNode(name, 0, err)
			return nil, err
		}

		start := time.Now()
		out, err := fn(ctx, in)
		if err == nil {
			err = nodex.SaveCheckpoint(ctx, out, o.store, o.now())
		}
		o.metrics.ObserveNode(name, time.Since(start), err)
		if err != nil {
			log.Error().Err(err).
				Str("session_id", st.SessionID).
				Str("node", name).
				Int("step", st.Steps).
				Msg("node failed")
			return nil, err
		}

		log.Debug().
			Str("session_id", st.SessionID).
			Str("node", name).
			Str("next", out.Session.Next).
			Int("step", st.Steps).
			Msg("node done")
		return out, nil
	})
}

func nextBranch(from string, targets ...string) *compose.GraphBranch {
	ends := make(map[string]bool, len(targets))
	for _, t := range targets {
		ends[t] = true
	}
	return compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil || in.Session == nil {
				return "", fmt.Errorf("%w: graph session is nil after %s", contractx.ErrValidation, from)
			}
			next := in.Session.Next
			if !ends[next] {
				return "", fmt.Errorf("%w: %s cannot continue to %q", contractx.ErrValidation, from, next)
			}
			return next, nil
		},
		ends,
	)
}

func (o *Orchestrator) compileTurnGraph(ctx context.Context) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.NodeLoadCheckpoint,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			out, err := nodex.LoadCheckpoint(ctx, in, o.store)
			if err != nil {
				return nil, err
			}
			if err := nodex.SaveCheckpoint(ctx, out, o.store, o.now()); err != nil {
				return nil, err
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeLoadCheckpoint, err)
	}

	steps := []struct {
		name string
		fn   stepFunc
	}{
		{nodex.NodeAppendUserMessage, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AppendUserMessage(ctx, in, o.moderator)
		}},
		{nodex.NodeRouter, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			out, err := nodex.Route(ctx, in, o.models.Router())
			if err != nil {
				return nil, err
			}
			for _, t := range out.Session.Plan.Steps {
				o.metrics.ObserveRoute(t.String())
			}
			return out, nil
		}},
		{nodex.NodeDispatcher, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchNext(in)
		}},
		{nodex.NodeCustomer, o.specialistStep(statex.TargetCustomer)},
		{nodex.NodeMusic, o.specialistStep(statex.TargetMusic)},
		{nodex.NodeOther, o.specialistStep(statex.TargetOther)},
		{nodex.NodeCustomerTools, o.toolsStep(statex.TargetCustomer)},
		{nodex.NodeMusicTools, o.toolsStep(statex.TargetMusic)},
	}
	for _, s := range steps {
		if err := graph.AddLambdaNode(s.name, o.step(s.name, s.fn)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", s.name, err)
		}
	}

	if err := graph.AddLambdaNode(nodex.NodeFinalize,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			st, out, err := nodex.Finalize(in)
			if err != nil {
				return nodex.GraphOutput{}, err
			}
			if err := nodex.SaveCheckpoint(ctx, st, o.store, o.now()); err != nil {
				return nodex.GraphOutput{}, err
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeFinalize, err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", nodex.NodeLoadCheckpoint},
		{nodex.NodeAppendUserMessage, nodex.NodeRouter},
		{nodex.NodeOther, nodex.NodeDispatcher},
		{nodex.NodeCustomerTools, nodex.NodeCustomer},
		{nodex.NodeMusicTools, nodex.NodeMusic},
		{nodex.NodeFinalize, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	branches := []struct {
		from string
		to   []string
	}{
		{nodex.NodeLoadCheckpoint, nodex.ResumableNodes},
		{nodex.NodeRouter, []string{nodex.NodeDispatcher, nodex.NodeFinalize}},
		{nodex.NodeDispatcher, []string{nodex.NodeCustomer, nodex.NodeMusic, nodex.NodeOther, nodex.NodeFinalize}},
		{nodex.NodeCustomer, []string{nodex.NodeCustomerTools, nodex.NodeDispatcher}},
		{nodex.NodeMusic, []string{nodex.NodeMusicTools, nodex.NodeDispatcher}},
	}
	for _, b := range branches {
		if err := graph.AddBranch(b.from, nextBranch(b.from, b.to...)); err != nil {
			return nil, fmt.Errorf("add branch from %s: %w", b.from, err)
		}
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("orchestrator.turn"),
		compose.WithMaxRunSteps(2*o.maxSteps+10),
	)
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}

func (o *Orchestrator) specialistStep(target statex.Target) stepFunc {
	return func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
		return nodex.RunSpecialist(ctx, in, o.models, target)
	}
}

func (o *Orchestrator) toolsStep(target statex.Target) stepFunc {
	return func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
		return nodex.ExecuteTools(ctx, in, o.tools, target)
	}
}
