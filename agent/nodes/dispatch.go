package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

// Step is the dispatcher's choice: a specialist to run, or the end of the turn
// when Target is zero.
type Step struct {
	Target statex.Target
}

var EndStep = Step{}

func (s Step) End() bool {
	return s.Target == 0
}

// Dispatch advances the plan cursor. It returns the specialist at the cursor and
// the plan with the cursor moved past it, or EndStep with the cursor reset to
// zero once the plan is exhausted or empty. It has no side effects.
func Dispatch(plan statex.Plan) (Step, statex.Plan, error) {
	if plan.Index < 0 {
		return EndStep, plan, fmt.Errorf("%w: negative cursor %d", contractx.ErrMalformedPlan, plan.Index)
	}
	if plan.Index >= len(plan.Steps) {
		return EndStep, statex.Plan{Steps: plan.Steps, Index: 0}, nil
	}

	target := plan.Steps[plan.Index]
	if !target.Valid() {
		return EndStep, plan, fmt.Errorf("%w: step %d has invalid target %d", contractx.ErrMalformedPlan, plan.Index, uint8(target))
	}
	return Step{Target: target}, statex.Plan{Steps: plan.Steps, Index: plan.Index + 1}, nil
}

// SpecialistNode names the graph node that runs target.
func SpecialistNode(target statex.Target) (string, error) {
	switch target {
	case statex.TargetCustomer:
		return NodeCustomer, nil
	case statex.TargetMusic:
		return NodeMusic, nil
	case statex.TargetOther:
		return NodeOther, nil
	default:
		return "", fmt.Errorf("%w: %d", statex.ErrUnknownTarget, uint8(target))
	}
}

// ToolsNode names the tool node paired with target. Other has none.
func ToolsNode(target statex.Target) (string, error) {
	switch target {
	case statex.TargetCustomer:
		return NodeCustomerTools, nil
	case statex.TargetMusic:
		return NodeMusicTools, nil
	case statex.TargetOther:
		return "", fmt.Errorf("%w: %s has no tools", contractx.ErrValidation, target)
	default:
		return "", fmt.Errorf("%w: %d", statex.ErrUnknownTarget, uint8(target))
	}
}

// DispatchNext is the dispatcher node.
func DispatchNext(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session

	step, plan, err := Dispatch(st.Plan)
	if err != nil {
		return nil, err
	}
	st.Plan = plan

	if step.End() {
		st.Next = NodeFinalize
		return in, nil
	}
	next, err := SpecialistNode(step.Target)
	if err != nil {
		return nil, err
	}
	st.Next = next
	return in, nil
}
