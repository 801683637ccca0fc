package state

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownTarget = errors.New("unknown routing target")

// Target is one of the specialists a routing plan can point at.
type Target uint8

const (
	TargetCustomer Target = iota + 1
	TargetMusic
	TargetOther
)

// Targets lists every valid target in declaration order.
var Targets = []Target{TargetCustomer, TargetMusic, TargetOther}

func (t Target) String() string {
	switch t {
	case TargetCustomer:
		return "customer"
	case TargetMusic:
		return "music"
	case TargetOther:
		return "other"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

func (t Target) Valid() bool {
	switch t {
	case TargetCustomer, TargetMusic, TargetOther:
		return true
	default:
		return false
	}
}

// ParseTarget accepts a routing label as emitted by the router model.
func ParseTarget(label string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "customer":
		return TargetCustomer, nil
	case "music":
		return TargetMusic, nil
	case "other":
		return TargetOther, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, label)
	}
}

func (t Target) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTarget, uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Target) UnmarshalText(b []byte) error {
	parsed, err := ParseTarget(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Plan is the routing decision for the current user turn plus the dispatcher cursor.
type Plan struct {
	Steps []Target `json:"steps,omitempty"`
	Index int      `json:"index"`
}

// Reset installs a new plan with the cursor at zero.
func (p *Plan) Reset(steps []Target) {
	p.Steps = append([]Target(nil), steps...)
	p.Index = 0
}

// Clear drops the plan entirely.
func (p *Plan) Clear() {
	p.Steps = nil
	p.Index = 0
}

func (p Plan) Empty() bool {
	return len(p.Steps) == 0
}

func (p Plan) Validate() error {
	if p.Index < 0 {
		return fmt.Errorf("plan index %d is negative", p.Index)
	}
	for i, t := range p.Steps {
		if !t.Valid() {
			return fmt.Errorf("%w at step %d", ErrUnknownTarget, i)
		}
	}
	return nil
}
