package prompt

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	p := LoadPromptSet()
	if p.Router == "" || p.Customer == "" || p.Music == "" {
		t.Fatalf("embedded prompts must not be empty: %+v", p)
	}

	for _, target := range []statex.Target{statex.TargetCustomer, statex.TargetMusic} {
		if _, err := p.ForTarget(target); err != nil {
			t.Fatalf("%s: unexpected error: %v", target, err)
		}
	}
	if _, err := p.ForTarget(statex.TargetOther); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing for other, got %v", err)
	}
	if _, err := (PromptSet{}).ForTarget(statex.TargetMusic); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing for empty prompt, got %v", err)
	}
}
