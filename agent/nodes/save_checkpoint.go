package orchestratornode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

// SaveCheckpoint persists the session after a node has run.
func SaveCheckpoint(ctx context.Context, in *GraphState, store statex.Store, now time.Time) error {
	if in == nil || in.Session == nil {
		return fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session
	st.Touch(now)
	if err := st.Validate(); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return store.Save(ctx, st)
}
