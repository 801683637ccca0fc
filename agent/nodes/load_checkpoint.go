package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

// LoadCheckpoint reads the session checkpoint, or starts a new session. A new
// message always starts a turn at append_user_message; a resume continues at
// the checkpointed Next.
func LoadCheckpoint(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := loadOrCreateState(ctx, store, in.SessionID, in.Now)
	if err != nil {
		return nil, err
	}
	st.BeginTurn()

	if in.Resume {
		if st.Next == "" {
			return nil, fmt.Errorf("%w: session=%s", contractx.ErrNothingToResume, in.SessionID)
		}
		if !slices.Contains(ResumableNodes, st.Next) {
			return nil, fmt.Errorf("%w: checkpoint points at unknown node %q", contractx.ErrValidation, st.Next)
		}
	} else {
		st.Next = NodeAppendUserMessage
	}

	in.Session = st
	return in, nil
}

func loadOrCreateState(ctx context.Context, store statex.Store, sessionID string, now time.Time) (*statex.SessionState, error) {
	st, err := store.Load(ctx, sessionID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, err
	}
	return statex.NewSessionState(sessionID, now), nil
}
