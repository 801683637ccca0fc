package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	nodex "github.com/tanpawarit/chinook-concierge/agent/nodes"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
	"github.com/tanpawarit/chinook-concierge/pkg/metrics"
)

const DefaultMaxSteps = 25

var (
	ErrInvalidMessage  = nodex.ErrInvalidMessage
	ErrInvalidSession  = statex.ErrInvalidSession
	ErrNothingToResume = contractx.ErrNothingToResume
	ErrStepLimit       = contractx.ErrStepLimit
)

type Config struct {
	MaxSteps int `envconfig:"MAX_STEPS" default:"25"`
}

type Option func(*Orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithModerator moderates user text before it enters the conversation.
func WithModerator(m contractx.Moderator) Option {
	return func(o *Orchestrator) { o.moderator = m }
}

type Orchestrator struct {
	store     statex.Store
	models    contractx.Registry
	tools     contractx.ToolGateway
	moderator contractx.Moderator
	metrics   *metrics.Metrics

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	maxSteps int
	now      func() time.Time
}

func New(
	store statex.Store,
	models contractx.Registry,
	tools contractx.ToolGateway,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	o := &Orchestrator{
		store:    store,
		models:   models,
		tools:    tools,
		maxSteps: maxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one user turn and returns the assistant's reply.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (string, error) {
	out, err := o.Run(ctx, nodex.GraphInput{SessionID: sessionID, Text: text})
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

// Resume continues a turn that stopped after its last checkpoint.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (nodex.GraphOutput, error) {
	return o.Run(ctx, nodex.GraphInput{SessionID: sessionID, Resume: true})
}

func (o *Orchestrator) Run(ctx context.Context, in nodex.GraphInput) (nodex.GraphOutput, error) {
	ctx = contractx.WithSessionID(ctx, in.SessionID)
	start := time.Now()

	out, err := o.graphRunner.Invoke(ctx, in)
	o.metrics.ObserveTurn(time.Since(start), err)
	if err != nil {
		log.Error().Err(err).
			Str("session_id", in.SessionID).
			Bool("resume", in.Resume).
			Msg("turn failed")
		return nodex.GraphOutput{}, err
	}

	log.Info().
		Str("session_id", out.SessionID).
		Bool("resume", in.Resume).
		Int("messages", len(out.Messages)).
		Dur("took", time.Since(start)).
		Msg("turn complete")
	return out, nil
}
