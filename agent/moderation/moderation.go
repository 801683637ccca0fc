// Package moderation screens user input and agent output against the OpenAI
// moderation endpoint. Flagged text is replaced, never rejected.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
)

// FlaggedReplacement stands in for any text the endpoint flags.
const FlaggedReplacement = "Text was found that violates OpenAI's content policy."

type Config struct {
	Enabled bool   `envconfig:"ENABLED" default:"true"`
	Model   string `envconfig:"MODEL" default:"omni-moderation-latest"`
}

type OpenAIModerator struct {
	client *openai.Client
	model  string
}

var (
	_ contractx.Moderator = (*OpenAIModerator)(nil)
	_ contractx.Moderator = Noop{}
)

func NewOpenAIModerator(client *openai.Client, cfg Config) (*OpenAIModerator, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(openai.ModerationModelOmniModerationLatest)
	}
	return &OpenAIModerator{client: client, model: model}, nil
}

// New returns the OpenAI moderator when enabled and a client is available,
// otherwise a pass-through.
func New(client *openai.Client, cfg Config) (contractx.Moderator, error) {
	if !cfg.Enabled || client == nil {
		return Noop{}, nil
	}
	return NewOpenAIModerator(client, cfg)
}

func (m *OpenAIModerator) Moderate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	resp, err := m.client.Moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.ModerationModel(m.model),
	})
	if err != nil {
		return "", fmt.Errorf("%w: moderation: %v", contractx.ErrModelInvoke, err)
	}

	for _, r := range resp.Results {
		if r.Flagged {
			log.Warn().Int("length", len(text)).Msg("moderation flagged text")
			return FlaggedReplacement, nil
		}
	}
	return text, nil
}

// Noop passes text through unchanged.
type Noop struct{}

func (Noop) Moderate(_ context.Context, text string) (string, error) {
	return text, nil
}
