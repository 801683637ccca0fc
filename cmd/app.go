package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"github.com/tanpawarit/chinook-concierge/agent/agents/orchestrator"
	"github.com/tanpawarit/chinook-concierge/agent/agents/specialist"
	"github.com/tanpawarit/chinook-concierge/agent/approval"
	llmx "github.com/tanpawarit/chinook-concierge/agent/llm"
	"github.com/tanpawarit/chinook-concierge/agent/moderation"
	"github.com/tanpawarit/chinook-concierge/agent/musicstore"
	"github.com/tanpawarit/chinook-concierge/agent/retrieval"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
	"github.com/tanpawarit/chinook-concierge/agent/tool"
	configx "github.com/tanpawarit/chinook-concierge/pkg/config"
	"github.com/tanpawarit/chinook-concierge/pkg/database"
	"github.com/tanpawarit/chinook-concierge/pkg/metrics"
	openrouterx "github.com/tanpawarit/chinook-concierge/pkg/openrouter"
	qstashx "github.com/tanpawarit/chinook-concierge/pkg/qstash"
)

const (
	stateBackendSQL     = "sql"
	stateBackendUpstash = "upstash"
	stateBackendMemory  = "memory"
)

type stateConfig struct {
	Backend string `envconfig:"BACKEND" default:"sql"`
}

// app is the fully wired concierge.
type app struct {
	db           *bun.DB
	registry     *prometheus.Registry
	approvals    *approval.Queue
	orchestrator *orchestrator.Orchestrator
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}

func openDB(ctx context.Context) (*bun.DB, error) {
	dbCfg, err := configx.New[database.Config]("DATABASE")
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	return database.Open(ctx, *dbCfg)
}

func newApprovalQueue(db bun.IDB) (*approval.Queue, error) {
	qCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load qstash config: %w", err)
	}
	if !qCfg.Enabled() {
		return approval.NewQueue(db), nil
	}

	client, err := qstashx.NewClient(*qCfg)
	if err != nil {
		return nil, err
	}
	notifier, err := approval.NewQStashNotifier(client, qCfg.Destination)
	if err != nil {
		return nil, err
	}
	return approval.NewQueue(db, approval.WithNotifier(notifier)), nil
}

func newStateStore(db bun.IDB) (statex.Store, error) {
	cfg, err := configx.New[stateConfig]("STATE")
	if err != nil {
		return nil, fmt.Errorf("load state config: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case stateBackendSQL:
		return statex.NewSQLStore(db), nil
	case stateBackendUpstash:
		upCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		return statex.NewUpstashRedisStore(*upCfg)
	case stateBackendMemory:
		return statex.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported state backend %q", cfg.Backend)
	}
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(a.registry)

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	openaiCfg, err := configx.New[openrouterx.OpenAIConfig]("OPENAI")
	if err != nil {
		return nil, fmt.Errorf("load openai config: %w", err)
	}
	embedCfg, err := configx.New[retrieval.EmbeddingConfig]("EMBEDDING")
	if err != nil {
		return nil, fmt.Errorf("load embedding config: %w", err)
	}
	modCfg, err := configx.New[moderation.Config]("MODERATION")
	if err != nil {
		return nil, fmt.Errorf("load moderation config: %w", err)
	}
	orchCfg, err := configx.New[orchestrator.Config]("ORCHESTRATOR")
	if err != nil {
		return nil, fmt.Errorf("load orchestrator config: %w", err)
	}

	openaiClient := openrouterx.NewOpenAIClient(*openaiCfg)
	if openaiClient == nil {
		return nil, errors.New("OPENAI_API_KEY is required for embeddings")
	}

	a.db, err = openDB(ctx)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store := musicstore.NewBunStore(a.db)

	embedder, err := retrieval.NewOpenAIEmbedder(openaiClient, *embedCfg)
	if err != nil {
		return nil, err
	}
	retriever, err := retrieval.Build(ctx, store, embedder, *embedCfg)
	if err != nil {
		return nil, fmt.Errorf("build similarity index: %w", err)
	}

	a.approvals, err = newApprovalQueue(a.db)
	if err != nil {
		return nil, err
	}

	gateway, err := tool.NewGateway(tool.Deps{
		Store:     store,
		Retriever: retriever,
		Approver:  a.approvals,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}

	moderator, err := moderation.New(openaiClient, *modCfg)
	if err != nil {
		return nil, err
	}
	models, err := specialist.NewRegistry(ctx, *llmCfg, moderator)
	if err != nil {
		return nil, err
	}

	checkpoints, err := newStateStore(a.db)
	if err != nil {
		return nil, err
	}

	a.orchestrator, err = orchestrator.New(checkpoints, models, gateway, *orchCfg,
		orchestrator.WithMetrics(m),
		orchestrator.WithModerator(moderator),
	)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}
