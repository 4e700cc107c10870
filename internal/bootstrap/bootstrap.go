package bootstrap

import (
	"context"
	"fmt"

	"github.com/dmaslov/passage-search/internal/config"
	"github.com/dmaslov/passage-search/internal/core/ports"
	"github.com/dmaslov/passage-search/internal/core/usecase"
	"github.com/dmaslov/passage-search/internal/index"
	"github.com/dmaslov/passage-search/internal/infrastructure/llm/ollama"
	"github.com/dmaslov/passage-search/internal/infrastructure/queue/nats"
	"github.com/dmaslov/passage-search/internal/infrastructure/repository/postgres"
	"github.com/dmaslov/passage-search/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Registry *index.Registry
	Engine   *usecase.HybridSearchUseCase
	SyncUC   *usecase.CorpusSyncUseCase
	Queue    *nats.Queue
	Source   ports.PassageSource

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewPassageRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init corpus event queue: %w", err)
	}

	vocabulary, err := config.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load expansion vocabulary: %w", err)
	}

	// Each capability is optional on its own; a disabled Ollama leaves the
	// engine on lexical scoring with deterministic expansion only.
	var similarity ports.SimilarityProvider
	var cross ports.CrossEncoder
	var paraphraser ports.QueryParaphraser
	if cfg.OllamaEnabled {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		similarity = ollama.NewSimilarityScorer(client)
		cross = ollama.NewCrossScorer(client)
		paraphraser = ollama.NewParaphraser(client)
	}

	expander := usecase.NewExpander(vocabulary, paraphraser, usecase.ExpanderOptions{
		MaxVariants:       cfg.MaxQueryVariants,
		ParaphraseTimeout: cfg.ParaphraseTimeout,
		ParaphraseRPS:     cfg.ParaphraseRPS,
	})

	registry := index.NewRegistry()
	engine, err := usecase.NewHybridSearchUseCase(registry, expander, usecase.NewVectorScorer(similarity), cross, usecase.SearchParams{
		Weights:             cfg.Weights(),
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		RelaxedThreshold:    cfg.RelaxedThreshold,
		SpecificityPenalty:  cfg.SpecificityPenalty,
		MaxResults:          cfg.MaxResults,
		RerankTopK:          cfg.RerankTopK,
		RerankTimeout:       cfg.RerankBatchTimeout,
		BM25K1:              cfg.BM25K1,
		BM25B:               cfg.BM25B,
	})
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("build search engine: %w", err)
	}

	return &App{
		Config:   cfg,
		Registry: registry,
		Engine:   engine,
		SyncUC:   usecase.NewCorpusSyncUseCase(repo, registry),
		Queue:    queue,
		Source:   repo,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
