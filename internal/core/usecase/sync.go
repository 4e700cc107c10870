package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmaslov/passage-search/internal/core/ports"
	"github.com/dmaslov/passage-search/internal/index"
)

// CorpusSyncUseCase rebuilds in-memory indexes from the passage store. The
// worker drives it from queue notifications; WarmAll runs once at startup so
// the API serves every known corpus before the first update arrives.
type CorpusSyncUseCase struct {
	source   ports.PassageSource
	registry *index.Registry
}

func NewCorpusSyncUseCase(source ports.PassageSource, registry *index.Registry) *CorpusSyncUseCase {
	return &CorpusSyncUseCase{
		source:   source,
		registry: registry,
	}
}

// SyncCorpus reloads one corpus from storage. A corpus whose passages have all
// been removed is unloaded instead of replaced with an empty index.
func (uc *CorpusSyncUseCase) SyncCorpus(ctx context.Context, corpusID string) error {
	passages, err := uc.source.ListByCorpus(ctx, corpusID)
	if err != nil {
		return fmt.Errorf("list passages for corpus %s: %w", corpusID, err)
	}

	if len(passages) == 0 {
		uc.registry.Unload(corpusID)
		slog.Info("corpus_unloaded", "corpus_id", corpusID)
		return nil
	}

	if err := uc.registry.Load(corpusID, passages); err != nil {
		return fmt.Errorf("load corpus %s: %w", corpusID, err)
	}
	slog.Info("corpus_synced", "corpus_id", corpusID, "passages", len(passages))
	return nil
}

// WarmAll syncs every corpus present in storage. Individual failures are
// logged and skipped so one broken corpus cannot block the rest.
func (uc *CorpusSyncUseCase) WarmAll(ctx context.Context) error {
	ids, err := uc.source.ListCorpusIDs(ctx)
	if err != nil {
		return fmt.Errorf("list corpus ids: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := uc.SyncCorpus(ctx, id); err != nil {
			slog.Error("corpus_warm_failed", "corpus_id", id, "error", err)
		}
	}
	return nil
}
