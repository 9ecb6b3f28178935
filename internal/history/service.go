package history

import (
	"context"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"codeberg.org/mutker/nvidiawatch/internal/watch"
)

type noopStore struct{}

// NewService returns the SQLite store, or a no-op store when history is
// disabled.
func NewService(cfg Config, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("History disabled, using no-op store")
		return noopStore{}, nil
	}

	return NewRepository(cfg, log)
}

// Sink records every transition in the store.
func Sink(store Store) watch.Sink {
	return watch.SinkFunc(store.RecordTransition)
}

// PruneJob returns a job that deletes history older than retention.
func PruneJob(store Store, retention time.Duration, log logger.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		removed, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Info().Int64("removed", removed).Dur("retention", retention).Msg("Pruned history")
		}
		return nil
	}
}

func (noopStore) RecordSample(context.Context, Sample) error             { return nil }
func (noopStore) RecordTransition(context.Context, watch.Transition) error { return nil }

func (noopStore) LoadSamples(context.Context, string, int) ([]Sample, error) {
	return nil, nil
}

func (noopStore) LatestTransitions(context.Context) ([]watch.Transition, error) {
	return nil, nil
}

func (noopStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (noopStore) Close() error                                    { return nil }
