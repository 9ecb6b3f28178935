package history

import (
	"context"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/watch"
)

// Store persists samples and alert transitions.
type Store interface {
	RecordSample(ctx context.Context, sample Sample) error
	RecordTransition(ctx context.Context, t watch.Transition) error
	LoadSamples(ctx context.Context, metric string, limit int) ([]Sample, error)
	LatestTransitions(ctx context.Context) ([]watch.Transition, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Sample is one stored metric reading. Timestamp is in Unix milliseconds.
type Sample struct {
	Metric    string
	Timestamp int64
	Value     int64
}
