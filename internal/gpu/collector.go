package gpu

import (
	"context"
	"sort"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/history"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"codeberg.org/mutker/nvidiawatch/internal/series"
	"github.com/rs/zerolog"
)

// SampleObserver receives every recorded value and every failed sampling
// round.
type SampleObserver interface {
	ObserveSample(metric string, value int64)
	ObserveSampleError()
}

type CollectorOption func(*Collector)

// WithHistory persists every recorded sample.
func WithHistory(store history.Store) CollectorOption {
	return func(c *Collector) {
		c.store = store
	}
}

func WithObserver(o SampleObserver) CollectorOption {
	return func(c *Collector) {
		c.observer = o
	}
}

// Collector feeds sampler snapshots into the series registry.
type Collector struct {
	sampler  Sampler
	registry *series.Registry
	store    history.Store
	observer SampleObserver
	log      zerolog.Logger
}

func NewCollector(sampler Sampler, registry *series.Registry, opts ...CollectorOption) *Collector {
	c := &Collector{
		sampler:  sampler,
		registry: registry,
		log:      logger.WithComponent("collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect takes one sample and records each value. Out-of-order samples are
// dropped; history write failures are logged but do not fail the round.
func (c *Collector) Collect(ctx context.Context) error {
	errFactory := errors.New()

	snap, err := c.sampler.Sample(ctx)
	if err != nil {
		if c.observer != nil {
			c.observer.ObserveSampleError()
		}
		return errFactory.Wrap(errors.ErrSampleGPU, err)
	}

	ts := snap.Time.UnixMilli()
	values := snap.Values()

	metrics := make([]string, 0, len(values))
	for metric := range values {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	for _, metric := range metrics {
		value := values[metric]

		if err := c.registry.Append(metric, ts, value); err != nil {
			if errors.HasCode(err, series.ErrOutOfOrder) {
				c.log.Debug().Err(err).Str("metric", metric).Msg("Dropping out-of-order sample")
				continue
			}
			return err
		}

		if c.observer != nil {
			c.observer.ObserveSample(metric, value)
		}

		if c.store != nil {
			sample := history.Sample{Metric: metric, Timestamp: ts, Value: value}
			if err := c.store.RecordSample(ctx, sample); err != nil {
				c.log.Error().Err(err).Str("metric", metric).Msg("Failed to record sample")
			}
		}
	}

	c.log.Debug().
		Int64("temperature", values[MetricTemperature]).
		Int64("utilization", values[MetricUtilization]).
		Msg("Sampled GPU")

	return nil
}

// Run collects every interval until ctx is cancelled. Sampling errors are
// logged and the loop continues.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Collect(ctx); err != nil {
				c.log.Error().Err(err).Msg("Sampling failed")
			}
		}
	}
}

// Restore preloads the registry from history so windowed rules have data
// immediately after a restart.
func Restore(ctx context.Context, store history.Store, registry *series.Registry, metrics []string, limit int) (int, error) {
	restored := 0
	for _, metric := range metrics {
		samples, err := store.LoadSamples(ctx, metric, limit)
		if err != nil {
			return restored, err
		}
		if len(samples) == 0 {
			continue
		}

		points := make([]series.Point, len(samples))
		for i, s := range samples {
			points[i] = series.Point{Time: s.Timestamp, Value: s.Value}
		}
		restored += registry.GetOrCreate(metric).Restore(points)
	}
	return restored, nil
}

// Metrics lists every metric name a snapshot can carry.
func Metrics() []string {
	return []string{
		MetricFanSpeed,
		MetricMemoryUtilization,
		MetricPowerLimit,
		MetricPowerUsage,
		MetricTemperature,
		MetricUtilization,
	}
}
