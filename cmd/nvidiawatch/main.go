package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/config"
	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/gpu"
	"codeberg.org/mutker/nvidiawatch/internal/history"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"codeberg.org/mutker/nvidiawatch/internal/pid"
	"codeberg.org/mutker/nvidiawatch/internal/scheduler"
	"codeberg.org/mutker/nvidiawatch/internal/series"
	"codeberg.org/mutker/nvidiawatch/internal/telemetry"
	"codeberg.org/mutker/nvidiawatch/internal/watch"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("Exiting with error")
		} else {
			logger.Error().Err(err).Msg("Exiting with error")
		}
		os.Exit(1)
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context, cfg *config.Config) error {
	errFactory := errors.New()

	lock, err := pid.Acquire(cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error().Err(err).Msg("Failed to release lock")
		}
	}()

	rules, err := cfg.WatchRules()
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		logger.Warn().Msg("No alert rules configured, only sampling")
	}

	registry, err := series.NewRegistry(cfg.Capacity)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	store, err := history.NewService(history.Config{
		Enabled:      cfg.History.Enabled,
		DBPath:       cfg.History.DBPath,
		BatchSize:    cfg.History.BatchSize,
		BatchTimeout: cfg.History.BatchTimeout,
	}, logger.New("history"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close history")
		}
	}()

	if cfg.History.Enabled {
		restored, err := gpu.Restore(ctx, store, registry, gpu.Metrics(), cfg.Capacity)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to restore series from history")
		} else {
			logger.Info().Int("samples", restored).Msg("Restored series from history")
		}
	}

	metrics := telemetry.New()
	watcher, err := watch.New(registry, rules,
		watch.WithSinks(watch.NewLogSink(), history.Sink(store), metrics),
		watch.WithObserver(metrics),
	)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	if cfg.History.Enabled {
		transitions, err := store.LatestTransitions(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to restore rule state from history")
		} else {
			applied := watcher.Restore(transitions)
			logger.Info().
				Int("transitions", applied).
				Strs("active", watcher.Active()).
				Msg("Restored rule state from history")
		}
	}
	metrics.InitRules(watcher.Rules(), watcher.Active())
	if cfg.Telemetry.Enabled {
		srv := telemetry.NewServer(cfg.Telemetry.Listen, metrics)
		if err := srv.Start(); err != nil {
			return err
		}
		defer shutdown("metrics server", srv.Shutdown)
	}

	device, err := gpu.Open(cfg.Device, logger.New("gpu"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := device.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown NVML")
		}
	}()

	collector := gpu.NewCollector(device, registry,
		gpu.WithHistory(store),
		gpu.WithObserver(metrics),
	)

	sched := scheduler.New()
	if cfg.History.Enabled && cfg.History.Retention > 0 {
		job := history.PruneJob(store, cfg.History.Retention, logger.New("history"))
		if err := sched.Add("prune-history", cfg.History.PruneSchedule, job); err != nil {
			return err
		}
	}
	sched.Start()
	defer shutdown("scheduler", sched.Stop)

	return loop(ctx, time.Duration(cfg.Interval)*time.Second, collector, watcher)
}

// loop samples and then evaluates on every tick so rules always see the
// newest reading.
func loop(ctx context.Context, interval time.Duration, collector *gpu.Collector, watcher *watch.Watcher) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", interval).
		Int("rules", len(watcher.Rules())).
		Msg("Watching GPU")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Received termination signal.")
			return nil
		case now := <-ticker.C:
			if err := collector.Collect(ctx); err != nil {
				logger.Error().Err(err).Msg("Failed to sample GPU")
				continue
			}
			if _, err := watcher.Evaluate(ctx, now); err != nil {
				logger.Error().Err(err).Msg("Failed to evaluate rules")
			}
		}
	}
}

func shutdown(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Error().Err(err).Str("component", name).Msg("Shutdown failed")
	}
}
