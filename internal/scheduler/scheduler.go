// Package scheduler runs periodic maintenance jobs such as history pruning.
package scheduler

import (
	"context"
	"sync"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is invoked on every tick of its schedule. The context is cancelled when
// the scheduler stops.
type Job func(ctx context.Context) error

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec validates a five-field cron expression or a descriptor such as
// "@hourly" or "@every 30m".
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrInvalidSchedule, err).WithData(spec)
	}
	return schedule, nil
}

type Scheduler struct {
	cron   *cron.Cron
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

func New() *Scheduler {
	log := logger.WithComponent("scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(
				cron.Recover(cronLogger{log}),
				cron.SkipIfStillRunning(cronLogger{log}),
			),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Add registers fn under name. Names must be unique.
func (s *Scheduler) Add(name, spec string, fn Job) error {
	errFactory := errors.New()

	schedule, err := ParseSpec(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return errFactory.WithData(errors.ErrInvalidOperation, name).WithMessage("job already scheduled")
	}

	s.jobs[name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.log.Debug().Str("job", name).Msg("Running scheduled job")
		if err := fn(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
		}
	}))
	s.log.Debug().Str("job", name).Str("spec", spec).Msg("Job scheduled")

	return nil
}

// Remove unschedules the named job. It reports whether the job existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.jobs, name)

	return true
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return errors.New().Wrap(errors.ErrTimeout, ctx.Err())
	}
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
