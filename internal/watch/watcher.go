// Package watch evaluates alert rules against metric series and reports
// raise and clear transitions to its sinks.
package watch

import (
	"context"
	"sort"
	"sync"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"codeberg.org/mutker/nvidiawatch/internal/series"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Observer is notified after every evaluation round.
type Observer interface {
	ObserveEvaluation(duration time.Duration, rules int)
}

type Option func(*Watcher)

func WithSinks(sinks ...Sink) Option {
	return func(w *Watcher) {
		w.sinks = append(w.sinks, sinks...)
	}
}

func WithObserver(o Observer) Option {
	return func(w *Watcher) {
		w.observer = o
	}
}

type Watcher struct {
	registry *series.Registry
	rules    []Rule
	sinks    []Sink
	observer Observer
	log      zerolog.Logger

	mu     sync.Mutex
	active map[string]bool
}

// New creates a watcher over the given registry. Rule names must be unique
// and every rule needs a condition; use alert.None for a rule that should
// always be raised.
func New(registry *series.Registry, rules []Rule, opts ...Option) (*Watcher, error) {
	seen := make(map[string]struct{}, len(rules))
	owned := make([]Rule, len(rules))

	for i, r := range rules {
		if _, dup := seen[r.Name]; dup {
			return nil, errors.New().WithData(ErrDuplicateRule, r.Name)
		}
		seen[r.Name] = struct{}{}

		if r.Condition == nil {
			return nil, errors.New().WithData(ErrMissingCondition, r.Name)
		}
		if r.Severity == "" {
			r.Severity = SeverityWarning
		}
		owned[i] = r
	}

	w := &Watcher{
		registry: registry,
		rules:    owned,
		log:      logger.WithComponent("watch"),
		active:   make(map[string]bool, len(rules)),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Restore seeds the raised state of known rules from previously recorded
// transitions, applied in order, so a restart does not re-emit alerts that
// were already raised. Transitions for unknown rules are ignored. It returns
// the number of transitions applied.
func (w *Watcher) Restore(transitions []Transition) int {
	known := make(map[string]struct{}, len(w.rules))
	for _, r := range w.rules {
		known[r.Name] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	applied := 0
	for _, t := range transitions {
		if _, ok := known[t.Rule]; !ok {
			w.log.Debug().Str("rule", t.Rule).Msg("Skipping transition for unknown rule")
			continue
		}
		w.active[t.Rule] = t.State == StateRaised
		applied++
	}

	return applied
}

func (w *Watcher) Rules() []Rule {
	rules := make([]Rule, len(w.rules))
	copy(rules, w.rules)
	return rules
}

// Evaluate checks every rule once and emits a transition for each rule whose
// state changed. Sink failures are logged and the first one is returned after
// all rules have been processed.
func (w *Watcher) Evaluate(ctx context.Context, now time.Time) ([]Transition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := time.Now()
	var (
		transitions []Transition
		firstErr    error
	)

	for _, r := range w.rules {
		var (
			s     series.Series
			value int64
		)
		if buf, ok := w.registry.Get(r.Metric); ok {
			s = buf
			value = buf.LastValue()
		}

		satisfied := r.Condition.Satisfied(s)
		if satisfied == w.active[r.Name] {
			continue
		}
		w.active[r.Name] = satisfied

		state := StateCleared
		if satisfied {
			state = StateRaised
		}

		t := Transition{
			ID:        uuid.New(),
			Rule:      r.Name,
			Metric:    r.Metric,
			Severity:  r.Severity,
			State:     state,
			Value:     value,
			Time:      now,
			Condition: r.Condition.String(),
		}
		transitions = append(transitions, t)

		if err := w.emit(ctx, t); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if w.observer != nil {
		w.observer.ObserveEvaluation(time.Since(started), len(w.rules))
	}

	return transitions, firstErr
}

func (w *Watcher) emit(ctx context.Context, t Transition) error {
	var firstErr error
	for _, sink := range w.sinks {
		if err := sink.Emit(ctx, t); err != nil {
			w.log.Error().Err(err).Str("rule", t.Rule).Str("state", string(t.State)).Msg("Failed to emit transition")
			if firstErr == nil {
				firstErr = errors.New().Wrap(ErrEmitTransition, err).WithData(t.Rule)
			}
		}
	}
	return firstErr
}

// Run evaluates the rules every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info().Int("rules", len(w.rules)).Dur("interval", interval).Msg("Watching")

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := w.Evaluate(ctx, now); err != nil {
				w.log.Debug().Err(err).Msg("Evaluation round finished with errors")
			}
		}
	}
}

// Active returns the names of currently raised rules in sorted order.
func (w *Watcher) Active() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.active))
	for name, raised := range w.active {
		if raised {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names
}
