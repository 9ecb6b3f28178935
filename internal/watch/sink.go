package watch

import (
	"context"

	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"github.com/rs/zerolog"
)

// Sink receives every transition the watcher emits.
type Sink interface {
	Emit(ctx context.Context, t Transition) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, t Transition) error

func (f SinkFunc) Emit(ctx context.Context, t Transition) error {
	return f(ctx, t)
}

type logSink struct {
	log zerolog.Logger
}

// NewLogSink returns a Sink that writes transitions to the application log.
func NewLogSink() Sink {
	return &logSink{log: logger.WithComponent("alert")}
}

func (s *logSink) Emit(_ context.Context, t Transition) error {
	var ev *zerolog.Event
	switch {
	case t.State == StateCleared:
		ev = s.log.Info()
	case t.Severity == SeverityCritical:
		ev = s.log.Error()
	case t.Severity == SeverityInfo:
		ev = s.log.Info()
	default:
		ev = s.log.Warn()
	}

	ev.Str("id", t.ID.String()).
		Str("rule", t.Rule).
		Str("metric", t.Metric).
		Str("severity", string(t.Severity)).
		Int64("value", t.Value).
		Str("condition", t.Condition).
		Msgf("Alert %s", t.State)

	return nil
}
