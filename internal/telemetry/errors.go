package telemetry

import "codeberg.org/mutker/nvidiawatch/internal/errors"

const (
	ErrListen = errors.ErrInitTelemetry
	ErrServe  = errors.ErrServeMetrics
)
