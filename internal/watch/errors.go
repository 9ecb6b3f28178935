package watch

import "codeberg.org/mutker/nvidiawatch/internal/errors"

const (
	ErrInvalidSeverity  errors.ErrorCode = "watch_invalid_severity"
	ErrDuplicateRule    errors.ErrorCode = "watch_duplicate_rule"
	ErrMissingCondition errors.ErrorCode = "watch_missing_condition"
	ErrEmitTransition   errors.ErrorCode = "watch_emit_transition_failed"
)
