package alert

import "codeberg.org/mutker/nvidiawatch/internal/errors"

const (
	ErrInvalidCondition = errors.ErrorCode("alert_invalid_condition")
	ErrInvalidOperator  = errors.ErrorCode("alert_invalid_operator")
)
