package series

import "codeberg.org/mutker/nvidiawatch/internal/errors"

const (
	ErrInvalidCapacity = errors.ErrorCode("series_invalid_capacity")
	ErrOutOfOrder      = errors.ErrorCode("series_sample_out_of_order")
	ErrUnknownSeries   = errors.ErrorCode("series_unknown")
)
