package alert

import (
	"math"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
)

// Parse reads the rendering produced by String back into a Condition:
//
//	value > 80
//	value >= 50 for last 5x
//	value > 80 on average for last 5000ms
//
// The leading "value" is optional and a window may also be given as a Go
// duration such as "30s". The empty string parses to None.
func Parse(text string) (*Condition, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return None, nil
	}
	if fields[0] == "value" {
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return nil, invalid(text, "missing operator or threshold")
	}

	op, err := ParseOperator(fields[0])
	if err != nil {
		return nil, invalid(text, "unknown operator "+fields[0])
	}
	threshold, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, invalid(text, "threshold is not an integer")
	}

	c := New(op, threshold)
	rest := fields[2:]

	average := false
	if len(rest) >= 2 && rest[0] == "on" && rest[1] == "average" {
		average = true
		rest = rest[2:]
	}

	if len(rest) > 0 {
		if len(rest) != 3 || rest[0] != "for" || rest[1] != "last" {
			return nil, invalid(text, "expected \"for last <n>x\" or \"for last <n>ms\"")
		}
		c, err = withWindow(c, rest[2])
		if err != nil {
			return nil, invalid(text, err.Error())
		}
	}

	if average {
		c = c.WithAverage()
	}

	return c, nil
}

func withWindow(c *Condition, spec string) (*Condition, error) {
	switch {
	case strings.HasSuffix(spec, "ms"):
		ms, err := strconv.ParseInt(strings.TrimSuffix(spec, "ms"), 10, 64)
		if err != nil {
			return nil, err
		}
		return c.WithWindowMillis(ms), nil
	case strings.HasSuffix(spec, "x"):
		n, err := strconv.ParseInt(strings.TrimSuffix(spec, "x"), 10, 64)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, strconv.ErrRange
		}
		return c.WithWindowCount(int32(n)), nil
	default:
		d, err := time.ParseDuration(spec)
		if err != nil {
			return nil, err
		}
		// a sub-millisecond remainder would silently truncate, possibly to the
		// all-samples window
		if d%time.Millisecond != 0 {
			return nil, errors.New().WithData(ErrInvalidCondition, "window is not a whole number of milliseconds")
		}
		return c.WithWindowMillis(d.Milliseconds()), nil
	}
}

func invalid(text, reason string) error {
	return errors.New().WithData(ErrInvalidCondition, struct {
		Condition string
		Reason    string
	}{
		Condition: text,
		Reason:    reason,
	})
}
