// Package alert decides whether a metric series satisfies a threshold condition,
// optionally over a trailing window of time or samples and optionally on the
// window's average.
package alert

import (
	"strconv"
	"strings"
)

// Condition is an immutable comparison of a series against a threshold.
// Conditions are shared by pointer; derive variants with the With methods.
type Condition struct {
	comparison Operator
	threshold  int64
	window     Window
	onAverage  bool
}

// None is the "no condition configured" marker. It is always satisfied.
// Only this exact pointer counts as none; New(EQ, 0) is an ordinary condition.
var None = &Condition{comparison: EQ}

// New returns an instant condition comparing the most recent sample.
func New(comparison Operator, threshold int64) *Condition {
	return &Condition{comparison: comparison, threshold: threshold}
}

// WithWindowMillis returns a copy looking at the last ms milliseconds, per sample.
func (c *Condition) WithWindowMillis(ms int64) *Condition {
	return &Condition{comparison: c.comparison, threshold: c.threshold, window: Millis(ms)}
}

// WithWindowCount returns a copy looking at the last n samples, per sample.
func (c *Condition) WithWindowCount(n int32) *Condition {
	return &Condition{comparison: c.comparison, threshold: c.threshold, window: Count(n)}
}

// WithAverage returns a copy comparing the window's average instead of each sample.
func (c *Condition) WithAverage() *Condition {
	return &Condition{comparison: c.comparison, threshold: c.threshold, window: c.window, onAverage: true}
}

// IsNone reports whether c is the None marker. A nil condition counts as none.
func (c *Condition) IsNone() bool {
	return c == nil || c == None
}

func (c *Condition) Comparison() Operator { return c.comparison }
func (c *Condition) Threshold() int64     { return c.threshold }
func (c *Condition) Window() Window       { return c.window }
func (c *Condition) OnAverage() bool      { return c.onAverage }

func (c *Condition) HasWindow() bool      { return c.window.IsPresent() }
func (c *Condition) IsWindowMillis() bool { return c.window.IsMillis() }
func (c *Condition) IsWindowCount() bool  { return c.window.IsCount() }

// Equal compares by value: comparison, threshold, window and averaging.
func (c *Condition) Equal(other *Condition) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}

// Key returns a comparable copy suitable as a map key. A nil condition has
// the same key as None.
func (c *Condition) Key() Condition {
	if c == nil {
		return *None
	}
	return *c
}

// String renders the condition for display, e.g. "value > 80 on average for last 5000ms".
// None renders as the empty string.
func (c *Condition) String() string {
	if c.IsNone() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("value ")
	sb.WriteString(c.comparison.String())
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatInt(c.threshold, 10))
	if c.onAverage && c.window.IsPresent() {
		sb.WriteString(" on average")
	}
	if c.window.IsPresent() {
		sb.WriteString(" for last ")
		sb.WriteString(c.window.String())
	}

	return sb.String()
}

// compare applies the condition's operator and threshold to value.
func (c *Condition) compare(value int64) bool {
	return c.comparison.Compare(value, c.threshold)
}
