package alert

import "strconv"

type windowKind uint8

const (
	windowNone windowKind = iota
	windowMillis
	windowCount
)

// Window is the trailing portion of a series a condition looks at: either an
// elapsed time in milliseconds, a number of samples, or nothing at all. The zero
// value is no window.
type Window struct {
	kind windowKind
	n    int64
}

// NoWindow restricts a condition to the most recent sample.
func NoWindow() Window {
	return Window{}
}

// Millis covers the samples of the last ms milliseconds. Non-positive values
// mean every retained sample.
func Millis(ms int64) Window {
	return Window{kind: windowMillis, n: ms}
}

// Count covers the last n samples.
func Count(n int32) Window {
	return Window{kind: windowCount, n: int64(n)}
}

func (w Window) IsPresent() bool { return w.kind != windowNone }
func (w Window) IsMillis() bool  { return w.kind == windowMillis }
func (w Window) IsCount() bool   { return w.kind == windowCount }

// Length is the millisecond or sample count of the window, 0 when absent.
func (w Window) Length() int64 {
	return w.n
}

func (w Window) String() string {
	switch w.kind {
	case windowMillis:
		return strconv.FormatInt(w.n, 10) + "ms"
	case windowCount:
		return strconv.FormatInt(w.n, 10) + "x"
	default:
		return ""
	}
}
