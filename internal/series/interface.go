package series

// Point is a single sample: time in milliseconds since the epoch and an integer value.
type Point struct {
	Time  int64
	Value int64
}

// Series is the read side of a metric's sample buffer.
//
// Every method returns a snapshot taken at call time. Consecutive calls are not
// atomic with respect to each other: a concurrent Add may land between them.
type Series interface {
	// ObservedCount is the total number of samples ever recorded.
	ObservedCount() int64
	// LastValue is the value of the most recent sample.
	LastValue() int64
	// LastTime is the time of the most recent sample.
	LastTime() int64
	// Points returns the retained samples in ascending time order.
	Points() []Point
	// IsStable reports whether the value has not changed for the whole retained buffer.
	IsStable() bool
	// StableSince is the time of the first sample of the current run of equal values.
	StableSince() int64
	// StableCount is the length of the current run of equal values.
	StableCount() int
}
