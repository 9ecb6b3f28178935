package series

import (
	"sync"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
)

// Buffer is a bounded ring of samples for one metric. It keeps the stability
// bookkeeping the alert evaluator uses to skip scanning flatlined series.
type Buffer struct {
	mu          sync.RWMutex
	ring        []Point
	start       int
	size        int
	observed    int64
	stableSince int64
	stableCount int
}

// NewBuffer returns a Buffer retaining at most capacity samples.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, errors.New().WithData(ErrInvalidCapacity, capacity)
	}

	return &Buffer{ring: make([]Point, capacity)}, nil
}

// Capacity returns the maximum number of retained samples.
func (b *Buffer) Capacity() int {
	return len(b.ring)
}

// Add appends a sample. Timestamps must be strictly increasing.
func (b *Buffer) Add(t, value int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size > 0 {
		last := b.at(b.size - 1)
		if t <= last.Time {
			return errors.New().WithData(ErrOutOfOrder, struct {
				Last int64
				Time int64
			}{
				Last: last.Time,
				Time: t,
			})
		}

		if value == last.Value {
			b.stableCount++
		} else {
			b.stableCount = 1
			b.stableSince = t
		}
	} else {
		b.stableCount = 1
		b.stableSince = t
	}

	if b.size < len(b.ring) {
		b.ring[(b.start+b.size)%len(b.ring)] = Point{Time: t, Value: value}
		b.size++
	} else {
		b.ring[b.start] = Point{Time: t, Value: value}
		b.start = (b.start + 1) % len(b.ring)
	}
	b.observed++

	return nil
}

// Restore replays previously persisted samples, skipping any that are not
// newer than what the buffer already holds.
func (b *Buffer) Restore(points []Point) int {
	restored := 0
	for _, p := range points {
		if err := b.Add(p.Time, p.Value); err == nil {
			restored++
		}
	}

	return restored
}

func (b *Buffer) at(i int) Point {
	return b.ring[(b.start+i)%len(b.ring)]
}

func (b *Buffer) ObservedCount() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.observed
}

func (b *Buffer) LastValue() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.size == 0 {
		return 0
	}
	return b.at(b.size - 1).Value
}

func (b *Buffer) LastTime() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.size == 0 {
		return 0
	}
	return b.at(b.size - 1).Time
}

func (b *Buffer) Points() []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	points := make([]Point, b.size)
	for i := range points {
		points[i] = b.at(i)
	}

	return points
}

// IsStable is true once the run of equal values fills the whole buffer.
func (b *Buffer) IsStable() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size > 0 && b.stableCount >= len(b.ring)
}

func (b *Buffer) StableSince() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stableSince
}

func (b *Buffer) StableCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stableCount
}
