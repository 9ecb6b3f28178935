package series

import (
	"sort"
	"sync"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
)

// Registry holds one Buffer per metric name.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[string]*Buffer
}

// NewRegistry creates a registry whose buffers retain capacity samples each.
func NewRegistry(capacity int) (*Registry, error) {
	if capacity < 1 {
		return nil, errors.New().WithData(ErrInvalidCapacity, capacity)
	}

	return &Registry{
		capacity: capacity,
		buffers:  make(map[string]*Buffer),
	}, nil
}

// Get returns the buffer for name, if any samples were ever registered for it.
func (r *Registry) Get(name string) (*Buffer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buffers[name]
	return b, ok
}

// GetOrCreate returns the buffer for name, creating an empty one if needed.
func (r *Registry) GetOrCreate(name string) *Buffer {
	if b, ok := r.Get(name); ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buffers[name]; ok {
		return b
	}
	b := &Buffer{ring: make([]Point, r.capacity)}
	r.buffers[name] = b

	return b
}

// Append adds a sample to the named series.
func (r *Registry) Append(name string, t, value int64) error {
	return r.GetOrCreate(name).Add(t, value)
}

// Names returns the registered metric names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.buffers))
	for name := range r.buffers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
