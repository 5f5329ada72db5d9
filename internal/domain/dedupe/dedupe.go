// Package dedupe sheds duplicate done-state notifications before they reach
// the settlement queue. The settlement marker remains the authoritative
// exactly-once gate; this is load shedding, not correctness.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen transition ids.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id so a failed enqueue can be retried.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of ids currently held.
	Size() int
}

// seenSet implements Deduper with a bounded FIFO window: when full, the
// oldest recorded id falls out and may be seen again. Acceptable because
// duplicates arrive close together in practice.
type seenSet struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

// defaultMaxSize bounds the seen window.
const defaultMaxSize = 10_000

// New creates a bounded deduper with configuration options.
func New(opts ...Option) Deduper {
	s := &seenSet{
		seen:    make(map[string]struct{}),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *seenSet) SeenAndRecord(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	if s.maxSize > 0 && len(s.order) >= s.maxSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return false
}

func (s *seenSet) Unrecord(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; !ok {
		return
	}
	delete(s.seen, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *seenSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
