package application

import "sync"

// RunningSet tracks schedule ids with an execution in flight.
type RunningSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewRunningSet constructs an empty set.
func NewRunningSet() *RunningSet {
	return &RunningSet{ids: make(map[string]struct{})}
}

// TryAcquire marks id as running. It reports false when id already is.
func (s *RunningSet) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.ids[id]; running {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Release clears id.
func (s *RunningSet) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Running reports whether id is in flight.
func (s *RunningSet) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.ids[id]
	return running
}

// Len returns the number of executions in flight.
func (s *RunningSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
