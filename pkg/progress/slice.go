package progress

import "sync"

// Slice reports one unit of a larger job (for example one course in one week) into a shared
// tracker. Hours recorded through the slice never exceed its budget.
type Slice struct {
	mu      sync.Mutex
	tracker *Tracker
	label   string
	budget  int
	used    int
	done    bool
}

// Slice opens a slice with the given hour budget and makes label the tracker's current label.
func (t *Tracker) Slice(label string, budget int) *Slice {
	if budget < 0 {
		budget = 0
	}
	t.setCurrent(label)
	return &Slice{tracker: t, label: label, budget: budget}
}

// Record forwards progress to the tracker, clamped to the remaining budget.
func (s *Slice) Record(hours, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if hours > s.budget-s.used {
		hours = s.budget - s.used
	}
	if hours < 0 {
		hours = 0
	}
	s.used += hours
	s.tracker.Record(hours, sessions)
}

// Done closes the slice, accounts for any unused budget and clears the current label.
func (s *Slice) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	if rest := s.budget - s.used; rest > 0 {
		s.used = s.budget
		s.tracker.Record(rest, 0)
	}
	s.tracker.clearCurrent(s.label)
}
