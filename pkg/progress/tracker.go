package progress

import (
	"math"
	"sync"
	"time"
)

// State captures the tracker lifecycle.
type State string

const (
	StatePending State = "PENDING"
	StateRunning State = "RUNNING"
	StateSuccess State = "SUCCESS"
	StateError   State = "ERROR"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// Clock supplies the current time. Implementations must return readings that carry a
// monotonic component (time.Now does) so elapsed-time arithmetic is immune to wall-clock steps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Recorder receives incremental progress from the scheduling engine.
type Recorder interface {
	Record(hours, sessions int)
}

// Snapshot is an immutable point-in-time read of a tracker.
type Snapshot struct {
	JobID           string   `json:"jobId"`
	Label           string   `json:"label"`
	State           State    `json:"state"`
	Percent         int      `json:"percent"`
	ETASeconds      *float64 `json:"etaSeconds"`
	SessionsCreated int      `json:"sessionsCreated"`
	CompletedHours  int      `json:"completedHours"`
	TotalHours      int      `json:"totalHours"`
	Message         string   `json:"message,omitempty"`
	Current         string   `json:"current,omitempty"`
}

// Tracker holds the state of one generation job. All methods are safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	id    string
	label string
	clock Clock

	state      State
	total      int
	completed  int
	sessions   int
	message    string
	current    string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// NewTracker builds a pending tracker.
func NewTracker(id, label string, clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tracker{
		id:        id,
		label:     label,
		clock:     clock,
		state:     StatePending,
		createdAt: clock.Now(),
	}
}

// ID returns the job identifier.
func (t *Tracker) ID() string {
	return t.id
}

// Initialise sets the denominator and moves a pending tracker to running.
func (t *Tracker) Initialise(totalHours int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePending {
		return
	}
	if totalHours < 0 {
		totalHours = 0
	}
	t.total = totalHours
	t.state = StateRunning
	t.startedAt = t.clock.Now()
}

// Record adds completed hours and created sessions. Hours are clamped to the total and never
// decrease; a negative session count corrects an earlier report and stops at zero.
func (t *Tracker) Record(hours, sessions int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordLocked(hours, sessions)
}

func (t *Tracker) recordLocked(hours, sessions int) {
	if t.state != StateRunning {
		return
	}
	if hours > 0 {
		t.completed += hours
		if t.completed > t.total {
			t.completed = t.total
		}
	}
	t.sessions += sessions
	if t.sessions < 0 {
		t.sessions = 0
	}
}

// Complete marks the job successful. Later calls are ignored.
func (t *Tracker) Complete(message string) {
	t.finish(StateSuccess, message)
}

// Fail marks the job failed. Later calls are ignored.
func (t *Tracker) Fail(message string) {
	t.finish(StateError, message)
}

func (t *Tracker) finish(state State, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	if t.startedAt.IsZero() {
		t.startedAt = t.clock.Now()
	}
	t.state = state
	t.message = message
	t.current = ""
	t.finishedAt = t.clock.Now()
}

// Snapshot returns a consistent copy of the tracker state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		JobID:           t.id,
		Label:           t.label,
		State:           t.state,
		SessionsCreated: t.sessions,
		CompletedHours:  t.completed,
		TotalHours:      t.total,
		Message:         t.message,
		Current:         t.current,
	}

	switch t.state {
	case StatePending:
		snap.Percent = 0
	case StateSuccess:
		snap.Percent = 100
		zero := 0.0
		snap.ETASeconds = &zero
	default:
		snap.Percent = t.percentLocked()
	}

	if t.state == StateRunning && t.total > 0 && t.completed > 0 {
		ratio := float64(t.completed) / float64(t.total)
		elapsed := t.clock.Now().Sub(t.startedAt).Seconds()
		eta := elapsed * (1/ratio - 1)
		if eta < 0 {
			eta = 0
		}
		snap.ETASeconds = &eta
	}
	return snap
}

// percentLocked caps running progress at 99 so 100 is only reported after Complete.
func (t *Tracker) percentLocked() int {
	if t.total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(t.completed) / float64(t.total)))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if t.state == StateRunning && pct > 99 {
		pct = 99
	}
	return pct
}

func (t *Tracker) setCurrent(label string) {
	t.mu.Lock()
	if t.state == StateRunning {
		t.current = label
	}
	t.mu.Unlock()
}

func (t *Tracker) clearCurrent(label string) {
	t.mu.Lock()
	if t.current == label {
		t.current = ""
	}
	t.mu.Unlock()
}

func (t *Tracker) finishedBefore(cutoff time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Terminal() && t.finishedAt.Before(cutoff)
}
