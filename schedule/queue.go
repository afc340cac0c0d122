// Package schedule implements the delayed-action queue that the modes
// use to express multi-second hardware sequences without blocking the
// tick loop. A mode schedules callbacks with relative offsets; the main
// loop drains due entries every tick and runs them in target-time order.
package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gammazero/deque"

	"birdhaus.net/crowctl/util"
)

// ErrQueueFull is returned by Schedule when the number of pending
// actions has reached the configured capacity. A mode scheduling faster
// than it drains is a bug and should fail loudly instead of growing the
// queue without bound.
var ErrQueueFull = errors.New("schedule: queue full")

// Action is a pending callback keyed by a target time. It is consumed
// exactly once when its target time is reached and is never retried.
type Action struct {
	ID       int64
	At       time.Time
	Label    string
	Callback func() error
}

// Queue holds pending actions for exactly one mode. It is single
// threaded: the tick loop is the only caller, so no locking is needed.
// Callbacks may re-entrantly schedule new actions during a drain.
type Queue struct {
	clock    util.Clock
	capacity int
	nextID   int64
	pending  []*Action
}

// NewQueue creates a queue bounded to capacity pending actions.
func NewQueue(capacity int, clock util.Clock) *Queue {
	return &Queue{
		clock:    clock,
		capacity: capacity,
	}
}

// Schedule registers fn to run delay from now. Negative delays are
// clamped to zero, so the action runs on the next drain. The returned
// id is monotonically increasing per queue.
func (q *Queue) Schedule(delay time.Duration, label string, fn func() error) (int64, error) {
	if len(q.pending) >= q.capacity {
		return 0, fmt.Errorf("%w: %d pending, cannot add %q", ErrQueueFull, len(q.pending), label)
	}
	if delay < 0 {
		delay = 0
	}
	q.nextID++
	action := &Action{
		ID:       q.nextID,
		At:       q.clock.Now().Add(delay),
		Label:    label,
		Callback: fn,
	}
	q.pending = append(q.pending, action)
	return action.ID, nil
}

// DrainDue executes every action whose target time is at or before now,
// in ascending target-time order, and removes it. A failing callback is
// logged and does not stop the remaining due actions. Callbacks run off
// a snapshot, so re-entrant Schedule calls land in the live queue and
// are picked up by a later drain. Returns the number of actions run.
func (q *Queue) DrainDue(now time.Time) int {
	var due deque.Deque[*Action]
	remaining := q.pending[:0]
	for _, action := range q.pending {
		if !action.At.After(now) {
			due.PushBack(action)
		} else {
			remaining = append(remaining, action)
		}
	}
	q.pending = remaining
	if due.Len() == 0 {
		return 0
	}

	// The snapshot is unordered; actions with equal target times run
	// in scheduling order.
	sortDue(&due)

	count := 0
	for due.Len() > 0 {
		action := due.PopFront()
		count++
		if err := runAction(action); err != nil {
			slog.Error("Scheduled action failed", "label", action.Label, "id", action.ID, "error", err)
		}
	}
	return count
}

// Cancel removes a single pending action without executing it.
func (q *Queue) Cancel(id int64) bool {
	for i, action := range q.pending {
		if action.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// CancelAll removes all pending actions without executing them and
// returns the number cancelled. Used by mode cleanup.
func (q *Queue) CancelAll() int {
	count := len(q.pending)
	q.pending = q.pending[:0]
	return count
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	return len(q.pending)
}

func sortDue(due *deque.Deque[*Action]) {
	snapshot := make([]*Action, 0, due.Len())
	for due.Len() > 0 {
		snapshot = append(snapshot, due.PopFront())
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].At.Equal(snapshot[j].At) {
			return snapshot[i].ID < snapshot[j].ID
		}
		return snapshot[i].At.Before(snapshot[j].At)
	})
	for _, action := range snapshot {
		due.PushBack(action)
	}
}

// runAction isolates a single callback. A panicking callback must not
// take down the tick loop.
func runAction(action *Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in action %q: %v", action.Label, r)
		}
	}()
	return action.Callback()
}
