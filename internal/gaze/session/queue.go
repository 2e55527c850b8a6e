// Package session schedules calibration point collection and orchestrates
// a full calibration run.
//
// Queue is a pure, immutable retry scheduler. Runner drives collection
// against a SampleSource with an injected clock and context, then builds,
// validates and records the attempt.
//
// Dependency rule: session may depend on every gaze package and on
// internal/config, internal/monitoring and internal/timeutil. It performs
// no storage I/O.
package session

import (
	"maps"
	"slices"
)

// DefaultMaxRetries is the global retry budget across one run.
const DefaultMaxRetries = 4

// Task is one scheduled point collection.
type Task struct {
	PointID string `json:"pointId"`
	IsRetry bool   `json:"isRetry"`
}

// PointResult reports how a task's collection went.
type PointResult struct {
	PointID  string
	IsRetry  bool
	Accepted bool
}

// Queue is the retry scheduler state. The zero value is an empty, finished
// queue. Transitions return new values and never modify the receiver.
type Queue struct {
	tasks      []Task
	retryCount int
	maxRetries int
	scheduled  map[string]struct{}
	failed     map[string]struct{}
}

// NewQueue creates a queue with one first-attempt task per point ID.
// A negative maxRetries is treated as zero.
func NewQueue(pointIDs []string, maxRetries int) Queue {
	if maxRetries < 0 {
		maxRetries = 0
	}
	tasks := make([]Task, len(pointIDs))
	for i, id := range pointIDs {
		tasks[i] = Task{PointID: id}
	}
	return Queue{tasks: tasks, maxRetries: maxRetries}
}

// ApplyPointResult returns the queue after res. Acceptance clears the
// point from the failed set. A rejection schedules one retry at the end of
// the queue when the task was a first attempt, the point has no retry
// scheduled and the global budget allows it; otherwise the point is marked
// failed. Completed tasks are never removed; iteration moves past them.
func (q Queue) ApplyPointResult(res PointResult) Queue {
	next := Queue{
		tasks:      q.tasks,
		retryCount: q.retryCount,
		maxRetries: q.maxRetries,
		scheduled:  q.scheduled,
		failed:     q.failed,
	}

	if res.Accepted {
		if _, ok := q.failed[res.PointID]; ok {
			next.failed = maps.Clone(q.failed)
			delete(next.failed, res.PointID)
		}
		return next
	}

	_, alreadyScheduled := q.scheduled[res.PointID]
	if !res.IsRetry && !alreadyScheduled && q.retryCount < q.maxRetries {
		next.retryCount++
		next.scheduled = cloneSet(q.scheduled)
		next.scheduled[res.PointID] = struct{}{}
		next.tasks = append(slices.Clip(q.tasks), Task{PointID: res.PointID, IsRetry: true})
		return next
	}

	next.failed = cloneSet(q.failed)
	next.failed[res.PointID] = struct{}{}
	return next
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Tasks returns a copy of the task list, completed tasks included.
func (q Queue) Tasks() []Task { return slices.Clone(q.tasks) }

// Len returns the number of tasks.
func (q Queue) Len() int { return len(q.tasks) }

// RetryCount returns how many retries have been granted.
func (q Queue) RetryCount() int { return q.retryCount }

// MaxRetries returns the global retry budget.
func (q Queue) MaxRetries() int { return q.maxRetries }

// RetryScheduled reports whether a retry was granted for pointID.
func (q Queue) RetryScheduled(pointID string) bool {
	_, ok := q.scheduled[pointID]
	return ok
}

// IsFailed reports whether pointID ended in the failed set.
func (q Queue) IsFailed(pointID string) bool {
	_, ok := q.failed[pointID]
	return ok
}

// FailedPointIDs returns the failed points in sorted order.
func (q Queue) FailedPointIDs() []string {
	return slices.Sorted(maps.Keys(q.failed))
}

// IteratorState is the lifecycle of an Iterator.
type IteratorState int

const (
	Idle IteratorState = iota
	Running
	Done
)

func (s IteratorState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "done"
	}
}

// Iterator walks a queue's tasks by index. Each Next call takes the latest
// queue value, so retries appended by transitions during the walk are
// still visited.
type Iterator struct {
	index int
	state IteratorState
}

// Next returns the task at the cursor and advances. It reports false once
// the cursor passes the last task of q.
func (it *Iterator) Next(q Queue) (Task, bool) {
	if it.state == Done {
		return Task{}, false
	}
	if it.index >= len(q.tasks) {
		it.state = Done
		return Task{}, false
	}
	task := q.tasks[it.index]
	it.index++
	it.state = Running
	return task, true
}

// State returns the iterator's lifecycle state.
func (it *Iterator) State() IteratorState { return it.state }

// Position returns how many tasks have been dequeued.
func (it *Iterator) Position() int { return it.index }
