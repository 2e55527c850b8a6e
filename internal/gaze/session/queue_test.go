package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RetryThenFail(t *testing.T) {
	t.Parallel()
	q0 := NewQueue([]string{"a", "b"}, 4)

	q1 := q0.ApplyPointResult(PointResult{PointID: "a", Accepted: false})
	assert.Equal(t, 1, q1.RetryCount())
	require.Equal(t, 3, q1.Len())
	assert.Equal(t, Task{PointID: "a", IsRetry: true}, q1.Tasks()[2])
	assert.True(t, q1.RetryScheduled("a"))
	assert.False(t, q1.IsFailed("a"))

	q2 := q1.ApplyPointResult(PointResult{PointID: "a", IsRetry: true, Accepted: false})
	assert.True(t, q2.IsFailed("a"))
	assert.Equal(t, []string{"a"}, q2.FailedPointIDs())
	assert.Equal(t, 1, q2.RetryCount())
	assert.Equal(t, 3, q2.Len())
}

func TestQueue_ZeroBudgetFailsImmediately(t *testing.T) {
	t.Parallel()
	q := NewQueue([]string{"a", "b"}, 0).ApplyPointResult(PointResult{PointID: "a"})
	assert.True(t, q.IsFailed("a"))
	assert.Equal(t, 0, q.RetryCount())
	assert.Equal(t, 2, q.Len())
	assert.False(t, q.RetryScheduled("a"))
}

func TestQueue_AtMostOneRetryPerPoint(t *testing.T) {
	t.Parallel()
	q := NewQueue([]string{"a"}, 4)
	q = q.ApplyPointResult(PointResult{PointID: "a"})
	// A second first-attempt rejection for the same point cannot schedule
	// another retry.
	q = q.ApplyPointResult(PointResult{PointID: "a"})
	assert.Equal(t, 1, q.RetryCount())
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.IsFailed("a"))
}

func TestQueue_GlobalBudget(t *testing.T) {
	t.Parallel()
	q := NewQueue([]string{"a", "b", "c"}, 2)
	for _, id := range []string{"a", "b", "c"} {
		q = q.ApplyPointResult(PointResult{PointID: id})
	}
	assert.Equal(t, 2, q.RetryCount())
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, []string{"c"}, q.FailedPointIDs())
}

func TestQueue_AcceptClearsFailure(t *testing.T) {
	t.Parallel()
	q := NewQueue([]string{"a"}, 0).ApplyPointResult(PointResult{PointID: "a"})
	require.True(t, q.IsFailed("a"))

	cleared := q.ApplyPointResult(PointResult{PointID: "a", Accepted: true})
	assert.False(t, cleared.IsFailed("a"))
	assert.Empty(t, cleared.FailedPointIDs())
	// Idempotent.
	again := cleared.ApplyPointResult(PointResult{PointID: "a", Accepted: true})
	assert.Empty(t, again.FailedPointIDs())
	assert.Equal(t, 1, again.Len())
}

func TestQueue_TransitionsDoNotMutate(t *testing.T) {
	t.Parallel()
	q0 := NewQueue([]string{"a", "b"}, 4)
	before := q0.Tasks()

	q1 := q0.ApplyPointResult(PointResult{PointID: "a"})
	q2 := q1.ApplyPointResult(PointResult{PointID: "a", IsRetry: true})
	// Branching from q1 a second time must not see q2's state.
	q3 := q1.ApplyPointResult(PointResult{PointID: "b"})

	if diff := cmp.Diff(before, q0.Tasks()); diff != "" {
		t.Errorf("q0 tasks changed (-before +after):\n%s", diff)
	}
	assert.Equal(t, 0, q0.RetryCount())
	assert.False(t, q0.RetryScheduled("a"))
	assert.False(t, q1.IsFailed("a"))
	assert.True(t, q2.IsFailed("a"))
	assert.False(t, q3.IsFailed("a"))
	assert.Equal(t, Task{PointID: "a", IsRetry: true}, q1.Tasks()[2])
	assert.Equal(t, Task{PointID: "b", IsRetry: true}, q3.Tasks()[3])
	assert.Equal(t, 3, q1.Len())

	// Mutating a returned copy does not reach the queue.
	tasks := q1.Tasks()
	tasks[0].PointID = "zzz"
	assert.Equal(t, "a", q1.Tasks()[0].PointID)
}

func TestIterator_VisitsAppendedRetries(t *testing.T) {
	t.Parallel()
	q := NewQueue([]string{"a", "b"}, 4)
	var it Iterator
	assert.Equal(t, Idle, it.State())

	var visited []Task
	for task, ok := it.Next(q); ok; task, ok = it.Next(q) {
		assert.Equal(t, Running, it.State())
		visited = append(visited, task)
		// Reject every first attempt.
		q = q.ApplyPointResult(PointResult{PointID: task.PointID, IsRetry: task.IsRetry, Accepted: task.IsRetry})
	}

	want := []Task{{"a", false}, {"b", false}, {"a", true}, {"b", true}}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Done, it.State())
	assert.Equal(t, "done", it.State().String())
	assert.Equal(t, 4, it.Position())

	// Done is terminal even if the queue grows afterwards.
	_, ok := it.Next(q.ApplyPointResult(PointResult{PointID: "c"}))
	assert.False(t, ok)
}

func TestQueue_ZeroValue(t *testing.T) {
	t.Parallel()
	var q Queue
	var it Iterator
	_, ok := it.Next(q)
	assert.False(t, ok)
	assert.Empty(t, q.FailedPointIDs())

	q = q.ApplyPointResult(PointResult{PointID: "x"})
	assert.True(t, q.IsFailed("x"))
}

func TestNewQueue_NegativeBudget(t *testing.T) {
	t.Parallel()
	q := NewQueue([]string{"a"}, -3)
	assert.Equal(t, 0, q.MaxRetries())
}
