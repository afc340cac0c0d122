package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdhaus.net/crowctl/util"
)

func newTestQueue(capacity int) (*Queue, *util.SteppedClock) {
	clock := util.NewSteppedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewQueue(capacity, clock), clock
}

func TestQueue_DrainOrder(t *testing.T) {
	q, clock := newTestQueue(16)

	var order []string
	record := func(name string) func() error {
		return func() error {
			order = append(order, name)
			return nil
		}
	}

	// Scheduled out of order on the same tick.
	_, err := q.Schedule(1500*time.Millisecond, "third", record("third"))
	require.NoError(t, err)
	_, err = q.Schedule(0, "first", record("first"))
	require.NoError(t, err)
	_, err = q.Schedule(500*time.Millisecond, "second", record("second"))
	require.NoError(t, err)

	clock.Step(2 * time.Second)
	count := q.DrainDue(clock.Now())

	assert.Equal(t, 3, count)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_EqualDelaysRunInSchedulingOrder(t *testing.T) {
	q, clock := newTestQueue(16)

	var order []int
	for i := 1; i <= 4; i++ {
		i := i
		_, err := q.Schedule(time.Second, "pulse", func() error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}

	clock.Step(time.Second)
	q.DrainDue(clock.Now())
	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

func TestQueue_DrainOnlyDue(t *testing.T) {
	q, clock := newTestQueue(16)

	ran := 0
	_, err := q.Schedule(time.Second, "soon", func() error { ran++; return nil })
	require.NoError(t, err)
	_, err = q.Schedule(time.Hour, "later", func() error { ran++; return nil })
	require.NoError(t, err)

	clock.Step(2 * time.Second)
	assert.Equal(t, 1, q.DrainDue(clock.Now()))
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_CancelAllThenDrainRunsNothing(t *testing.T) {
	q, clock := newTestQueue(16)

	ran := 0
	for i := 0; i < 5; i++ {
		_, err := q.Schedule(time.Duration(i)*time.Second, "flash", func() error { ran++; return nil })
		require.NoError(t, err)
	}

	assert.Equal(t, 5, q.CancelAll())
	clock.Step(time.Hour)
	assert.Equal(t, 0, q.DrainDue(clock.Now()))
	assert.Equal(t, 0, ran)
}

func TestQueue_Cancel(t *testing.T) {
	q, clock := newTestQueue(16)

	ran := false
	id, err := q.Schedule(time.Second, "move", func() error { ran = true; return nil })
	require.NoError(t, err)

	assert.True(t, q.Cancel(id))
	assert.False(t, q.Cancel(id))

	clock.Step(time.Minute)
	q.DrainDue(clock.Now())
	assert.False(t, ran)
}

func TestQueue_CapacityBound(t *testing.T) {
	q, _ := newTestQueue(2)

	_, err := q.Schedule(0, "a", func() error { return nil })
	require.NoError(t, err)
	_, err = q.Schedule(0, "b", func() error { return nil })
	require.NoError(t, err)

	_, err = q.Schedule(0, "c", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueue_MonotonicIDs(t *testing.T) {
	q, _ := newTestQueue(16)

	var last int64
	for i := 0; i < 5; i++ {
		id, err := q.Schedule(0, "x", func() error { return nil })
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestQueue_FailedActionDoesNotStopOthers(t *testing.T) {
	q, clock := newTestQueue(16)

	var order []string
	_, err := q.Schedule(0, "boom", func() error {
		order = append(order, "boom")
		return errors.New("amp not responding")
	})
	require.NoError(t, err)
	_, err = q.Schedule(time.Millisecond, "panics", func() error {
		order = append(order, "panics")
		panic("servo driver bug")
	})
	require.NoError(t, err)
	_, err = q.Schedule(2*time.Millisecond, "after", func() error {
		order = append(order, "after")
		return nil
	})
	require.NoError(t, err)

	clock.Step(time.Second)
	assert.Equal(t, 3, q.DrainDue(clock.Now()))
	assert.Equal(t, []string{"boom", "panics", "after"}, order)
}

func TestQueue_ReentrantScheduleDuringDrain(t *testing.T) {
	q, clock := newTestQueue(16)

	var order []string
	_, err := q.Schedule(0, "outer", func() error {
		order = append(order, "outer")
		_, err := q.Schedule(0, "inner", func() error {
			order = append(order, "inner")
			return nil
		})
		return err
	})
	require.NoError(t, err)

	clock.Step(time.Second)
	// The re-entrantly scheduled action is not part of the snapshot.
	assert.Equal(t, 1, q.DrainDue(clock.Now()))
	assert.Equal(t, []string{"outer"}, order)
	assert.Equal(t, 1, q.Len())

	clock.Step(time.Millisecond)
	assert.Equal(t, 1, q.DrainDue(clock.Now()))
	assert.Equal(t, []string{"outer", "inner"}, order)
}
