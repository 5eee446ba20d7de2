package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventQueueBasicOperations(t *testing.T) {
	t.Run("new queue is empty", func(t *testing.T) {
		q := NewEventQueue()
		require.Equal(t, 0, q.Len())
		require.True(t, q.IsEmpty())
		require.Nil(t, q.Pop(), "Expected nil from empty queue")
		require.Nil(t, q.Peek(), "Expected nil from empty queue")
	})

	t.Run("push and pop single event", func(t *testing.T) {
		q := NewEventQueue()
		q.Push(NewArrivalEvent(10.0))
		require.Equal(t, 1, q.Len())

		popped := q.Pop()
		require.NotNil(t, popped)
		require.Equal(t, 10.0, popped.Timestamp())
		require.Equal(t, EventTypeArrival, popped.Type())
		require.True(t, q.IsEmpty())
	})
}

func TestEventQueueOrdering(t *testing.T) {
	q := NewEventQueue()

	// Push events in non-chronological order
	q.Push(NewArrivalEvent(15.0))
	q.Push(NewDepartureEvent(2.0, 3.0)) // t=5
	q.Push(NewArrivalEvent(20.0))
	q.Push(NewArrivalEvent(1.0))
	q.Push(NewDepartureEvent(4.0, 6.0)) // t=10
	require.Equal(t, 5, q.Len())

	expected := []float64{1.0, 5.0, 10.0, 15.0, 20.0}
	for i, want := range expected {
		event := q.Pop()
		require.NotNil(t, event, "position %d", i)
		require.Equal(t, want, event.Timestamp(), "position %d", i)
	}
	require.True(t, q.IsEmpty())
}

func TestEventQueueArrivalWinsTies(t *testing.T) {
	q := NewEventQueue()
	q.Push(NewDepartureEvent(0.5, 0.5))
	q.Push(NewArrivalEvent(1.0))

	require.Equal(t, EventTypeArrival, q.Peek().Type())
	require.Equal(t, EventTypeArrival, q.Pop().Type())
	require.Equal(t, EventTypeDeparture, q.Pop().Type())
}

func TestEventQueuePeekDoesNotRemove(t *testing.T) {
	q := NewEventQueue()
	q.Push(NewArrivalEvent(10.0))
	q.Push(NewArrivalEvent(5.0))

	for i := 0; i < 3; i++ {
		event := q.Peek()
		require.NotNil(t, event)
		require.Equal(t, 5.0, event.Timestamp())
		require.Equal(t, 2, q.Len())
	}
	require.Equal(t, 5.0, q.Pop().Timestamp())
	require.Equal(t, 1, q.Len())
}

func TestEventQueueFindNext(t *testing.T) {
	q := NewEventQueue()
	require.Nil(t, q.FindNext(EventTypeDeparture))

	q.Push(NewArrivalEvent(3.0))
	q.Push(NewDepartureEvent(1.0, 1.5))
	q.Push(NewDepartureEvent(0.0, 4.0))

	dep := q.FindNext(EventTypeDeparture)
	require.NotNil(t, dep)
	require.Equal(t, 2.5, dep.Timestamp())
	require.Equal(t, 3.0, q.FindNext(EventTypeArrival).Timestamp())
	require.Equal(t, 3, q.Len(), "FindNext does not remove events")
}

func TestEventStrings(t *testing.T) {
	require.Equal(t, "arrival", EventTypeArrival.String())
	require.Equal(t, "departure", EventTypeDeparture.String())
	require.Equal(t, "unknown", EventType(42).String())

	dep := NewDepartureEvent(1.0, 0.25)
	require.Equal(t, 1.25, dep.Timestamp())
	require.Equal(t, 1.0, dep.ServiceStart())
	require.Equal(t, 0.25, dep.ServiceTime())
	require.Contains(t, dep.String(), "Departure(t=1.2500")
	require.Contains(t, NewArrivalEvent(2).String(), "Arrival(t=2.0000)")
}
