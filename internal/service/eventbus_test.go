package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mediaq/internal/domain"
)

func TestEventBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("task-1")
	defer bus.Unsubscribe("task-1", ch)

	bus.Publish("task-1", domain.Event{TaskID: "task-1", Kind: domain.EventChanged, Progress: 40})

	ev := <-ch
	assert.Equal(t, "task-1", ev.TaskID)
	assert.Equal(t, 40, ev.Progress)
}

func TestEventBus_IsolatesTasks(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe("task-a")
	b := bus.Subscribe("task-b")
	defer bus.Unsubscribe("task-a", a)
	defer bus.Unsubscribe("task-b", b)

	bus.Publish("task-a", domain.Event{TaskID: "task-a"})

	assert.Len(t, a, 1)
	assert.Empty(t, b)
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("task-1")
	bus.Unsubscribe("task-1", ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing to a fully unsubscribed task is a no-op.
	bus.Publish("task-1", domain.Event{TaskID: "task-1"})
}

func TestEventBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("task-1")
	defer bus.Unsubscribe("task-1", ch)

	// Overfill the buffer; extra events are dropped, Publish never blocks.
	for i := range 32 {
		bus.Publish("task-1", domain.Event{TaskID: "task-1", Progress: i})
	}
	require.Len(t, ch, cap(ch))

	ev := <-ch
	assert.Equal(t, 0, ev.Progress, "events are delivered in publish order until the buffer fills")
}

func TestEventBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := NewEventBus()
	first := bus.Subscribe("task-1")
	second := bus.Subscribe("task-1")
	defer bus.Unsubscribe("task-1", first)
	defer bus.Unsubscribe("task-1", second)

	bus.Publish("task-1", domain.Event{TaskID: "task-1", Status: domain.TaskStatusDone})

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
}
