package service

import (
	"sync"

	"github.com/bnema/mediaq/internal/domain"
)

// EventBus fans task events out to per-task subscribers. Publishing never
// blocks; a slow subscriber misses events and must tolerate that (terminal
// state can always be re-fetched from the store).
type EventBus struct {
	subscribers map[string][]chan domain.Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan domain.Event),
	}
}

func (eb *EventBus) Subscribe(taskID string) chan domain.Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan domain.Event, 16)
	eb.subscribers[taskID] = append(eb.subscribers[taskID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(taskID string, ch chan domain.Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[taskID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[taskID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[taskID]) == 0 {
		delete(eb.subscribers, taskID)
	}
}

func (eb *EventBus) Publish(taskID string, event domain.Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[taskID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}
