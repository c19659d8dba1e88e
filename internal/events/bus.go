// Package events provides the in-process event bus used to report job,
// workflow and tool progress to API clients and external subscribers.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	JobID() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"timestamp"`
	Job  string    `json:"job_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) JobID() string        { return e.Job }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType, jobID string) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Time: time.Now(),
		Job:  jobID,
	}
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(event Event)
	PublishPriority(event Event)
}

type subscriber struct {
	ch    chan Event
	types map[string]bool // Empty means all types
	job   string          // Empty means all jobs
}

func (s *subscriber) wants(e Event) bool {
	if s.job != "" && s.job != e.JobID() {
		return false
	}
	return len(s.types) == 0 || s.types[e.EventType()]
}

// EventBus provides pub/sub with backpressure control.
// Regular subscribers behave like ring buffers and drop their oldest event
// when full; priority subscribers never drop.
type EventBus struct {
	mu           sync.RWMutex
	subscribers  []*subscriber
	prioritySubs []*subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// New creates a new EventBus with the specified buffer size.
func New(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{bufferSize: bufferSize}
}

// Subscribe creates a subscription for specific event types.
// If no types are specified, subscribes to all events.
func (eb *EventBus) Subscribe(types ...string) <-chan Event {
	return eb.subscribe("", types)
}

// SubscribeJob creates a subscription limited to one job.
func (eb *EventBus) SubscribeJob(jobID string, types ...string) <-chan Event {
	return eb.subscribe(jobID, types)
}

func (eb *EventBus) subscribe(jobID string, types []string) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, eb.bufferSize),
		types: make(map[string]bool, len(types)),
		job:   jobID,
	}
	for _, t := range types {
		sub.types[t] = true
	}
	if eb.closed {
		close(sub.ch)
		return sub.ch
	}
	eb.subscribers = append(eb.subscribers, sub)
	return sub.ch
}

// SubscribePriority creates a subscription that never drops events.
// The consumer must keep up: publishers block while its buffer is full.
func (eb *EventBus) SubscribePriority() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, 50),
		types: map[string]bool{},
	}
	if eb.closed {
		close(sub.ch)
		return sub.ch
	}
	eb.prioritySubs = append(eb.prioritySubs, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers = removeSubscriber(eb.subscribers, ch)
	eb.prioritySubs = removeSubscriber(eb.prioritySubs, ch)
}

func removeSubscriber(subs []*subscriber, ch <-chan Event) []*subscriber {
	kept := subs[:0]
	for _, sub := range subs {
		if sub.ch == ch {
			close(sub.ch)
			continue
		}
		kept = append(kept, sub)
	}
	return kept
}

// Publish sends an event to all matching regular subscribers.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.fanOut(event)
}

// PublishPriority sends an event to regular subscribers and blocks until
// every priority subscriber has accepted it.
func (eb *EventBus) PublishPriority(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.fanOut(event)
	for _, sub := range eb.prioritySubs {
		sub.ch <- event
	}
}

func (eb *EventBus) fanOut(event Event) {
	for _, sub := range eb.subscribers {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.ch <- event:
			continue
		default:
		}
		// Full: drop the oldest and retry once.
		select {
		case <-sub.ch:
			atomic.AddInt64(&eb.droppedCount, 1)
		default:
		}
		select {
		case sub.ch <- event:
		default:
			atomic.AddInt64(&eb.droppedCount, 1)
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (eb *EventBus) DroppedCount() int64 {
	return atomic.LoadInt64(&eb.droppedCount)
}

// Close closes the event bus and all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, sub := range eb.subscribers {
		close(sub.ch)
	}
	for _, sub := range eb.prioritySubs {
		close(sub.ch)
	}
	eb.subscribers = nil
	eb.prioritySubs = nil
}
