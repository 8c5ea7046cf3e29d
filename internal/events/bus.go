// Package events provides the in-process pub/sub bus the statistics engine
// uses instead of DOM CustomEvents: named topics, typed payloads, buffered
// subscriber channels.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topics published and consumed by the statistics engine.
const (
	// TopicStatsUpdated carries the new stats snapshot after each update.
	TopicStatsUpdated = "stats:updated"

	// TopicDiaryStatsUpdated carries the new diary stats view.
	TopicDiaryStatsUpdated = "diary-stats:updated"

	// TopicQuotesChanged carries quote mutation notifications from the
	// application into the statistics service.
	TopicQuotesChanged = "quotes:changed"
)

// Event is a published message on a topic.
type Event struct {
	Topic     string
	Payload   any
	Timestamp time.Time
}

type subscriber struct {
	topic string
	ch    chan Event
}

// Bus is a topic-based publish/subscribe hub. Publishing never blocks:
// subscribers with a full buffer are skipped with a warning, matching the
// slow-consumer policy of the rest of the application.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
	log         *slog.Logger
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
		log:         slog.Default().With("component", "event-bus"),
	}
}

// Subscribe registers a new subscriber for a topic and returns its ID and
// receive channel. The channel is buffered so a slow consumer cannot stall
// publishers; it is closed by Unsubscribe or Close.
func (b *Bus) Subscribe(topic string) (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	sub := &subscriber{
		topic: topic,
		ch:    make(chan Event, 16),
	}
	b.subscribers[id] = sub

	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Publish broadcasts a payload to every subscriber of the topic.
func (b *Bus) Publish(topic string, payload any) {
	event := Event{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	// Sends happen under the read lock: Unsubscribe/Close take the write
	// lock, so a channel can never be closed mid-send. Sends never block.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.log.Warn("subscriber channel full, skipping event", "topic", topic)
		}
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}
