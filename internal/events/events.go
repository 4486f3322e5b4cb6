package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	TypeCacheReloaded     = "cache.reloaded"
	TypeCacheReloadFailed = "cache.reload_failed"
	TypeReportExported    = "report.exported"
)

// Event represents a lightweight in-process event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// CacheReload is the payload of cache reload events.
type CacheReload struct {
	Key        string  `json:"key"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// ReportExported is the payload of TypeReportExported.
type ReportExported struct {
	Month     string `json:"month"`
	File      string `json:"file"`
	Publisher string `json:"publisher"`
	Error     string `json:"error,omitempty"`
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	now         func() time.Time
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), now: time.Now}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns the first
// handler error. Every handler runs even when an earlier one fails.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.now()
	}

	var first error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON encodes payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(Event{Type: eventType, Payload: data})
}

// ReloadHook adapts the bus to the cache reload callback.
func (b *EventBus) ReloadHook() func(key string, took time.Duration, err error) {
	return func(key string, took time.Duration, err error) {
		payload := CacheReload{Key: key, DurationMS: float64(took.Microseconds()) / 1000}
		eventType := TypeCacheReloaded
		if err != nil {
			payload.Error = err.Error()
			eventType = TypeCacheReloadFailed
		}
		_ = b.PublishJSON(eventType, payload)
	}
}
