// Package pubsub fans typed events out to subscribers. The registry service
// publishes entry lifecycle events on it and the logger publishes formatted
// lines.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened.
type EventType string

// Registry lifecycle events.
const (
	RegisteredEvent    EventType = "registered"
	ReloadedEvent      EventType = "reloaded"
	RolledBackEvent    EventType = "rolled_back"
	RolledForwardEvent EventType = "rolled_forward"
	RemovedEvent       EventType = "removed"
)

// LogLineEvent carries one formatted log line.
const LogLineEvent EventType = "log_line"

// Event is one delivery. ID is unique per Publish call.
type Event[T any] struct {
	ID        string
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber hands out event channels. With types, only those events are
// delivered.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

// Publisher accepts events.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
