package events

import (
	"encoding/json"
	"sync"
)

// Event types for the graph editing workflow
const (
	// EventNodesChanged fires after a node is added to or removed from
	// the graph store.
	EventNodesChanged = "graph.nodes"

	// EventEdgesChanged fires after any edge insert or removal, including
	// the implicit removals performed by the fixed-port connect policy.
	EventEdgesChanged = "graph.edges"

	// EventNodeData fires after a node's published data map changed.
	// The payload carries the node id under "node".
	EventNodeData = "node.data"

	// EventNodeStatus fires when a node transitions between
	// idle/pending/ready/error.
	EventNodeStatus = "node.status"

	// EventLayoutApplied fires after an automatic layout pass wrote new
	// node positions.
	EventLayoutApplied = "graph.layout"
)

// Wildcard subscribes to every event type. The SSE endpoint uses it to
// forward the whole stream to the frontend.
const Wildcard = "*"

// subscriberBuffer sizes each subscriber channel. Publish never
// blocks, so a subscriber that falls this far behind misses events.
const subscriberBuffer = 100

// Event represents a single notification on the bus.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Subscriber is a channel that receives events
type Subscriber chan Event

// Bus manages event subscriptions and publishing
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type, or
// Wildcard for all types. Returns a channel that receives events and
// an unsubscribe function; unsubscribing closes the channel.
func (b *Bus) Subscribe(eventType string) (Subscriber, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, sub := range subs {
			if sub == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}

	return ch, unsubscribe
}

// Publish sends an event to all subscribers of its type and to
// wildcard subscribers. Publish never blocks.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.broadcast(b.subscribers[event.Type], event)
	if event.Type != Wildcard {
		b.broadcast(b.subscribers[Wildcard], event)
	}
}

func (b *Bus) broadcast(subs []Subscriber, event Event) {
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// MarshalEvent converts an event to JSON
func MarshalEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}
