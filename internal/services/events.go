package services

import (
	"context"
	"errors"
	"sync"

	"github.com/charmverse/governance/internal/domain"
)

// EventPublisher delivers domain events to an outbound channel.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// EventBus fans an event out to every publisher and joins their errors.
type EventBus struct {
	publishers []EventPublisher
}

func NewEventBus(publishers ...EventPublisher) *EventBus {
	return &EventBus{publishers: publishers}
}

func (b *EventBus) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range b.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type hubClient struct {
	spaceID string
	ch      chan domain.Event
}

// EventHub manages SSE client connections and event broadcasting
type EventHub struct {
	clients map[string]*hubClient
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]*hubClient),
	}
}

// Subscribe registers a client for events of spaceID, or of every space when
// spaceID is empty.
func (h *EventHub) Subscribe(clientID, spaceID string) <-chan domain.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	// buffered so a slow reader never blocks Publish
	ch := make(chan domain.Event, 100)
	h.clients[clientID] = &hubClient{spaceID: spaceID, ch: ch}
	return ch
}

// Unsubscribe removes a client from the hub
func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to the clients watching its space
func (h *EventHub) Publish(_ context.Context, event domain.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.spaceID != "" && c.spaceID != event.SpaceID {
			continue
		}
		select {
		case c.ch <- event:
		default:
			// client is slow, drop the event
		}
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
