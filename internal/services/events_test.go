package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmverse/governance/internal/domain"
)

func TestEventHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewEventHub()

	hub.Subscribe("client1", "s1")
	hub.Subscribe("client2", "")
	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	hub.Unsubscribe("client1")
	hub.Unsubscribe("nonexistent")
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after unsubscribe, got %d", hub.ClientCount())
	}
}

func TestEventHub_PublishFiltersBySpace(t *testing.T) {
	hub := NewEventHub()
	s1 := hub.Subscribe("s1-client", "s1")
	s2 := hub.Subscribe("s2-client", "s2")
	all := hub.Subscribe("all-client", "")

	event := domain.NewEvent(domain.EventVoteCreated, "s1", nil)
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	for name, ch := range map[string]<-chan domain.Event{"s1": s1, "all": all} {
		select {
		case got := <-ch:
			if got.ID != event.ID {
				t.Errorf("%s: ID = %s, expected %s", name, got.ID, event.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("%s: timed out waiting for event", name)
		}
	}

	select {
	case got := <-s2:
		t.Errorf("s2 should not receive events of s1, got %+v", got)
	default:
	}
}

func TestEventHub_NonBlockingPublish(t *testing.T) {
	hub := NewEventHub()
	hub.Subscribe("slow_client", "")

	for i := 0; i < 200; i++ {
		_ = hub.Publish(context.Background(), domain.NewEvent(domain.EventPing, "s1", nil))
	}
}

type recordingPublisher struct {
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func TestEventBus_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("boom")}
	bus := NewEventBus(failing, ok)

	err := bus.Publish(context.Background(), domain.NewEvent(domain.EventPing, "s1", nil))
	if err == nil || err.Error() != "boom" {
		t.Errorf("Publish() error = %v, expected boom", err)
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Errorf("every publisher should see the event, got %d and %d", len(ok.events), len(failing.events))
	}
}
