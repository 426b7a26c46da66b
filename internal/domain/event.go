package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types published to SSE clients and webhook subscribers.
const (
	EventProposalStatusChanged = "proposal.status_changed"
	EventVoteCreated           = "vote.created"
	EventVoteClosed            = "vote.closed"
	EventPing                  = "ping"
)

// AllEventTypes lists the event types a subscription may name.
var AllEventTypes = []string{EventProposalStatusChanged, EventVoteCreated, EventVoteClosed, EventPing}

// Event is a domain notification about a space.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	SpaceID    string                 `json:"space_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func NewEvent(eventType, spaceID string, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		SpaceID:    spaceID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// KnownEventType reports whether t is a publishable event type.
func KnownEventType(t string) bool {
	for _, known := range AllEventTypes {
		if known == t {
			return true
		}
	}
	return false
}
