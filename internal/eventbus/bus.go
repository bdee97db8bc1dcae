package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies a domain event emitted after a successful transition.
type EventType string

const (
	EventApplicationCreated      EventType = "application.created"
	EventApplicationStageChanged EventType = "application.stage_changed"
	EventApplicationRejected     EventType = "application.rejected"
	EventApplicationWithdrawn    EventType = "application.withdrawn"
	EventOfferSent               EventType = "application.offer_sent"
	EventOfferResponded          EventType = "application.offer_responded"
	EventInterviewScheduled      EventType = "interview.scheduled"
	EventInterviewRescheduled    EventType = "interview.rescheduled"
	EventInterviewCompleted      EventType = "interview.completed"
	EventInterviewCancelled      EventType = "interview.cancelled"
	EventTaskCreated             EventType = "task.created"
	EventTaskAssigned            EventType = "task.assigned"
	EventTaskStatusChanged       EventType = "task.status_changed"
	EventTaskCompleted           EventType = "task.completed"
	EventTaskRecurred            EventType = "task.recurred"
	EventCandidateRouted         EventType = "assignment.candidate_routed"
	EventAssignmentClosed        EventType = "assignment.closed"
	EventAgentAssignmentUpdated  EventType = "assignment.agent_updated"
)

// Event is the payload delivered to subscribers. Delivery is at-least-once
// from the caller's point of view but best-effort per subscriber: a
// subscriber with a full buffer misses the event.
type Event struct {
	ID         string
	Type       EventType
	EntityType string
	EntityID   string
	ActorID    string
	Metadata   map[string]string
	CreatedAt  time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, entityType, entityID, actorID string, metadata map[string]string) {
	b.Publish(&Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	})
}
