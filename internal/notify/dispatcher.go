package notify

import (
	"context"
	"log/slog"

	"github.com/talentpipe/talentpipe/internal/eventbus"
)

// Dispatcher fans domain events out to the notifier. Delivery failures are
// logged and dropped; the write that produced the event already committed.
type Dispatcher struct {
	eventBus *eventbus.Bus
	notifier Notifier
}

func NewDispatcher(eventBus *eventbus.Bus, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		notifier: notifier,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if n := buildNotification(event); n != nil {
				if err := d.notifier.Notify(ctx, n); err != nil {
					slog.Error("notification delivery failed", "event_type", event.Type, "entity_id", event.EntityID, "error", err)
				}
			}
		}
	}
}

// buildNotification maps an event to a payload, or nil for event types that
// do not notify anyone.
func buildNotification(event *eventbus.Event) *Notification {
	var title string
	switch event.Type {
	case eventbus.EventApplicationStageChanged:
		title = "Application moved to a new stage"
	case eventbus.EventApplicationRejected:
		title = "Application rejected"
	case eventbus.EventApplicationWithdrawn:
		title = "Application withdrawn"
	case eventbus.EventOfferSent:
		title = "Offer extended"
	case eventbus.EventOfferResponded:
		title = "Offer response received"
	case eventbus.EventInterviewScheduled:
		title = "Interview scheduled"
	case eventbus.EventInterviewRescheduled:
		title = "Interview rescheduled"
	case eventbus.EventInterviewCancelled:
		title = "Interview cancelled"
	case eventbus.EventTaskAssigned:
		title = "Task assigned"
	case eventbus.EventTaskRecurred:
		title = "Recurring task created"
	case eventbus.EventCandidateRouted:
		title = "Candidate routed"
	default:
		return nil
	}
	return &Notification{
		Title:    title,
		Body:     string(event.Type),
		Entity:   event.EntityType,
		EntityID: event.EntityID,
		ActorID:  event.ActorID,
		Metadata: event.Metadata,
	}
}
