package notify

import (
	"context"
	"log/slog"
)

// Notification is the payload handed to a Notifier. Formatting and delivery
// details belong to the implementation.
type Notification struct {
	Title    string
	Body     string
	Entity   string
	EntityID string
	ActorID  string
	Metadata map[string]string
}

// Notifier delivers notifications at-least-once. Implementations own retry
// and must not block the dispatcher indefinitely.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// LogNotifier writes notifications to the structured log. Used in local
// environments and as the fallback delivery channel.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Notify(ctx context.Context, n *Notification) error {
	slog.InfoContext(ctx, "notification",
		"title", n.Title,
		"body", n.Body,
		"entity", n.Entity,
		"entity_id", n.EntityID,
		"actor_id", n.ActorID,
	)
	return nil
}
