package pipeline

import (
	"context"
	"log/slog"

	"github.com/talentpipe/talentpipe/internal/application"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

// InterviewHandler advances an application to interviewed once its interview
// completes. The advance is best effort: an application that already moved
// on is left alone.
type InterviewHandler struct {
	eventBus *eventbus.Bus
	facade   *Facade
	enabled  bool
}

func NewInterviewHandler(eventBus *eventbus.Bus, facade *Facade, enabled bool) *InterviewHandler {
	return &InterviewHandler{
		eventBus: eventBus,
		facade:   facade,
		enabled:  enabled,
	}
}

func (h *InterviewHandler) Start(ctx context.Context) {
	if !h.enabled {
		return
	}

	subID, ch := h.eventBus.Subscribe(256)
	defer h.eventBus.Unsubscribe(subID)

	slog.Info("interview handler started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("interview handler stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.EventInterviewCompleted {
				h.handleCompleted(ctx, event)
			}
		}
	}
}

func (h *InterviewHandler) handleCompleted(ctx context.Context, event *eventbus.Event) {
	appID := event.Metadata["application_id"]
	if appID == "" {
		return
	}

	app, err := h.facade.Applications.Get(ctx, appID)
	if err != nil {
		slog.Error("interview handler: failed to get application", "id", appID, "error", err)
		return
	}
	if app.Stage != application.StageInterview || app.Status != application.StatusInterviewScheduled {
		return
	}

	_, err = h.facade.AdvanceStage(ctx, appID, application.StageInterview, application.StatusInterviewed, identity.System, "interview completed")
	if err != nil && !cerr.IsCode(err, cerr.InvalidTransition) {
		slog.Error("interview handler: failed to advance application", "id", appID, "error", err)
	}
}
