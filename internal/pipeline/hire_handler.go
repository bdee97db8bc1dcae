package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talentpipe/talentpipe/internal/application"
	"github.com/talentpipe/talentpipe/internal/company"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/internal/job"
	"github.com/talentpipe/talentpipe/internal/task"
)

// HireHandler applies the cross-aggregate effects of an accepted offer:
// the job records the hire and the company counter moves. Both updates are
// idempotent on application id, so redelivered events are harmless. When a
// secondary write fails, the handler files a reconciliation task instead of
// rolling back the accepted offer.
type HireHandler struct {
	eventBus  *eventbus.Bus
	apps      application.Repository
	jobs      *job.Service
	companies *company.Service
	tasks     *task.Service
}

func NewHireHandler(eventBus *eventbus.Bus, apps application.Repository, jobs *job.Service, companies *company.Service, tasks *task.Service) *HireHandler {
	return &HireHandler{
		eventBus:  eventBus,
		apps:      apps,
		jobs:      jobs,
		companies: companies,
		tasks:     tasks,
	}
}

func (h *HireHandler) Start(ctx context.Context) {
	subID, ch := h.eventBus.Subscribe(256)
	defer h.eventBus.Unsubscribe(subID)

	slog.Info("hire handler started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("hire handler stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.EventOfferResponded && event.Metadata["response"] == string(application.OfferAccepted) {
				h.handleAccepted(ctx, event)
			}
		}
	}
}

func (h *HireHandler) handleAccepted(ctx context.Context, event *eventbus.Event) {
	app, err := h.apps.Get(ctx, event.EntityID)
	if err != nil {
		slog.Error("hire handler: failed to get application", "id", event.EntityID, "error", err)
		h.fileReconciliation(ctx, event.EntityID, "", err)
		return
	}

	j, err := h.jobs.RecordHire(ctx, app.JobID, app.ID, app.CandidateID, identity.System)
	if err != nil {
		slog.Error("hire handler: failed to record hire on job", "job_id", app.JobID, "application_id", app.ID, "error", err)
		h.fileReconciliation(ctx, app.ID, app.JobID, err)
		return
	}

	if _, err := h.companies.RecordHire(ctx, j.CompanyID, app.ID, identity.System); err != nil {
		slog.Error("hire handler: failed to adjust company hires", "company_id", j.CompanyID, "application_id", app.ID, "error", err)
		h.fileReconciliation(ctx, app.ID, app.JobID, err)
		return
	}
}

// fileReconciliation creates a high-priority task so an operator can finish
// the hire bookkeeping by hand. Task creation failure is logged only; there
// is nothing further to fall back to.
func (h *HireHandler) fileReconciliation(ctx context.Context, applicationID, jobID string, cause error) {
	_, err := h.tasks.Create(ctx, task.CreateRequest{
		Title:       fmt.Sprintf("Reconcile hire bookkeeping for application %s", applicationID),
		Description: fmt.Sprintf("Offer was accepted but a follow-up write failed: %v", cause),
		AssigneeID:  "admin",
		Priority:    task.PriorityUrgent,
		Links: task.EntityLinks{
			ApplicationID: applicationID,
			JobID:         jobID,
		},
	}, identity.System)
	if err != nil {
		slog.Error("hire handler: failed to create reconciliation task", "application_id", applicationID, "error", err)
	}
}
