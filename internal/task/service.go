package task

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/talentpipe/talentpipe/internal/audit"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

const EntityType = "task"

type Service struct {
	repo         Repository
	auditor      *audit.Writer
	bus          *eventbus.Bus
	storeTimeout time.Duration
}

func NewService(repo Repository, auditor *audit.Writer, bus *eventbus.Bus, storeTimeout time.Duration) *Service {
	return &Service{
		repo:         repo,
		auditor:      auditor,
		bus:          bus,
		storeTimeout: storeTimeout,
	}
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

type CreateRequest struct {
	Title        string
	Description  string
	AssigneeID   string
	Priority     Priority
	DueDate      *time.Time
	Checklist    []string
	Recurrence   Recurrence
	Dependencies []Dependency
	Links        EntityLinks
}

// Create builds a new task in todo status. Checklist items get generated ids
// so they can be toggled individually later.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if req.Title == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "title is required", "title", req.Title)
	}
	if req.Recurrence.Enabled && !req.Recurrence.Frequency.IsValid() {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "unknown recurrence frequency", "frequency", req.Recurrence.Frequency)
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	checklist := make([]ChecklistItem, 0, len(req.Checklist))
	for _, text := range req.Checklist {
		checklist = append(checklist, ChecklistItem{
			ID:   ulid.Make().String(),
			Text: text,
		})
	}

	now := time.Now()
	t := &Task{
		ID:           ulid.Make().String(),
		Title:        req.Title,
		Description:  req.Description,
		AssigneeID:   req.AssigneeID,
		CreatorID:    actor.ID,
		Status:       StatusTodo,
		Priority:     priority,
		DueDate:      req.DueDate,
		Checklist:    checklist,
		Recurrence:   req.Recurrence,
		Dependencies: req.Dependencies,
		Links:        req.Links,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.auditor.Write(ctx, audit.Record{
		Actor:      actor,
		Action:     audit.ActionTaskCreate,
		EntityType: EntityType,
		EntityID:   t.ID,
		After:      t,
		Success:    true,
		Context:    audit.RequestContextFrom(ctx),
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventTaskCreated, EntityType, t.ID, actor.ID, map[string]string{
		"assignee_id": t.AssigneeID,
		"priority":    string(t.Priority),
	})
	return t, nil
}

type UpdateRequest struct {
	Title       *string
	Description *string
	AssigneeID  *string
	Priority    *Priority
	DueDate     *time.Time
}

// Update patches mutable fields of a non-terminal task.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, invalidStatus("update", t.Status)
	}

	before := audit.Snapshot(t)
	reassigned := false
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.AssigneeID != nil && *req.AssigneeID != t.AssigneeID {
		t.AssigneeID = *req.AssigneeID
		reassigned = true
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	t.UpdatedAt = time.Now()

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionTaskUpdate,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	if reassigned {
		s.bus.PublishNew(eventbus.EventTaskAssigned, EntityType, t.ID, actor.ID, map[string]string{
			"assignee_id": t.AssigneeID,
		})
	}
	return t, nil
}

// UpdateStatus moves the task along the allow-list. Completion must go
// through Complete so recurrence fires.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if to == StatusDone {
		return s.Complete(ctx, id, actor)
	}
	start := time.Now()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, to) {
		return nil, cerr.NewFieldError(cerr.InvalidTransition,
			fmt.Sprintf("cannot move task from %s to %s", t.Status, to), "status", to)
	}

	before := audit.Snapshot(t)
	t.Status = to
	t.UpdatedAt = time.Now()

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionTaskStatusChange,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventTaskStatusChanged, EntityType, t.ID, actor.ID, map[string]string{
		"status": string(t.Status),
	})
	return t, nil
}

// ToggleChecklistItem flips one item's completed flag. Completion percent is
// derived from the checklist at read time, so nothing else changes here.
func (s *Service) ToggleChecklistItem(ctx context.Context, id, itemID string, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, invalidStatus("toggle checklist on", t.Status)
	}
	item := t.checklistItem(itemID)
	if item == nil {
		return nil, cerr.NewFieldError(cerr.NotFound, "checklist item not found", "item_id", itemID)
	}

	before := audit.Snapshot(t)
	now := time.Now()
	item.Completed = !item.Completed
	if item.Completed {
		item.CompletedAt = &now
		item.CompletedBy = actor.ID
	} else {
		item.CompletedAt = nil
		item.CompletedBy = ""
	}
	t.UpdatedAt = now

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionTaskChecklistToggle,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// AddChecklistItem appends an item with a generated id to a non-terminal
// task's checklist.
func (s *Service) AddChecklistItem(ctx context.Context, id, text string, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	if text == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "checklist item text is required", "text", text)
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, invalidStatus("edit the checklist of", t.Status)
	}

	before := audit.Snapshot(t)
	t.Checklist = append(t.Checklist, ChecklistItem{
		ID:   ulid.Make().String(),
		Text: text,
	})
	t.UpdatedAt = time.Now()

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionTaskChecklistEdit,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// RemoveChecklistItem drops one item. Completion percent shifts accordingly
// since it is derived from the remaining items.
func (s *Service) RemoveChecklistItem(ctx context.Context, id, itemID string, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, invalidStatus("edit the checklist of", t.Status)
	}
	if !t.hasChecklistItem(itemID) {
		return nil, cerr.NewFieldError(cerr.NotFound, "checklist item not found", "item_id", itemID)
	}

	before := audit.Snapshot(t)
	kept := make([]ChecklistItem, 0, len(t.Checklist)-1)
	for _, item := range t.Checklist {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	t.Checklist = kept
	t.UpdatedAt = time.Now()

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionTaskChecklistEdit,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// AddTimeEntry logs time against the task. The end must not precede the
// start; duration is stored in whole minutes.
func (s *Service) AddTimeEntry(ctx context.Context, id string, entryStart, entryEnd time.Time, description string, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	if entryEnd.Before(entryStart) {
		return nil, cerr.NewFieldError(cerr.InvalidRange, "end must not precede start", "end", entryEnd)
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, invalidStatus("log time on", t.Status)
	}

	before := audit.Snapshot(t)
	now := time.Now()
	t.TimeEntries = append(t.TimeEntries, TimeEntry{
		ID:              ulid.Make().String(),
		Start:           entryStart,
		End:             entryEnd,
		DurationMinutes: int(entryEnd.Sub(entryStart) / time.Minute),
		Description:     description,
		LoggerID:        actor.ID,
		CreatedAt:       now,
	})
	t.UpdatedAt = now

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionTaskTimeEntry,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// Complete marks the task done and, for recurring tasks, spawns the next
// instance. The clone is recorded against the completing instance first so
// a replayed completion cannot spawn twice.
func (s *Service) Complete(ctx context.Context, id string, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, StatusDone) {
		return nil, cerr.NewFieldError(cerr.InvalidTransition,
			fmt.Sprintf("cannot move task from %s to %s", t.Status, StatusDone), "status", StatusDone)
	}

	before := audit.Snapshot(t)
	now := time.Now()
	t.Status = StatusDone
	t.CompletedAt = &now
	t.CompletedBy = actor.ID
	t.UpdatedAt = now

	var clone *Task
	if shouldRecur(t, now) {
		clone = CloneForRecurrence(t, now)
		t.Recurrence.NextInstanceID = clone.ID
	}

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionTaskComplete,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventTaskCompleted, EntityType, t.ID, actor.ID, map[string]string{
		"assignee_id": t.AssigneeID,
	})

	if clone != nil {
		if _, err := s.createClone(ctx, t.ID, clone, actor); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SpawnMissedRecurrence creates the successor for a completed recurring task
// that never got one, e.g. because the process died between the completion
// write and the clone write. Returns nil when nothing was missing.
func (s *Service) SpawnMissedRecurrence(ctx context.Context, id string, actor identity.Actor) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusDone {
		return nil, invalidStatus("spawn a recurrence from", t.Status)
	}
	now := time.Now()

	// A recorded successor id with no document behind it means the process
	// died after the completion write. Reusing the recorded id keeps the
	// catch-up exactly-once: the create refuses duplicates.
	if recorded := t.Recurrence.NextInstanceID; recorded != "" {
		if _, err := s.repo.Get(ctx, recorded); err == nil {
			return nil, nil
		} else if !cerr.IsCode(err, cerr.NotFound) {
			return nil, err
		}
		clone := CloneForRecurrence(t, now)
		clone.ID = recorded
		return s.createClone(ctx, t.ID, clone, actor)
	}

	if !shouldRecur(t, now) {
		return nil, nil
	}

	before := audit.Snapshot(t)
	clone := CloneForRecurrence(t, now)
	t.Recurrence.NextInstanceID = clone.ID
	t.UpdatedAt = now

	if err := s.persist(ctx, t, before, audit.Record{
		Actor:  actor,
		Action: audit.ActionTaskUpdate,
	}); err != nil {
		return nil, err
	}
	return s.createClone(ctx, t.ID, clone, actor)
}

func (s *Service) createClone(ctx context.Context, sourceID string, clone *Task, actor identity.Actor) (*Task, error) {
	if _, err := s.auditor.Write(ctx, audit.Record{
		Actor:      actor,
		Action:     audit.ActionTaskRecur,
		EntityType: EntityType,
		EntityID:   clone.ID,
		After:      clone,
		Success:    true,
		Context:    audit.RequestContextFrom(ctx),
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, clone); err != nil {
		return nil, err
	}
	s.bus.PublishNew(eventbus.EventTaskRecurred, EntityType, clone.ID, actor.ID, map[string]string{
		"source_task_id": sourceID,
		"due_date":       clone.DueDate.Format(time.RFC3339),
	})
	return clone, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]*Task, int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) persist(ctx context.Context, t *Task, before map[string]any, rec audit.Record) error {
	rec.EntityType = EntityType
	rec.EntityID = t.ID
	rec.Before = before
	rec.After = t
	rec.Success = true
	rec.Context = audit.RequestContextFrom(ctx)

	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return err
	}
	return nil
}

func invalidStatus(op string, status Status) error {
	return cerr.NewFieldError(cerr.InvalidState,
		fmt.Sprintf("cannot %s a task in status %s", op, status), "status", status)
}
