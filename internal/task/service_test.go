package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentpipe/talentpipe/internal/audit"
	auditrepo "github.com/talentpipe/talentpipe/internal/audit/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/internal/task"
	"github.com/talentpipe/talentpipe/internal/task/repositoryimpl"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

var hr = identity.Actor{ID: "hr-1", Role: identity.RoleHR}

func newTestService(t *testing.T) (*task.Service, task.Repository, audit.Repository) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	aRepo := auditrepo.NewYAMLRepository(store)
	auditor := audit.NewWriter(aRepo, audit.NewClassifier(), time.Hour)
	repo := repositoryimpl.NewYAMLRepository(store)
	svc := task.NewService(repo, auditor, eventbus.New(), 5*time.Second)
	return svc, repo, aRepo
}

func TestService_Create(t *testing.T) {
	svc, _, _ := newTestService(t)

	got, err := svc.Create(context.Background(), task.CreateRequest{
		Title:      "Screen resume",
		AssigneeID: "hr-1",
		Checklist:  []string{"read resume", "check references"},
	}, hr)
	require.NoError(t, err)
	assert.Equal(t, task.StatusTodo, got.Status)
	assert.Equal(t, task.PriorityMedium, got.Priority)
	require.Len(t, got.Checklist, 2)
	assert.NotEmpty(t, got.Checklist[0].ID)
	assert.NotEqual(t, got.Checklist[0].ID, got.Checklist[1].ID)

	_, err = svc.Create(context.Background(), task.CreateRequest{}, hr)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestService_StatusTransitions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.CreateRequest{Title: "t"}, hr)
	require.NoError(t, err)

	got, err := svc.UpdateStatus(ctx, created.ID, task.StatusInProgress, hr)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)

	got, err = svc.UpdateStatus(ctx, created.ID, task.StatusCancelled, hr)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCancelled, got.Status)

	// Cancelled is terminal.
	_, err = svc.UpdateStatus(ctx, created.ID, task.StatusInProgress, hr)
	assert.True(t, cerr.IsCode(err, cerr.InvalidTransition))
}

func TestService_ToggleChecklistItem(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.CreateRequest{
		Title:     "Prepare onsite",
		Checklist: []string{"book room", "send invites", "print agenda", "order lunch"},
	}, hr)
	require.NoError(t, err)
	assert.Equal(t, 0.0, created.CompletionPercent())

	got, err := svc.ToggleChecklistItem(ctx, created.ID, created.Checklist[0].ID, hr)
	require.NoError(t, err)
	assert.True(t, got.Checklist[0].Completed)
	assert.Equal(t, hr.ID, got.Checklist[0].CompletedBy)
	assert.InDelta(t, 25.0, got.CompletionPercent(), 0.001)

	// Derivation is stable while the checklist is unchanged.
	reread, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.CompletionPercent(), reread.CompletionPercent())

	// Toggling back clears the completion stamp.
	got, err = svc.ToggleChecklistItem(ctx, created.ID, created.Checklist[0].ID, hr)
	require.NoError(t, err)
	assert.False(t, got.Checklist[0].Completed)
	assert.Nil(t, got.Checklist[0].CompletedAt)
	assert.Equal(t, 0.0, got.CompletionPercent())

	_, err = svc.ToggleChecklistItem(ctx, created.ID, "missing", hr)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestService_AddTimeEntry(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.CreateRequest{Title: "t"}, hr)
	require.NoError(t, err)

	start := time.Now().Add(-90 * time.Minute)
	end := time.Now()

	got, err := svc.AddTimeEntry(ctx, created.ID, start, end, "phone screens", hr)
	require.NoError(t, err)
	require.Len(t, got.TimeEntries, 1)
	assert.Equal(t, 90, got.TimeEntries[0].DurationMinutes)
	assert.Equal(t, hr.ID, got.TimeEntries[0].LoggerID)

	// End before start is inconsistent.
	_, err = svc.AddTimeEntry(ctx, created.ID, end, start, "", hr)
	assert.True(t, cerr.IsCode(err, cerr.InvalidRange))
}

func TestService_CompleteWithWeeklyRecurrence(t *testing.T) {
	svc, repo, aRepo := newTestService(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	created, err := svc.Create(ctx, task.CreateRequest{
		Title:     "Weekly pipeline review",
		DueDate:   &due,
		Checklist: []string{"review new applications", "update HR"},
		Recurrence: task.Recurrence{
			Enabled:   true,
			Frequency: task.FrequencyWeekly,
			Interval:  1,
		},
	}, hr)
	require.NoError(t, err)

	done, err := svc.Complete(ctx, created.ID, hr)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, done.Status)
	require.NotEmpty(t, done.Recurrence.NextInstanceID)

	// Exactly one successor, due one week later, checklist reset.
	clone, err := svc.Get(ctx, done.Recurrence.NextInstanceID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusTodo, clone.Status)
	require.NotNil(t, clone.DueDate)
	assert.Equal(t, due.AddDate(0, 0, 7).Unix(), clone.DueDate.Unix())
	require.Len(t, clone.Checklist, 2)
	for _, item := range clone.Checklist {
		assert.False(t, item.Completed)
	}
	assert.Empty(t, clone.TimeEntries)

	// The original stays done and untouched.
	original, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, original.Status)

	// Both the completion and the spawn are on the audit trail.
	entries, _, err := aRepo.List(ctx, task.EntityType, clone.ID, 0, 0)
	require.NoError(t, err)
	var recurred bool
	for _, e := range entries {
		if e.Action == audit.ActionTaskRecur {
			recurred = true
		}
	}
	assert.True(t, recurred)

	// Completing again is not possible, so no second clone can appear.
	_, err = svc.Complete(ctx, created.ID, hr)
	assert.True(t, cerr.IsCode(err, cerr.InvalidTransition))

	all, total, err := repo.List(ctx, task.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)
}

func TestService_CompleteWithoutRecurrence(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.CreateRequest{Title: "one-off"}, hr)
	require.NoError(t, err)

	done, err := svc.Complete(ctx, created.ID, hr)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, total, err := repo.List(ctx, task.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestService_RecurrenceEndDate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	end := due.AddDate(0, 0, 3)
	created, err := svc.Create(ctx, task.CreateRequest{
		Title:   "expiring series",
		DueDate: &due,
		Recurrence: task.Recurrence{
			Enabled:   true,
			Frequency: task.FrequencyWeekly,
			Interval:  1,
			EndDate:   &end,
		},
	}, hr)
	require.NoError(t, err)

	// The next occurrence would fall past the end date, so none spawns.
	done, err := svc.Complete(ctx, created.ID, hr)
	require.NoError(t, err)
	assert.Empty(t, done.Recurrence.NextInstanceID)

	_, total, err := repo.List(ctx, task.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestService_SpawnMissedRecurrence(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	created, err := svc.Create(ctx, task.CreateRequest{
		Title:   "weekly sync",
		DueDate: &due,
		Recurrence: task.Recurrence{
			Enabled:   true,
			Frequency: task.FrequencyWeekly,
			Interval:  1,
		},
	}, hr)
	require.NoError(t, err)

	// Simulate a crash between the completion and the clone: mark done
	// directly without spawning.
	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	stored.Status = task.StatusDone
	require.NoError(t, repo.Update(ctx, stored))

	clone, err := svc.SpawnMissedRecurrence(ctx, created.ID, identity.System)
	require.NoError(t, err)
	require.NotNil(t, clone)
	assert.Equal(t, due.AddDate(0, 0, 7).Unix(), clone.DueDate.Unix())

	// A second pass finds nothing missing.
	again, err := svc.SpawnMissedRecurrence(ctx, created.ID, identity.System)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestService_SpawnMissedRecurrence_RecordedButNeverCreated(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	created, err := svc.Create(ctx, task.CreateRequest{
		Title:   "weekly sync",
		DueDate: &due,
		Recurrence: task.Recurrence{
			Enabled:   true,
			Frequency: task.FrequencyWeekly,
			Interval:  1,
		},
	}, hr)
	require.NoError(t, err)

	// Simulate a crash after the completion write but before the clone
	// write: the successor id is recorded, the successor document is not.
	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	now := time.Now()
	stored.Status = task.StatusDone
	stored.CompletedAt = &now
	stored.Recurrence.NextInstanceID = "01K40000000000000000000000"
	require.NoError(t, repo.Update(ctx, stored))

	// The sweep must create the successor under the recorded id.
	clone, err := svc.SpawnMissedRecurrence(ctx, created.ID, identity.System)
	require.NoError(t, err)
	require.NotNil(t, clone)
	assert.Equal(t, "01K40000000000000000000000", clone.ID)
	assert.Equal(t, task.StatusTodo, clone.Status)
	assert.Equal(t, due.AddDate(0, 0, 7).Unix(), clone.DueDate.Unix())

	fetched, err := svc.Get(ctx, clone.ID)
	require.NoError(t, err)
	assert.Equal(t, clone.ID, fetched.ID)

	// Once the successor exists, the sweep finds nothing missing.
	again, err := svc.SpawnMissedRecurrence(ctx, created.ID, identity.System)
	require.NoError(t, err)
	assert.Nil(t, again)

	_, total, err := repo.List(ctx, task.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestService_ChecklistAddRemove(t *testing.T) {
	svc, _, aRepo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.CreateRequest{
		Title:     "Prepare offer",
		Checklist: []string{"draft letter"},
	}, hr)
	require.NoError(t, err)

	got, err := svc.AddChecklistItem(ctx, created.ID, "get approval", hr)
	require.NoError(t, err)
	require.Len(t, got.Checklist, 2)
	assert.Equal(t, "get approval", got.Checklist[1].Text)
	assert.NotEmpty(t, got.Checklist[1].ID)
	assert.NotEqual(t, got.Checklist[0].ID, got.Checklist[1].ID)

	_, err = svc.AddChecklistItem(ctx, created.ID, "", hr)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	// Removing the completed item shifts the derived percentage.
	got, err = svc.ToggleChecklistItem(ctx, created.ID, got.Checklist[0].ID, hr)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got.CompletionPercent(), 0.001)

	got, err = svc.RemoveChecklistItem(ctx, created.ID, got.Checklist[0].ID, hr)
	require.NoError(t, err)
	require.Len(t, got.Checklist, 1)
	assert.Equal(t, "get approval", got.Checklist[0].Text)
	assert.Equal(t, 0.0, got.CompletionPercent())

	_, err = svc.RemoveChecklistItem(ctx, created.ID, "missing", hr)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	// Both edits are on the trail.
	entries, _, err := aRepo.List(ctx, task.EntityType, created.ID, 0, 0)
	require.NoError(t, err)
	edits := 0
	for _, e := range entries {
		if e.Action == audit.ActionTaskChecklistEdit {
			edits++
		}
	}
	assert.Equal(t, 2, edits)

	// Terminal tasks keep their checklist as-is.
	_, err = svc.Complete(ctx, created.ID, hr)
	require.NoError(t, err)
	_, err = svc.AddChecklistItem(ctx, created.ID, "late", hr)
	assert.True(t, cerr.IsCode(err, cerr.InvalidState))
}

func TestNextDueDate(t *testing.T) {
	base := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		freq     task.Frequency
		interval int
		want     time.Time
	}{
		{"daily", task.FrequencyDaily, 1, base.AddDate(0, 0, 1)},
		{"every three days", task.FrequencyDaily, 3, base.AddDate(0, 0, 3)},
		{"weekly", task.FrequencyWeekly, 1, base.AddDate(0, 0, 7)},
		{"biweekly", task.FrequencyWeekly, 2, base.AddDate(0, 0, 14)},
		{"monthly", task.FrequencyMonthly, 1, base.AddDate(0, 1, 0)},
		{"yearly", task.FrequencyYearly, 1, base.AddDate(1, 0, 0)},
		{"zero interval defaults to one", task.FrequencyDaily, 0, base.AddDate(0, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, task.NextDueDate(base, tt.freq, tt.interval))
		})
	}
}
