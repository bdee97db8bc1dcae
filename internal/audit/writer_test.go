package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentpipe/talentpipe/internal/audit"
	"github.com/talentpipe/talentpipe/internal/audit/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

var hr = identity.Actor{ID: "hr-1", Role: identity.RoleHR}

type failingRepo struct {
	audit.Repository
	err error
}

func (r *failingRepo) Create(ctx context.Context, e *audit.Entry) error {
	if r.err != nil {
		return r.err
	}
	return r.Repository.Create(ctx, e)
}

func newRepo(t *testing.T) audit.Repository {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return repositoryimpl.NewYAMLRepository(store)
}

type subject struct {
	Status string `yaml:"status"`
	Salary int    `yaml:"salary,omitempty"`
}

func TestWriter_Write(t *testing.T) {
	repo := newRepo(t)
	w := audit.NewWriter(repo, audit.NewClassifier(), 24*time.Hour)
	ctx := context.Background()

	entry, err := w.Write(ctx, audit.Record{
		Actor:      hr,
		Action:     audit.ActionApplicationAdvance,
		EntityType: "application",
		EntityID:   "app-1",
		Before:     &subject{Status: "submitted"},
		After:      &subject{Status: "under_review"},
		Success:    true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, audit.RiskMedium, entry.Risk)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "status", entry.Changes[0].Field)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), entry.RetentionUntil, time.Minute)

	stored, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Action, stored.Action)
	assert.True(t, stored.Success)
}

func TestWriter_RiskComputedNotTaken(t *testing.T) {
	w := audit.NewWriter(newRepo(t), audit.NewClassifier(), time.Hour)

	entry, err := w.Write(context.Background(), audit.Record{
		Actor:      hr,
		Action:     audit.ActionApplicationAdvance,
		EntityType: "application",
		EntityID:   "app-1",
		Before:     &subject{Status: "x", Salary: 80000},
		After:      &subject{Status: "x", Salary: 95000},
		Success:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, audit.RiskHigh, entry.Risk)
}

func TestWriter_PersistFailureEscalates(t *testing.T) {
	repo := &failingRepo{Repository: newRepo(t), err: errors.New("disk full")}
	w := audit.NewWriter(repo, audit.NewClassifier(), time.Hour)

	_, err := w.Write(context.Background(), audit.Record{
		Actor:      hr,
		Action:     audit.ActionApplicationAdvance,
		EntityType: "application",
		EntityID:   "app-1",
		Success:    true,
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Internal))
}

func TestWriter_WriteFailure(t *testing.T) {
	repo := newRepo(t)
	w := audit.NewWriter(repo, audit.NewClassifier(), time.Hour)
	ctx := context.Background()

	cause := cerr.NewError(cerr.ConcurrentModification, "version mismatch", nil)
	w.WriteFailure(ctx, audit.Record{
		Actor:      hr,
		Action:     audit.ActionApplicationAdvance,
		EntityType: "application",
		EntityID:   "app-1",
	}, cause)

	entries, total, err := repo.List(ctx, "application", "app-1", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.False(t, entries[0].Success)
	assert.Equal(t, cerr.ConcurrentModification.String(), entries[0].ErrorCode)
	assert.Contains(t, entries[0].ErrorMessage, "version mismatch")
}

func TestSweeper_RunOnce(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	// Negative retention expires entries immediately.
	expired := audit.NewWriter(repo, audit.NewClassifier(), -time.Hour)
	kept := audit.NewWriter(repo, audit.NewClassifier(), 24*time.Hour)

	for i := 0; i < 3; i++ {
		_, err := expired.Write(ctx, audit.Record{
			Actor: hr, Action: audit.ActionTaskCreate, EntityType: "task", EntityID: "old", Success: true,
		})
		require.NoError(t, err)
	}
	live, err := kept.Write(ctx, audit.Record{
		Actor: hr, Action: audit.ActionTaskCreate, EntityType: "task", EntityID: "new", Success: true,
	})
	require.NoError(t, err)

	sweeper := audit.NewSweeper(repo, time.Hour)
	removed, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, err = repo.Get(ctx, live.ID)
	assert.NoError(t, err)

	_, total, err := repo.List(ctx, "task", "old", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}
