package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentpipe/talentpipe/internal/application"
	"github.com/talentpipe/talentpipe/internal/application/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/audit"
	auditrepo "github.com/talentpipe/talentpipe/internal/audit/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

var (
	hr        = identity.Actor{ID: "hr-1", Role: identity.RoleHR}
	candidate = identity.Actor{ID: "cand-1", Role: identity.RoleCandidate}
)

func newTestService(t *testing.T) (*application.Service, application.Repository, audit.Repository) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repositoryimpl.NewYAMLRepository(store)
	aRepo := auditrepo.NewYAMLRepository(store)
	auditor := audit.NewWriter(aRepo, audit.NewClassifier(), time.Hour)
	svc := application.NewService(repo, auditor, eventbus.New(), 5*time.Second)
	return svc, repo, aRepo
}

func createApplication(t *testing.T, svc *application.Service) *application.Application {
	t.Helper()
	a, err := svc.Create(context.Background(), application.CreateRequest{
		CandidateID: candidate.ID,
		JobID:       "job-1",
	}, candidate)
	require.NoError(t, err)
	return a
}

func TestService_Create(t *testing.T) {
	svc, _, _ := newTestService(t)

	a := createApplication(t, svc)
	assert.Equal(t, application.StageApplied, a.Stage)
	assert.Equal(t, application.StatusSubmitted, a.Status)
	require.Len(t, a.StageHistory, 1)

	// One application per candidate and job.
	_, err := svc.Create(context.Background(), application.CreateRequest{
		CandidateID: candidate.ID,
		JobID:       "job-1",
	}, candidate)
	assert.True(t, cerr.IsCode(err, cerr.Conflict))
}

func TestService_AdvanceStage(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := createApplication(t, svc)

	got, err := svc.AdvanceStage(context.Background(), a.ID, application.StageScreening, application.StatusUnderReview, hr, "")
	require.NoError(t, err)
	assert.Equal(t, application.StageScreening, got.Stage)
	require.Len(t, got.StageHistory, 2)

	// Skipping interview and offer entirely is not allowed.
	_, err = svc.AdvanceStage(context.Background(), got.ID, application.StageHired, application.StatusOfferAccepted, hr, "")
	assert.True(t, cerr.IsCode(err, cerr.InvalidTransition))

	// The failed advance must not have touched the history.
	current, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, current.StageHistory, 2)
}

func TestService_AdvanceStage_UnknownPhase(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := createApplication(t, svc)

	_, err := svc.AdvanceStage(context.Background(), a.ID, application.StageApplied, application.StatusOfferAccepted, hr, "")
	assert.True(t, cerr.IsCode(err, cerr.InvalidTransition))
}

func TestService_StageHistoryAppendOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := createApplication(t, svc)

	first := a.StageHistory[0]

	got, err := svc.AdvanceStage(context.Background(), a.ID, application.StageScreening, application.StatusUnderReview, hr, "looks good")
	require.NoError(t, err)

	require.Len(t, got.StageHistory, 2)
	assert.Equal(t, first.Stage, got.StageHistory[0].Stage)
	assert.Equal(t, first.Status, got.StageHistory[0].Status)
	assert.Equal(t, first.CreatedAt.Unix(), got.StageHistory[0].CreatedAt.Unix())
}

func TestService_ConcurrentModification(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := createApplication(t, svc)

	// Two callers read the same version.
	first, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	second, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, first.Version, second.Version)

	first.Status = application.StatusUnderReview
	first.Stage = application.StageScreening
	require.NoError(t, repo.Update(context.Background(), first))

	second.Rating = 4
	err = repo.Update(context.Background(), second)
	assert.True(t, cerr.IsCode(err, cerr.ConcurrentModification))

	// The winner's write landed and bumped the version exactly once.
	current, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Version+1, current.Version)
	assert.Equal(t, application.StatusUnderReview, current.Status)
}

func TestService_MarkAsViewedIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := createApplication(t, svc)

	first, err := svc.MarkAsViewed(context.Background(), a.ID, hr)
	require.NoError(t, err)
	require.NotNil(t, first.ViewedAt)

	second, err := svc.MarkAsViewed(context.Background(), a.ID, hr)
	require.NoError(t, err)
	require.NotNil(t, second.ViewedAt)
	assert.Equal(t, first.ViewedAt.UnixNano(), second.ViewedAt.UnixNano())
}

func TestService_WithdrawPermission(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := createApplication(t, svc)

	// HR may not withdraw on the candidate's behalf.
	_, err := svc.Withdraw(context.Background(), a.ID, "changed my mind", hr)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))

	// Another candidate may not either.
	other := identity.Actor{ID: "cand-2", Role: identity.RoleCandidate}
	_, err = svc.Withdraw(context.Background(), a.ID, "changed my mind", other)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))

	got, err := svc.Withdraw(context.Background(), a.ID, "changed my mind", candidate)
	require.NoError(t, err)
	assert.Equal(t, application.StageWithdrawn, got.Stage)
	assert.True(t, got.IsTerminal())

	// Terminal states accept no further moves.
	_, err = svc.AdvanceStage(context.Background(), a.ID, application.StageScreening, application.StatusUnderReview, hr, "")
	assert.True(t, cerr.IsCode(err, cerr.InvalidTransition))
}

func TestService_OfferLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := createApplication(t, svc)
	ctx := context.Background()

	// Offers require an interviewed application.
	_, err := svc.SendOffer(ctx, a.ID, application.OfferInput{Salary: 90000, Currency: "USD"}, hr)
	assert.True(t, cerr.IsCode(err, cerr.InvalidState))

	for _, step := range []application.Phase{
		{Stage: application.StageScreening, Status: application.StatusUnderReview},
		{Stage: application.StageInterview, Status: application.StatusInterviewScheduled},
		{Stage: application.StageInterview, Status: application.StatusInterviewed},
	} {
		_, err := svc.AdvanceStage(ctx, a.ID, step.Stage, step.Status, hr, "")
		require.NoError(t, err)
	}

	sent, err := svc.SendOffer(ctx, a.ID, application.OfferInput{Salary: 90000, Currency: "USD"}, hr)
	require.NoError(t, err)
	require.NotNil(t, sent.Offer)
	require.NotNil(t, sent.Offer.SentAt)
	assert.Equal(t, application.StatusOfferExtended, sent.Status)

	// Only the owning candidate may respond.
	_, err = svc.RespondToOffer(ctx, a.ID, application.OfferAccepted, "", hr)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))

	accepted, err := svc.RespondToOffer(ctx, a.ID, application.OfferAccepted, "", candidate)
	require.NoError(t, err)
	assert.Equal(t, application.StageHired, accepted.Stage)
	require.NotNil(t, accepted.Offer.RespondedAt)

	// A second response is rejected.
	_, err = svc.RespondToOffer(ctx, a.ID, application.OfferRejected, "", candidate)
	assert.True(t, cerr.IsCode(err, cerr.InvalidState))
}

func TestService_AuditTrailRecorded(t *testing.T) {
	svc, _, aRepo := newTestService(t)
	a := createApplication(t, svc)
	ctx := context.Background()

	got, err := svc.AdvanceStage(ctx, a.ID, application.StageScreening, application.StatusUnderReview, hr, "")
	require.NoError(t, err)

	entries, _, err := aRepo.List(ctx, application.EntityType, got.ID, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	var found bool
	for _, e := range entries {
		if e.Action == audit.ActionApplicationAdvance {
			found = true
			assert.True(t, e.Success)
			assert.NotEmpty(t, e.Changes)
		}
	}
	assert.True(t, found)
}
