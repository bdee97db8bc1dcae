package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentpipe/talentpipe/internal/assignment"
	"github.com/talentpipe/talentpipe/internal/assignment/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/audit"
	auditrepo "github.com/talentpipe/talentpipe/internal/audit/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

var agent = identity.Actor{ID: "agent-1", Role: identity.RoleAgent}

func newTestService(t *testing.T) *assignment.Service {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	auditor := audit.NewWriter(auditrepo.NewYAMLRepository(store), audit.NewClassifier(), time.Hour)
	return assignment.NewService(
		repositoryimpl.NewAgentYAMLRepository(store),
		repositoryimpl.NewCandidateYAMLRepository(store),
		auditor, eventbus.New(), 5*time.Second,
	)
}

func TestService_AssignAgentMerges(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.AssignAgent(ctx, "agent-1", []string{"hr-1"}, []string{"cand-1", "cand-2"}, nil, nil, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr-1"}, a.HRIDs)
	assert.Equal(t, []string{"cand-1", "cand-2"}, a.CandidateIDs)

	// A later upsert unions; it never drops existing members.
	a, err = svc.AssignAgent(ctx, "agent-1", []string{"hr-2"}, []string{"cand-2", "cand-3"}, nil, nil, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr-1", "hr-2"}, a.HRIDs)
	assert.Equal(t, []string{"cand-1", "cand-2", "cand-3"}, a.CandidateIDs)

	// Removal is explicit.
	a, err = svc.AssignAgent(ctx, "agent-1", nil, nil, nil, []string{"cand-1"}, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"cand-2", "cand-3"}, a.CandidateIDs)
}

func TestService_RouteCandidate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AssignAgent(ctx, "agent-1", []string{"hr-1"}, []string{"cand-1"}, nil, nil, agent)
	require.NoError(t, err)

	c, err := svc.RouteCandidate(ctx, assignment.RouteRequest{
		CandidateID: "cand-1",
		TargetHRID:  "hr-1",
		AgentID:     "agent-1",
		JobID:       "job-1",
	}, agent)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusActive, c.Status)
	assert.Equal(t, assignment.PriorityNormal, c.Priority)

	// Routing the same tuple again while active is a conflict.
	_, err = svc.RouteCandidate(ctx, assignment.RouteRequest{
		CandidateID: "cand-1",
		TargetHRID:  "hr-1",
		AgentID:     "agent-1",
		JobID:       "job-1",
	}, agent)
	assert.True(t, cerr.IsCode(err, cerr.Conflict))

	// A different job is a different tuple.
	_, err = svc.RouteCandidate(ctx, assignment.RouteRequest{
		CandidateID: "cand-1",
		TargetHRID:  "hr-1",
		AgentID:     "agent-1",
		JobID:       "job-2",
	}, agent)
	require.NoError(t, err)

	// Closing the first frees the tuple for re-routing.
	_, err = svc.MarkCompleted(ctx, c.ID, "placed", agent)
	require.NoError(t, err)
	_, err = svc.RouteCandidate(ctx, assignment.RouteRequest{
		CandidateID: "cand-1",
		TargetHRID:  "hr-1",
		AgentID:     "agent-1",
		JobID:       "job-1",
	}, agent)
	require.NoError(t, err)
}

func TestService_RouteCandidateOwnership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AssignAgent(ctx, "agent-1", nil, []string{"cand-1"}, nil, nil, agent)
	require.NoError(t, err)

	_, err = svc.RouteCandidate(ctx, assignment.RouteRequest{
		CandidateID: "cand-other",
		TargetHRID:  "hr-1",
		AgentID:     "agent-1",
	}, agent)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
}

func TestService_CloseIsOneWay(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c, err := svc.RouteCandidate(ctx, assignment.RouteRequest{
		CandidateID: "cand-1",
		TargetHRID:  "hr-1",
	}, agent)
	require.NoError(t, err)

	closed, err := svc.Reject(ctx, c.ID, "not a fit", agent)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusRejected, closed.Status)
	assert.Equal(t, "not a fit", closed.Reason)
	require.NotNil(t, closed.ClosedAt)

	// Terminal states refuse further closes.
	_, err = svc.Withdraw(ctx, c.ID, "", agent)
	assert.True(t, cerr.IsCode(err, cerr.InvalidState))
	_, err = svc.MarkCompleted(ctx, c.ID, "", agent)
	assert.True(t, cerr.IsCode(err, cerr.InvalidState))
}
