package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentpipe/talentpipe/internal/application"
	apprepo "github.com/talentpipe/talentpipe/internal/application/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/audit"
	auditrepo "github.com/talentpipe/talentpipe/internal/audit/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/company"
	companyrepo "github.com/talentpipe/talentpipe/internal/company/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/job"
	jobrepo "github.com/talentpipe/talentpipe/internal/job/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/task"
	taskrepo "github.com/talentpipe/talentpipe/internal/task/repositoryimpl"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

type hireFixture struct {
	handler   *HireHandler
	apps      application.Repository
	appSvc    *application.Service
	jobs      *job.Service
	companies *company.Service
	tasks     *task.Service
}

func newHireFixture(t *testing.T) *hireFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	auditor := audit.NewWriter(auditrepo.NewYAMLRepository(store), audit.NewClassifier(), time.Hour)
	bus := eventbus.New()
	timeout := 5 * time.Second

	apps := apprepo.NewYAMLRepository(store)
	jobs := job.NewService(jobrepo.NewYAMLRepository(store), auditor, timeout)
	companies := company.NewService(companyrepo.NewYAMLRepository(store), auditor, timeout)
	tasks := task.NewService(taskrepo.NewYAMLRepository(store), auditor, bus, timeout)

	return &hireFixture{
		handler:   NewHireHandler(bus, apps, jobs, companies, tasks),
		apps:      apps,
		appSvc:    application.NewService(apps, auditor, bus, timeout),
		jobs:      jobs,
		companies: companies,
		tasks:     tasks,
	}
}

func acceptedEvent(applicationID string) *eventbus.Event {
	return &eventbus.Event{
		Type:     eventbus.EventOfferResponded,
		EntityID: applicationID,
		Metadata: map[string]string{"response": string(application.OfferAccepted)},
	}
}

func TestHireHandler_AcceptedOffer(t *testing.T) {
	fx := newHireFixture(t)
	ctx := context.Background()

	c, err := fx.companies.Create(ctx, "Acme", hr)
	require.NoError(t, err)
	j, err := fx.jobs.Create(ctx, c.ID, "Backend Engineer", 1, hr)
	require.NoError(t, err)
	a, err := fx.appSvc.Create(ctx, application.CreateRequest{CandidateID: "cand-1", JobID: j.ID}, hr)
	require.NoError(t, err)

	fx.handler.handleAccepted(ctx, acceptedEvent(a.ID))

	gotJob, err := fx.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, gotJob.Hires, 1)
	assert.Equal(t, a.ID, gotJob.Hires[0].ApplicationID)
	assert.Equal(t, job.StatusClosed, gotJob.Status)

	gotCompany, err := fx.companies.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotCompany.TotalHires)

	// Redelivery of the same event is harmless.
	fx.handler.handleAccepted(ctx, acceptedEvent(a.ID))

	gotJob, err = fx.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, gotJob.Hires, 1)
	gotCompany, err = fx.companies.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotCompany.TotalHires)
}

func TestHireHandler_FailureFilesReconciliationTask(t *testing.T) {
	fx := newHireFixture(t)
	ctx := context.Background()

	// No such application: the handler cannot finish the bookkeeping, so it
	// leaves an urgent task for an operator instead.
	fx.handler.handleAccepted(ctx, acceptedEvent("missing-app"))

	tasks, total, err := fx.tasks.List(ctx, task.Filter{}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, task.PriorityUrgent, tasks[0].Priority)
	assert.Equal(t, "admin", tasks[0].AssigneeID)
	assert.Equal(t, "missing-app", tasks[0].Links.ApplicationID)
}
