package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/talentpipe/talentpipe/internal/audit"
	auditrepo "github.com/talentpipe/talentpipe/internal/audit/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/company"
	companyrepo "github.com/talentpipe/talentpipe/internal/company/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/config"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/internal/job"
	jobrepo "github.com/talentpipe/talentpipe/internal/job/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/task"
	taskrepo "github.com/talentpipe/talentpipe/internal/task/repositoryimpl"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

var cliActor = identity.Actor{ID: "cli", Role: identity.RoleAdmin}

var (
	app = kingpin.New("talentpipe", "Recruitment pipeline administration tool")

	auditCmd = app.Command("audit", "Audit trail commands")

	auditSweepCmd = auditCmd.Command("sweep", "Delete audit entries past their retention date")

	auditListCmd    = auditCmd.Command("list", "List audit entries for an entity")
	auditListType   = auditListCmd.Arg("entity-type", "Entity type").Required().String()
	auditListEntity = auditListCmd.Arg("entity-id", "Entity ID").String()
	auditListLimit  = auditListCmd.Flag("limit", "Maximum entries to show").Default("50").Int()

	taskCmd = app.Command("task", "Task engine commands")

	taskRecurCmd = taskCmd.Command("recur", "Spawn missing successors for completed recurring tasks")

	jobCmd = app.Command("job", "Job commands")

	jobCreateCmd      = jobCmd.Command("create", "Create a job")
	jobCreateCompany  = jobCreateCmd.Arg("company-id", "Company ID").Required().String()
	jobCreateTitle    = jobCreateCmd.Arg("title", "Job title").Required().String()
	jobCreateOpenings = jobCreateCmd.Flag("openings", "Number of openings").Default("1").Int()

	companyCmd = app.Command("company", "Company commands")

	companyCreateCmd  = companyCmd.Command("create", "Create a company")
	companyCreateName = companyCreateCmd.Arg("name", "Company name").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	store, err := storage.NewLocalStorage(env.StorageEnv.BaseDir)
	if err != nil {
		fatal("failed to open storage: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case auditSweepCmd.FullCommand():
		handleAuditSweep(ctx, env, store)
	case auditListCmd.FullCommand():
		handleAuditList(ctx, store, *auditListType, *auditListEntity, *auditListLimit)
	case taskRecurCmd.FullCommand():
		handleTaskRecur(ctx, env, store)
	case jobCreateCmd.FullCommand():
		handleJobCreate(ctx, env, store, *jobCreateCompany, *jobCreateTitle, *jobCreateOpenings)
	case companyCreateCmd.FullCommand():
		handleCompanyCreate(ctx, env, store, *companyCreateName)
	}
}

func newAuditor(env *config.Env, store storage.Storage) (*audit.Writer, audit.Repository) {
	repo := auditrepo.NewYAMLRepository(store)
	return audit.NewWriter(repo, audit.NewClassifier(), env.RetentionDefault), repo
}

func handleAuditSweep(ctx context.Context, env *config.Env, store storage.Storage) {
	_, repo := newAuditor(env, store)
	sweeper := audit.NewSweeper(repo, env.SweepInterval)
	removed, err := sweeper.RunOnce(ctx)
	if err != nil {
		fatal("sweep failed: %v", err)
	}
	color.Green("removed %d expired audit entries", removed)
}

func handleAuditList(ctx context.Context, store storage.Storage, entityType, entityID string, limit int) {
	repo := auditrepo.NewYAMLRepository(store)
	entries, total, err := repo.List(ctx, entityType, entityID, limit, 0)
	if err != nil {
		fatal("list failed: %v", err)
	}
	for _, e := range entries {
		risk := color.GreenString(string(e.Risk))
		switch e.Risk {
		case audit.RiskMedium:
			risk = color.YellowString(string(e.Risk))
		case audit.RiskHigh, audit.RiskCritical:
			risk = color.RedString(string(e.Risk))
		}
		status := color.GreenString("ok")
		if !e.Success {
			status = color.RedString("failed")
		}
		fmt.Printf("%s  %-28s %-8s %s  %s/%s  actor=%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Action, risk, status, e.EntityType, e.EntityID, e.Actor.ID)
	}
	fmt.Printf("%d of %d entries\n", len(entries), total)
}

// handleTaskRecur is the catch-up path for recurrence: completed recurring
// tasks whose successor was never created (e.g. the process died between the
// two writes) get their successor spawned here.
func handleTaskRecur(ctx context.Context, env *config.Env, store storage.Storage) {
	auditor, _ := newAuditor(env, store)
	repo := taskrepo.NewYAMLRepository(store)
	svc := task.NewService(repo, auditor, eventbus.New(), env.StoreTimeout)

	tasks, _, err := repo.List(ctx, task.Filter{Status: task.StatusDone}, 0, 0)
	if err != nil {
		fatal("failed to list tasks: %v", err)
	}

	spawned := 0
	for _, t := range tasks {
		created, err := svc.SpawnMissedRecurrence(ctx, t.ID, identity.System)
		if err != nil {
			color.Red("task %s: %v", t.ID, err)
			continue
		}
		if created != nil {
			color.Green("task %s -> spawned %s (due %s)", t.ID, created.ID, created.DueDate.Format("2006-01-02"))
			spawned++
		}
	}
	fmt.Printf("spawned %d successor tasks\n", spawned)
}

func handleJobCreate(ctx context.Context, env *config.Env, store storage.Storage, companyID, title string, openings int) {
	auditor, _ := newAuditor(env, store)
	svc := job.NewService(jobrepo.NewYAMLRepository(store), auditor, env.StoreTimeout)
	j, err := svc.Create(ctx, companyID, title, openings, cliActor)
	if err != nil {
		fatal("failed to create job: %v", err)
	}
	color.Green("created job %s (%s, %d openings)", j.ID, j.Title, j.Openings)
}

func handleCompanyCreate(ctx context.Context, env *config.Env, store storage.Storage, name string) {
	auditor, _ := newAuditor(env, store)
	svc := company.NewService(companyrepo.NewYAMLRepository(store), auditor, env.StoreTimeout)
	c, err := svc.Create(ctx, name, cliActor)
	if err != nil {
		fatal("failed to create company: %v", err)
	}
	color.Green("created company %s (%s)", c.ID, c.Name)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, color.RedString(format)+"\n", args...)
	os.Exit(1)
}
