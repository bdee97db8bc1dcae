package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/talentpipe/talentpipe/internal/application"
	applicationrepo "github.com/talentpipe/talentpipe/internal/application/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/assignment"
	assignmentrepo "github.com/talentpipe/talentpipe/internal/assignment/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/audit"
	auditrepo "github.com/talentpipe/talentpipe/internal/audit/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/company"
	companyrepo "github.com/talentpipe/talentpipe/internal/company/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/config"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/interview"
	interviewrepo "github.com/talentpipe/talentpipe/internal/interview/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/job"
	jobrepo "github.com/talentpipe/talentpipe/internal/job/repositoryimpl"
	"github.com/talentpipe/talentpipe/internal/notify"
	"github.com/talentpipe/talentpipe/internal/pipeline"
	"github.com/talentpipe/talentpipe/internal/task"
	taskrepo "github.com/talentpipe/talentpipe/internal/task/repositoryimpl"
	"github.com/talentpipe/talentpipe/pkg/clog"
	"github.com/talentpipe/talentpipe/pkg/panicerr"
	"github.com/talentpipe/talentpipe/pkg/storage"

	server "github.com/talentpipe/talentpipe/internal"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup audit trail
	classifier := audit.NewClassifier()
	if env.RiskRulesPath != "" {
		if err := classifier.LoadFile(env.RiskRulesPath); err != nil {
			slog.Error("failed to load risk rules", "path", env.RiskRulesPath, "error", err)
			os.Exit(1)
		}
	}
	auditRepo := auditrepo.NewYAMLRepository(store)
	auditor := audit.NewWriter(auditRepo, classifier, env.RetentionDefault)
	sweeper := audit.NewSweeper(auditRepo, env.SweepInterval)

	// Setup repositories
	appRepo := applicationrepo.NewYAMLRepository(store)
	interviewRepo := interviewrepo.NewYAMLRepository(store)
	taskRepo := taskrepo.NewYAMLRepository(store)
	agentRepo := assignmentrepo.NewAgentYAMLRepository(store)
	candidateRepo := assignmentrepo.NewCandidateYAMLRepository(store)
	jobRepo := jobrepo.NewYAMLRepository(store)
	companyRepo := companyrepo.NewYAMLRepository(store)

	// Setup services
	timeout := env.StoreTimeout
	appService := application.NewService(appRepo, auditor, bus, timeout)
	interviewService := interview.NewService(interviewRepo, appRepo, auditor, bus, timeout)
	taskService := task.NewService(taskRepo, auditor, bus, timeout)
	assignmentService := assignment.NewService(agentRepo, candidateRepo, auditor, bus, timeout)
	jobService := job.NewService(jobRepo, auditor, timeout)
	companyService := company.NewService(companyRepo, auditor, timeout)

	facade := pipeline.NewFacade(appService, interviewService, taskService, assignmentService, env.RetryAttempts)

	// Setup event handlers
	hireHandler := pipeline.NewHireHandler(bus, appRepo, jobService, companyService, taskService)
	interviewHandler := pipeline.NewInterviewHandler(bus, facade, env.AdvanceOnInterviewComplete)
	notifyDispatcher := notify.NewDispatcher(bus, notify.NewLogNotifier())

	srv := server.NewServer(env, store, auditRepo)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	wg := conc.NewWaitGroup()
	wg.Go(func() { hireHandler.Start(ctx) })
	wg.Go(func() { interviewHandler.Start(ctx) })
	wg.Go(func() { notifyDispatcher.Start(ctx) })
	wg.Go(func() { sweeper.Start(ctx) })

	if env.RiskRulesPath != "" {
		watch := panicerr.SafeContext(func(ctx context.Context) error {
			return classifier.Watch(ctx, env.RiskRulesPath)
		})
		wg.Go(func() {
			if err := watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("risk rule watcher stopped", "error", err)
			}
		})
	}

	wg.Go(func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	})

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	wg.Wait()
}
