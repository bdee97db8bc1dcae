package job

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/talentpipe/talentpipe/internal/audit"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

const EntityType = "job"

type Service struct {
	repo         Repository
	auditor      *audit.Writer
	storeTimeout time.Duration
}

func NewService(repo Repository, auditor *audit.Writer, storeTimeout time.Duration) *Service {
	return &Service{
		repo:         repo,
		auditor:      auditor,
		storeTimeout: storeTimeout,
	}
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *Service) Create(ctx context.Context, companyID, title string, openings int, actor identity.Actor) (*Job, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if title == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "title is required", "title", title)
	}
	if openings < 1 {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "openings must be at least 1", "openings", openings)
	}

	now := time.Now()
	j := &Job{
		ID:        ulid.Make().String(),
		CompanyID: companyID,
		Title:     title,
		Status:    StatusOpen,
		Openings:  openings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.auditor.Write(ctx, audit.Record{
		Actor:      actor,
		Action:     audit.ActionJobCreate,
		EntityType: EntityType,
		EntityID:   j.ID,
		After:      j,
		Success:    true,
		Context:    audit.RequestContextFrom(ctx),
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// RecordHire appends a hire record for the application and closes the job
// once all openings are filled. Replays are no-ops: the hire list is keyed
// by application id.
func (s *Service) RecordHire(ctx context.Context, jobID, applicationID, candidateID string, actor identity.Actor) (*Job, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	j, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.HasHire(applicationID) {
		return j, nil
	}

	before := audit.Snapshot(j)
	now := time.Now()
	j.Hires = append(j.Hires, HireRecord{
		ApplicationID: applicationID,
		CandidateID:   candidateID,
		HiredAt:       now,
	})
	if j.Filled() {
		j.Status = StatusClosed
	}
	j.UpdatedAt = now

	rec := audit.Record{
		Actor:      actor,
		Action:     audit.ActionJobHireRecorded,
		EntityType: EntityType,
		EntityID:   j.ID,
		Before:     before,
		After:      j,
		Success:    true,
		Duration:   time.Since(start),
		Context:    audit.RequestContextFrom(ctx),
	}
	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, j); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return nil, err
	}
	return j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, companyID string, status Status) ([]*Job, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.List(ctx, companyID, status)
}
