package company

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/talentpipe/talentpipe/internal/audit"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

const EntityType = "company"

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

func (s *Service) Create(ctx context.Context, name string, actor identity.Actor) (*Company, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if name == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "name is required", "name", name)
	}

	now := time.Now()
	c := &Company{
		ID:        ulid.Make().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.auditor.Write(ctx, audit.Record{
		Actor:      actor,
		Action:     audit.ActionCompanyCreate,
		EntityType: EntityType,
		EntityID:   c.ID,
		After:      c,
		Success:    true,
		Context:    audit.RequestContextFrom(ctx),
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordHire increments the company hire counter for one application.
// Replays are no-ops.
func (s *Service) RecordHire(ctx context.Context, companyID, applicationID string, actor identity.Actor) (*Company, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	c, err := s.repo.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c.HasHire(applicationID) {
		return c, nil
	}

	before := audit.Snapshot(c)
	c.TotalHires++
	c.HiredApplicationIDs = append(c.HiredApplicationIDs, applicationID)
	c.UpdatedAt = time.Now()

	rec := audit.Record{
		Actor:      actor,
		Action:     audit.ActionCompanyHiresAdjusted,
		EntityType: EntityType,
		EntityID:   c.ID,
		Before:     before,
		After:      c,
		Success:    true,
		Duration:   time.Since(start),
		Context:    audit.RequestContextFrom(ctx),
	}
	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Company, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.Get(ctx, id)
}
