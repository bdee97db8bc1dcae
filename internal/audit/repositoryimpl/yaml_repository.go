package repositoryimpl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talentpipe/talentpipe/internal/audit"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

const auditPrefix = "audit"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", auditPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, e *audit.Entry) error {
	exists, err := r.storage.Exists(ctx, path(e.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("audit entry", err)
	}
	if exists {
		return cerr.NewError(cerr.Conflict, "audit entry already exists", nil)
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal audit entry: %w", err))
	}
	if err := r.storage.Write(ctx, path(e.ID), data); err != nil {
		return cerr.WrapStorageWriteError("audit entry", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*audit.Entry, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("audit entry", err)
	}
	var e audit.Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to unmarshal audit entry: %w", err))
	}
	return &e, nil
}

func (r *YAMLRepository) List(ctx context.Context, entityType, entityID string, limit, offset int) ([]*audit.Entry, int, error) {
	all, err := r.readAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	var filtered []*audit.Entry
	for _, e := range all {
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		if entityID != "" && e.EntityID != entityID {
			continue
		}
		filtered = append(filtered, e)
	}

	total := len(filtered)
	if offset >= total {
		return nil, total, nil
	}
	filtered = filtered[offset:]
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, total, nil
}

func (r *YAMLRepository) ListExpired(ctx context.Context, now time.Time) ([]*audit.Entry, error) {
	all, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}
	var expired []*audit.Entry
	for _, e := range all {
		if !e.RetentionUntil.IsZero() && e.RetentionUntil.Before(now) {
			expired = append(expired, e)
		}
	}
	return expired, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("audit entry", err)
	}
	return nil
}

func (r *YAMLRepository) readAll(ctx context.Context) ([]*audit.Entry, error) {
	paths, err := r.storage.List(ctx, auditPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("audit entries", err)
	}

	// ULIDs are lexicographically time-ordered, so sorted paths give
	// chronological order.
	sort.Strings(paths)

	var all []*audit.Entry
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var e audit.Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			continue
		}
		all = append(all, &e)
	}
	return all, nil
}
