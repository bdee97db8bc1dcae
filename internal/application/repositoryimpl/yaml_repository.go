package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/talentpipe/talentpipe/internal/application"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

const applicationsPrefix = "applications"

type YAMLRepository struct {
	storage storage.Storage
	locks   *storage.KeyLock
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		storage: s,
		locks:   storage.NewKeyLock(),
	}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", applicationsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, a *application.Application) error {
	unlock := r.locks.Lock(a.ID)
	defer unlock()

	exists, err := r.storage.Exists(ctx, path(a.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("application", err)
	}
	if exists {
		return cerr.NewError(cerr.Conflict, "application already exists", nil)
	}
	return r.write(ctx, a)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*application.Application, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("application", err)
	}
	var a application.Application
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to unmarshal application: %w", err))
	}
	return &a, nil
}

func (r *YAMLRepository) FindByCandidateAndJob(ctx context.Context, candidateID, jobID string) (*application.Application, error) {
	all, _, err := r.List(ctx, candidateID, jobID, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, cerr.NewError(cerr.NotFound, "application not found", nil)
	}
	return all[0], nil
}

func (r *YAMLRepository) List(ctx context.Context, candidateID, jobID string, stage application.Stage, limit, offset int) ([]*application.Application, int, error) {
	paths, err := r.storage.List(ctx, applicationsPrefix)
	if err != nil {
		return nil, 0, cerr.WrapStorageReadError("applications", err)
	}

	sort.Strings(paths)

	var all []*application.Application
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var a application.Application
		if err := yaml.Unmarshal(data, &a); err != nil {
			continue
		}
		if candidateID != "" && a.CandidateID != candidateID {
			continue
		}
		if jobID != "" && a.JobID != jobID {
			continue
		}
		if stage != "" && a.Stage != stage {
			continue
		}
		all = append(all, &a)
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *YAMLRepository) Update(ctx context.Context, a *application.Application) error {
	unlock := r.locks.Lock(a.ID)
	defer unlock()

	current, err := r.Get(ctx, a.ID)
	if err != nil {
		return err
	}
	if current.Version != a.Version {
		return cerr.NewFieldError(cerr.ConcurrentModification, "application was modified concurrently", "version", current.Version)
	}
	a.Version++
	if err := r.write(ctx, a); err != nil {
		a.Version--
		return err
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, a *application.Application) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal application: %w", err))
	}
	if err := r.storage.Write(ctx, path(a.ID), data); err != nil {
		return cerr.WrapStorageWriteError("application", err)
	}
	return nil
}
