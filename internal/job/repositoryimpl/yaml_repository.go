package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/talentpipe/talentpipe/internal/job"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

const jobsPrefix = "jobs"

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
	return fmt.Sprintf("%s/%s.yaml", jobsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, j *job.Job) error {
	unlock := r.locks.Lock(j.ID)
	defer unlock()

	exists, err := r.storage.Exists(ctx, path(j.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("job", err)
	}
	if exists {
		return cerr.NewError(cerr.Conflict, "job already exists", nil)
	}
	return r.write(ctx, j)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*job.Job, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("job", err)
	}
	var j job.Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to unmarshal job: %w", err))
	}
	return &j, nil
}

func (r *YAMLRepository) List(ctx context.Context, companyID string, status job.Status) ([]*job.Job, error) {
	paths, err := r.storage.List(ctx, jobsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("jobs", err)
	}
	sort.Strings(paths)

	var all []*job.Job
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var j job.Job
		if err := yaml.Unmarshal(data, &j); err != nil {
			continue
		}
		if companyID != "" && j.CompanyID != companyID {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		all = append(all, &j)
	}
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, j *job.Job) error {
	unlock := r.locks.Lock(j.ID)
	defer unlock()

	current, err := r.Get(ctx, j.ID)
	if err != nil {
		return err
	}
	if current.Version != j.Version {
		return cerr.NewFieldError(cerr.ConcurrentModification, "job was modified concurrently", "version", current.Version)
	}
	j.Version++
	if err := r.write(ctx, j); err != nil {
		j.Version--
		return err
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, j *job.Job) error {
	data, err := yaml.Marshal(j)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal job: %w", err))
	}
	if err := r.storage.Write(ctx, path(j.ID), data); err != nil {
		return cerr.WrapStorageWriteError("job", err)
	}
	return nil
}
