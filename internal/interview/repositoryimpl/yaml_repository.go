package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/talentpipe/talentpipe/internal/interview"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

const interviewsPrefix = "interviews"

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
	return fmt.Sprintf("%s/%s.yaml", interviewsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, i *interview.Interview) error {
	unlock := r.locks.Lock(i.ID)
	defer unlock()

	exists, err := r.storage.Exists(ctx, path(i.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("interview", err)
	}
	if exists {
		return cerr.NewError(cerr.Conflict, "interview already exists", nil)
	}
	return r.write(ctx, i)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*interview.Interview, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("interview", err)
	}
	var i interview.Interview
	if err := yaml.Unmarshal(data, &i); err != nil {
		return nil, cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to unmarshal interview: %w", err))
	}
	return &i, nil
}

func (r *YAMLRepository) List(ctx context.Context, applicationID string, status interview.Status, limit, offset int) ([]*interview.Interview, int, error) {
	paths, err := r.storage.List(ctx, interviewsPrefix)
	if err != nil {
		return nil, 0, cerr.WrapStorageReadError("interviews", err)
	}

	sort.Strings(paths)

	var all []*interview.Interview
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var i interview.Interview
		if err := yaml.Unmarshal(data, &i); err != nil {
			continue
		}
		if applicationID != "" && i.ApplicationID != applicationID {
			continue
		}
		if status != "" && i.Status != status {
			continue
		}
		all = append(all, &i)
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

func (r *YAMLRepository) Update(ctx context.Context, i *interview.Interview) error {
	unlock := r.locks.Lock(i.ID)
	defer unlock()

	current, err := r.Get(ctx, i.ID)
	if err != nil {
		return err
	}
	if current.Version != i.Version {
		return cerr.NewFieldError(cerr.ConcurrentModification, "interview was modified concurrently", "version", current.Version)
	}
	i.Version++
	if err := r.write(ctx, i); err != nil {
		i.Version--
		return err
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, i *interview.Interview) error {
	data, err := yaml.Marshal(i)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal interview: %w", err))
	}
	if err := r.storage.Write(ctx, path(i.ID), data); err != nil {
		return cerr.WrapStorageWriteError("interview", err)
	}
	return nil
}
