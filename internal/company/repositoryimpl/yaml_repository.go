package repositoryimpl

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/talentpipe/talentpipe/internal/company"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

const companiesPrefix = "companies"

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
	return fmt.Sprintf("%s/%s.yaml", companiesPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, c *company.Company) error {
	unlock := r.locks.Lock(c.ID)
	defer unlock()

	exists, err := r.storage.Exists(ctx, path(c.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("company", err)
	}
	if exists {
		return cerr.NewError(cerr.Conflict, "company already exists", nil)
	}
	return r.write(ctx, c)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*company.Company, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("company", err)
	}
	var c company.Company
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to unmarshal company: %w", err))
	}
	return &c, nil
}

func (r *YAMLRepository) Update(ctx context.Context, c *company.Company) error {
	unlock := r.locks.Lock(c.ID)
	defer unlock()

	current, err := r.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if current.Version != c.Version {
		return cerr.NewFieldError(cerr.ConcurrentModification, "company was modified concurrently", "version", current.Version)
	}
	c.Version++
	if err := r.write(ctx, c); err != nil {
		c.Version--
		return err
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, c *company.Company) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal company: %w", err))
	}
	if err := r.storage.Write(ctx, path(c.ID), data); err != nil {
		return cerr.WrapStorageWriteError("company", err)
	}
	return nil
}
