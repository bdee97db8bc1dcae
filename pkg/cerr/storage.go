package cerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/talentpipe/talentpipe/pkg/storage"
)

func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(Timeout, fmt.Sprintf("reading %s timed out", target), err)
	}
	return NewError(Internal, "storage error", fmt.Errorf("failed to read %s: %w", target, err))
}

func WrapStorageWriteError(target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(Timeout, fmt.Sprintf("writing %s timed out", target), err)
	}
	return NewError(Internal, "storage error", fmt.Errorf("failed to write %s: %w", target, err))
}

func WrapStorageDeleteError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(Timeout, fmt.Sprintf("deleting %s timed out", target), err)
	}
	return NewError(Internal, "storage error", fmt.Errorf("failed to delete %s: %w", target, err))
}
