package audit

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

// Record is the input to Write. Before and After are the entity values
// around the mutation; the writer snapshots and diffs them itself.
type Record struct {
	Actor        identity.Actor
	Action       Action
	EntityType   string
	EntityID     string
	Before       any
	After        any
	Process      string
	Context      RequestContext
	Success      bool
	ErrorCode    string
	ErrorMessage string
	Duration     time.Duration
}

// Writer builds and persists audit entries. A failed audit write is escalated
// to the caller: the business operation it belongs to must fail with it.
type Writer struct {
	repo       Repository
	classifier *Classifier
	retention  time.Duration
}

func NewWriter(repo Repository, classifier *Classifier, retention time.Duration) *Writer {
	return &Writer{
		repo:       repo,
		classifier: classifier,
		retention:  retention,
	}
}

// Write persists one entry. The risk level is always computed here, never
// taken from the caller.
func (w *Writer) Write(ctx context.Context, rec Record) (*Entry, error) {
	before := Snapshot(rec.Before)
	after := Snapshot(rec.After)
	changes := Diff(before, after)

	now := time.Now()
	entry := &Entry{
		ID:             ulid.Make().String(),
		Actor:          rec.Actor,
		Action:         rec.Action,
		EntityType:     rec.EntityType,
		EntityID:       rec.EntityID,
		Before:         before,
		After:          after,
		Changes:        changes,
		Risk:           w.classifier.Classify(rec.Action, rec.EntityType, changes),
		Process:        rec.Process,
		Success:        rec.Success,
		ErrorCode:      rec.ErrorCode,
		ErrorMessage:   rec.ErrorMessage,
		Duration:       rec.Duration,
		Context:        rec.Context,
		CreatedAt:      now,
		RetentionUntil: now.Add(w.retention),
	}

	if err := w.repo.Create(ctx, entry); err != nil {
		return nil, cerr.NewError(cerr.Internal, "audit write failed", err)
	}
	return entry, nil
}

// WriteFailure appends a failure entry for an attempted mutation. Best
// effort from the caller's perspective: the original error is what surfaces.
func (w *Writer) WriteFailure(ctx context.Context, rec Record, cause error) {
	rec.Success = false
	rec.ErrorCode = cerr.CodeOf(cause).String()
	if cause != nil {
		rec.ErrorMessage = cause.Error()
	}
	_, _ = w.Write(ctx, rec)
}
