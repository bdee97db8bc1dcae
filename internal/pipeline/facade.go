package pipeline

import (
	"context"
	"time"

	"github.com/talentpipe/talentpipe/internal/application"
	"github.com/talentpipe/talentpipe/internal/assignment"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/internal/interview"
	"github.com/talentpipe/talentpipe/internal/task"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

// Facade is the single entry point callers use for pipeline mutations. It
// retries ConcurrentModification a bounded number of times; the underlying
// services re-read the entity on every attempt, so each retry sees fresh
// state. Timeouts are never retried.
type Facade struct {
	Applications *application.Service
	Interviews   *interview.Service
	Tasks        *task.Service
	Assignments  *assignment.Service

	retryAttempts int
}

func NewFacade(apps *application.Service, interviews *interview.Service, tasks *task.Service, assignments *assignment.Service, retryAttempts int) *Facade {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &Facade{
		Applications:  apps,
		Interviews:    interviews,
		Tasks:         tasks,
		Assignments:   assignments,
		retryAttempts: retryAttempts,
	}
}

func retry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var err error
	for i := 0; i < attempts; i++ {
		var v T
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if !cerr.IsCode(err, cerr.ConcurrentModification) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, err
		}
	}
	return zero, err
}

func (f *Facade) AdvanceStage(ctx context.Context, id string, stage application.Stage, status application.Status, actor identity.Actor, note string) (*application.Application, error) {
	return retry(ctx, f.retryAttempts, func() (*application.Application, error) {
		return f.Applications.AdvanceStage(ctx, id, stage, status, actor, note)
	})
}

func (f *Facade) RejectApplication(ctx context.Context, id, reason string, actor identity.Actor) (*application.Application, error) {
	return retry(ctx, f.retryAttempts, func() (*application.Application, error) {
		return f.Applications.Reject(ctx, id, reason, actor)
	})
}

func (f *Facade) WithdrawApplication(ctx context.Context, id, reason string, actor identity.Actor) (*application.Application, error) {
	return retry(ctx, f.retryAttempts, func() (*application.Application, error) {
		return f.Applications.Withdraw(ctx, id, reason, actor)
	})
}

func (f *Facade) SendOffer(ctx context.Context, id string, in application.OfferInput, actor identity.Actor) (*application.Application, error) {
	return retry(ctx, f.retryAttempts, func() (*application.Application, error) {
		return f.Applications.SendOffer(ctx, id, in, actor)
	})
}

func (f *Facade) RespondToOffer(ctx context.Context, id string, response application.OfferResponse, note string, actor identity.Actor) (*application.Application, error) {
	return retry(ctx, f.retryAttempts, func() (*application.Application, error) {
		return f.Applications.RespondToOffer(ctx, id, response, note, actor)
	})
}

func (f *Facade) MarkAsViewed(ctx context.Context, id string, actor identity.Actor) (*application.Application, error) {
	return retry(ctx, f.retryAttempts, func() (*application.Application, error) {
		return f.Applications.MarkAsViewed(ctx, id, actor)
	})
}

func (f *Facade) RescheduleInterview(ctx context.Context, id string, newTime time.Time, reason string, actor identity.Actor) (*interview.Interview, error) {
	return retry(ctx, f.retryAttempts, func() (*interview.Interview, error) {
		return f.Interviews.Reschedule(ctx, id, newTime, reason, actor)
	})
}

func (f *Facade) CompleteInterview(ctx context.Context, id string, actor identity.Actor) (*interview.Interview, error) {
	return retry(ctx, f.retryAttempts, func() (*interview.Interview, error) {
		return f.Interviews.Complete(ctx, id, actor)
	})
}

func (f *Facade) AddInterviewFeedback(ctx context.Context, id string, fb interview.Feedback, actor identity.Actor) (*interview.Interview, error) {
	return retry(ctx, f.retryAttempts, func() (*interview.Interview, error) {
		return f.Interviews.AddFeedback(ctx, id, fb, actor)
	})
}

func (f *Facade) UpdateTaskStatus(ctx context.Context, id string, to task.Status, actor identity.Actor) (*task.Task, error) {
	return retry(ctx, f.retryAttempts, func() (*task.Task, error) {
		return f.Tasks.UpdateStatus(ctx, id, to, actor)
	})
}

func (f *Facade) ToggleChecklistItem(ctx context.Context, id, itemID string, actor identity.Actor) (*task.Task, error) {
	return retry(ctx, f.retryAttempts, func() (*task.Task, error) {
		return f.Tasks.ToggleChecklistItem(ctx, id, itemID, actor)
	})
}

func (f *Facade) AddChecklistItem(ctx context.Context, id, text string, actor identity.Actor) (*task.Task, error) {
	return retry(ctx, f.retryAttempts, func() (*task.Task, error) {
		return f.Tasks.AddChecklistItem(ctx, id, text, actor)
	})
}

func (f *Facade) RemoveChecklistItem(ctx context.Context, id, itemID string, actor identity.Actor) (*task.Task, error) {
	return retry(ctx, f.retryAttempts, func() (*task.Task, error) {
		return f.Tasks.RemoveChecklistItem(ctx, id, itemID, actor)
	})
}

func (f *Facade) AddTimeEntry(ctx context.Context, id string, start, end time.Time, description string, actor identity.Actor) (*task.Task, error) {
	return retry(ctx, f.retryAttempts, func() (*task.Task, error) {
		return f.Tasks.AddTimeEntry(ctx, id, start, end, description, actor)
	})
}

func (f *Facade) CompleteTask(ctx context.Context, id string, actor identity.Actor) (*task.Task, error) {
	return retry(ctx, f.retryAttempts, func() (*task.Task, error) {
		return f.Tasks.Complete(ctx, id, actor)
	})
}

func (f *Facade) CompleteAssignment(ctx context.Context, id, feedback string, actor identity.Actor) (*assignment.CandidateAssignment, error) {
	return retry(ctx, f.retryAttempts, func() (*assignment.CandidateAssignment, error) {
		return f.Assignments.MarkCompleted(ctx, id, feedback, actor)
	})
}

func (f *Facade) RejectAssignment(ctx context.Context, id, reason string, actor identity.Actor) (*assignment.CandidateAssignment, error) {
	return retry(ctx, f.retryAttempts, func() (*assignment.CandidateAssignment, error) {
		return f.Assignments.Reject(ctx, id, reason, actor)
	})
}

func (f *Facade) WithdrawAssignment(ctx context.Context, id, reason string, actor identity.Actor) (*assignment.CandidateAssignment, error) {
	return retry(ctx, f.retryAttempts, func() (*assignment.CandidateAssignment, error) {
		return f.Assignments.Withdraw(ctx, id, reason, actor)
	})
}

func (f *Facade) AssignAgent(ctx context.Context, agentID string, hrIDs, candidateIDs, removeHRIDs, removeCandidateIDs []string, actor identity.Actor) (*assignment.AgentAssignment, error) {
	return retry(ctx, f.retryAttempts, func() (*assignment.AgentAssignment, error) {
		return f.Assignments.AssignAgent(ctx, agentID, hrIDs, candidateIDs, removeHRIDs, removeCandidateIDs, actor)
	})
}
