package interview

import (
	"time"

	"github.com/talentpipe/talentpipe/internal/identity"
)

// Status is the interview lifecycle state. Completed and cancelled are
// terminal; scheduled and confirmed can loop on themselves via reschedule.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Type is the interview format.
type Type string

const (
	TypePhone     Type = "phone"
	TypeVideo     Type = "video"
	TypeOnsite    Type = "onsite"
	TypeTechnical Type = "technical"
	TypeHR        Type = "hr"
)

// Recommendation is an interviewer's hiring verdict.
type Recommendation string

const (
	RecommendStrongHire Recommendation = "strong_hire"
	RecommendHire       Recommendation = "hire"
	RecommendNoHire     Recommendation = "no_hire"
	RecommendStrongNo   Recommendation = "strong_no_hire"
)

type Feedback struct {
	InterviewerID  string         `yaml:"interviewer_id"`
	Rating         int            `yaml:"rating"`
	Recommendation Recommendation `yaml:"recommendation,omitempty"`
	Comments       string         `yaml:"comments,omitempty"`
	SubmittedAt    time.Time      `yaml:"submitted_at"`
}

type RescheduleEntry struct {
	PreviousTime time.Time      `yaml:"previous_time"`
	NewTime      time.Time      `yaml:"new_time"`
	Reason       string         `yaml:"reason,omitempty"`
	Actor        identity.Actor `yaml:"actor"`
	CreatedAt    time.Time      `yaml:"created_at"`
}

type FollowUp struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	DueDate     *time.Time `yaml:"due_date,omitempty"`
	Completed   bool       `yaml:"completed"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
}

// Interview is one scheduled meeting tied to exactly one application.
type Interview struct {
	ID            string `yaml:"id"`
	ApplicationID string `yaml:"application_id"`

	Type  Type `yaml:"type"`
	Round int  `yaml:"round"`

	ScheduledAt     time.Time `yaml:"scheduled_at"`
	DurationMinutes int       `yaml:"duration_minutes"`

	Interviewers []string `yaml:"interviewers"`

	Status Status `yaml:"status"`

	Feedback []Feedback `yaml:"feedback,omitempty"`

	// RescheduleHistory is append-only; a reschedule never rewrites an
	// existing entry.
	RescheduleHistory []RescheduleEntry `yaml:"reschedule_history,omitempty"`

	ActualStartAt *time.Time `yaml:"actual_start_at,omitempty"`
	ActualEndAt   *time.Time `yaml:"actual_end_at,omitempty"`

	FollowUps []FollowUp `yaml:"follow_ups,omitempty"`

	Version int64 `yaml:"version"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// AverageRating recomputes the mean feedback rating on every call; it is
// never stored, so it cannot drift from the feedback list.
func (i *Interview) AverageRating() float64 {
	if len(i.Feedback) == 0 {
		return 0
	}
	sum := 0
	for _, f := range i.Feedback {
		sum += f.Rating
	}
	return float64(sum) / float64(len(i.Feedback))
}

// HasFeedbackFrom reports whether the interviewer already submitted.
func (i *Interview) HasFeedbackFrom(interviewerID string) bool {
	for _, f := range i.Feedback {
		if f.InterviewerID == interviewerID {
			return true
		}
	}
	return false
}

func (i *Interview) hasInterviewer(id string) bool {
	for _, iv := range i.Interviewers {
		if iv == id {
			return true
		}
	}
	return false
}
