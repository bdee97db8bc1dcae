package assignment

import "time"

// AgentAssignment is the single record per agent listing the HR users and
// candidates that agent works with. Upserts merge, never replace.
type AgentAssignment struct {
	AgentID      string   `yaml:"agent_id"`
	HRIDs        []string `yaml:"hr_ids,omitempty"`
	CandidateIDs []string `yaml:"candidate_ids,omitempty"`

	Version int64 `yaml:"version"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func (a *AgentAssignment) OwnsCandidate(candidateID string) bool {
	for _, id := range a.CandidateIDs {
		if id == candidateID {
			return true
		}
	}
	return false
}

// CandidateStatus is the lifecycle of a routed candidate.
type CandidateStatus string

const (
	StatusActive    CandidateStatus = "active"
	StatusCompleted CandidateStatus = "completed"
	StatusRejected  CandidateStatus = "rejected"
	StatusWithdrawn CandidateStatus = "withdrawn"
)

func (s CandidateStatus) IsTerminal() bool {
	return s != StatusActive
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// CandidateAssignment records one routing of a candidate to an HR user,
// optionally scoped to a job. At most one may be active per
// (candidate, HR, job) tuple.
type CandidateAssignment struct {
	ID          string `yaml:"id"`
	CandidateID string `yaml:"candidate_id"`
	HRID        string `yaml:"hr_id"`
	AgentID     string `yaml:"agent_id"`
	JobID       string `yaml:"job_id,omitempty"`

	Status   CandidateStatus `yaml:"status"`
	Priority Priority        `yaml:"priority"`

	DueDate *time.Time `yaml:"due_date,omitempty"`

	Feedback string `yaml:"feedback,omitempty"`
	Reason   string `yaml:"reason,omitempty"`

	ClosedAt *time.Time `yaml:"closed_at,omitempty"`
	ClosedBy string     `yaml:"closed_by,omitempty"`

	Version int64 `yaml:"version"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}
