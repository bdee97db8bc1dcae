package application

import (
	"time"

	"github.com/talentpipe/talentpipe/internal/identity"
)

// Application is one candidate's candidacy for one job. It is never
// physically deleted; withdrawal and rejection are terminal phases kept for
// legal retention.
type Application struct {
	ID          string `yaml:"id"`
	CandidateID string `yaml:"candidate_id"`
	JobID       string `yaml:"job_id"`

	Stage  Stage  `yaml:"stage"`
	Status Status `yaml:"status"`

	// Rating is 1-5, 0 meaning unrated.
	Rating int `yaml:"rating,omitempty"`

	Notes []Note `yaml:"notes,omitempty"`

	// StageHistory is append-only. Existing entries are never edited or
	// removed; every phase change appends exactly one entry.
	StageHistory []StageHistoryEntry `yaml:"stage_history"`

	Offer *Offer `yaml:"offer,omitempty"`

	ViewedByEmployer bool       `yaml:"viewed_by_employer"`
	ViewedAt         *time.Time `yaml:"viewed_at,omitempty"`

	LastActivityAt time.Time `yaml:"last_activity_at"`

	Source     string `yaml:"source,omitempty"`
	ReferrerID string `yaml:"referrer_id,omitempty"`

	// Version is the optimistic concurrency token; repositories reject
	// updates whose version does not match the stored document.
	Version int64 `yaml:"version"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

type Note struct {
	ID        string    `yaml:"id"`
	Content   string    `yaml:"content"`
	AuthorID  string    `yaml:"author_id"`
	Internal  bool      `yaml:"internal"`
	CreatedAt time.Time `yaml:"created_at"`
}

type StageHistoryEntry struct {
	Stage     Stage          `yaml:"stage"`
	Status    Status         `yaml:"status"`
	Actor     identity.Actor `yaml:"actor"`
	Note      string         `yaml:"note,omitempty"`
	CreatedAt time.Time      `yaml:"created_at"`
}

// OfferResponse is the candidate's reply to an extended offer.
type OfferResponse string

const (
	OfferAccepted    OfferResponse = "accepted"
	OfferRejected    OfferResponse = "rejected"
	OfferNegotiating OfferResponse = "negotiating"
)

func (r OfferResponse) IsValid() bool {
	switch r {
	case OfferAccepted, OfferRejected, OfferNegotiating:
		return true
	default:
		return false
	}
}

type Offer struct {
	Salary      int64         `yaml:"salary"`
	Currency    string        `yaml:"currency"`
	StartDate   *time.Time    `yaml:"start_date,omitempty"`
	Benefits    []string      `yaml:"benefits,omitempty"`
	ExpiresAt   *time.Time    `yaml:"expires_at,omitempty"`
	SentAt      *time.Time    `yaml:"sent_at,omitempty"`
	Response    OfferResponse `yaml:"response,omitempty"`
	RespondedAt *time.Time    `yaml:"responded_at,omitempty"`
	Note        string        `yaml:"note,omitempty"`
}

// Phase returns the current (stage, status) pair.
func (a *Application) Phase() Phase {
	return Phase{Stage: a.Stage, Status: a.Status}
}

// IsTerminal reports whether the application can no longer move.
func (a *Application) IsTerminal() bool {
	switch a.Stage {
	case StageHired, StageRejected, StageWithdrawn:
		return true
	default:
		return false
	}
}

// moveTo applies a phase change: it updates the pair, appends the history
// entry and touches the activity timestamps. Validation is the caller's job.
func (a *Application) moveTo(p Phase, actor identity.Actor, note string, now time.Time) {
	a.Stage = p.Stage
	a.Status = p.Status
	a.StageHistory = append(a.StageHistory, StageHistoryEntry{
		Stage:     p.Stage,
		Status:    p.Status,
		Actor:     actor,
		Note:      note,
		CreatedAt: now,
	})
	a.LastActivityAt = now
	a.UpdatedAt = now
}
