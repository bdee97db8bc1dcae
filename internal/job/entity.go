package job

import "time"

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// HireRecord marks one filled opening. Keyed by application id so a
// replayed offer-acceptance event cannot double-count.
type HireRecord struct {
	ApplicationID string    `yaml:"application_id"`
	CandidateID   string    `yaml:"candidate_id"`
	HiredAt       time.Time `yaml:"hired_at"`
}

type Job struct {
	ID        string `yaml:"id"`
	CompanyID string `yaml:"company_id"`
	Title     string `yaml:"title"`

	Status   Status `yaml:"status"`
	Openings int    `yaml:"openings"`

	Hires []HireRecord `yaml:"hires,omitempty"`

	Version int64 `yaml:"version"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func (j *Job) HasHire(applicationID string) bool {
	for _, h := range j.Hires {
		if h.ApplicationID == applicationID {
			return true
		}
	}
	return false
}

func (j *Job) Filled() bool {
	return j.Openings > 0 && len(j.Hires) >= j.Openings
}
