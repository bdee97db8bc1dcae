package company

import "time"

type Company struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// TotalHires counts hires across all of the company's jobs. Updated by
	// the hire handler; the per-job hire lists remain the source of truth.
	TotalHires int `yaml:"total_hires"`

	// HiredApplicationIDs makes the counter idempotent under replayed
	// hire events.
	HiredApplicationIDs []string `yaml:"hired_application_ids,omitempty"`

	Version int64 `yaml:"version"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func (c *Company) HasHire(applicationID string) bool {
	for _, id := range c.HiredApplicationIDs {
		if id == applicationID {
			return true
		}
	}
	return false
}
