package task

import "time"

// Status is the task lifecycle state.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// statusTransitions is the allow-list of status moves.
var statusTransitions = map[Status][]Status{
	StatusTodo:       {StatusInProgress, StatusDone, StatusCancelled},
	StatusInProgress: {StatusDone, StatusCancelled},
	StatusDone:       {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type ChecklistItem struct {
	ID          string     `yaml:"id"`
	Text        string     `yaml:"text"`
	Completed   bool       `yaml:"completed"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	CompletedBy string     `yaml:"completed_by,omitempty"`
}

type TimeEntry struct {
	ID              string    `yaml:"id"`
	Start           time.Time `yaml:"start"`
	End             time.Time `yaml:"end"`
	DurationMinutes int       `yaml:"duration_minutes"`
	Description     string    `yaml:"description,omitempty"`
	LoggerID        string    `yaml:"logger_id"`
	CreatedAt       time.Time `yaml:"created_at"`
}

// Frequency is the recurrence unit.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	default:
		return false
	}
}

type Recurrence struct {
	Enabled   bool       `yaml:"enabled"`
	Frequency Frequency  `yaml:"frequency,omitempty"`
	Interval  int        `yaml:"interval,omitempty"`
	EndDate   *time.Time `yaml:"end_date,omitempty"`

	// NextInstanceID is set once this instance has spawned its successor,
	// making the clone step idempotent under replays.
	NextInstanceID string `yaml:"next_instance_id,omitempty"`
}

type DependencyRelation string

const (
	RelationBlocks    DependencyRelation = "blocks"
	RelationBlockedBy DependencyRelation = "blocked_by"
	RelationRelated   DependencyRelation = "related"
)

type Dependency struct {
	TaskID   string             `yaml:"task_id"`
	Relation DependencyRelation `yaml:"relation"`
}

// EntityLinks optionally ties a task to pipeline entities.
type EntityLinks struct {
	CandidateID   string `yaml:"candidate_id,omitempty"`
	JobID         string `yaml:"job_id,omitempty"`
	ApplicationID string `yaml:"application_id,omitempty"`
	InterviewID   string `yaml:"interview_id,omitempty"`
	CompanyID     string `yaml:"company_id,omitempty"`
}

type Task struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`

	AssigneeID string `yaml:"assignee_id,omitempty"`
	CreatorID  string `yaml:"creator_id,omitempty"`

	Status   Status   `yaml:"status"`
	Priority Priority `yaml:"priority"`

	DueDate *time.Time `yaml:"due_date,omitempty"`

	Checklist   []ChecklistItem `yaml:"checklist,omitempty"`
	TimeEntries []TimeEntry     `yaml:"time_entries,omitempty"`

	Recurrence Recurrence `yaml:"recurrence,omitempty"`

	Dependencies []Dependency `yaml:"dependencies,omitempty"`
	Attachments  []string     `yaml:"attachments,omitempty"`

	Links EntityLinks `yaml:"links,omitempty"`

	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	CompletedBy string     `yaml:"completed_by,omitempty"`

	Version int64 `yaml:"version"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// CompletionPercent derives checklist progress from the items on every
// call; it is never cached, so it cannot drift.
func (t *Task) CompletionPercent() float64 {
	if len(t.Checklist) == 0 {
		return 0
	}
	completed := 0
	for _, item := range t.Checklist {
		if item.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(t.Checklist)) * 100
}

func (t *Task) checklistItem(id string) *ChecklistItem {
	for i := range t.Checklist {
		if t.Checklist[i].ID == id {
			return &t.Checklist[i]
		}
	}
	return nil
}

func (t *Task) hasChecklistItem(id string) bool {
	return t.checklistItem(id) != nil
}
