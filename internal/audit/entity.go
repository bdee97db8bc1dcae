package audit

import (
	"time"

	"github.com/talentpipe/talentpipe/internal/identity"
)

// RiskLevel classifies how sensitive a mutation is for compliance review.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Escalate returns the next level up. Critical stays critical.
func (r RiskLevel) Escalate() RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	case RiskMedium:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Action names the mutating operation being audited.
type Action string

const (
	ActionApplicationCreate    Action = "application.create"
	ActionApplicationAdvance   Action = "application.advance_stage"
	ActionApplicationReject    Action = "application.reject"
	ActionApplicationWithdraw  Action = "application.withdraw"
	ActionApplicationNote      Action = "application.add_note"
	ActionApplicationView      Action = "application.mark_viewed"
	ActionOfferSend            Action = "application.send_offer"
	ActionOfferRespond         Action = "application.respond_offer"
	ActionInterviewSchedule    Action = "interview.schedule"
	ActionInterviewConfirm     Action = "interview.confirm"
	ActionInterviewReschedule  Action = "interview.reschedule"
	ActionInterviewStart       Action = "interview.start"
	ActionInterviewComplete    Action = "interview.complete"
	ActionInterviewCancel      Action = "interview.cancel"
	ActionInterviewFeedback    Action = "interview.add_feedback"
	ActionInterviewFollowUp    Action = "interview.follow_up"
	ActionTaskCreate           Action = "task.create"
	ActionTaskUpdate           Action = "task.update"
	ActionTaskStatusChange     Action = "task.status_change"
	ActionTaskComplete         Action = "task.complete"
	ActionTaskRecur            Action = "task.recur"
	ActionTaskChecklistToggle  Action = "task.toggle_checklist"
	ActionTaskChecklistEdit    Action = "task.edit_checklist"
	ActionTaskTimeEntry        Action = "task.add_time_entry"
	ActionAgentAssign          Action = "assignment.assign_agent"
	ActionCandidateRoute       Action = "assignment.route_candidate"
	ActionAssignmentComplete   Action = "assignment.complete"
	ActionAssignmentReject     Action = "assignment.reject"
	ActionAssignmentWithdraw   Action = "assignment.withdraw"
	ActionJobCreate            Action = "job.create"
	ActionJobHireRecorded      Action = "job.hire_recorded"
	ActionCompanyCreate        Action = "company.create"
	ActionCompanyHiresAdjusted Action = "company.hires_adjusted"
)

// FieldChange is one entry of the field-level diff between snapshots.
type FieldChange struct {
	Field  string `yaml:"field"`
	Before string `yaml:"before"`
	After  string `yaml:"after"`
}

// RequestContext carries correlation identifiers from the API layer.
type RequestContext struct {
	IP        string `yaml:"ip,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
	RequestID string `yaml:"request_id,omitempty"`
	SessionID string `yaml:"session_id,omitempty"`
}

// Entry is one append-only audit record. Application code never updates or
// deletes entries; only the retention sweep removes entries past
// RetentionUntil.
type Entry struct {
	ID             string         `yaml:"id"`
	Actor          identity.Actor `yaml:"actor"`
	Action         Action         `yaml:"action"`
	EntityType     string         `yaml:"entity_type"`
	EntityID       string         `yaml:"entity_id"`
	Before         map[string]any `yaml:"before,omitempty"`
	After          map[string]any `yaml:"after,omitempty"`
	Changes        []FieldChange  `yaml:"changes,omitempty"`
	Risk           RiskLevel      `yaml:"risk"`
	Process        string         `yaml:"process,omitempty"`
	Success        bool           `yaml:"success"`
	ErrorCode      string         `yaml:"error_code,omitempty"`
	ErrorMessage   string         `yaml:"error_message,omitempty"`
	Duration       time.Duration  `yaml:"duration,omitempty"`
	Context        RequestContext `yaml:"context,omitempty"`
	CreatedAt      time.Time      `yaml:"created_at"`
	RetentionUntil time.Time      `yaml:"retention_until"`
}
