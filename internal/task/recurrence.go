package task

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NextDueDate advances from the current due date, not from the completion
// time, so the cadence stays anchored to the original schedule.
func NextDueDate(current time.Time, freq Frequency, interval int) time.Time {
	if interval <= 0 {
		interval = 1
	}
	switch freq {
	case FrequencyDaily:
		return current.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return current.AddDate(0, 0, 7*interval)
	case FrequencyMonthly:
		return current.AddDate(0, interval, 0)
	case FrequencyYearly:
		return current.AddDate(interval, 0, 0)
	default:
		return current
	}
}

// CloneForRecurrence builds the next task instance: same template fields,
// fresh id, status reset to todo, checklist unchecked, and no time entries
// or completion state carried over.
func CloneForRecurrence(t *Task, now time.Time) *Task {
	next := NextDueDate(derefOr(t.DueDate, now), t.Recurrence.Frequency, t.Recurrence.Interval)

	checklist := make([]ChecklistItem, len(t.Checklist))
	for i, item := range t.Checklist {
		checklist[i] = ChecklistItem{
			ID:   ulid.Make().String(),
			Text: item.Text,
		}
	}

	clone := &Task{
		ID:           ulid.Make().String(),
		Title:        t.Title,
		Description:  t.Description,
		AssigneeID:   t.AssigneeID,
		CreatorID:    t.CreatorID,
		Status:       StatusTodo,
		Priority:     t.Priority,
		DueDate:      &next,
		Checklist:    checklist,
		Recurrence:   t.Recurrence,
		Dependencies: append([]Dependency(nil), t.Dependencies...),
		Links:        t.Links,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	clone.Recurrence.NextInstanceID = ""
	return clone
}

// shouldRecur reports whether completing t must spawn a successor.
func shouldRecur(t *Task, now time.Time) bool {
	if !t.Recurrence.Enabled || !t.Recurrence.Frequency.IsValid() {
		return false
	}
	if t.Recurrence.NextInstanceID != "" {
		return false
	}
	if t.Recurrence.EndDate != nil {
		next := NextDueDate(derefOr(t.DueDate, now), t.Recurrence.Frequency, t.Recurrence.Interval)
		if next.After(*t.Recurrence.EndDate) {
			return false
		}
	}
	return true
}

func derefOr(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}
