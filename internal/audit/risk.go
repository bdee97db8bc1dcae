package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ruleKey scopes a base risk to an (action, entityType) pair. EntityType may
// be empty to match the action on any entity.
type ruleKey struct {
	action     Action
	entityType string
}

// Classifier derives the risk level of a mutation deterministically from the
// action, the entity type and the field diff. Callers cannot set the level
// directly.
type Classifier struct {
	mu              sync.RWMutex
	rules           map[ruleKey]RiskLevel
	sensitiveFields []string
}

func NewClassifier() *Classifier {
	return &Classifier{
		rules:           defaultRules(),
		sensitiveFields: defaultSensitiveFields(),
	}
}

func defaultRules() map[ruleKey]RiskLevel {
	return map[ruleKey]RiskLevel{
		{action: ActionApplicationCreate}:    RiskLow,
		{action: ActionApplicationAdvance}:   RiskMedium,
		{action: ActionApplicationReject}:    RiskHigh,
		{action: ActionApplicationWithdraw}:  RiskHigh,
		{action: ActionApplicationNote}:      RiskLow,
		{action: ActionApplicationView}:      RiskLow,
		{action: ActionOfferSend}:            RiskHigh,
		{action: ActionOfferRespond}:         RiskHigh,
		{action: ActionInterviewSchedule}:    RiskMedium,
		{action: ActionInterviewConfirm}:     RiskLow,
		{action: ActionInterviewReschedule}:  RiskMedium,
		{action: ActionInterviewStart}:       RiskLow,
		{action: ActionInterviewComplete}:    RiskMedium,
		{action: ActionInterviewCancel}:      RiskMedium,
		{action: ActionInterviewFeedback}:    RiskMedium,
		{action: ActionInterviewFollowUp}:    RiskLow,
		{action: ActionTaskCreate}:           RiskLow,
		{action: ActionTaskUpdate}:           RiskLow,
		{action: ActionTaskStatusChange}:     RiskLow,
		{action: ActionTaskComplete}:         RiskLow,
		{action: ActionTaskRecur}:            RiskLow,
		{action: ActionTaskChecklistToggle}:  RiskLow,
		{action: ActionTaskChecklistEdit}:    RiskLow,
		{action: ActionTaskTimeEntry}:        RiskLow,
		{action: ActionAgentAssign}:          RiskMedium,
		{action: ActionCandidateRoute}:       RiskMedium,
		{action: ActionAssignmentComplete}:   RiskMedium,
		{action: ActionAssignmentReject}:     RiskHigh,
		{action: ActionAssignmentWithdraw}:   RiskHigh,
		{action: ActionJobCreate}:            RiskLow,
		{action: ActionJobHireRecorded}:      RiskHigh,
		{action: ActionCompanyCreate}:        RiskLow,
		{action: ActionCompanyHiresAdjusted}: RiskMedium,
	}
}

func defaultSensitiveFields() []string {
	return []string{
		"offer.salary",
		"offer.currency",
		"offer.response",
		"salary",
		"role",
	}
}

// Classify returns the risk level for a mutation. The base level comes from
// the (action, entityType) rule table; it escalates one level when the diff
// touches a sensitive field or moves a status to rejected/withdrawn.
func (c *Classifier) Classify(action Action, entityType string, changes []FieldChange) RiskLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	level, ok := c.rules[ruleKey{action: action, entityType: entityType}]
	if !ok {
		level, ok = c.rules[ruleKey{action: action}]
	}
	if !ok {
		level = RiskMedium
	}

	for _, change := range changes {
		if c.isSensitive(change) {
			return level.Escalate()
		}
	}
	return level
}

func (c *Classifier) isSensitive(change FieldChange) bool {
	for _, field := range c.sensitiveFields {
		if change.Field == field {
			return true
		}
	}
	if change.Field == "status" || strings.HasSuffix(change.Field, ".status") {
		switch change.After {
		case "rejected", "withdrawn":
			return true
		}
	}
	return false
}

type rulesFile struct {
	Rules []struct {
		Action     string `yaml:"action"`
		EntityType string `yaml:"entity_type"`
		Risk       string `yaml:"risk"`
	} `yaml:"rules"`
	SensitiveFields []string `yaml:"sensitive_fields"`
}

// LoadFile overlays rules from a YAML file onto the built-in table.
func (c *Classifier) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read risk rules: %w", err)
	}
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse risk rules: %w", err)
	}

	rules := defaultRules()
	for _, r := range file.Rules {
		level := RiskLevel(r.Risk)
		switch level {
		case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		default:
			return fmt.Errorf("unknown risk level %q for action %q", r.Risk, r.Action)
		}
		rules[ruleKey{action: Action(r.Action), entityType: r.EntityType}] = level
	}
	sensitive := defaultSensitiveFields()
	if len(file.SensitiveFields) > 0 {
		sensitive = file.SensitiveFields
	}

	c.mu.Lock()
	c.rules = rules
	c.sensitiveFields = sensitive
	c.mu.Unlock()
	return nil
}

// Watch reloads the rule file whenever it changes on disk. It blocks until
// ctx is cancelled.
func (c *Classifier) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files by rename, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	slog.Info("risk rule watcher started", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.LoadFile(path); err != nil {
				slog.Error("failed to reload risk rules", "path", path, "error", err)
				continue
			}
			slog.Info("risk rules reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("risk rule watcher error", "error", err)
		}
	}
}
