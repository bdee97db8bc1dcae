package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	// APIKey protects every endpoint except health checks when set.
	APIKey string `envconfig:"API_KEY"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".talentpipe/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"talentpipe/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type PipelineEnv struct {
	// StoreTimeout bounds every persistence call issued by the services.
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	// RetryAttempts bounds facade retries of concurrent-modification failures.
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3"`
	// AdvanceOnInterviewComplete moves an application to interviewed when
	// its interview completes.
	AdvanceOnInterviewComplete bool `envconfig:"ADVANCE_ON_INTERVIEW_COMPLETE" default:"true"`
}

type AuditEnv struct {
	// RetentionDefault is applied when an entry has no explicit retention.
	RetentionDefault time.Duration `envconfig:"AUDIT_RETENTION" default:"26280h"`
	SweepInterval    time.Duration `envconfig:"AUDIT_SWEEP_INTERVAL" default:"24h"`
	// RiskRulesPath optionally overrides the built-in risk rule table.
	// The file is watched and reloaded on change.
	RiskRulesPath string `envconfig:"AUDIT_RISK_RULES_PATH"`
}

type Env struct {
	BaseEnv
	StorageEnv
	PipelineEnv
	AuditEnv
}

const namespace = "TALENTPIPE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
