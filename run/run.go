// Package run records executions of scenarios: live logs, the latest screenshot
// and the final outcome.
package run

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

var (
	// ErrRunNotFound is returned when a run is not found.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRunID is returned when a run has no correlation id.
	ErrInvalidRunID = errors.New("run_id is required")

	// ErrInvalidStatus is returned when a status is not recognised.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrRunFinished is returned when completing a run that already has a final status.
	ErrRunFinished = errors.New("run already finished")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusError:
		return true
	default:
		return false
	}
}

// IsFinal reports whether s ends a run.
func (s Status) IsFinal() bool {
	return s == StatusSuccess || s == StatusError
}

// Level is the severity shown next to a log line.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// LogEntry is one line of a run's user-facing log.
type LogEntry struct {
	Message   string    `json:"message"`
	Status    Level     `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Logs is stored as a JSON column.
type Logs []LogEntry

// Value implements driver.Valuer.
func (l Logs) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *Logs) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Usage is the token usage summary stored as a JSON column.
type Usage usage.Summary

// Value implements driver.Valuer.
func (u Usage) Value() (driver.Value, error) {
	return json.Marshal(u)
}

// Scan implements sql.Scanner.
func (u *Usage) Scan(value interface{}) error {
	return scanJSON(value, u)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("failed to scan JSON column: unsupported type")
	}
}

// Run is the persisted snapshot of one scenario execution.
type Run struct {
	RunID       string     `json:"runId" gorm:"type:varchar(64);primaryKey"`
	ScenarioID  uuid.UUID  `json:"testId" gorm:"type:char(36);index:idx_scenario_id"`
	Name        string     `json:"name"`
	Status      Status     `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Logs        Logs       `json:"logs" gorm:"type:json"`
	Screenshot  string     `json:"screenshot" gorm:"type:text"`
	TokenUsage  Usage      `json:"tokenUsage" gorm:"type:json"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks required fields.
func (r *Run) Validate() error {
	if r.RunID == "" {
		return ErrInvalidRunID
	}
	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Complete records the final outcome.
func (r *Run) Complete(status Status, errMsg string) error {
	if r.Status.IsFinal() {
		return ErrRunFinished
	}
	if !status.IsFinal() {
		return ErrInvalidStatus
	}
	now := time.Now()
	r.CompletedAt = &now
	r.Status = status
	r.Error = errMsg
	return nil
}

// NewID returns a fresh run correlation id.
func NewID() string {
	return uuid.NewString()
}
