package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunLogStatus is the final outcome of one generation invocation.
type RunLogStatus string

const (
	RunLogStatusSuccess RunLogStatus = "SUCCESS"
	RunLogStatusWarning RunLogStatus = "WARNING"
	RunLogStatusError   RunLogStatus = "ERROR"
)

// RunLogLevel classifies a single run log entry.
type RunLogLevel string

const (
	RunLogLevelInfo    RunLogLevel = "INFO"
	RunLogLevelWarning RunLogLevel = "WARNING"
	RunLogLevelError   RunLogLevel = "ERROR"
)

// RunLogEntry is one ordered diagnostic message.
type RunLogEntry struct {
	Level   RunLogLevel `json:"level"`
	Message string      `json:"message"`
}

// RunLog is the durable audit record of a generation invocation.
type RunLog struct {
	ID          string        `db:"id" json:"id"`
	CourseID    int64         `db:"course_id" json:"course_id"`
	Status      RunLogStatus  `db:"status" json:"status"`
	Entries     RunLogEntries `db:"entries" json:"entries"`
	Summary     string        `db:"summary" json:"summary"`
	WindowStart *time.Time    `db:"window_start" json:"window_start,omitempty"`
	WindowEnd   *time.Time    `db:"window_end" json:"window_end,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// RunLogEntries persists entries as JSONB.
type RunLogEntries []RunLogEntry

// Value marshals entries to JSON for persistence.
func (e RunLogEntries) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal([]RunLogEntry(e))
	if err != nil {
		return nil, fmt.Errorf("marshal run log entries: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the entries slice.
func (e *RunLogEntries) Scan(value interface{}) error {
	data, err := jsonBytes(value, "RunLogEntries")
	if err != nil || len(data) == 0 {
		*e = nil
		return err
	}
	var items []RunLogEntry
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal run log entries: %w", err)
	}
	*e = items
	return nil
}
