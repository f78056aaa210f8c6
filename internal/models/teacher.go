package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Teacher represents an instructor that can be assigned to sessions.
type Teacher struct {
	ID             int64             `db:"id" json:"id" csv:"id"`
	Name           string            `db:"name" json:"name" csv:"name"`
	// Availability lists weekly intervals. An empty list places no restriction
	// beyond weekends and Blackouts.
	Availability   AvailabilityRules `db:"availability" json:"availability" csv:"-"`
	Blackouts      DateRanges        `db:"blackouts" json:"blackouts" csv:"-"`
	MaxWeeklyHours int               `db:"max_weekly_hours" json:"max_weekly_hours" csv:"max_weekly_hours"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at" csv:"-"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at" csv:"-"`
}

// AvailabilityInterval is a clock range on one ISO weekday (1 = Monday ... 7 = Sunday).
type AvailabilityInterval struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Minutes converts the interval bounds to minutes since midnight.
func (i AvailabilityInterval) Minutes() (int, int, error) {
	start, err := ParseClock(i.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseClock(i.End)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("availability interval %s-%s is empty", i.Start, i.End)
	}
	return start, end, nil
}

// AvailabilityRules stores weekly availability intervals as JSON.
type AvailabilityRules []AvailabilityInterval

// Value marshals the rules to JSON for persistence.
func (r AvailabilityRules) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal([]AvailabilityInterval(r))
	if err != nil {
		return nil, fmt.Errorf("marshal availability rules: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON availability rules.
func (r *AvailabilityRules) Scan(value interface{}) error {
	data, err := jsonBytes(value, "AvailabilityRules")
	if err != nil || len(data) == 0 {
		*r = nil
		return err
	}
	var items []AvailabilityInterval
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal availability rules: %w", err)
	}
	*r = items
	return nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Covers reports whether the calendar date of t falls inside the range.
func (d DateRange) Covers(t time.Time) bool {
	day := truncateDate(t)
	return !day.Before(truncateDate(d.Start.In(t.Location()))) && !day.After(truncateDate(d.End.In(t.Location())))
}

// DateRanges stores blackout ranges as JSON.
type DateRanges []DateRange

// Covers reports whether any range covers the date of t.
func (d DateRanges) Covers(t time.Time) bool {
	for _, r := range d {
		if r.Covers(t) {
			return true
		}
	}
	return false
}

// Value marshals the ranges to JSON for persistence.
func (d DateRanges) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal([]DateRange(d))
	if err != nil {
		return nil, fmt.Errorf("marshal date ranges: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON date ranges.
func (d *DateRanges) Scan(value interface{}) error {
	data, err := jsonBytes(value, "DateRanges")
	if err != nil || len(data) == 0 {
		*d = nil
		return err
	}
	var items []DateRange
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal date ranges: %w", err)
	}
	*d = items
	return nil
}

// ParseClock parses an HH:MM clock value into minutes since midnight.
func ParseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ISOWeekday maps time.Weekday to 1 (Monday) ... 7 (Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
