package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ClassGroup is a cohort of students attending sessions together.
type ClassGroup struct {
	ID             int64     `db:"id" json:"id" csv:"id"`
	Name           string    `db:"name" json:"name" csv:"name"`
	Size           int       `db:"size" json:"size" csv:"size"`
	ClosedWeekends bool      `db:"closed_weekends" json:"closed_weekends" csv:"closed_weekends"`
	BlackoutDates  DateList  `db:"blackout_dates" json:"blackout_dates" csv:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at" csv:"-"`
}

// DateList stores calendar dates as a JSON array.
type DateList []time.Time

// Contains reports whether the calendar date of t is in the list.
func (d DateList) Contains(t time.Time) bool {
	for _, item := range d {
		if SameDate(item, t) {
			return true
		}
	}
	return false
}

// Value marshals the list to JSON for persistence.
func (d DateList) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal([]time.Time(d))
	if err != nil {
		return nil, fmt.Errorf("marshal date list: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON array of dates.
func (d *DateList) Scan(value interface{}) error {
	data, err := jsonBytes(value, "DateList")
	if err != nil || len(data) == 0 {
		*d = nil
		return err
	}
	var items []time.Time
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal date list: %w", err)
	}
	*d = items
	return nil
}

// SameDate compares the calendar dates of two timestamps in the location of a.
func SameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func jsonBytes(value interface{}, name string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, name)
	}
}
