package models

import "time"

// ClosingPeriod is an institution-wide closure, inclusive of both dates.
type ClosingPeriod struct {
	ID        int64     `db:"id" json:"id"`
	Label     string    `db:"label" json:"label"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}

// Covers reports whether the calendar date of t is inside the closure.
func (p ClosingPeriod) Covers(t time.Time) bool {
	return DateRange{Start: p.StartDate, End: p.EndDate}.Covers(t)
}
