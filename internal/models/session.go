package models

import (
	"time"

	"github.com/lib/pq"
)

// Session is a placed teaching assignment on the grid.
type Session struct {
	ID           int64         `db:"id" json:"id"`
	CourseID     int64         `db:"course_id" json:"course_id"`
	TeacherID    int64         `db:"teacher_id" json:"teacher_id"`
	RoomID       int64         `db:"room_id" json:"room_id"`
	ClassGroupID int64         `db:"class_group_id" json:"class_group_id"`
	Subgroup     string        `db:"subgroup" json:"subgroup,omitempty"`
	AttendeeIDs  pq.Int64Array `db:"attendee_ids" json:"attendee_ids"`
	Start        time.Time     `db:"start_at" json:"start_at"`
	End          time.Time     `db:"end_at" json:"end_at"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Hours is the session duration rounded to whole grid hours.
func (s *Session) Hours() int {
	return int(s.End.Sub(s.Start).Round(time.Hour) / time.Hour)
}

// Attends reports whether the class group attends the session.
func (s *Session) Attends(groupID int64) bool {
	if s.ClassGroupID == groupID {
		return true
	}
	for _, id := range s.AttendeeIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// SharesStudents reports whether a session of the given subgroup label overlaps in audience with s.
// Whole-class sessions share students with every subgroup; sibling subgroups do not.
func (s *Session) SharesStudents(subgroup string) bool {
	return s.Subgroup == "" || subgroup == "" || s.Subgroup == subgroup
}
