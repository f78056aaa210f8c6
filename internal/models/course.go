package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// CourseType tags a course with its teaching format.
type CourseType string

const (
	CourseTypeLecture   CourseType = "LECTURE"
	CourseTypeProject   CourseType = "PROJECT"
	CourseTypeTutorial  CourseType = "TUTORIAL"
	CourseTypePractical CourseType = "PRACTICAL"
	CourseTypeExam      CourseType = "EXAM"
)

// Valid reports whether the tag is one of the known course types.
func (t CourseType) Valid() bool {
	switch t {
	case CourseTypeLecture, CourseTypeProject, CourseTypeTutorial, CourseTypePractical, CourseTypeExam:
		return true
	default:
		return false
	}
}

// Aggregates reports whether sessions of this type are shared by every linked class group.
func (t CourseType) Aggregates() bool {
	return t == CourseTypeLecture
}

// Course describes a teaching unit that must be placed on the grid.
type Course struct {
	ID                  int64          `db:"id" json:"id" csv:"id"`
	Name                string         `db:"name" json:"name" csv:"name"`
	Subject             string         `db:"subject" json:"subject" csv:"subject"`
	Type                CourseType     `db:"type" json:"type" csv:"type"`
	SessionLength       int            `db:"session_length" json:"session_length" csv:"session_length"`
	RequiredOccurrences int            `db:"required_occurrences" json:"required_occurrences" csv:"required_occurrences"`
	StartDate           *time.Time     `db:"start_date" json:"start_date,omitempty" csv:"-"`
	EndDate             *time.Time     `db:"end_date" json:"end_date,omitempty" csv:"-"`
	RequiresComputers   bool           `db:"requires_computers" json:"requires_computers" csv:"requires_computers"`
	EquipmentIDs        pq.Int64Array  `db:"equipment_ids" json:"equipment_ids" csv:"-"`
	Software            pq.StringArray `db:"software" json:"software" csv:"-"`
	Priority            int            `db:"priority" json:"priority" csv:"priority"`
	SessionsPerWeek     int            `db:"sessions_per_week" json:"sessions_per_week" csv:"sessions_per_week"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at" csv:"-"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at" csv:"-"`
}

// TotalRequiredHours is the number of teaching hours the course must receive.
func (c *Course) TotalRequiredHours() int {
	if c.SessionLength <= 0 || c.RequiredOccurrences <= 0 {
		return 0
	}
	return c.SessionLength * c.RequiredOccurrences
}

// SubjectName returns the subject used to relate courses of different types.
func (c *Course) SubjectName() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Name
}

// ClassLink joins a course with a class group and its preferred teachers.
type ClassLink struct {
	ID            int64  `db:"id" json:"id" csv:"id"`
	CourseID      int64  `db:"course_id" json:"course_id" csv:"course_id"`
	ClassGroupID  int64  `db:"class_group_id" json:"class_group_id" csv:"class_group_id"`
	GroupCount    int    `db:"group_count" json:"group_count" csv:"group_count"`
	TeacherAID    *int64 `db:"teacher_a_id" json:"teacher_a_id,omitempty" csv:"teacher_a_id"`
	TeacherBID    *int64 `db:"teacher_b_id" json:"teacher_b_id,omitempty" csv:"teacher_b_id"`
	SubgroupNameA string `db:"subgroup_name_a" json:"subgroup_name_a" csv:"subgroup_name_a"`
	SubgroupNameB string `db:"subgroup_name_b" json:"subgroup_name_b" csv:"subgroup_name_b"`
}

// Subgroup labels used for split classes.
const (
	SubgroupA = "A"
	SubgroupB = "B"
)

// Validate enforces the supported group counts.
func (l *ClassLink) Validate() error {
	if l.GroupCount != 1 && l.GroupCount != 2 {
		return fmt.Errorf("class link %d: group count must be 1 or 2, got %d", l.ID, l.GroupCount)
	}
	return nil
}

// Subgroups lists the labels scheduled independently for this link.
func (l *ClassLink) Subgroups() []string {
	if l.GroupCount == 2 {
		return []string{SubgroupA, SubgroupB}
	}
	return []string{""}
}

// SubgroupDisplayName resolves the configured display name of a subgroup label.
func (l *ClassLink) SubgroupDisplayName(label string) string {
	switch label {
	case SubgroupA:
		if l.SubgroupNameA != "" {
			return l.SubgroupNameA
		}
	case SubgroupB:
		if l.SubgroupNameB != "" {
			return l.SubgroupNameB
		}
	}
	return label
}

// Seats is the number of seats one session of the link needs for the given group size.
func (l *ClassLink) Seats(groupSize int) int {
	if l.GroupCount == 2 {
		return (groupSize + 1) / 2
	}
	return groupSize
}
