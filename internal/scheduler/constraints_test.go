package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func TestTeacherAvailable(t *testing.T) {
	fragmented := &models.Teacher{Name: "Ada", Availability: models.AvailabilityRules{
		{Weekday: 1, Start: "09:00", End: "12:00"},
		{Weekday: 1, Start: "08:00", End: "09:00"},
		{Weekday: 2, Start: "08:00", End: "09:00"},
		{Weekday: 2, Start: "09:30", End: "12:00"},
	}}
	mondayAt := func(h, m int) time.Time { return At(day(0), clock(h, m)) }
	tuesdayAt := func(h, m int) time.Time { return At(day(1), clock(h, m)) }

	ok, _ := TeacherAvailable(fragmented, mondayAt(8, 0), mondayAt(10, 0))
	assert.True(t, ok, "contiguous fragments cover the interval")

	ok, reason := TeacherAvailable(fragmented, tuesdayAt(8, 0), tuesdayAt(10, 0))
	assert.False(t, ok)
	assert.Contains(t, reason, "not available")

	ok, _ = TeacherAvailable(fragmented, At(day(2), clock(8, 0)), At(day(2), clock(9, 0)))
	assert.False(t, ok, "no interval on wednesday")

	ok, reason = TeacherAvailable(fragmented, At(day(5), clock(8, 0)), At(day(5), clock(9, 0)))
	assert.False(t, ok)
	assert.Contains(t, reason, "weekend")

	open := &models.Teacher{Name: "Bob"}
	ok, _ = TeacherAvailable(open, mondayAt(15, 45), mondayAt(17, 45))
	assert.True(t, ok, "no intervals means no weekday restriction")
	ok, reason = TeacherAvailable(open, At(day(6), clock(8, 0)), At(day(6), clock(9, 0)))
	assert.False(t, ok)
	assert.Contains(t, reason, "weekend")

	open.Blackouts = models.DateRanges{{Start: day(0), End: day(1)}}
	ok, reason = TeacherAvailable(open, tuesdayAt(8, 0), tuesdayAt(9, 0))
	assert.False(t, ok)
	assert.Contains(t, reason, "blackout")
}

func TestNoOverlapTreatsAdjacentSessionsAsFree(t *testing.T) {
	existing := []*models.Session{{ID: 7, Start: At(day(0), clock(8, 0)), End: At(day(0), clock(10, 0))}}

	ok, _ := NoOverlap(existing, At(day(0), clock(10, 0)), At(day(0), clock(11, 0)), 0)
	assert.True(t, ok)

	ok, reason := NoOverlap(existing, At(day(0), clock(9, 0)), At(day(0), clock(11, 0)), 0)
	assert.False(t, ok)
	assert.Contains(t, reason, "session 7")

	ok, _ = NoOverlap(existing, At(day(0), clock(9, 0)), At(day(0), clock(11, 0)), 7)
	assert.True(t, ok, "ignored session")
}

func TestRoomFits(t *testing.T) {
	room := &models.Room{Name: "Lab", Capacity: 20, Computers: 18, EquipmentIDs: []int64{1, 2}}

	ok, _ := RoomFits(room, 18, []int64{2}, 18)
	assert.True(t, ok)

	ok, reason := RoomFits(room, 21, nil, 0)
	assert.False(t, ok)
	assert.Contains(t, reason, "capacity")

	ok, reason = RoomFits(room, 10, nil, 19)
	assert.False(t, ok)
	assert.Contains(t, reason, "computers")

	ok, reason = RoomFits(room, 10, []int64{3}, 0)
	assert.False(t, ok)
	assert.Contains(t, reason, "equipment")
}

func TestClassGroupAvailableIsSubgroupAware(t *testing.T) {
	group := &models.ClassGroup{ID: 1, Name: "X1", ClosedWeekends: true, BlackoutDates: models.DateList{day(3)}}
	start, end := At(day(0), clock(8, 0)), At(day(0), clock(10, 0))
	sessions := []*models.Session{{ID: 1, ClassGroupID: 1, Subgroup: models.SubgroupA, Start: start, End: end}}

	ok, _ := ClassGroupAvailable(group, sessions, models.SubgroupB, start, end, 0)
	assert.True(t, ok, "sibling subgroups do not conflict")

	ok, _ = ClassGroupAvailable(group, sessions, models.SubgroupA, start, end, 0)
	assert.False(t, ok)

	ok, _ = ClassGroupAvailable(group, sessions, "", start, end, 0)
	assert.False(t, ok, "whole class conflicts with any subgroup")

	ok, reason := ClassGroupAvailable(group, nil, "", At(day(3), clock(8, 0)), At(day(3), clock(9, 0)), 0)
	assert.False(t, ok)
	assert.Contains(t, reason, "blackout")

	ok, reason = ClassGroupAvailable(group, nil, "", At(day(6), clock(8, 0)), At(day(6), clock(9, 0)), 0)
	assert.False(t, ok)
	assert.Contains(t, reason, "weekends")
}

func TestWeeklyHourCapRespected(t *testing.T) {
	ok, _ := WeeklyHourCapRespected(2, 2, 4)
	assert.True(t, ok)
	ok, _ = WeeklyHourCapRespected(3, 2, 4)
	assert.False(t, ok)
	ok, _ = WeeklyHourCapRespected(30, 2, 0)
	assert.True(t, ok, "zero target disables the cap")
}

func TestTeacherWeeklyBudget(t *testing.T) {
	teacher := &models.Teacher{Name: "Ada", MaxWeeklyHours: 4}
	sessions := []*models.Session{
		{Start: At(day(0), clock(8, 0)), End: At(day(0), clock(10, 0))},
		{Start: At(day(-3), clock(8, 0)), End: At(day(-3), clock(10, 0))},
	}
	ok, _ := TeacherWeeklyBudget(teacher, sessions, At(day(2), clock(8, 0)), 2)
	assert.True(t, ok, "previous week does not count")
	ok, _ = TeacherWeeklyBudget(teacher, sessions, At(day(2), clock(8, 0)), 3)
	assert.False(t, ok)
}

func TestRespectsWeeklyChronology(t *testing.T) {
	in := baseInput()
	lecture := course(1, "Algebra lecture", models.CourseTypeLecture, 2, 1)
	lecture.Subject = "Algebra"
	tutorial := course(2, "Algebra tutorial", models.CourseTypeTutorial, 2, 1)
	tutorial.Subject = "Algebra"
	exam := course(3, "Algebra exam", models.CourseTypeExam, 2, 1)
	exam.Subject = "Algebra"
	other := course(4, "Geometry lecture", models.CourseTypeLecture, 2, 1)
	in.Courses = []models.Course{lecture, tutorial, exam, other}
	ds := newDataset(t, in)

	ds.Add(&models.Session{CourseID: 1, ClassGroupID: 1, Start: At(day(1), clock(10, 15)), End: At(day(1), clock(12, 15))})
	ds.Add(&models.Session{CourseID: 3, ClassGroupID: 1, Start: At(day(3), clock(8, 0)), End: At(day(3), clock(10, 0))})
	order := DefaultChronology()
	tut, _ := ds.Course(2)
	geo, _ := ds.Course(4)

	ok, reason := RespectsWeeklyChronology(ds, order, tut, []int64{1}, "", At(day(0), clock(8, 0)))
	assert.False(t, ok, "tutorial before the lecture")
	assert.Contains(t, reason, "must follow")

	ok, reason = RespectsWeeklyChronology(ds, order, tut, []int64{1}, "", At(day(2), clock(8, 0)))
	assert.False(t, ok, "exam already scheduled that week")
	assert.Contains(t, reason, "cannot follow")

	ok, reason = RespectsWeeklyChronology(ds, order, tut, []int64{1}, "", At(day(4), clock(8, 0)))
	assert.False(t, ok, "tutorial after the exam")
	assert.Contains(t, reason, "cannot follow")

	ok, _ = RespectsWeeklyChronology(ds, order, tut, []int64{1}, "", At(day(7), clock(8, 0)))
	assert.True(t, ok, "next week is independent")

	ok, _ = RespectsWeeklyChronology(ds, order, geo, []int64{1}, "", At(day(4), clock(8, 0)))
	assert.True(t, ok, "different subject")
}

func TestRespectsWeeklyChronologyRejectsEarlierTypeBeforeLaterOne(t *testing.T) {
	in := baseInput()
	lecture := course(1, "Algebra CM", models.CourseTypeLecture, 2, 1)
	lecture.Subject = "Algebra"
	practical := course(2, "Algebra TP", models.CourseTypePractical, 2, 1)
	practical.Subject = "Algebra"
	tutorial := course(3, "Algebra TD", models.CourseTypeTutorial, 2, 1)
	tutorial.Subject = "Algebra"
	in.Courses = []models.Course{lecture, practical, tutorial}
	ds := newDataset(t, in)
	order := DefaultChronology()
	cm, _ := ds.Course(1)
	td, _ := ds.Course(3)

	ds.Add(&models.Session{CourseID: 1, ClassGroupID: 1, Start: At(day(0), clock(8, 0)), End: At(day(0), clock(10, 0))})
	ok, _ := RespectsWeeklyChronology(ds, order, td, []int64{1}, "", At(day(2), clock(8, 0)))
	assert.True(t, ok, "tutorial after the lecture")

	ds.Add(&models.Session{CourseID: 2, ClassGroupID: 1, Start: At(day(3), clock(8, 0)), End: At(day(3), clock(10, 0))})
	ok, reason := RespectsWeeklyChronology(ds, order, cm, []int64{1}, "", At(day(0), clock(10, 15)))
	assert.False(t, ok, "lecture placed before the practical in time")
	assert.Contains(t, reason, "cannot follow")

	ok, _ = RespectsWeeklyChronology(ds, order, cm, []int64{1}, "", At(day(7), clock(8, 0)))
	assert.True(t, ok, "next week is independent")
}

func TestWeekStart(t *testing.T) {
	require.Equal(t, monday, WeekStart(At(day(6), clock(17, 0))))
	require.Equal(t, monday, WeekStart(monday))
	require.Equal(t, monday.AddDate(0, 0, 7), WeekStart(day(7)))
}
