package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// monday is the first day of ISO week 2024-W02.
var monday = time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T {
	return &v
}

func day(offset int) time.Time {
	return monday.AddDate(0, 0, offset)
}

func weekdays(start, end string) models.AvailabilityRules {
	rules := make(models.AvailabilityRules, 0, 5)
	for wd := 1; wd <= 5; wd++ {
		rules = append(rules, models.AvailabilityInterval{Weekday: wd, Start: start, End: end})
	}
	return rules
}

func course(id int64, name string, typ models.CourseType, length, occurrences int) models.Course {
	return models.Course{
		ID:                  id,
		Name:                name,
		Type:                typ,
		SessionLength:       length,
		RequiredOccurrences: occurrences,
		StartDate:           ptr(day(0)),
		EndDate:             ptr(day(4)),
	}
}

func link(id, courseID, groupID int64, groupCount int, teachers ...int64) models.ClassLink {
	l := models.ClassLink{ID: id, CourseID: courseID, ClassGroupID: groupID, GroupCount: groupCount}
	if len(teachers) > 0 {
		l.TeacherAID = ptr(teachers[0])
	}
	if len(teachers) > 1 {
		l.TeacherBID = ptr(teachers[1])
	}
	return l
}

func newDataset(t *testing.T, in DatasetInput) *Dataset {
	t.Helper()
	ds, err := NewDataset(in)
	require.NoError(t, err)
	return ds
}

func baseInput() DatasetInput {
	return DatasetInput{
		Groups:   []models.ClassGroup{{ID: 1, Name: "X1", Size: 24, ClosedWeekends: true}},
		Teachers: []models.Teacher{{ID: 1, Name: "Ada", Availability: weekdays("08:00", "18:00")}},
		Rooms:    []models.Room{{ID: 1, Name: "R30", Capacity: 30}},
	}
}

// assertNoDoubleBooking fails when two sessions share a teacher, a room or an audience and overlap.
func assertNoDoubleBooking(t *testing.T, sessions []*models.Session) {
	t.Helper()
	for i, a := range sessions {
		for _, b := range sessions[i+1:] {
			if !Overlaps(a.Start, a.End, b.Start, b.End) {
				continue
			}
			require.NotEqual(t, a.TeacherID, b.TeacherID, "teacher double-booked: %v / %v", a, b)
			require.NotEqual(t, a.RoomID, b.RoomID, "room double-booked: %v / %v", a, b)
			for _, g := range a.AttendeeIDs {
				if b.Attends(g) {
					require.False(t, a.SharesStudents(b.Subgroup), "class %d double-booked: %v / %v", g, a, b)
				}
			}
		}
	}
}

func totalHours(sessions []*models.Session) int {
	sum := 0
	for _, s := range sessions {
		sum += s.Hours()
	}
	return sum
}
