package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Chronology ranks course types inside a week; lower ranks must come first.
type Chronology map[models.CourseType]int

// DefaultChronology orders lecture, project, tutorial, practical, exam.
func DefaultChronology() Chronology {
	return Chronology{
		models.CourseTypeLecture:   0,
		models.CourseTypeProject:   1,
		models.CourseTypeTutorial:  2,
		models.CourseTypePractical: 3,
		models.CourseTypeExam:      4,
	}
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	return start.Before(end)
}

// WeekStart returns midnight of the ISO week's Monday containing t.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, 1-models.ISOWeekday(day))
}

func isWeekend(t time.Time) bool {
	return models.ISOWeekday(t) >= 6
}

// TeacherAvailable checks weekday, blackout ranges and interval coverage of [start,end).
// A teacher without any declared interval is available on every working day.
func TeacherAvailable(teacher *models.Teacher, start, end time.Time) (bool, string) {
	if isWeekend(start) {
		return false, fmt.Sprintf("%s: weekend", teacher.Name)
	}
	if !models.SameDate(start, end.Add(-time.Nanosecond)) {
		return false, fmt.Sprintf("%s: interval spans several days", teacher.Name)
	}
	if teacher.Blackouts.Covers(start) {
		return false, fmt.Sprintf("%s: blackout on %s", teacher.Name, start.Format("2006-01-02"))
	}
	if len(teacher.Availability) == 0 {
		return true, ""
	}

	type span struct{ from, to int }
	weekday := models.ISOWeekday(start)
	var spans []span
	for _, iv := range teacher.Availability {
		if iv.Weekday != weekday {
			continue
		}
		from, to, err := iv.Minutes()
		if err != nil {
			continue
		}
		spans = append(spans, span{from: from, to: to})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })

	want := MinuteOfDay(end)
	if want == 0 && end.After(start) {
		want = 24 * 60
	}
	covered := MinuteOfDay(start)
	for _, s := range spans {
		if s.from > covered {
			break
		}
		if s.to > covered {
			covered = s.to
		}
		if covered >= want {
			return true, ""
		}
	}
	return false, fmt.Sprintf("%s: not available %s-%s", teacher.Name, start.Format("Mon 15:04"), end.Format("15:04"))
}

// NoOverlap reports whether none of the sessions, except ignoreID, intersects [start,end).
func NoOverlap(existing []*models.Session, start, end time.Time, ignoreID int64) (bool, string) {
	for _, s := range existing {
		if ignoreID != 0 && s.ID == ignoreID {
			continue
		}
		if Overlaps(s.Start, s.End, start, end) {
			return false, fmt.Sprintf("overlaps session %d (%s-%s)", s.ID, s.Start.Format("Mon 15:04"), s.End.Format("15:04"))
		}
	}
	return true, ""
}

// RoomFits checks capacity, computer posts and equipment.
func RoomFits(room *models.Room, capacity int, equipment []int64, computers int) (bool, string) {
	if room.Capacity < capacity {
		return false, fmt.Sprintf("room %s: capacity %d < %d", room.Name, room.Capacity, capacity)
	}
	if room.Computers < computers {
		return false, fmt.Sprintf("room %s: %d computers < %d", room.Name, room.Computers, computers)
	}
	if !room.HasEquipment(equipment) {
		return false, fmt.Sprintf("room %s: missing equipment", room.Name)
	}
	return true, ""
}

// ClassGroupAvailable checks the group's calendar and every session it attends. Sessions of
// the sibling subgroup do not conflict.
func ClassGroupAvailable(group *models.ClassGroup, sessions []*models.Session, subgroup string, start, end time.Time, ignoreID int64) (bool, string) {
	if group.ClosedWeekends && isWeekend(start) {
		return false, fmt.Sprintf("class %s: closed on weekends", group.Name)
	}
	if group.BlackoutDates.Contains(start) {
		return false, fmt.Sprintf("class %s: blackout on %s", group.Name, start.Format("2006-01-02"))
	}
	for _, s := range sessions {
		if ignoreID != 0 && s.ID == ignoreID {
			continue
		}
		if !s.SharesStudents(subgroup) {
			continue
		}
		if Overlaps(s.Start, s.End, start, end) {
			return false, fmt.Sprintf("class %s: busy %s-%s", group.Name, s.Start.Format("Mon 15:04"), s.End.Format("15:04"))
		}
	}
	return true, ""
}

// WeeklyHourCapRespected reports whether scheduled+candidate stays within target. A target of
// zero disables the cap.
func WeeklyHourCapRespected(scheduled, candidate, target int) (bool, string) {
	if target <= 0 || scheduled+candidate <= target {
		return true, ""
	}
	return false, fmt.Sprintf("weekly target of %dh reached (%dh scheduled)", target, scheduled)
}

// TeacherWeeklyBudget checks the teacher's weekly hour budget for the ISO week of start.
func TeacherWeeklyBudget(teacher *models.Teacher, sessions []*models.Session, start time.Time, candidate int) (bool, string) {
	if teacher.MaxWeeklyHours <= 0 {
		return true, ""
	}
	from := WeekStart(start)
	to := from.AddDate(0, 0, 7)
	used := 0
	for _, s := range sessions {
		if !s.Start.Before(from) && s.Start.Before(to) {
			used += s.Hours()
		}
	}
	if used+candidate > teacher.MaxWeeklyHours {
		return false, fmt.Sprintf("%s: weekly budget of %dh exceeded", teacher.Name, teacher.MaxWeeklyHours)
	}
	return true, ""
}

// RespectsWeeklyChronology rejects a candidate when a later-ranked session of the same subject
// already exists for the same audience in its ISO week, whatever its start, or when the
// candidate would start before an earlier-ranked session of that week.
func RespectsWeeklyChronology(ds *Dataset, order Chronology, course *models.Course, groupIDs []int64, subgroup string, start time.Time) (bool, string) {
	rank, ok := order[course.Type]
	if !ok {
		return true, ""
	}
	from := WeekStart(start)
	to := from.AddDate(0, 0, 7)
	subject := course.SubjectName()

	seen := make(map[*models.Session]bool)
	for _, groupID := range groupIDs {
		for _, s := range ds.GroupSessions(groupID) {
			if seen[s] || s.CourseID == course.ID {
				continue
			}
			seen[s] = true
			if s.Start.Before(from) || !s.Start.Before(to) || !s.SharesStudents(subgroup) {
				continue
			}
			other, found := ds.Course(s.CourseID)
			if !found || other.SubjectName() != subject {
				continue
			}
			otherRank, ranked := order[other.Type]
			if !ranked {
				continue
			}
			if otherRank > rank {
				return false, fmt.Sprintf("%s cannot follow %s %s already scheduled on %s", course.Type, other.Type, other.Name, s.Start.Format("Mon 15:04"))
			}
			if otherRank < rank && s.Start.After(start) {
				return false, fmt.Sprintf("%s must follow %s %s on %s", course.Type, other.Type, other.Name, s.Start.Format("Mon 15:04"))
			}
		}
	}
	return true, ""
}
