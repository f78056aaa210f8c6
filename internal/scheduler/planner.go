package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

// UnitStore persists the sessions and run logs of one planned week as a single unit of work.
type UnitStore interface {
	SaveUnit(ctx context.Context, sessions []*models.Session, logs []*models.RunLog) error
}

// CourseError records why a course stopped being planned.
type CourseError struct {
	CourseID   int64  `json:"course_id"`
	CourseName string `json:"course_name"`
	Week       string `json:"week,omitempty"`
	Message    string `json:"message"`
}

// PlanResult aggregates one weekly planning run.
type PlanResult struct {
	Created  int              `json:"created"`
	Errors   []CourseError    `json:"errors"`
	RunLogs  []*models.RunLog `json:"run_logs"`
	Weeks    int              `json:"weeks"`
	Skipped  []string         `json:"skipped_weeks,omitempty"`
	ByCourse map[int64]int    `json:"sessions_by_course"`
}

var planPriority = map[models.CourseType]int{
	models.CourseTypeLecture:   0,
	models.CourseTypeProject:   1,
	models.CourseTypeExam:      2,
	models.CourseTypeTutorial:  3,
	models.CourseTypePractical: 4,
}

// Planner apportions the hours of many courses across the ISO weeks of their spans.
type Planner struct {
	gen     *Generator
	closing []models.ClosingPeriod
	store   UnitStore
	logger  *zap.Logger
}

// NewPlanner builds a planner. A nil store keeps sessions in memory only.
func NewPlanner(gen *Generator, closing []models.ClosingPeriod, store UnitStore, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{gen: gen, closing: closing, store: store, logger: logger}
}

// Run plans every listed course week by week. Course failures are recorded and skipped;
// only context cancellation aborts the run.
func (p *Planner) Run(ctx context.Context, courseIDs []int64, tracker *progress.Tracker) (*PlanResult, error) {
	ds := p.gen.Dataset()
	result := &PlanResult{ByCourse: make(map[int64]int)}
	failed := make(map[int64]bool)

	var courses []*models.Course
	total := 0
	for _, id := range courseIDs {
		course, ok := ds.Course(id)
		if !ok {
			result.Errors = append(result.Errors, CourseError{CourseID: id, Message: fmt.Sprintf("course %d not found", id)})
			failed[id] = true
			continue
		}
		if course.StartDate == nil || course.EndDate == nil || course.StartDate.After(*course.EndDate) {
			result.Errors = append(result.Errors, CourseError{CourseID: id, CourseName: course.Name, Message: "course has no valid date span"})
			failed[id] = true
			continue
		}
		courses = append(courses, course)
		_, sum := p.gen.Remaining(id)
		total += sum
	}
	sort.SliceStable(courses, func(i, j int) bool { return planLess(courses[i], courses[j]) })

	if tracker != nil {
		tracker.Initialise(total)
	}
	weeks := isoWeeks(courses)
	sugar := p.logger.Sugar()
	sugar.Infow("weekly plan started", "courses", len(courses), "weeks", len(weeks), "hours", total)

	for _, week := range weeks {
		if err := ctx.Err(); err != nil {
			p.finish(tracker, result, err)
			return result, err
		}
		label := weekLabel(week)
		closed := p.closedDays(week)
		if len(closed) >= 5 {
			result.Skipped = append(result.Skipped, label)
			sugar.Infow("week closed, skipping", "week", label)
			continue
		}
		result.Weeks++

		weekStart := ds.Checkpoint()
		var logs []*models.RunLog
		created := make(map[int64]int)
		for _, course := range courses {
			if failed[course.ID] || !activeIn(course, week) {
				continue
			}
			remaining, _ := p.gen.Remaining(course.ID)
			if remaining == 0 && len(ds.Links(course.ID)) > 0 {
				continue
			}
			target := remaining
			if course.SessionsPerWeek > 0 {
				target = min(course.SessionsPerWeek*course.SessionLength, remaining)
			}
			var slice *progress.Slice
			var recorder progress.Recorder = nopRecorder{}
			if tracker != nil {
				_, outstanding := p.gen.Remaining(course.ID)
				budget := min(outstanding, target*p.gen.Audiences(course.ID))
				slice = tracker.Slice(fmt.Sprintf("%s, week %s", course.Name, label), budget)
				recorder = slice
			}

			weekFrom, weekEnd := week, week.AddDate(0, 0, 6)
			checkpoint := ds.Checkpoint()
			res, err := p.gen.GenerateSchedule(ctx, course.ID, GenerateRequest{
				WindowStart:  &weekFrom,
				WindowEnd:    &weekEnd,
				WeeklyTarget: target,
				ClosedDays:   closed,
				Recorder:     recorder,
			})
			if slice != nil {
				slice.Done()
			}
			if res != nil && res.RunLog != nil {
				logs = append(logs, res.RunLog)
			}
			if err != nil {
				if !appErrors.IsDomain(err) {
					ds.RollbackTo(weekStart)
					p.finish(tracker, result, err)
					return result, err
				}
				ds.RollbackTo(checkpoint)
				failed[course.ID] = true
				result.Errors = append(result.Errors, CourseError{CourseID: course.ID, CourseName: course.Name, Week: label, Message: err.Error()})
				sugar.Warnw("course skipped", "course_id", course.ID, "week", label, "error", err)
				continue
			}
			created[course.ID] += len(res.Sessions)
		}

		sessions := ds.Pending()
		if p.store != nil && (len(sessions) > 0 || len(logs) > 0) {
			if err := p.store.SaveUnit(ctx, sessions, logs); err != nil {
				ds.RollbackTo(weekStart)
				result.Errors = append(result.Errors, CourseError{Week: label, Message: fmt.Sprintf("persist week: %v", err)})
				sugar.Warnw("week not persisted", "week", label, "error", err)
				continue
			}
		}
		ds.Commit()
		result.Created += len(sessions)
		result.RunLogs = append(result.RunLogs, logs...)
		for id, n := range created {
			result.ByCourse[id] += n
		}
		sugar.Infow("week planned", "week", label, "sessions", len(sessions))
	}

	for _, course := range courses {
		if failed[course.ID] {
			continue
		}
		if remaining, _ := p.gen.Remaining(course.ID); remaining > 0 {
			result.Errors = append(result.Errors, CourseError{
				CourseID:   course.ID,
				CourseName: course.Name,
				Message:    fmt.Sprintf("%dh of sessions remain outside the allowed window", remaining),
			})
		}
	}
	p.finish(tracker, result, nil)
	return result, nil
}

func (p *Planner) finish(tracker *progress.Tracker, result *PlanResult, err error) {
	if tracker == nil {
		return
	}
	if err != nil {
		tracker.Fail(err.Error())
		return
	}
	tracker.Complete(fmt.Sprintf("%d session(s) created, %d issue(s)", result.Created, len(result.Errors)))
}

// closedDays lists the Monday-Friday dates of the week covered by a closing period.
func (p *Planner) closedDays(week time.Time) []time.Time {
	var closed []time.Time
	for i := 0; i < 5; i++ {
		day := week.AddDate(0, 0, i)
		for _, period := range p.closing {
			if period.Covers(day) {
				closed = append(closed, day)
				break
			}
		}
	}
	return closed
}

func planLess(a, b *models.Course) bool {
	pa, pb := typePriority(a.Type), typePriority(b.Type)
	if pa != pb {
		return pa < pb
	}
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID < b.ID
}

func typePriority(t models.CourseType) int {
	if p, ok := planPriority[t]; ok {
		return p
	}
	return len(planPriority)
}

// isoWeeks returns the Mondays of every ISO week touched by a course span, ascending.
func isoWeeks(courses []*models.Course) []time.Time {
	seen := make(map[string]time.Time)
	for _, c := range courses {
		for week := WeekStart(*c.StartDate); !week.After(*c.EndDate); week = week.AddDate(0, 0, 7) {
			seen[weekLabel(week)] = week
		}
	}
	weeks := make([]time.Time, 0, len(seen))
	for _, w := range seen {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	return weeks
}

func activeIn(course *models.Course, week time.Time) bool {
	weekEnd := week.AddDate(0, 0, 7)
	return course.StartDate.Before(weekEnd) && !dateOf(*course.EndDate).Before(week)
}

func weekLabel(week time.Time) string {
	year, w := week.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, w)
}
