package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

var monday = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

type courseRepoStub struct {
	courses []models.Course
	links   []models.ClassLink
}

func (s *courseRepoStub) FindByID(_ context.Context, id int64) (*models.Course, error) {
	for i := range s.courses {
		if s.courses[i].ID == id {
			c := s.courses[i]
			return &c, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %d not found", id))
}

func (s *courseRepoStub) List(context.Context) ([]models.Course, error) {
	return s.courses, nil
}

func (s *courseRepoStub) ListLinks(context.Context, []int64) ([]models.ClassLink, error) {
	return s.links, nil
}

type resourceRepoStub struct {
	groups   []models.ClassGroup
	teachers []models.Teacher
	rooms    []models.Room
}

func (s *resourceRepoStub) ListClassGroups(context.Context) ([]models.ClassGroup, error) {
	return s.groups, nil
}

func (s *resourceRepoStub) ListTeachers(context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}

func (s *resourceRepoStub) ListRooms(context.Context) ([]models.Room, error) {
	return s.rooms, nil
}

type sessionRepoStub struct {
	sessions []models.Session
	deleted  int64
	err      error
}

func (s *sessionRepoStub) List(context.Context) ([]models.Session, error) {
	return s.sessions, nil
}

func (s *sessionRepoStub) ListByClassGroup(_ context.Context, groupID int64, from, to time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, session := range s.sessions {
		if session.Attends(groupID) && !session.Start.Before(from) && session.Start.Before(to) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *sessionRepoStub) DeleteByCourse(_ context.Context, _ sqlx.ExtContext, _ int64) (int64, error) {
	return s.deleted, s.err
}

type runLogRepoStub struct {
	logs    []models.RunLog
	deleted int64
}

func (s *runLogRepoStub) ListByCourse(_ context.Context, courseID int64, _ int) ([]models.RunLog, error) {
	var out []models.RunLog
	for _, l := range s.logs {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *runLogRepoStub) DeleteByCourse(context.Context, sqlx.ExtContext, int64) (int64, error) {
	return s.deleted, nil
}

type closingStub struct {
	periods []models.ClosingPeriod
}

func (s closingStub) List(context.Context) ([]models.ClosingPeriod, error) {
	return s.periods, nil
}

type unitStoreStub struct {
	mu       sync.Mutex
	sessions []*models.Session
	logs     []*models.RunLog
	err      error
	nextID   int64
}

func (s *unitStoreStub) SaveUnit(_ context.Context, sessions []*models.Session, logs []*models.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, session := range sessions {
		s.nextID++
		session.ID = s.nextID
	}
	s.sessions = append(s.sessions, sessions...)
	s.logs = append(s.logs, logs...)
	return nil
}

func weekdayAvailability() models.AvailabilityRules {
	rules := make(models.AvailabilityRules, 0, 5)
	for wd := 1; wd <= 5; wd++ {
		rules = append(rules, models.AvailabilityInterval{Weekday: wd, Start: "08:00", End: "18:00"})
	}
	return rules
}

type timetableFixture struct {
	courses   *courseRepoStub
	resources *resourceRepoStub
	sessions  *sessionRepoStub
	runLogs   *runLogRepoStub
	units     *unitStoreStub
}

func newTimetableFixture() *timetableFixture {
	start, end := monday, monday.AddDate(0, 0, 4)
	ada := int64(1)
	return &timetableFixture{
		courses: &courseRepoStub{
			courses: []models.Course{
				{ID: 7, Name: "Algebra TD", Subject: "Algebra", Type: models.CourseTypeTutorial, SessionLength: 2, RequiredOccurrences: 2, StartDate: &start, EndDate: &end},
				{ID: 8, Name: "Orphan", Type: models.CourseTypeProject, SessionLength: 2, RequiredOccurrences: 1, StartDate: &start, EndDate: &end},
			},
			links: []models.ClassLink{{ID: 1, CourseID: 7, ClassGroupID: 1, GroupCount: 1, TeacherAID: &ada}},
		},
		resources: &resourceRepoStub{
			groups:   []models.ClassGroup{{ID: 1, Name: "X1", Size: 24, ClosedWeekends: true}},
			teachers: []models.Teacher{{ID: 1, Name: "Ada", Availability: weekdayAvailability()}},
			rooms:    []models.Room{{ID: 1, Name: "R30", Capacity: 30}},
		},
		sessions: &sessionRepoStub{},
		runLogs:  &runLogRepoStub{},
		units:    &unitStoreStub{nextID: 100},
	}
}

func (f *timetableFixture) service(tx txProvider) *TimetableService {
	return NewTimetableService(f.courses, f.resources, f.sessions, f.runLogs, closingStub{}, f.units, tx, nil, NewMetricsService(), nil, TimetableConfig{
		Engine:   schedulerOptions(),
		PDFTitle: "Timetable",
	})
}
