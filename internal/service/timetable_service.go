package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/pkg/database"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

type courseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	ListLinks(ctx context.Context, courseIDs []int64) ([]models.ClassLink, error)
}

type resourceReader interface {
	ListClassGroups(ctx context.Context) ([]models.ClassGroup, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
}

type sessionRepository interface {
	List(ctx context.Context) ([]models.Session, error)
	ListByClassGroup(ctx context.Context, groupID int64, from, to time.Time) ([]models.Session, error)
	DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) (int64, error)
}

type runLogRepository interface {
	ListByCourse(ctx context.Context, courseID int64, limit int) ([]models.RunLog, error)
	DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) (int64, error)
}

type closingPeriodReader interface {
	List(ctx context.Context) ([]models.ClosingPeriod, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableConfig carries engine options and export limits.
type TimetableConfig struct {
	Engine        scheduler.Options
	Location      *time.Location
	ExportMaxRows int
	PDFTitle      string
}

// TimetableService loads the scheduling dataset, runs the engine and persists its output.
type TimetableService struct {
	courses   courseReader
	resources resourceReader
	sessions  sessionRepository
	runLogs   runLogRepository
	closing   closingPeriodReader
	units     scheduler.UnitStore
	tx        txProvider
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       TimetableConfig
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

// NewTimetableService wires the timetable dependencies.
func NewTimetableService(
	courses courseReader,
	resources resourceReader,
	sessions sessionRepository,
	runLogs runLogRepository,
	closing closingPeriodReader,
	units scheduler.UnitStore,
	tx txProvider,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ExportMaxRows <= 0 {
		cfg.ExportMaxRows = 5000
	}
	return &TimetableService{
		courses:   courses,
		resources: resources,
		sessions:  sessions,
		runLogs:   runLogs,
		closing:   closing,
		units:     units,
		tx:        tx,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

// GenerateCourse places the outstanding hours of one course and persists the sessions with the run log.
// A failed run still persists its ERROR run log.
func (s *TimetableService) GenerateCourse(ctx context.Context, req dto.GenerateCourseRequest, recorder progress.Recorder) (*dto.GenerationSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	started := time.Now()
	ds, periods, err := s.loadDataset(ctx)
	if err != nil {
		return nil, err
	}

	gen := scheduler.NewGenerator(scheduler.DefaultGrid(), ds, s.cfg.Engine, s.logger)
	res, genErr := gen.GenerateSchedule(ctx, req.CourseID, scheduler.GenerateRequest{
		WindowStart:  s.inLocation(req.WindowStart),
		WindowEnd:    s.inLocation(req.WindowEnd),
		WeeklyTarget: req.WeeklyTarget,
		ClosedDays:   closingDays(periods, s.cfg.Location),
		Recorder:     recorder,
	})
	if genErr != nil {
		if res != nil && res.RunLog != nil && s.units != nil {
			if err := s.units.SaveUnit(ctx, nil, []*models.RunLog{res.RunLog}); err != nil {
				s.logger.Sugar().Warnw("failed to persist run log", "course_id", req.CourseID, "error", err)
			}
		}
		s.metrics.ObserveGeneration("course", string(models.RunLogStatusError), 0, 0, time.Since(started))
		return nil, genErr
	}

	if s.units != nil {
		if err := s.units.SaveUnit(ctx, ds.Pending(), []*models.RunLog{res.RunLog}); err != nil {
			s.metrics.ObserveGeneration("course", string(models.RunLogStatusError), 0, 0, time.Since(started))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sessions")
		}
	}
	ds.Commit()

	s.metrics.ObserveGeneration("course", string(res.RunLog.Status), len(res.Sessions), res.Shortfall, time.Since(started))
	s.logger.Sugar().Infow("course generated", "course_id", req.CourseID, "sessions", len(res.Sessions), "shortfall", res.Shortfall)
	return &dto.GenerationSummary{
		CourseID:        req.CourseID,
		SessionsCreated: len(res.Sessions),
		NeededHours:     res.NeededHours,
		PlacedHours:     res.PlacedHours,
		ShortfallHours:  res.Shortfall,
		RunLog:          res.RunLog,
	}, nil
}

// RunWeeklyPlan spreads the listed courses over the ISO weeks of their spans. Each week is
// persisted atomically; the tracker is completed or failed by the planner.
func (s *TimetableService) RunWeeklyPlan(ctx context.Context, req dto.WeeklyPlanRequest, tracker *progress.Tracker) (*scheduler.PlanResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	started := time.Now()
	ds, periods, err := s.loadDataset(ctx)
	if err != nil {
		return nil, err
	}

	gen := scheduler.NewGenerator(scheduler.DefaultGrid(), ds, s.cfg.Engine, s.logger)
	planner := scheduler.NewPlanner(gen, periods, s.units, s.logger)
	result, err := planner.Run(ctx, req.CourseIDs, tracker)
	status := string(models.RunLogStatusSuccess)
	switch {
	case err != nil:
		status = string(models.RunLogStatusError)
	case len(result.Errors) > 0:
		status = string(models.RunLogStatusWarning)
	}
	shortfall := 0
	for _, id := range req.CourseIDs {
		_, remaining := gen.Remaining(id)
		shortfall += remaining
	}
	created := 0
	if result != nil {
		created = result.Created
	}
	s.metrics.ObserveGeneration("plan", status, created, shortfall, time.Since(started))
	return result, err
}

// ClearCourse deletes the sessions and run logs of a course in one transaction.
func (s *TimetableService) ClearCourse(ctx context.Context, courseID int64) (*dto.ClearCourseResponse, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, err
	}
	resp := &dto.ClearCourseResponse{CourseID: courseID}
	err := database.RunInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		if resp.SessionsDeleted, err = s.sessions.DeleteByCourse(ctx, tx, courseID); err != nil {
			return err
		}
		resp.RunLogsDeleted, err = s.runLogs.DeleteByCourse(ctx, tx, courseID)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear course")
	}
	s.logger.Sugar().Infow("course cleared", "course_id", courseID, "sessions", resp.SessionsDeleted, "run_logs", resp.RunLogsDeleted)
	return resp, nil
}

// RunLogs lists the latest run logs of a course.
func (s *TimetableService) RunLogs(ctx context.Context, courseID int64, limit int) ([]models.RunLog, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, err
	}
	return s.runLogs.ListByCourse(ctx, courseID, limit)
}

// Export renders the timetable of a class group between two inclusive dates.
func (s *TimetableService) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportFile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	from, _ := time.ParseInLocation("2006-01-02", req.From, s.cfg.Location)
	to, _ := time.ParseInLocation("2006-01-02", req.To, s.cfg.Location)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	groups, err := s.resources.ListClassGroups(ctx)
	if err != nil {
		return nil, err
	}
	groupNames := make(map[int64]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}
	groupName, ok := groupNames[req.ClassGroupID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class group %d not found", req.ClassGroupID))
	}

	sessions, err := s.sessions.ListByClassGroup(ctx, req.ClassGroupID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if len(sessions) > s.cfg.ExportMaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export exceeds %d rows, narrow the date range", s.cfg.ExportMaxRows))
	}

	rows, err := s.exportRows(ctx, sessions, groupNames)
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("timetable-%s-%s-%s", slug(groupName), req.From, req.To)
	if req.Format == "pdf" {
		title := fmt.Sprintf("%s %s, %s to %s", s.cfg.PDFTitle, groupName, req.From, req.To)
		data, err := s.pdf.Render(rows, strings.TrimSpace(title))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &dto.ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	}
	data, err := s.csv.Render(rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return &dto.ExportFile{Filename: base + ".csv", ContentType: "text/csv", Data: data}, nil
}

func (s *TimetableService) exportRows(ctx context.Context, sessions []models.Session, groupNames map[int64]string) ([]export.SessionRow, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, err
	}
	teachers, err := s.resources.ListTeachers(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := s.resources.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	courseByID := make(map[int64]models.Course, len(courses))
	for _, c := range courses {
		courseByID[c.ID] = c
	}
	teacherNames := make(map[int64]string, len(teachers))
	for _, t := range teachers {
		teacherNames[t.ID] = t.Name
	}
	roomNames := make(map[int64]string, len(rooms))
	for _, r := range rooms {
		roomNames[r.ID] = r.Name
	}

	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Start.Before(sessions[j].Start) })
	rows := make([]export.SessionRow, 0, len(sessions))
	for _, session := range sessions {
		start := session.Start.In(s.cfg.Location)
		end := session.End.In(s.cfg.Location)
		course := courseByID[session.CourseID]
		attendees := make([]string, 0, len(session.AttendeeIDs))
		for _, id := range session.AttendeeIDs {
			attendees = append(attendees, groupNames[id])
		}
		rows = append(rows, export.SessionRow{
			Date:     start.Format("2006-01-02"),
			Weekday:  start.Weekday().String(),
			Start:    start.Format("15:04"),
			End:      end.Format("15:04"),
			Course:   course.Name,
			Type:     string(course.Type),
			Subgroup: session.Subgroup,
			Teacher:  teacherNames[session.TeacherID],
			Room:     roomNames[session.RoomID],
			Groups:   strings.Join(attendees, " "),
		})
	}
	return rows, nil
}

// loadDataset reads every entity the engine needs to check conflicts across courses.
func (s *TimetableService) loadDataset(ctx context.Context) (*scheduler.Dataset, []models.ClosingPeriod, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	links, err := s.courses.ListLinks(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	groups, err := s.resources.ListClassGroups(ctx)
	if err != nil {
		return nil, nil, err
	}
	teachers, err := s.resources.ListTeachers(ctx)
	if err != nil {
		return nil, nil, err
	}
	rooms, err := s.resources.ListRooms(ctx)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	var periods []models.ClosingPeriod
	if s.closing != nil {
		if periods, err = s.closing.List(ctx); err != nil {
			return nil, nil, err
		}
	}

	ds, err := scheduler.NewDataset(scheduler.DatasetInput{
		Courses:  courses,
		Links:    links,
		Groups:   groups,
		Teachers: teachers,
		Rooms:    rooms,
		Sessions: sessions,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, err.Error())
	}
	return ds, periods, nil
}

func (s *TimetableService) inLocation(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	local := t.In(s.cfg.Location)
	return &local
}

// closingDays expands closing periods into the calendar days they cover.
func closingDays(periods []models.ClosingPeriod, loc *time.Location) []time.Time {
	var days []time.Time
	for _, p := range periods {
		end := midnight(p.EndDate, loc)
		for day := midnight(p.StartDate, loc); !day.After(end); day = day.AddDate(0, 0, 1) {
			days = append(days, day)
		}
	}
	return days
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "-")
}
