package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

func schedulerOptions() scheduler.Options {
	return scheduler.Options{AllowSplit: true, EnforceChronology: true, MaxPermutations: 2}
}

func TestTimetableServiceGenerateCoursePersistsSessions(t *testing.T) {
	f := newTimetableFixture()
	svc := f.service(nil)
	tracker := progress.NewTracker("job-1", "course 7", nil)

	summary, err := svc.GenerateCourse(context.Background(), dto.GenerateCourseRequest{CourseID: 7}, tracker)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SessionsCreated)
	assert.Equal(t, 4, summary.PlacedHours)
	assert.Zero(t, summary.ShortfallHours)
	assert.Equal(t, models.RunLogStatusSuccess, summary.RunLog.Status)

	require.Len(t, f.units.sessions, 2)
	require.Len(t, f.units.logs, 1)
	for _, s := range f.units.sessions {
		assert.Greater(t, s.ID, int64(0))
		assert.Equal(t, int64(1), s.TeacherID)
		assert.Equal(t, 2, s.Hours())
	}
	snap := tracker.Snapshot()
	assert.Equal(t, progress.StateRunning, snap.State)
	assert.Equal(t, 4, snap.TotalHours)
	assert.Equal(t, 2, snap.SessionsCreated)
}

func TestTimetableServiceGenerateCourseSkipsPlacedHours(t *testing.T) {
	f := newTimetableFixture()
	at := monday.Add(8 * time.Hour)
	f.sessions.sessions = []models.Session{
		{ID: 1, CourseID: 7, TeacherID: 1, RoomID: 1, ClassGroupID: 1, AttendeeIDs: pq.Int64Array{1}, Start: at, End: at.Add(2 * time.Hour)},
		{ID: 2, CourseID: 7, TeacherID: 1, RoomID: 1, ClassGroupID: 1, AttendeeIDs: pq.Int64Array{1}, Start: at.AddDate(0, 0, 2), End: at.AddDate(0, 0, 2).Add(2 * time.Hour)},
	}

	summary, err := f.service(nil).GenerateCourse(context.Background(), dto.GenerateCourseRequest{CourseID: 7}, nil)
	require.NoError(t, err)
	assert.Zero(t, summary.SessionsCreated)
	assert.Empty(t, f.units.sessions)
}

func TestTimetableServiceGenerateCourseValidation(t *testing.T) {
	_, err := newTimetableFixture().service(nil).GenerateCourse(context.Background(), dto.GenerateCourseRequest{}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTimetableServiceGenerateCoursePersistsErrorRunLog(t *testing.T) {
	f := newTimetableFixture()

	_, err := f.service(nil).GenerateCourse(context.Background(), dto.GenerateCourseRequest{CourseID: 8}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Empty(t, f.units.sessions)
	require.Len(t, f.units.logs, 1)
	assert.Equal(t, models.RunLogStatusError, f.units.logs[0].Status)
	assert.Contains(t, f.units.logs[0].Summary, "no class group")
}

func TestTimetableServiceGenerateCourseStoreFailure(t *testing.T) {
	f := newTimetableFixture()
	f.units.err = errors.New("connection reset")

	_, err := f.service(nil).GenerateCourse(context.Background(), dto.GenerateCourseRequest{CourseID: 7}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestTimetableServiceRunWeeklyPlan(t *testing.T) {
	f := newTimetableFixture()
	tracker := progress.NewTracker("job-2", "plan", nil)

	result, err := f.service(nil).RunWeeklyPlan(context.Background(), dto.WeeklyPlanRequest{CourseIDs: []int64{7, 8}}, tracker)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Weeks)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, int64(8), result.Errors[0].CourseID)
	assert.Len(t, f.units.sessions, 2)

	snap := tracker.Snapshot()
	assert.Equal(t, progress.StateSuccess, snap.State)
	assert.Equal(t, 100, snap.Percent)
}

func TestTimetableServiceRunWeeklyPlanValidation(t *testing.T) {
	_, err := newTimetableFixture().service(nil).RunWeeklyPlan(context.Background(), dto.WeeklyPlanRequest{}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestTimetableServiceClearCourse(t *testing.T) {
	f := newTimetableFixture()
	f.sessions.deleted = 4
	f.runLogs.deleted = 2
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := f.service(db).ClearCourse(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.SessionsDeleted)
	assert.Equal(t, int64(2), resp.RunLogsDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceClearCourseRollsBack(t *testing.T) {
	f := newTimetableFixture()
	f.sessions.err = errors.New("lock timeout")
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.service(db).ClearCourse(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceClearCourseNotFound(t *testing.T) {
	_, err := newTimetableFixture().service(nil).ClearCourse(context.Background(), 99)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTimetableServiceRunLogs(t *testing.T) {
	f := newTimetableFixture()
	f.runLogs.logs = []models.RunLog{{ID: "a", CourseID: 7}, {ID: "b", CourseID: 8}}

	logs, err := f.service(nil).RunLogs(context.Background(), 7, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "a", logs[0].ID)
}

func TestTimetableServiceExportCSV(t *testing.T) {
	f := newTimetableFixture()
	at := monday.Add(8 * time.Hour)
	f.sessions.sessions = []models.Session{
		{ID: 2, CourseID: 7, TeacherID: 1, RoomID: 1, ClassGroupID: 1, AttendeeIDs: pq.Int64Array{1}, Start: at.AddDate(0, 0, 4), End: at.AddDate(0, 0, 4).Add(2 * time.Hour)},
		{ID: 1, CourseID: 7, TeacherID: 1, RoomID: 1, ClassGroupID: 1, AttendeeIDs: pq.Int64Array{1}, Start: at, End: at.Add(2 * time.Hour)},
		{ID: 3, CourseID: 7, TeacherID: 1, RoomID: 1, ClassGroupID: 1, AttendeeIDs: pq.Int64Array{1}, Start: at.AddDate(0, 0, 7), End: at.AddDate(0, 0, 7).Add(2 * time.Hour)},
	}

	file, err := f.service(nil).Export(context.Background(), dto.ExportRequest{ClassGroupID: 1, From: "2024-01-08", To: "2024-01-12", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "timetable-x1-2024-01-08-2024-01-12.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2024-01-08,Monday,08:00,10:00,Algebra TD,TUTORIAL,,Ada,R30,X1", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2024-01-12,Friday"))
}

func TestTimetableServiceExportPDF(t *testing.T) {
	file, err := newTimetableFixture().service(nil).Export(context.Background(), dto.ExportRequest{ClassGroupID: 1, From: "2024-01-08", To: "2024-01-12", Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestTimetableServiceExportRejectsBadQueries(t *testing.T) {
	svc := newTimetableFixture().service(nil)
	ctx := context.Background()

	_, err := svc.Export(ctx, dto.ExportRequest{ClassGroupID: 1, From: "2024-01-08", To: "2024-01-12", Format: "xls"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(ctx, dto.ExportRequest{ClassGroupID: 1, From: "2024-01-12", To: "2024-01-08", Format: "csv"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(ctx, dto.ExportRequest{ClassGroupID: 5, From: "2024-01-08", To: "2024-01-12", Format: "csv"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestClosingDaysExpandsInclusiveRanges(t *testing.T) {
	days := closingDays([]models.ClosingPeriod{{StartDate: monday, EndDate: monday.AddDate(0, 0, 2)}}, time.UTC)
	require.Len(t, days, 3)
	assert.True(t, models.SameDate(days[2], monday.AddDate(0, 0, 2)))
}
