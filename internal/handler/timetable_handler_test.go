package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

type generationJobsMock struct {
	course dto.GenerateCourseRequest
	plan   dto.WeeklyPlanRequest
	err    error
}

func (m *generationJobsMock) SubmitCourse(_ context.Context, req dto.GenerateCourseRequest) (*dto.JobAccepted, error) {
	m.course = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.JobAccepted{JobID: "job-1", Kind: "course_generation"}, nil
}

func (m *generationJobsMock) SubmitPlan(_ context.Context, req dto.WeeklyPlanRequest) (*dto.JobAccepted, error) {
	m.plan = req
	return &dto.JobAccepted{JobID: "job-2", Kind: "weekly_plan"}, nil
}

func (m *generationJobsMock) Status(_ context.Context, jobID string) (*dto.JobStatus, error) {
	if jobID != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &dto.JobStatus{Snapshot: progress.Snapshot{JobID: jobID, State: progress.StateRunning, Percent: 42}, Kind: "course_generation"}, nil
}

type timetableManagerMock struct {
	limit  int
	export dto.ExportRequest
}

func (m *timetableManagerMock) ClearCourse(_ context.Context, courseID int64) (*dto.ClearCourseResponse, error) {
	return &dto.ClearCourseResponse{CourseID: courseID, SessionsDeleted: 3, RunLogsDeleted: 1}, nil
}

func (m *timetableManagerMock) RunLogs(_ context.Context, courseID int64, limit int) ([]models.RunLog, error) {
	m.limit = limit
	return []models.RunLog{{ID: "log-1", CourseID: courseID, Status: models.RunLogStatusWarning}}, nil
}

func (m *timetableManagerMock) Export(_ context.Context, req dto.ExportRequest) (*dto.ExportFile, error) {
	m.export = req
	return &dto.ExportFile{Filename: "timetable-x1.csv", ContentType: "text/csv", Data: []byte("date,weekday\n")}, nil
}

func newTimetableRouter(jobs *generationJobsMock, manager *timetableManagerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewTimetableHandler(jobs, manager).Register(router.Group("/timetable"))
	return router
}

func serve(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerGenerateCourseAccepted(t *testing.T) {
	jobs := &generationJobsMock{}
	router := newTimetableRouter(jobs, &timetableManagerMock{})

	w := serve(router, http.MethodPost, "/timetable/courses/7/generate", []byte(`{"windowStart":"2024-01-08","windowEnd":"2024-01-19","weeklyTarget":4}`))

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, int64(7), jobs.course.CourseID)
	assert.Equal(t, 4, jobs.course.WeeklyTarget)
	require.NotNil(t, jobs.course.WindowStart)
	assert.Equal(t, "2024-01-08", jobs.course.WindowStart.Format("2006-01-02"))

	var body struct {
		Data dto.JobAccepted `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "job-1", body.Data.JobID)
}

func TestTimetableHandlerGenerateCourseWithoutBody(t *testing.T) {
	jobs := &generationJobsMock{}
	w := serve(newTimetableRouter(jobs, &timetableManagerMock{}), http.MethodPost, "/timetable/courses/7/generate", nil)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Nil(t, jobs.course.WindowStart)
}

func TestTimetableHandlerGenerateCourseRejectsBadInput(t *testing.T) {
	router := newTimetableRouter(&generationJobsMock{}, &timetableManagerMock{})

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/timetable/courses/abc/generate", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/timetable/courses/7/generate", []byte(`{"windowStart":"08/01/2024"}`)).Code)
}

func TestTimetableHandlerGenerateCourseQueueError(t *testing.T) {
	jobs := &generationJobsMock{err: appErrors.New("QUEUE_UNAVAILABLE", http.StatusServiceUnavailable, "generation queue unavailable")}
	w := serve(newTimetableRouter(jobs, &timetableManagerMock{}), http.MethodPost, "/timetable/courses/7/generate", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "QUEUE_UNAVAILABLE")
}

func TestTimetableHandlerSubmitPlan(t *testing.T) {
	jobs := &generationJobsMock{}
	w := serve(newTimetableRouter(jobs, &timetableManagerMock{}), http.MethodPost, "/timetable/plans", []byte(`{"courseIds":[7,8]}`))

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []int64{7, 8}, jobs.plan.CourseIDs)
}

func TestTimetableHandlerJobStatus(t *testing.T) {
	router := newTimetableRouter(&generationJobsMock{}, &timetableManagerMock{})

	w := serve(router, http.MethodGet, "/timetable/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"percent":42`)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/timetable/jobs/unknown", nil).Code)
}

func TestTimetableHandlerRunLogs(t *testing.T) {
	manager := &timetableManagerMock{}
	router := newTimetableRouter(&generationJobsMock{}, manager)

	w := serve(router, http.MethodGet, "/timetable/courses/7/run-logs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, manager.limit)
	assert.Contains(t, w.Body.String(), `"count":1`)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/timetable/courses/7/run-logs?limit=0", nil).Code)
}

func TestTimetableHandlerClearCourse(t *testing.T) {
	w := serve(newTimetableRouter(&generationJobsMock{}, &timetableManagerMock{}), http.MethodDelete, "/timetable/courses/7/sessions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessionsDeleted":3`)
}

func TestTimetableHandlerExport(t *testing.T) {
	manager := &timetableManagerMock{}
	w := serve(newTimetableRouter(&generationJobsMock{}, manager), http.MethodGet, "/timetable/exports?classGroupId=1&from=2024-01-08&to=2024-01-12&format=csv", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="timetable-x1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, int64(1), manager.export.ClassGroupID)
	assert.Equal(t, "csv", manager.export.Format)
}
