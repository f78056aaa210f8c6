package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type generationJobs interface {
	SubmitCourse(ctx context.Context, req dto.GenerateCourseRequest) (*dto.JobAccepted, error)
	SubmitPlan(ctx context.Context, req dto.WeeklyPlanRequest) (*dto.JobAccepted, error)
	Status(ctx context.Context, jobID string) (*dto.JobStatus, error)
}

type timetableManager interface {
	ClearCourse(ctx context.Context, courseID int64) (*dto.ClearCourseResponse, error)
	RunLogs(ctx context.Context, courseID int64, limit int) ([]models.RunLog, error)
	Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportFile, error)
}

// TimetableHandler exposes generation jobs, run logs, course resets and exports.
type TimetableHandler struct {
	jobs      generationJobs
	timetable timetableManager
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(jobs generationJobs, timetable timetableManager) *TimetableHandler {
	return &TimetableHandler{jobs: jobs, timetable: timetable}
}

// Register mounts the timetable routes on the group.
func (h *TimetableHandler) Register(group *gin.RouterGroup) {
	group.POST("/courses/:id/generate", h.GenerateCourse)
	group.GET("/courses/:id/run-logs", h.RunLogs)
	group.DELETE("/courses/:id/sessions", h.ClearCourse)
	group.POST("/plans", h.SubmitPlan)
	group.GET("/jobs/:jobId", h.JobStatus)
	group.GET("/exports", h.Export)
}

type generateCoursePayload struct {
	WindowStart  *string `json:"windowStart"`
	WindowEnd    *string `json:"windowEnd"`
	WeeklyTarget int     `json:"weeklyTarget"`
}

// GenerateCourse godoc
// @Summary Queue generation of one course
// @Description Places the outstanding hours of the course inside its window. Poll the returned job id for progress.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body generateCoursePayload false "Optional window override (YYYY-MM-DD) and weekly target"
// @Success 202 {object} response.Envelope
// @Router /timetable/courses/{id}/generate [post]
func (h *TimetableHandler) GenerateCourse(c *gin.Context) {
	courseID, ok := pathID(c)
	if !ok {
		return
	}
	var payload generateCoursePayload
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	req := dto.GenerateCourseRequest{CourseID: courseID, WeeklyTarget: payload.WeeklyTarget}
	var err error
	if req.WindowStart, err = parseDate(payload.WindowStart); err != nil {
		response.Error(c, err)
		return
	}
	if req.WindowEnd, err = parseDate(payload.WindowEnd); err != nil {
		response.Error(c, err)
		return
	}

	accepted, err := h.jobs.SubmitCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, accepted, nil)
}

// SubmitPlan godoc
// @Summary Queue a weekly plan over several courses
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.WeeklyPlanRequest true "Courses to plan"
// @Success 202 {object} response.Envelope
// @Router /timetable/plans [post]
func (h *TimetableHandler) SubmitPlan(c *gin.Context) {
	var req dto.WeeklyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	accepted, err := h.jobs.SubmitPlan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, accepted, nil)
}

// JobStatus godoc
// @Summary Poll a generation job
// @Tags Timetable
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/jobs/{jobId} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	status, err := h.jobs.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// RunLogs godoc
// @Summary List the latest run logs of a course
// @Tags Timetable
// @Produce json
// @Param id path int true "Course ID"
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {object} response.Envelope
// @Router /timetable/courses/{id}/run-logs [get]
func (h *TimetableHandler) RunLogs(c *gin.Context) {
	courseID, ok := pathID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}
	logs, err := h.timetable.RunLogs(c.Request.Context(), courseID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil, map[string]interface{}{"count": len(logs)})
}

// ClearCourse godoc
// @Summary Delete every session and run log of a course
// @Tags Timetable
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/courses/{id}/sessions [delete]
func (h *TimetableHandler) ClearCourse(c *gin.Context) {
	courseID, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.timetable.ClearCourse(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Export godoc
// @Summary Export the timetable of a class group
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param classGroupId query int true "Class group ID"
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Param format query string true "csv or pdf"
// @Success 200 {file} file
// @Router /timetable/exports [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.timetable.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "dates must use YYYY-MM-DD")
	}
	return &t, nil
}
