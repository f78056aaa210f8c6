package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

// GenerateCourseRequest asks for the outstanding hours of one course to be placed.
type GenerateCourseRequest struct {
	CourseID     int64      `json:"courseId" validate:"required,min=1"`
	WindowStart  *time.Time `json:"windowStart"`
	WindowEnd    *time.Time `json:"windowEnd"`
	WeeklyTarget int        `json:"weeklyTarget" validate:"omitempty,min=1,max=60"`
}

// WeeklyPlanRequest asks for several courses to be spread over the weeks of their spans.
type WeeklyPlanRequest struct {
	CourseIDs []int64 `json:"courseIds" validate:"required,min=1,dive,min=1"`
}

// GenerationSummary reports the outcome of a course run.
type GenerationSummary struct {
	CourseID        int64          `json:"courseId"`
	SessionsCreated int            `json:"sessionsCreated"`
	NeededHours     int            `json:"neededHours"`
	PlacedHours     int            `json:"placedHours"`
	ShortfallHours  int            `json:"shortfallHours"`
	RunLog          *models.RunLog `json:"runLog"`
}

// ClearCourseResponse reports what a course reset removed.
type ClearCourseResponse struct {
	CourseID        int64 `json:"courseId"`
	SessionsDeleted int64 `json:"sessionsDeleted"`
	RunLogsDeleted  int64 `json:"runLogsDeleted"`
}

// JobAccepted is returned when a generation job is queued.
type JobAccepted struct {
	JobID string `json:"jobId"`
	Kind  string `json:"kind"`
}

// JobStatus is the pollable view of a generation job.
type JobStatus struct {
	progress.Snapshot
	Kind   string      `json:"kind"`
	Result interface{} `json:"result,omitempty"`
}

// ExportRequest selects the class group and date range of a timetable export.
type ExportRequest struct {
	ClassGroupID int64  `form:"classGroupId" validate:"required,min=1"`
	From         string `form:"from" validate:"required,datetime=2006-01-02"`
	To           string `form:"to" validate:"required,datetime=2006-01-02"`
	Format       string `form:"format" validate:"required,oneof=csv pdf"`
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
