package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// runLogger builds one RunLog incrementally and mirrors every entry to zap.
type runLogger struct {
	log       *models.RunLog
	logger    *zap.SugaredLogger
	warnings  int
	finalized bool
}

func newRunLogger(courseID int64, now time.Time, logger *zap.Logger) *runLogger {
	return &runLogger{
		log: &models.RunLog{
			ID:        uuid.NewString(),
			CourseID:  courseID,
			CreatedAt: now,
		},
		logger: logger.Sugar().With("course_id", courseID),
	}
}

func (r *runLogger) window(start, end time.Time) {
	r.log.WindowStart = &start
	r.log.WindowEnd = &end
}

func (r *runLogger) info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.append(models.RunLogLevelInfo, msg)
	r.logger.Debugw(msg)
}

func (r *runLogger) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.warnings++
	r.append(models.RunLogLevelWarning, msg)
	r.logger.Warnw(msg)
}

func (r *runLogger) append(level models.RunLogLevel, msg string) {
	if r.finalized {
		return
	}
	r.log.Entries = append(r.log.Entries, models.RunLogEntry{Level: level, Message: msg})
}

// fail finalizes the log with an error status and the error as summary.
func (r *runLogger) fail(err error) *models.RunLog {
	if r.finalized {
		return r.log
	}
	r.append(models.RunLogLevelError, err.Error())
	r.log.Status = models.RunLogStatusError
	r.log.Summary = err.Error()
	r.finalized = true
	r.logger.Warnw("schedule generation failed", "error", err)
	return r.log
}

// finish finalizes the log; any warning downgrades the status.
func (r *runLogger) finish(summary string) *models.RunLog {
	if r.finalized {
		return r.log
	}
	r.log.Status = models.RunLogStatusSuccess
	if r.warnings > 0 {
		r.log.Status = models.RunLogStatusWarning
	}
	r.log.Summary = summary
	r.finalized = true
	r.logger.Infow("schedule generation finished", "status", r.log.Status, "summary", summary)
	return r.log
}
