package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// RunLogRepository stores generation audit records.
type RunLogRepository struct {
	db *sqlx.DB
}

// NewRunLogRepository constructs the repository.
func NewRunLogRepository(db *sqlx.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

// CreateBatch inserts run logs.
func (r *RunLogRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, logs []*models.RunLog) error {
	const query = `INSERT INTO run_logs (id, course_id, status, entries, summary, window_start, window_end, created_at)
		VALUES (:id, :course_id, :status, :entries, :summary, :window_start, :window_end, :created_at)`
	for _, log := range logs {
		if _, err := sqlx.NamedExecContext(ctx, exec, query, log); err != nil {
			return fmt.Errorf("insert run log %s: %w", log.ID, err)
		}
	}
	return nil
}

// ListByCourse returns the most recent run logs of a course, newest first.
func (r *RunLogRepository) ListByCourse(ctx context.Context, courseID int64, limit int) ([]models.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, course_id, status, entries, summary, window_start, window_end, created_at
		FROM run_logs WHERE course_id = $1 ORDER BY created_at DESC LIMIT $2`
	var logs []models.RunLog
	if err := r.db.SelectContext(ctx, &logs, query, courseID, limit); err != nil {
		return nil, fmt.Errorf("list run logs of course %d: %w", courseID, err)
	}
	return logs, nil
}

// DeleteByCourse removes the run logs of a course.
func (r *RunLogRepository) DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) (int64, error) {
	res, err := exec.ExecContext(ctx, `DELETE FROM run_logs WHERE course_id = $1`, courseID)
	if err != nil {
		return 0, fmt.Errorf("delete run logs of course %d: %w", courseID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted run logs: %w", err)
	}
	return affected, nil
}
