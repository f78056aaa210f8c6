package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

const sessionColumns = `id, course_id, teacher_id, room_id, class_group_id, subgroup, attendee_ids, start_at, end_at, created_at`

// SessionRepository persists placed sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns every stored session ordered by start.
func (r *SessionRepository) List(ctx context.Context) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY start_at, id`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListByClassGroup returns the sessions attended by a class group within [from, to).
func (r *SessionRepository) ListByClassGroup(ctx context.Context, groupID int64, from, to time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE (class_group_id = $1 OR $1 = ANY(attendee_ids)) AND start_at >= $2 AND start_at < $3
		ORDER BY start_at, id`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, groupID, from, to); err != nil {
		return nil, fmt.Errorf("list sessions for class group %d: %w", groupID, err)
	}
	return sessions, nil
}

// CreateBatch inserts sessions and replaces their provisional ids with the stored ones.
func (r *SessionRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []*models.Session) error {
	const query = `INSERT INTO sessions (course_id, teacher_id, room_id, class_group_id, subgroup, attendee_ids, start_at, end_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	now := time.Now().UTC()
	for _, s := range sessions {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		var id int64
		row := exec.QueryRowxContext(ctx, query,
			s.CourseID, s.TeacherID, s.RoomID, s.ClassGroupID, s.Subgroup, s.AttendeeIDs, s.Start, s.End, s.CreatedAt)
		if err := row.Scan(&id); err != nil {
			return fmt.Errorf("insert session for course %d: %w", s.CourseID, err)
		}
		s.ID = id
	}
	return nil
}

// DeleteByCourse removes every session of a course and reports how many were deleted.
func (r *SessionRepository) DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) (int64, error) {
	res, err := exec.ExecContext(ctx, `DELETE FROM sessions WHERE course_id = $1`, courseID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions of course %d: %w", courseID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted sessions: %w", err)
	}
	return affected, nil
}
