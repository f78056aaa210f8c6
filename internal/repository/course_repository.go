package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

const courseColumns = `id, name, subject, type, session_length, required_occurrences, start_date, end_date, requires_computers, equipment_ids, software, priority, sessions_per_week, created_at, updated_at`

// CourseRepository reads courses and their class links.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a single course.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %d not found", id))
		}
		return nil, fmt.Errorf("find course %d: %w", id, err)
	}
	return &course, nil
}

// List returns every course ordered by id.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY id`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListLinks returns the class links of the given courses, or of every course when ids is empty.
func (r *CourseRepository) ListLinks(ctx context.Context, courseIDs []int64) ([]models.ClassLink, error) {
	const base = `SELECT id, course_id, class_group_id, group_count, teacher_a_id, teacher_b_id, subgroup_name_a, subgroup_name_b
		FROM course_class_links`
	var (
		links []models.ClassLink
		err   error
	)
	if len(courseIDs) == 0 {
		err = r.db.SelectContext(ctx, &links, base+` ORDER BY course_id, id`)
	} else {
		err = r.db.SelectContext(ctx, &links, base+` WHERE course_id = ANY($1) ORDER BY course_id, id`, pq.Array(courseIDs))
	}
	if err != nil {
		return nil, fmt.Errorf("list class links: %w", err)
	}
	return links, nil
}
