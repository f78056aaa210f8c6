package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// ResourceRepository reads the class groups, teachers and rooms the engine assigns.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// ListClassGroups returns every class group.
func (r *ResourceRepository) ListClassGroups(ctx context.Context) ([]models.ClassGroup, error) {
	const query = `SELECT id, name, size, closed_weekends, blackout_dates, created_at FROM class_groups ORDER BY id`
	var groups []models.ClassGroup
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list class groups: %w", err)
	}
	return groups, nil
}

// ListTeachers returns every teacher with availability and blackouts.
func (r *ResourceRepository) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, name, availability, blackouts, max_weekly_hours, created_at, updated_at FROM teachers ORDER BY id`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListRooms returns every room.
func (r *ResourceRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, computers, equipment_ids, software, created_at FROM rooms ORDER BY capacity, id`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
