package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// ClosingPeriodRepository reads institution-wide closures.
type ClosingPeriodRepository struct {
	db *sqlx.DB
}

// NewClosingPeriodRepository constructs the repository.
func NewClosingPeriodRepository(db *sqlx.DB) *ClosingPeriodRepository {
	return &ClosingPeriodRepository{db: db}
}

// List returns every closing period ordered by start date.
func (r *ClosingPeriodRepository) List(ctx context.Context) ([]models.ClosingPeriod, error) {
	const query = `SELECT id, label, start_date, end_date FROM closing_periods ORDER BY start_date, id`
	var periods []models.ClosingPeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list closing periods: %w", err)
	}
	return periods, nil
}
