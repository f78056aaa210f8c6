package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/database"
)

type sessionWriter interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []*models.Session) error
}

type runLogWriter interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, logs []*models.RunLog) error
}

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// UnitStore writes the sessions and run logs of one planning unit in a single transaction.
type UnitStore struct {
	db       txBeginner
	sessions sessionWriter
	logs     runLogWriter
}

// NewUnitStore constructs the store.
func NewUnitStore(db txBeginner, sessions sessionWriter, logs runLogWriter) *UnitStore {
	return &UnitStore{db: db, sessions: sessions, logs: logs}
}

// SaveUnit persists the unit; nothing is written when any insert fails.
func (s *UnitStore) SaveUnit(ctx context.Context, sessions []*models.Session, logs []*models.RunLog) error {
	return database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if len(sessions) > 0 {
			if err := s.sessions.CreateBatch(ctx, tx, sessions); err != nil {
				return err
			}
		}
		if len(logs) > 0 {
			return s.logs.CreateBatch(ctx, tx, logs)
		}
		return nil
	})
}
