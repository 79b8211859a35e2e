package savecolorresult

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"personal-color-workers/internal/models"
)

const insertColorResult = `INSERT INTO color_results (
	id, user_id, request_id, personal_color_type, season, subtype, undertone,
	confidence, aggregation_method, agreement_ratio, reasoning, model_results, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Store writes color results to Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, r *models.ColorResult) error {
	_, err := s.db.ExecContext(ctx, insertColorResult,
		r.ID,
		r.UserID,
		r.RequestID,
		r.PersonalColorType,
		r.Season,
		r.Subtype,
		r.Undertone,
		r.Confidence,
		r.AggregationMethod,
		r.AgreementRatio,
		r.Reasoning,
		string(r.ModelResults),
		r.CreatedAt,
	)
	return err
}

// connectionLost reports whether err means Postgres could not be reached,
// as opposed to the statement being rejected.
func connectionLost(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
