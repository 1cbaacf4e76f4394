package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/deals-backend/internal/dealcode"
	"github.com/fairyhunter13/deals-backend/internal/model"
)

// DealCodeRepository provides data access for issued deal codes using pgx.
// It implements dealcode.Store.
type DealCodeRepository struct {
	pool PoolInterface
}

// NewDealCodeRepository creates a new DealCodeRepository with the given pool.
func NewDealCodeRepository(pool *pgxpool.Pool) *DealCodeRepository {
	return &DealCodeRepository{pool: pool}
}

// NewDealCodeRepositoryWithPool creates a new DealCodeRepository with a custom pool interface.
// This is primarily used for testing.
func NewDealCodeRepositoryWithPool(pool PoolInterface) *DealCodeRepository {
	return &DealCodeRepository{pool: pool}
}

// Latest returns the most recently issued code across all dates and issuer types.
// Returns nil, nil when no code has been issued yet.
func (r *DealCodeRepository) Latest(ctx context.Context) (*model.DealCodeRecord, error) {
	query := `SELECT code, deal_date, sequence_number, issuer_type, created_at
		FROM deal_codes
		ORDER BY deal_date DESC, created_at DESC
		LIMIT 1`

	var (
		rec    model.DealCodeRecord
		issuer string
	)
	err := r.pool.QueryRow(ctx, query).Scan(
		&rec.Code,
		&rec.DealDate,
		&rec.SequenceNumber,
		&issuer,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest deal code: %w", err)
	}
	rec.IssuerType = model.IssuerType(issuer)
	return &rec, nil
}

// Insert stores a newly issued code.
// Returns dealcode.ErrDuplicateCode if the code, or the sequence number for
// the deal date, already exists.
func (r *DealCodeRepository) Insert(ctx context.Context, rec *model.DealCodeRecord) error {
	query := `INSERT INTO deal_codes (code, deal_date, sequence_number, issuer_type, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		rec.Code, rec.DealDate, rec.SequenceNumber, string(rec.IssuerType), rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return dealcode.ErrDuplicateCode
		}
		return fmt.Errorf("insert deal code %s: %w", rec.Code, err)
	}
	return nil
}
