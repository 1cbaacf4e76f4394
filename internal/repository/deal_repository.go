package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/deals-backend/internal/model"
	"github.com/fairyhunter13/deals-backend/internal/service"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DealRepository provides data access for deals using pgx.
type DealRepository struct {
	pool PoolInterface
}

// NewDealRepository creates a new DealRepository with the given pool.
func NewDealRepository(pool *pgxpool.Pool) *DealRepository {
	return &DealRepository{pool: pool}
}

// NewDealRepositoryWithPool creates a new DealRepository with a custom pool interface.
// This is primarily used for testing.
func NewDealRepositoryWithPool(pool PoolInterface) *DealRepository {
	return &DealRepository{pool: pool}
}

// Insert inserts a new deal into the database.
// Returns service.ErrDealExists if a deal with the same code already exists.
func (r *DealRepository) Insert(ctx context.Context, deal *model.Deal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO deals (id, code, title, issuer_type, deal_date, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		deal.ID, deal.Code, deal.Title, string(deal.IssuerType), deal.DealDate, deal.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return service.ErrDealExists
		}
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

// GetByCode retrieves a deal by its deal code.
// Returns nil, nil if the deal is not found (service layer handles this).
func (r *DealRepository) GetByCode(ctx context.Context, code string) (*model.Deal, error) {
	query := `SELECT id, code, title, issuer_type, deal_date, created_at FROM deals WHERE code = $1`

	var (
		deal   model.Deal
		issuer string
	)
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&deal.ID,
		&deal.Code,
		&deal.Title,
		&issuer,
		&deal.DealDate,
		&deal.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get deal by code %s: %w", code, err)
	}
	deal.IssuerType = model.IssuerType(issuer)
	return &deal, nil
}
