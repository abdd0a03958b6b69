package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

const currencyColumns = `id, code, fraction_digits, created_at`

type CurrencyRepository struct {
	db *sql.DB
}

func NewCurrencyRepository(db *sql.DB) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

func (r *CurrencyRepository) Create(ctx context.Context, c *domain.Currency) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO currencies (id, code, fraction_digits, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, c.Code, c.FractionDigits, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CurrencyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Currency, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+currencyColumns+` FROM currencies WHERE id = $1`, id,
	)
	var c domain.Currency
	if err := row.Scan(&c.ID, &c.Code, &c.FractionDigits, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrInvalidCurrency)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &c, nil
}
