package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

const providerColumns = `id, name, image_url, active, created_at, updated_at, deleted_at`

type ProviderRepository struct {
	db *sql.DB
}

func NewProviderRepository(db *sql.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(ctx context.Context, p *domain.PaymentProvider) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_providers (id, name, image_url, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.ImageURL, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentProvider, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM payment_providers WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *ProviderRepository) List(ctx context.Context) ([]domain.PaymentProvider, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM payment_providers WHERE deleted_at IS NULL ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var providers []domain.PaymentProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		providers = append(providers, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return providers, nil
}

// Deactivate retires a provider. Providers are never hard-deleted.
func (r *ProviderRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_providers SET active = FALSE, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("Deactivate: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Deactivate: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Deactivate: %w", domain.ErrNotFound)
	}
	return nil
}

func scanProvider(s scanner) (*domain.PaymentProvider, error) {
	var p domain.PaymentProvider
	err := s.Scan(&p.ID, &p.Name, &p.ImageURL, &p.Active, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
