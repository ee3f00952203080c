package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/linkgate/internal/models"
)

type AdRepository interface {
	Create(ctx context.Context, ad *models.Ad) error
	List(ctx context.Context) ([]models.Ad, error)
	ListActive(ctx context.Context) ([]models.Ad, error)
	Delete(ctx context.Context, id int64) error
}

type adRepository struct {
	db *PostgresDB
}

func NewAdRepository(db *PostgresDB) AdRepository {
	return &adRepository{db: db}
}

func (r *adRepository) Create(ctx context.Context, ad *models.Ad) error {
	query := `
		INSERT INTO ads (placement, code, active)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := r.db.Pool.QueryRow(ctx, query, ad.Placement, ad.Code, ad.Active).Scan(&ad.ID); err != nil {
		return fmt.Errorf("failed to create ad: %w", mapPostgresError(err))
	}

	return nil
}

func (r *adRepository) List(ctx context.Context) ([]models.Ad, error) {
	return r.query(ctx, `SELECT id, placement, code, active FROM ads ORDER BY id`)
}

func (r *adRepository) ListActive(ctx context.Context) ([]models.Ad, error) {
	return r.query(ctx, `SELECT id, placement, code, active FROM ads WHERE active ORDER BY id`)
}

func (r *adRepository) query(ctx context.Context, query string) ([]models.Ad, error) {
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	defer rows.Close()

	ads := []models.Ad{}
	for rows.Next() {
		var ad models.Ad
		if err := rows.Scan(&ad.ID, &ad.Placement, &ad.Code, &ad.Active); err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ads: %w", err)
	}

	return ads, nil
}

func (r *adRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete ad: %w", err)
	}
	return nil
}
