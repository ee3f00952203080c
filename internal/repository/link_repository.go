package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/jackc/pgx/v5"
)

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByID(ctx context.Context, id string) (*models.Link, error)
	List(ctx context.Context) ([]models.Link, error)
	// Delete идемпотентен: отсутствие ссылки не ошибка
	Delete(ctx context.Context, id string) error
	// IncrementViews ничего не делает для несуществующей ссылки
	IncrementViews(ctx context.Context, id string) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (id, original_url, title, views, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.ID,
		link.OriginalURL,
		link.Title,
		link.Views,
		link.Active,
		link.CreatedAt,
	).Scan(&link.CreatedAt)

	if err != nil {
		err = mapPostgresError(err)
		if errors.Is(err, ErrLinkExists) {
			return err
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	query := `
		SELECT id, original_url, title, views, active, created_at
		FROM links
		WHERE id = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&link.ID,
		&link.OriginalURL,
		&link.Title,
		&link.Views,
		&link.Active,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) List(ctx context.Context) ([]models.Link, error) {
	query := `
		SELECT id, original_url, title, views, active, created_at
		FROM links
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := []models.Link{}
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.OriginalURL,
			&link.Title,
			&link.Views,
			&link.Active,
			&link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

func (r *linkRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

func (r *linkRepository) IncrementViews(ctx context.Context, id string) error {
	// Атомарный инкремент, без чтения строки
	if _, err := r.db.Pool.Exec(ctx, `UPDATE links SET views = views + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}
