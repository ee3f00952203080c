package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/linkgate/internal/models"
)

// EventRepository хранилище событий воронки
type EventRepository interface {
	Record(ctx context.Context, event *models.FunnelEvent) error
	CountByKind(ctx context.Context, linkID string) (map[models.EventKind]int64, error)
}

type eventRepository struct {
	db *PostgresDB
}

func NewEventRepository(db *PostgresDB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Record(ctx context.Context, event *models.FunnelEvent) error {
	query := `
		INSERT INTO funnel_events (kind, link_id, session_id, step, ip_address, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		string(event.Kind),
		event.LinkID,
		event.SessionID,
		event.Step,
		event.IPAddress,
		event.UserAgent,
		event.OccurredAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", mapPostgresError(err))
	}

	return nil
}

func (r *eventRepository) CountByKind(ctx context.Context, linkID string) (map[models.EventKind]int64, error) {
	query := `
		SELECT kind, COUNT(*)
		FROM funnel_events
		WHERE link_id = $1
		GROUP BY kind
	`

	rows, err := r.db.Pool.Query(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EventKind]int64)
	for rows.Next() {
		var (
			kind  string
			count int64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[models.EventKind(kind)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event counts: %w", err)
	}

	return counts, nil
}
