package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/jackc/pgx/v5"
)

// SessionRepository хранилище сессий воронки
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	// MarkStepVerified атомарно добавляет шаг в множество пройденных
	// и переводит указатель текущего шага на step+1. Истёкшая к моменту now
	// сессия не меняется, возвращается ErrSessionExpired.
	MarkStepVerified(ctx context.Context, id string, step int, now time.Time) (*models.Session, error)
}

type sessionRepository struct {
	db *PostgresDB
}

func NewSessionRepository(db *PostgresDB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, link_id, step, verified_steps, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.ID,
		session.LinkID,
		session.Step,
		toInt32s(session.VerifiedSteps),
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}

	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, link_id, step, verified_steps, expires_at, created_at
		FROM sessions
		WHERE id = $1
	`

	return r.scanSession(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *sessionRepository) MarkStepVerified(ctx context.Context, id string, step int, now time.Time) (*models.Session, error) {
	// Одна инструкция UPDATE: блокировка строки сериализует конкурентные вызовы
	query := `
		UPDATE sessions
		SET verified_steps = CASE
				WHEN $2::int = ANY(verified_steps) THEN verified_steps
				ELSE array_append(verified_steps, $2::int)
			END,
			step = $2::int + 1
		WHERE id = $1 AND expires_at >= $3
		RETURNING id, link_id, step, verified_steps, expires_at, created_at
	`

	session, err := r.scanSession(r.db.Pool.QueryRow(ctx, query, id, step, now))
	if errors.Is(err, ErrSessionNotFound) {
		// Строка не обновлена: либо её нет, либо сессия истекла
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, ErrSessionExpired
		}
	}
	return session, err
}

func (r *sessionRepository) scanSession(row pgx.Row) (*models.Session, error) {
	var (
		session  models.Session
		verified []int32
	)

	err := row.Scan(
		&session.ID,
		&session.LinkID,
		&session.Step,
		&verified,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", mapPostgresError(err))
	}

	session.VerifiedSteps = make([]int, 0, len(verified))
	for _, s := range verified {
		session.VerifiedSteps = append(session.VerifiedSteps, int(s))
	}

	return &session, nil
}

func toInt32s(steps []int) []int32 {
	out := make([]int32, 0, len(steps))
	for _, s := range steps {
		out = append(out, int32(s))
	}
	return out
}
