package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL срок жизни сессии воронки
const DefaultSessionTTL = 30 * time.Minute

// GateService конечный автомат сессий воронки.
//
// Сессия активна до ExpiresAt включительно, затем навсегда переходит в
// состояние "истекла". Срок никогда не продлевается. Целевой URL раскрывается
// только когда пройдены шаги 2 и 3; шаг 1 подразумевается самим фактом
// существования сессии.
type GateService interface {
	InitSession(ctx context.Context, linkID string, visitor models.Visitor) (*models.Session, error)
	// VerifyStep отмечает шаг пройденным и возвращает номер следующего шага.
	// Порядок шагов не проверяется: можно отметить любой шаг в любой момент.
	VerifyStep(ctx context.Context, sessionID string, step int, visitor models.Visitor) (int, error)
	// FinalURL раскрывает целевой URL. Сессия после этого остаётся валидной.
	FinalURL(ctx context.Context, sessionID string, visitor models.Visitor) (string, error)
}

// GateOption настройка GateService
type GateOption func(*gateService)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) GateOption {
	return func(s *gateService) { s.now = now }
}

// WithSessionTTL задаёт срок жизни новых сессий
func WithSessionTTL(ttl time.Duration) GateOption {
	return func(s *gateService) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

type gateService struct {
	links      LinkService
	sessions   repository.SessionRepository
	events     EventProcessor
	logger     *zap.Logger
	now        func() time.Time
	sessionTTL time.Duration
}

func NewGateService(
	links LinkService,
	sessions repository.SessionRepository,
	events EventProcessor,
	logger *zap.Logger,
	opts ...GateOption,
) GateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &gateService{
		links:      links,
		sessions:   sessions,
		events:     events,
		logger:     logger,
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gateService) InitSession(ctx context.Context, linkID string, visitor models.Visitor) (*models.Session, error) {
	link, err := s.links.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !link.Active {
		return nil, ErrLinkNotFound
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:            uuid.NewString(),
		LinkID:        link.ID,
		Step:          models.StepInit,
		VerifiedSteps: []int{},
		ExpiresAt:     now.Add(s.sessionTTL),
		CreatedAt:     now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	// Просмотр засчитывается только после успешного создания сессии
	s.links.RecordView(ctx, link.ID)

	s.track(ctx, models.EventSessionStarted, session, 0, visitor)

	return session, nil
}

func (s *gateService) VerifyStep(ctx context.Context, sessionID string, step int, visitor models.Visitor) (int, error) {
	session, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	// Срок жизни проверяется ещё раз внутри атомарной записи шага
	updated, err := s.sessions.MarkStepVerified(ctx, session.ID, step, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return 0, ErrSessionNotFound
		case errors.Is(err, repository.ErrSessionExpired):
			return 0, ErrSessionExpired
		}
		return 0, err
	}

	s.track(ctx, models.EventStepVerified, updated, step, visitor)

	return step + 1, nil
}

func (s *gateService) FinalURL(ctx context.Context, sessionID string, visitor models.Visitor) (string, error) {
	session, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if !session.Complete() {
		return "", ErrStepsIncomplete
	}

	link, err := s.links.GetLink(ctx, session.LinkID)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return "", ErrLinkMissing
		}
		return "", err
	}

	s.track(ctx, models.EventURLDisclosed, session, 0, visitor)

	return link.OriginalURL, nil
}

// activeSession загружает сессию и проверяет срок её жизни
func (s *gateService) activeSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.ExpiredAt(s.now()) {
		return nil, ErrSessionExpired
	}

	return session, nil
}

func (s *gateService) track(ctx context.Context, kind models.EventKind, session *models.Session, step int, visitor models.Visitor) {
	if s.events == nil {
		return
	}
	err := s.events.Record(ctx, &models.FunnelEvent{
		Kind:       kind,
		LinkID:     session.LinkID,
		SessionID:  session.ID,
		Step:       step,
		IPAddress:  visitor.IPAddress,
		UserAgent:  visitor.UserAgent,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Debug("Failed to enqueue funnel event (non-blocking)", zap.Error(err))
	}
}
