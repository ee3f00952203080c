package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/repository"
	"go.uber.org/zap"
)

// Константы реестра ссылок
const (
	defaultCacheTTL  = time.Hour
	idLength         = 8
	maxTitleLength   = 200
	maxGenerateTries = 5
	charset          = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	urlPattern = regexp.MustCompile(`^https?://[^\s]+$`)
	idPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,64}$`)
)

// LinkService реестр защищённых ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	// GetLink читает ссылку через кэш
	GetLink(ctx context.Context, id string) (*models.Link, error)
	ListLinks(ctx context.Context) ([]models.Link, error)
	DeleteLink(ctx context.Context, id string) error
	// RecordView увеличивает счётчик просмотров. Ошибки только логируются.
	RecordView(ctx context.Context, id string)
}

type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewLinkService создаёт реестр ссылок. cacheTTL <= 0 означает значение по умолчанию.
func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
	logger *zap.Logger,
) LinkService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	if !urlPattern.MatchString(input.OriginalURL) {
		return nil, ErrInvalidURL
	}

	title := strings.TrimSpace(input.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, ErrInvalidTitle
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	link := &models.Link{
		OriginalURL: input.OriginalURL,
		Title:       title,
		Active:      active,
		CreatedAt:   s.now().UTC(),
	}

	// Кастомный идентификатор: коллизия это ошибка вызывающего
	if input.ID != nil && *input.ID != "" {
		if !idPattern.MatchString(*input.ID) {
			return nil, ErrInvalidID
		}
		link.ID = *input.ID
		if err := s.linkRepo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrLinkExists) {
				return nil, ErrLinkExists
			}
			return nil, err
		}
		return link, nil
	}

	// Сгенерированный идентификатор: при коллизии пробуем ещё раз
	for i := 0; i < maxGenerateTries; i++ {
		id, err := generateID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate id: %w", err)
		}
		link.ID = id

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, repository.ErrLinkExists) {
			return nil, err
		}
		s.logger.Debug("Generated link id collided, retrying", zap.String("id", id))
	}

	return nil, fmt.Errorf("failed to allocate a unique link id after %d attempts", maxGenerateTries)
}

func (s *linkService) GetLink(ctx context.Context, id string) (*models.Link, error) {
	link, err := s.cacheRepo.Get(ctx, id)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Link cache read failed", zap.String("link_id", id), zap.Error(err))
	}

	link, err = s.linkRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, link, s.cacheTTL); err != nil {
		s.logger.Warn("Link cache write failed", zap.String("link_id", id), zap.Error(err))
	}

	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context) ([]models.Link, error) {
	return s.linkRepo.List(ctx)
}

// DeleteLink сначала ставит в кэше метку удаления, затем удаляет строку.
// Читатель, прочитавший строку до удаления, уже не вернёт её в кэш, а при
// сбое кэша ссылка остаётся целой.
func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	if err := s.cacheRepo.Invalidate(ctx, id, s.cacheTTL); err != nil {
		return fmt.Errorf("failed to invalidate link cache: %w", err)
	}
	return s.linkRepo.Delete(ctx, id)
}

func (s *linkService) RecordView(ctx context.Context, id string) {
	if err := s.linkRepo.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("Failed to record link view", zap.String("link_id", id), zap.Error(err))
	}
}

// generateID генерирует случайный идентификатор ссылки длиной 8 символов
func generateID() (string, error) {
	result := make([]byte, idLength)
	for i := 0; i < idLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}
