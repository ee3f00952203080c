package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/repository"
)

const maxPlacementLength = 64

// AdService реестр рекламных блоков. Код блока хранится и отдаётся как есть.
type AdService interface {
	CreateAd(ctx context.Context, input *models.CreateAdInput) (*models.Ad, error)
	ListAds(ctx context.Context) ([]models.Ad, error)
	ListActiveAds(ctx context.Context) ([]models.Ad, error)
	DeleteAd(ctx context.Context, id int64) error
}

type adService struct {
	adRepo repository.AdRepository
}

func NewAdService(adRepo repository.AdRepository) AdService {
	return &adService{adRepo: adRepo}
}

func (s *adService) CreateAd(ctx context.Context, input *models.CreateAdInput) (*models.Ad, error) {
	placement := strings.TrimSpace(input.Placement)
	if placement == "" || utf8.RuneCountInString(placement) > maxPlacementLength {
		return nil, ErrInvalidPlacement
	}
	if strings.TrimSpace(input.Code) == "" {
		return nil, ErrInvalidAdCode
	}

	ad := &models.Ad{
		Placement: placement,
		Code:      input.Code,
		Active:    true,
	}
	if input.Active != nil {
		ad.Active = *input.Active
	}

	if err := s.adRepo.Create(ctx, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

func (s *adService) ListAds(ctx context.Context) ([]models.Ad, error) {
	return s.adRepo.List(ctx)
}

// ListActiveAds активные блоки по возрастанию id: потребитель берёт первый
// блок с нужным плейсментом
func (s *adService) ListActiveAds(ctx context.Context) ([]models.Ad, error) {
	return s.adRepo.ListActive(ctx)
}

func (s *adService) DeleteAd(ctx context.Context, id int64) error {
	return s.adRepo.Delete(ctx, id)
}
