package service

import (
	"context"

	"github.com/SergeiKhy/linkgate/internal/models"
	"go.uber.org/zap"
)

// SeedDemo наполняет пустое хранилище демонстрационной ссылкой и рекламой
func SeedDemo(ctx context.Context, links LinkService, ads AdService, logger *zap.Logger) error {
	existing, err := links.ListLinks(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	logger.Info("Seeding demo data")

	demoID := "demo"
	if _, err := links.CreateLink(ctx, &models.CreateLinkInput{
		ID:          &demoID,
		OriginalURL: "https://example.com",
		Title:       "Example Homepage (Demo)",
	}); err != nil {
		return err
	}

	for _, ad := range []models.CreateAdInput{
		{Placement: "landing_top", Code: `<div class="demo-ad">DEMO AD: Top Banner</div>`},
		{Placement: "step2", Code: `<div class="demo-ad demo-ad-large">DEMO AD: Step 2 Large Ad</div>`},
	} {
		if _, err := ads.CreateAd(ctx, &ad); err != nil {
			return err
		}
	}

	return nil
}
