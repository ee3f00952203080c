package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Общие проверки, которые должна проходить любая реализация репозиториев

func newTestSession(linkID string) *models.Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Session{
		ID:            uuid.NewString(),
		LinkID:        linkID,
		Step:          models.StepInit,
		VerifiedSteps: []int{},
		ExpiresAt:     now.Add(30 * time.Minute),
		CreatedAt:     now,
	}
}

func testLinkRepository(t *testing.T, repo repository.LinkRepository) {
	ctx := context.Background()
	link := &models.Link{
		ID:          "contract-" + uuid.NewString()[:8],
		OriginalURL: "https://example.com",
		Title:       "Example",
		Active:      true,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, repo.Create(ctx, link))
	assert.ErrorIs(t, repo.Create(ctx, link), repository.ErrLinkExists)

	got, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)
	assert.Equal(t, link.Title, got.Title)
	assert.True(t, got.Active)
	assert.Zero(t, got.Views)

	require.NoError(t, repo.IncrementViews(ctx, link.ID))
	require.NoError(t, repo.IncrementViews(ctx, link.ID))
	got, err = repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views)

	// Инкремент несуществующей ссылки не ошибка
	assert.NoError(t, repo.IncrementViews(ctx, "no-such-link"))

	links, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, links)

	require.NoError(t, repo.Delete(ctx, link.ID))
	require.NoError(t, repo.Delete(ctx, link.ID))
	_, err = repo.GetByID(ctx, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func testSessionRepository(t *testing.T, repo repository.SessionRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		session := newTestSession("demo")
		require.NoError(t, repo.Create(ctx, session))

		got, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.LinkID, got.LinkID)
		assert.Equal(t, models.StepInit, got.Step)
		assert.Empty(t, got.VerifiedSteps)
		assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)

		_, err = repo.MarkStepVerified(ctx, "missing", 2, time.Now())
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	})

	t.Run("mark step is idempotent", func(t *testing.T) {
		session := newTestSession("demo")
		require.NoError(t, repo.Create(ctx, session))

		first, err := repo.MarkStepVerified(ctx, session.ID, 2, time.Now())
		require.NoError(t, err)
		second, err := repo.MarkStepVerified(ctx, session.ID, 2, time.Now())
		require.NoError(t, err)

		assert.Equal(t, []int{2}, first.VerifiedSteps)
		assert.Equal(t, first.VerifiedSteps, second.VerifiedSteps)
		assert.Equal(t, 3, second.Step)
	})

	t.Run("concurrent marks are not lost", func(t *testing.T) {
		session := newTestSession("demo")
		require.NoError(t, repo.Create(ctx, session))

		var wg sync.WaitGroup
		for step := 2; step <= 11; step++ {
			wg.Add(1)
			go func(step int) {
				defer wg.Done()
				_, err := repo.MarkStepVerified(ctx, session.ID, step, time.Now())
				assert.NoError(t, err)
			}(step)
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, got.VerifiedSteps)
	})

	t.Run("mark step respects expiry", func(t *testing.T) {
		session := newTestSession("demo")
		require.NoError(t, repo.Create(ctx, session))

		// Ровно в момент истечения сессия ещё принимает шаги
		got, err := repo.MarkStepVerified(ctx, session.ID, 2, session.ExpiresAt)
		require.NoError(t, err)
		assert.Equal(t, []int{2}, got.VerifiedSteps)

		_, err = repo.MarkStepVerified(ctx, session.ID, 3, session.ExpiresAt.Add(time.Nanosecond))
		assert.ErrorIs(t, err, repository.ErrSessionExpired)

		got, err = repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{2}, got.VerifiedSteps)
		assert.Equal(t, 3, got.Step)
	})
}

func testCacheRepository(t *testing.T, cache repository.CacheRepository) {
	ctx := context.Background()
	id := "cache-" + uuid.NewString()[:8]
	link := &models.Link{ID: id, OriginalURL: "https://example.com", Title: "Demo", Active: true}

	_, err := cache.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, link, time.Minute))
	got, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)

	// Set не перезаписывает существующую запись
	require.NoError(t, cache.Set(ctx, &models.Link{ID: id, OriginalURL: "https://other.example"}, time.Minute))
	got, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.OriginalURL)

	require.NoError(t, cache.Invalidate(ctx, id, time.Minute))
	_, err = cache.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	// Запоздавшая запись не воскрешает удалённую ссылку
	require.NoError(t, cache.Set(ctx, link, time.Minute))
	_, err = cache.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func testAdRepository(t *testing.T, repo repository.AdRepository) {
	ctx := context.Background()

	active := &models.Ad{Placement: "landing_top", Code: "<div>top</div>", Active: true}
	inactive := &models.Ad{Placement: "step2", Code: "<div>off</div>", Active: false}
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, inactive))
	assert.Greater(t, inactive.ID, active.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activeAds, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, activeAds, 1)
	assert.Equal(t, active.ID, activeAds[0].ID)

	require.NoError(t, repo.Delete(ctx, active.ID))
	require.NoError(t, repo.Delete(ctx, active.ID))
	activeAds, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, activeAds)
}

func testEventRepository(t *testing.T, repo repository.EventRepository) {
	ctx := context.Background()
	linkID := "events-" + uuid.NewString()[:8]

	for _, kind := range []models.EventKind{
		models.EventSessionStarted,
		models.EventStepVerified,
		models.EventStepVerified,
	} {
		require.NoError(t, repo.Record(ctx, &models.FunnelEvent{
			Kind:       kind,
			LinkID:     linkID,
			SessionID:  "s1",
			OccurredAt: time.Now(),
		}))
	}

	counts, err := repo.CountByKind(ctx, linkID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.EventSessionStarted])
	assert.Equal(t, int64(2), counts[models.EventStepVerified])
	assert.Zero(t, counts[models.EventURLDisclosed])
}
