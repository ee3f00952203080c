package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/repository"
	"github.com/SergeiKhy/linkgate/internal/service"
	"github.com/SergeiKhy/linkgate/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock управляемые часы для проверки истечения сессий
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type gateEnv struct {
	gate      service.GateService
	links     service.LinkService
	linkRepo  *mocks.LinkRepository
	sessions  *mocks.SessionRepository
	events    repository.EventRepository
	processor service.EventProcessor
	clock     *fakeClock
}

var visitor = models.Visitor{IPAddress: "203.0.113.7", UserAgent: "test-agent"}

func setupGate(t *testing.T) *gateEnv {
	t.Helper()

	logger := zap.NewNop()
	clock := newFakeClock()
	linkRepo := mocks.NewLinkRepository()
	sessions := mocks.NewSessionRepository()
	events := repository.NewMemoryEventRepository()

	links := service.NewLinkService(linkRepo, repository.NewMemoryCacheRepository(), time.Minute, logger)
	processor := service.NewEventProcessor(events, linkRepo, logger)
	processor.Start()
	t.Cleanup(processor.Stop)

	gate := service.NewGateService(links, sessions, processor, logger, service.WithClock(clock.Now))

	return &gateEnv{
		gate:      gate,
		links:     links,
		linkRepo:  linkRepo,
		sessions:  sessions,
		events:    events,
		processor: processor,
		clock:     clock,
	}
}

func (env *gateEnv) createLink(t *testing.T, id, url string) *models.Link {
	t.Helper()
	link, err := env.links.CreateLink(context.Background(), &models.CreateLinkInput{
		ID:          &id,
		OriginalURL: url,
		Title:       "Test link",
	})
	require.NoError(t, err)
	return link
}

func (env *gateEnv) views(t *testing.T, id string) int64 {
	t.Helper()
	link, err := env.linkRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return link.Views
}

func TestGateService_DemoScenario(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")

	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)
	assert.Equal(t, 1, session.Step)
	assert.Empty(t, session.VerifiedSteps)
	assert.Equal(t, "demo", session.LinkID)
	assert.Equal(t, env.clock.Now().Add(30*time.Minute), session.ExpiresAt)

	next, err := env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	next, err = env.gate.VerifyStep(ctx, session.ID, 3, visitor)
	require.NoError(t, err)
	assert.Equal(t, 4, next)

	url, err := env.gate.FinalURL(ctx, session.ID, visitor)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)

	require.NoError(t, env.links.DeleteLink(ctx, "demo"))

	url, err = env.gate.FinalURL(ctx, session.ID, visitor)
	assert.ErrorIs(t, err, service.ErrLinkMissing)
	assert.Empty(t, url)
}

func TestGateService_InitThenResolveNeverDiscloses(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")

	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)

	url, err := env.gate.FinalURL(ctx, session.ID, visitor)
	assert.ErrorIs(t, err, service.ErrStepsIncomplete)
	assert.Empty(t, url)
}

// Раскрытие возможно тогда и только тогда, когда пройдены шаги 2 и 3
func TestGateService_ResolveRequiresSteps2And3(t *testing.T) {
	tests := []struct {
		name    string
		steps   []int
		allowed bool
	}{
		{"nothing", nil, false},
		{"only step 1", []int{1}, false},
		{"only step 2", []int{2}, false},
		{"only step 3", []int{3}, false},
		{"steps 1 and 2", []int{1, 2}, false},
		{"steps 2 and 3", []int{2, 3}, true},
		{"steps 3 and 2", []int{3, 2}, true},
		{"steps 1 to 4", []int{1, 2, 3, 4}, true},
		{"step 2 twice", []int{2, 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupGate(t)
			ctx := context.Background()
			env.createLink(t, "demo", "https://example.com")

			session, err := env.gate.InitSession(ctx, "demo", visitor)
			require.NoError(t, err)
			for _, step := range tt.steps {
				_, err := env.gate.VerifyStep(ctx, session.ID, step, visitor)
				require.NoError(t, err)
			}

			url, err := env.gate.FinalURL(ctx, session.ID, visitor)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, "https://example.com", url)
			} else {
				assert.ErrorIs(t, err, service.ErrStepsIncomplete)
			}
		})
	}
}

func TestGateService_InitUnknownLink(t *testing.T) {
	env := setupGate(t)

	session, err := env.gate.InitSession(context.Background(), "missing-id", visitor)

	assert.ErrorIs(t, err, service.ErrLinkNotFound)
	assert.Nil(t, session)
}

func TestGateService_InitInactiveLink(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	id := "paused"
	_, err := env.links.CreateLink(ctx, &models.CreateLinkInput{
		ID:          &id,
		OriginalURL: "https://example.com",
		Title:       "Paused",
		Active:      boolPtr(false),
	})
	require.NoError(t, err)

	_, err = env.gate.InitSession(ctx, id, visitor)

	assert.ErrorIs(t, err, service.ErrLinkNotFound)
	assert.Zero(t, env.views(t, id))
}

func TestGateService_InitRecordsOneViewPerSession(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")

	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		session, err := env.gate.InitSession(ctx, "demo", visitor)
		require.NoError(t, err)
		assert.NotContains(t, ids, session.ID)
		ids[session.ID] = true
	}

	assert.Equal(t, int64(3), env.views(t, "demo"))
}

func TestGateService_InitAfterDeleteFails(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")

	_, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)
	require.NoError(t, env.links.DeleteLink(ctx, "demo"))

	_, err = env.gate.InitSession(ctx, "demo", visitor)
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

// Сбой сохранения сессии не засчитывает просмотр
func TestGateService_InitStoreFailure(t *testing.T) {
	env := setupGate(t)
	env.createLink(t, "demo", "https://example.com")
	env.sessions.FailCreate(mocks.ErrInjected)

	_, err := env.gate.InitSession(context.Background(), "demo", visitor)

	assert.ErrorIs(t, err, mocks.ErrInjected)
	assert.Zero(t, env.views(t, "demo"))
}

// Сбой счётчика просмотров не ломает создание сессии
func TestGateService_InitSurvivesViewFailure(t *testing.T) {
	env := setupGate(t)
	env.createLink(t, "demo", "https://example.com")
	env.linkRepo.FailIncrement(mocks.ErrInjected)

	session, err := env.gate.InitSession(context.Background(), "demo", visitor)

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
}

func TestGateService_VerifyStepIsIdempotent(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")
	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)

	first, err := env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	require.NoError(t, err)
	afterFirst, err := env.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)

	second, err := env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	require.NoError(t, err)
	afterSecond, err := env.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst.VerifiedSteps, afterSecond.VerifiedSteps)
	assert.Equal(t, []int{2}, afterSecond.VerifiedSteps)
}

// Порядок шагов не проверяется: любой номер шага принимается в любой момент.
// Указатель текущего шага всегда step+1 последнего вызова.
func TestGateService_VerifyStepAcceptsAnyOrder(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")
	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)

	next, err := env.gate.VerifyStep(ctx, session.ID, 3, visitor)
	require.NoError(t, err)
	assert.Equal(t, 4, next)

	next, err = env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	next, err = env.gate.VerifyStep(ctx, session.ID, 7, visitor)
	require.NoError(t, err)
	assert.Equal(t, 8, next)

	stored, err := env.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.Step)
	assert.ElementsMatch(t, []int{3, 2, 7}, stored.VerifiedSteps)

	url, err := env.gate.FinalURL(ctx, session.ID, visitor)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)
}

func TestGateService_UnknownSession(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()

	_, err := env.gate.VerifyStep(ctx, "no-such-session", 2, visitor)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = env.gate.FinalURL(ctx, "no-such-session", visitor)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

// Сессия валидна ровно до момента истечения включительно, затем навсегда истекает
func TestGateService_Expiry(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")
	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)

	_, err = env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	require.NoError(t, err)
	_, err = env.gate.VerifyStep(ctx, session.ID, 3, visitor)
	require.NoError(t, err)

	env.clock.Advance(30 * time.Minute)
	url, err := env.gate.FinalURL(ctx, session.ID, visitor)
	require.NoError(t, err, "session must still be usable exactly at expiry")
	assert.Equal(t, "https://example.com", url)

	env.clock.Advance(time.Nanosecond)

	_, err = env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	assert.ErrorIs(t, err, service.ErrSessionExpired)

	_, err = env.gate.FinalURL(ctx, session.ID, visitor)
	assert.ErrorIs(t, err, service.ErrSessionExpired)

	// Истечение не отменяет пройденные шаги, но и не даёт их использовать
	stored, err := env.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, stored.VerifiedSteps)
}

func TestGateService_SessionCreatedAlreadyExpired(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")

	now := env.clock.Now()
	require.NoError(t, env.sessions.Create(ctx, &models.Session{
		ID:            "stale",
		LinkID:        "demo",
		Step:          models.StepInit,
		VerifiedSteps: []int{},
		ExpiresAt:     now.Add(-time.Minute),
		CreatedAt:     now.Add(-31 * time.Minute),
	}))

	_, err := env.gate.VerifyStep(ctx, "stale", 2, visitor)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestGateService_CustomSessionTTL(t *testing.T) {
	clock := newFakeClock()
	links := service.NewLinkService(repository.NewMemoryLinkRepository(), repository.NewMemoryCacheRepository(), 0, nil)
	gate := service.NewGateService(links, repository.NewMemorySessionRepository(), nil, nil,
		service.WithClock(clock.Now),
		service.WithSessionTTL(5*time.Minute),
	)
	ctx := context.Background()
	id := "demo"
	_, err := links.CreateLink(ctx, &models.CreateLinkInput{ID: &id, OriginalURL: "https://example.com", Title: "x"})
	require.NoError(t, err)

	session, err := gate.InitSession(ctx, id, visitor)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(5*time.Minute), session.ExpiresAt)

	clock.Advance(5*time.Minute + time.Second)
	_, err = gate.VerifyStep(ctx, session.ID, 2, visitor)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestGateService_ResolveIsRepeatable(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")
	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)
	for _, step := range models.RequiredSteps {
		_, err := env.gate.VerifyStep(ctx, session.ID, step, visitor)
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		url, err := env.gate.FinalURL(ctx, session.ID, visitor)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", url)
	}
}

// Конкурентные VerifyStep одной сессии не теряют шаги
func TestGateService_ConcurrentVerifySameSession(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")
	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for step := 2; step <= 21; step++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_, err := env.gate.VerifyStep(ctx, session.ID, step, visitor)
			assert.NoError(t, err)
		}(step)
	}
	wg.Wait()

	stored, err := env.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.VerifiedSteps, 20)
	assert.True(t, stored.Complete())
}

// Ссылка, удалённая во время заполнения кэша, не открывает воронку
func TestGateService_DeleteDuringCacheFill(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")

	now := env.clock.Now()
	require.NoError(t, env.sessions.Create(ctx, &models.Session{
		ID:            "running",
		LinkID:        "demo",
		Step:          models.StepInit,
		VerifiedSteps: []int{},
		ExpiresAt:     now.Add(30 * time.Minute),
		CreatedAt:     now,
	}))

	reached, release := env.linkRepo.PauseNextGet()
	defer release()

	read := make(chan error, 1)
	go func() {
		_, err := env.links.GetLink(ctx, "demo")
		read <- err
	}()
	<-reached
	require.NoError(t, env.links.DeleteLink(ctx, "demo"))
	release()
	require.NoError(t, <-read)

	_, err := env.gate.InitSession(ctx, "demo", visitor)
	assert.ErrorIs(t, err, service.ErrLinkNotFound)

	for _, step := range models.RequiredSteps {
		_, err := env.gate.VerifyStep(ctx, "running", step, visitor)
		require.NoError(t, err)
	}
	url, err := env.gate.FinalURL(ctx, "running", visitor)
	assert.ErrorIs(t, err, service.ErrLinkMissing)
	assert.Empty(t, url)
}

// Сессия, истёкшая между чтением и записью шага, шаг не принимает
func TestGateService_VerifyStepExpiresBeforeWrite(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")
	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)

	env.clock.Advance(30 * time.Minute)
	env.sessions.BeforeMark(func(now time.Time) time.Time { return now.Add(time.Nanosecond) })

	_, err = env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	assert.ErrorIs(t, err, service.ErrSessionExpired)

	stored, err := env.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.VerifiedSteps)
	assert.Equal(t, models.StepInit, stored.Step)
}

func TestGateService_StoreFailuresPropagate(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")
	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)

	env.sessions.FailMark(mocks.ErrInjected)
	_, err = env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	assert.ErrorIs(t, err, mocks.ErrInjected)

	env.sessions.FailGet(mocks.ErrInjected)
	_, err = env.gate.FinalURL(ctx, session.ID, visitor)
	assert.ErrorIs(t, err, mocks.ErrInjected)
}

func TestGateService_EmitsFunnelEvents(t *testing.T) {
	env := setupGate(t)
	ctx := context.Background()
	env.createLink(t, "demo", "https://example.com")

	session, err := env.gate.InitSession(ctx, "demo", visitor)
	require.NoError(t, err)
	_, err = env.gate.VerifyStep(ctx, session.ID, 2, visitor)
	require.NoError(t, err)
	_, err = env.gate.VerifyStep(ctx, session.ID, 3, visitor)
	require.NoError(t, err)
	_, err = env.gate.FinalURL(ctx, session.ID, visitor)
	require.NoError(t, err)

	// Stop дописывает очередь
	env.processor.Stop()

	stats, err := env.processor.GetStats(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Views)
	assert.Equal(t, int64(1), stats.SessionsStarted)
	assert.Equal(t, int64(2), stats.StepsVerified)
	assert.Equal(t, int64(1), stats.URLsDisclosed)
}
