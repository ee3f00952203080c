// Package mocks содержит репозитории с внедряемыми сбоями для тестов
// путей ошибок. Успешные пути тестируются на in-memory реализациях.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/repository"
)

// ErrInjected ошибка, которую возвращают моки
var ErrInjected = errors.New("injected failure")

// SessionRepository делегирует в in-memory хранилище, пока не задана ошибка
type SessionRepository struct {
	repository.SessionRepository

	mu         sync.Mutex
	createErr  error
	getErr     error
	markErr    error
	beforeMark func(now time.Time) time.Time
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{SessionRepository: repository.NewMemorySessionRepository()}
}

func (m *SessionRepository) FailCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

func (m *SessionRepository) FailGet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

func (m *SessionRepository) FailMark(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markErr = err
}

// BeforeMark вызывает fn перед каждой записью шага, fn может сдвинуть момент записи
func (m *SessionRepository) BeforeMark(fn func(now time.Time) time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeMark = fn
}

func (m *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	err := m.createErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.SessionRepository.Create(ctx, session)
}

func (m *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	err := m.getErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.SessionRepository.GetByID(ctx, id)
}

func (m *SessionRepository) MarkStepVerified(ctx context.Context, id string, step int, now time.Time) (*models.Session, error) {
	m.mu.Lock()
	err, hook := m.markErr, m.beforeMark
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if hook != nil {
		now = hook(now)
	}
	return m.SessionRepository.MarkStepVerified(ctx, id, step, now)
}

// LinkRepository in-memory ссылки с отказом инкремента просмотров
// и приостановкой чтения
type LinkRepository struct {
	repository.LinkRepository

	mu           sync.Mutex
	incrementErr error
	paused       chan struct{}
	reached      chan struct{}
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{LinkRepository: repository.NewMemoryLinkRepository()}
}

func (m *LinkRepository) FailIncrement(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementErr = err
}

// PauseNextGet останавливает следующий GetByID после чтения строки.
// reached закрывается, когда чтение выполнено; release отпускает вызов.
func (m *LinkRepository) PauseNextGet() (reached <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	paused := make(chan struct{})
	m.paused = paused
	m.reached = make(chan struct{})
	var once sync.Once
	return m.reached, func() { once.Do(func() { close(paused) }) }
}

func (m *LinkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	link, err := m.LinkRepository.GetByID(ctx, id)

	m.mu.Lock()
	paused, reached := m.paused, m.reached
	m.paused, m.reached = nil, nil
	m.mu.Unlock()

	if paused != nil {
		close(reached)
		<-paused
	}
	return link, err
}

func (m *LinkRepository) IncrementViews(ctx context.Context, id string) error {
	m.mu.Lock()
	err := m.incrementErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.LinkRepository.IncrementViews(ctx, id)
}

// EventRepository отказывает первые failures вызовов Record, затем пишет в память
type EventRepository struct {
	repository.EventRepository

	mu       sync.Mutex
	failures int
	calls    int
}

func NewEventRepository(failures int) *EventRepository {
	return &EventRepository{
		EventRepository: repository.NewMemoryEventRepository(),
		failures:        failures,
	}
}

func (m *EventRepository) Record(ctx context.Context, event *models.FunnelEvent) error {
	m.mu.Lock()
	m.calls++
	fail := m.calls <= m.failures
	m.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return m.EventRepository.Record(ctx, event)
}

// Calls число вызовов Record, включая неудачные
func (m *EventRepository) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CacheRepository in-memory кэш с отказом инвалидации
type CacheRepository struct {
	repository.CacheRepository

	mu            sync.Mutex
	invalidateErr error
}

func NewCacheRepository() *CacheRepository {
	return &CacheRepository{CacheRepository: repository.NewMemoryCacheRepository()}
}

func (m *CacheRepository) FailInvalidate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateErr = err
}

func (m *CacheRepository) Invalidate(ctx context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	err := m.invalidateErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.CacheRepository.Invalidate(ctx, id, ttl)
}
