package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
	writeTimeout         = 5 * time.Second
)

// EventProcessor асинхронно сохраняет события воронки
type EventProcessor interface {
	Start()
	Stop()
	// Record ставит событие в очередь и никогда не блокирует запрос
	Record(ctx context.Context, event *models.FunnelEvent) error
	GetStats(ctx context.Context, linkID string) (*models.LinkStats, error)
	GetChannelStats() ChannelStats
}

type eventProcessor struct {
	eventRepo    repository.EventRepository
	linkRepo     repository.LinkRepository
	logger       *zap.Logger
	eventChannel chan *models.FunnelEvent
	workerCount  int
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	retryDelay   time.Duration
}

func NewEventProcessor(
	eventRepo repository.EventRepository,
	linkRepo repository.LinkRepository,
	logger *zap.Logger,
) EventProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &eventProcessor{
		eventRepo:    eventRepo,
		linkRepo:     linkRepo,
		logger:       logger,
		eventChannel: make(chan *models.FunnelEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
		retryDelay:   100 * time.Millisecond,
	}
}

// Start запускает worker pool
func (p *eventProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Starting funnel event workers", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop останавливает воркеры. События, уже стоящие в очереди, дописываются.
func (p *eventProcessor) Stop() {
	if p.cancel == nil {
		return
	}
	p.logger.Info("Stopping funnel event processor...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Funnel event processor stopped")
}

func (p *eventProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Event worker started", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.drain()
			p.logger.Debug("Event worker stopped", zap.Int("id", id))
			return

		case event := <-p.eventChannel:
			p.processEvent(context.Background(), event)
		}
	}
}

// drain дописывает оставшиеся в буфере события
func (p *eventProcessor) drain() {
	for {
		select {
		case event := <-p.eventChannel:
			p.processEvent(context.Background(), event)
		default:
			return
		}
	}
}

// processEvent пишет одно событие с retry
func (p *eventProcessor) processEvent(parent context.Context, event *models.FunnelEvent) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.eventRepo.Record(ctx, event); err == nil {
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Retrying funnel event write",
				zap.String("link_id", event.LinkID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * p.retryDelay)
		}
	}

	p.logger.Error("Failed to write funnel event after retries",
		zap.String("link_id", event.LinkID),
		zap.String("kind", string(event.Kind)),
		zap.Error(err),
	)
}

func (p *eventProcessor) Record(ctx context.Context, event *models.FunnelEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.eventChannel <- event:
		return nil
	default:
		// Канал заполнен: статистика теряется, запрос не страдает
		p.logger.Warn("Funnel event buffer full, event dropped",
			zap.String("link_id", event.LinkID),
			zap.String("kind", string(event.Kind)),
		)
		return nil
	}
}

// GetStats собирает статистику воронки по ссылке
func (p *eventProcessor) GetStats(ctx context.Context, linkID string) (*models.LinkStats, error) {
	link, err := p.linkRepo.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	counts, err := p.eventRepo.CountByKind(ctx, linkID)
	if err != nil {
		return nil, err
	}

	return &models.LinkStats{
		LinkID:          linkID,
		Views:           link.Views,
		SessionsStarted: counts[models.EventSessionStarted],
		StepsVerified:   counts[models.EventStepVerified],
		URLsDisclosed:   counts[models.EventURLDisclosed],
	}, nil
}

// GetChannelStats состояние очереди для мониторинга
func (p *eventProcessor) GetChannelStats() ChannelStats {
	return ChannelStats{
		BufferSize:  cap(p.eventChannel),
		BufferUsed:  len(p.eventChannel),
		WorkerCount: p.workerCount,
	}
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize  int `json:"bufferSize"`
	BufferUsed  int `json:"bufferUsed"`
	WorkerCount int `json:"workerCount"`
}
