package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
)

// In-memory реализации репозиториев. Используются при STORAGE_DRIVER=memory
// и в тестах. Все методы возвращают копии, хранимые значения наружу не утекают.

type memoryLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.Link
}

func NewMemoryLinkRepository() LinkRepository {
	return &memoryLinkRepository{links: make(map[string]*models.Link)}
}

func (r *memoryLinkRepository) Create(ctx context.Context, link *models.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ID]; exists {
		return ErrLinkExists
	}

	stored := *link
	r.links[link.ID] = &stored
	return nil
}

func (r *memoryLinkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, exists := r.links[id]
	if !exists {
		return nil, ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (r *memoryLinkRepository) List(ctx context.Context) ([]models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]models.Link, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, *link)
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID < links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (r *memoryLinkRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, id)
	return nil
}

func (r *memoryLinkRepository) IncrementViews(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if link, exists := r.links[id]; exists {
		link.Views++
	}
	return nil
}

type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{sessions: make(map[string]*models.Session)}
}

func (r *memorySessionRepository) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *memorySessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (r *memorySessionRepository) MarkStepVerified(ctx context.Context, id string, step int, now time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	if session.ExpiredAt(now) {
		return nil, ErrSessionExpired
	}
	if !slices.Contains(session.VerifiedSteps, step) {
		session.VerifiedSteps = append(session.VerifiedSteps, step)
	}
	session.Step = step + 1

	return cloneSession(session), nil
}

func cloneSession(s *models.Session) *models.Session {
	out := *s
	out.VerifiedSteps = slices.Clone(s.VerifiedSteps)
	if out.VerifiedSteps == nil {
		out.VerifiedSteps = []int{}
	}
	return &out
}

type memoryAdRepository struct {
	mu     sync.RWMutex
	ads    map[int64]*models.Ad
	nextID int64
}

func NewMemoryAdRepository() AdRepository {
	return &memoryAdRepository{
		ads:    make(map[int64]*models.Ad),
		nextID: 1,
	}
}

func (r *memoryAdRepository) Create(ctx context.Context, ad *models.Ad) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ad.ID = r.nextID
	r.nextID++
	stored := *ad
	r.ads[ad.ID] = &stored
	return nil
}

func (r *memoryAdRepository) List(ctx context.Context) ([]models.Ad, error) {
	return r.filter(func(*models.Ad) bool { return true }), nil
}

func (r *memoryAdRepository) ListActive(ctx context.Context) ([]models.Ad, error) {
	return r.filter(func(ad *models.Ad) bool { return ad.Active }), nil
}

func (r *memoryAdRepository) filter(keep func(*models.Ad) bool) []models.Ad {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ads := make([]models.Ad, 0, len(r.ads))
	for _, ad := range r.ads {
		if keep(ad) {
			ads = append(ads, *ad)
		}
	}
	sort.Slice(ads, func(i, j int) bool { return ads[i].ID < ads[j].ID })
	return ads
}

func (r *memoryAdRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ads, id)
	return nil
}

type memoryEventRepository struct {
	mu     sync.RWMutex
	events []models.FunnelEvent
}

func NewMemoryEventRepository() EventRepository {
	return &memoryEventRepository{}
}

func (r *memoryEventRepository) Record(ctx context.Context, event *models.FunnelEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, *event)
	return nil
}

func (r *memoryEventRepository) CountByKind(ctx context.Context, linkID string) (map[models.EventKind]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.EventKind]int64)
	for _, e := range r.events {
		if e.LinkID == linkID {
			counts[e.Kind]++
		}
	}
	return counts, nil
}

type memoryCacheEntry struct {
	link      models.Link
	tombstone bool
	expiresAt time.Time
}

type memoryCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

func NewMemoryCacheRepository() CacheRepository {
	return &memoryCacheRepository{
		entries: make(map[string]memoryCacheEntry),
		now:     time.Now,
	}
}

func (r *memoryCacheRepository) Get(ctx context.Context, id string) (*models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.live(id)
	if !exists || entry.tombstone {
		return nil, ErrCacheMiss
	}
	link := entry.link
	return &link, nil
}

func (r *memoryCacheRepository) Set(ctx context.Context, link *models.Link, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.live(link.ID); exists {
		return nil
	}
	r.entries[link.ID] = memoryCacheEntry{link: *link, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *memoryCacheRepository) Invalidate(ctx context.Context, id string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[id] = memoryCacheEntry{tombstone: true, expiresAt: r.now().Add(ttl)}
	return nil
}

// live возвращает непросроченную запись. Вызывать под блокировкой.
func (r *memoryCacheRepository) live(id string) (memoryCacheEntry, bool) {
	entry, exists := r.entries[id]
	if !exists || r.now().After(entry.expiresAt) {
		return memoryCacheEntry{}, false
	}
	return entry, true
}
