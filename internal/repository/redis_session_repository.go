package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Сессия хранится дольше срока жизни, чтобы после истечения
	// клиент получал "expired", а не "not found"
	sessionRetention = 24 * time.Hour
)

// markStepScript выполняется в Redis атомарно: проверка существования и
// срока жизни, добавление шага в множество и сдвиг указателя шага.
// Возвращает 0 для отсутствующей сессии, -1 для истёкшей.
//
// Время в наносекундах сравнивается как десятичные строки: числа Lua
// теряют точность на таких значениях.
var markStepScript = redis.NewScript(`
local expires = redis.call('HGET', KEYS[1], 'expires_at')
if not expires then
	return 0
end
local now = ARGV[3]
if #now > #expires or (#now == #expires and now > expires) then
	return -1
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], 'step', ARGV[2])
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

type redisSessionRepository struct {
	redis *RedisDB
}

// NewRedisSessionRepository сессии в Redis: хэш с полями сессии
// и отдельное множество пройденных шагов.
func NewRedisSessionRepository(redis *RedisDB) SessionRepository {
	return &redisSessionRepository{redis: redis}
}

func (r *redisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	ttl := session.ExpiresAt.Sub(session.CreatedAt) + sessionRetention
	key := sessionKey(session.ID)

	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"link_id", session.LinkID,
			"step", session.Step,
			"expires_at", session.ExpiresAt.UnixNano(),
			"created_at", session.CreatedAt.UnixNano(),
		)
		pipe.Expire(ctx, key, ttl)
		if len(session.VerifiedSteps) > 0 {
			members := make([]interface{}, 0, len(session.VerifiedSteps))
			for _, s := range session.VerifiedSteps {
				members = append(members, s)
			}
			pipe.SAdd(ctx, sessionStepsKey(session.ID), members...)
			pipe.Expire(ctx, sessionStepsKey(session.ID), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *redisSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var (
		fields *redis.MapStringStringCmd
		steps  *redis.StringSliceCmd
	)

	_, err := r.redis.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, sessionKey(id))
		steps = pipe.SMembers(ctx, sessionStepsKey(id))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return decodeSession(id, fields.Val(), steps.Val())
}

func (r *redisSessionRepository) MarkStepVerified(ctx context.Context, id string, step int, now time.Time) (*models.Session, error) {
	keys := []string{sessionKey(id), sessionStepsKey(id)}

	result, err := markStepScript.Run(ctx, r.redis.Client, keys,
		step,
		step+1,
		strconv.FormatInt(now.UnixNano(), 10),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to mark step verified: %w", err)
	}
	switch result {
	case 0:
		return nil, ErrSessionNotFound
	case -1:
		return nil, ErrSessionExpired
	}

	return r.GetByID(ctx, id)
}

func decodeSession(id string, fields map[string]string, steps []string) (*models.Session, error) {
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	step, err := strconv.Atoi(fields["step"])
	if err != nil {
		return nil, fmt.Errorf("corrupt session step: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session expiry: %w", err)
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session creation time: %w", err)
	}

	verified := make([]int, 0, len(steps))
	for _, s := range steps {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt verified step %q: %w", s, err)
		}
		verified = append(verified, n)
	}
	sort.Ints(verified)

	return &models.Session{
		ID:            id,
		LinkID:        fields["link_id"],
		Step:          step,
		VerifiedSteps: verified,
		ExpiresAt:     time.Unix(0, expiresAt).UTC(),
		CreatedAt:     time.Unix(0, createdAt).UTC(),
	}, nil
}
