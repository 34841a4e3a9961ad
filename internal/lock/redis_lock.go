package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chromance-server/internal/models"
)

// Compile-time check to ensure redisTurnLocker implements TurnLocker.
var _ TurnLocker = (*redisTurnLocker)(nil)

// Owner-token release: only the holder that set the key may delete it, so a
// lease that expired and was re-acquired by another process is never broken
// by the stale holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`

const acquirePollInterval = 100 * time.Millisecond

type redisTurnLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisTurnLocker creates a turn locker backed by Redis SET NX leases.
// ttl bounds how long a crashed holder can block the pair.
func NewRedisTurnLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) TurnLocker {
	return &redisTurnLocker{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisTurnLocker"),
	}
}

func (l *redisTurnLocker) Acquire(ctx context.Context, userID uuid.UUID, campaignID string) (func(), error) {
	key := fmt.Sprintf("turn_lock:%s:%s", userID, campaignID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			l.logger.Error("Failed to acquire turn lock", zap.String("key", key), zap.Error(err))
			return nil, err
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, models.ErrTurnInProgress
		case <-time.After(acquirePollInterval):
		}
	}
}

func (l *redisTurnLocker) release(key, token string) {
	// Release outlives the request context so a completed turn always
	// frees its lease.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		l.logger.Warn("Failed to release turn lock, relying on TTL expiry",
			zap.String("key", key), zap.Error(err))
	}
}
