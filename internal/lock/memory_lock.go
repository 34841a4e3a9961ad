package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"chromance-server/internal/models"
)

// Compile-time check to ensure memoryTurnLocker implements TurnLocker.
var _ TurnLocker = (*memoryTurnLocker)(nil)

// memoryTurnLocker is a single-process locker keyed by (user, campaign).
// Used in tests and single-instance deployments without Redis.
type memoryTurnLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemoryTurnLocker creates an in-process turn locker.
func NewMemoryTurnLocker() TurnLocker {
	return &memoryTurnLocker{locks: make(map[string]chan struct{})}
}

func (l *memoryTurnLocker) Acquire(ctx context.Context, userID uuid.UUID, campaignID string) (func(), error) {
	key := fmt.Sprintf("%s:%s", userID, campaignID)

	for {
		l.mu.Lock()
		held, ok := l.locks[key]
		if !ok {
			ch := make(chan struct{})
			l.locks[key] = ch
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.locks, key)
				l.mu.Unlock()
				close(ch)
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, models.ErrTurnInProgress
		case <-held:
		}
	}
}
