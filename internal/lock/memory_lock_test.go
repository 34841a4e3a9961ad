package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"chromance-server/internal/lock"
	"chromance-server/internal/models"
)

func TestMemoryTurnLocker(t *testing.T) {
	userID := uuid.New()

	t.Run("Serializes the same pair", func(t *testing.T) {
		locker := lock.NewMemoryTurnLocker()
		ctx := context.Background()

		release, err := locker.Acquire(ctx, userID, "chromance")
		assert.NoError(t, err)

		var order []string
		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			r2, err := locker.Acquire(ctx, userID, "chromance")
			assert.NoError(t, err)
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			r2()
		}()

		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		release()
		wg.Wait()

		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("Different pairs proceed in parallel", func(t *testing.T) {
		locker := lock.NewMemoryTurnLocker()
		ctx := context.Background()

		r1, err := locker.Acquire(ctx, userID, "chromance")
		assert.NoError(t, err)
		defer r1()

		otherUser := uuid.New()
		r2, err := locker.Acquire(ctx, otherUser, "chromance")
		assert.NoError(t, err)
		r2()

		r3, err := locker.Acquire(ctx, userID, "other-campaign")
		assert.NoError(t, err)
		r3()
	})

	t.Run("Contended acquire times out as turn in progress", func(t *testing.T) {
		locker := lock.NewMemoryTurnLocker()

		release, err := locker.Acquire(context.Background(), userID, "chromance")
		assert.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err = locker.Acquire(ctx, userID, "chromance")
		assert.ErrorIs(t, err, models.ErrTurnInProgress)
	})
}
