package lock

import (
	"context"

	"github.com/google/uuid"
)

// TurnLocker serializes turn processing per (user, campaign). The full turn
// pipeline runs under a single lease: acquire before the user turn is
// persisted, release after the response is assembled.
type TurnLocker interface {
	// Acquire blocks until the lease is held or ctx expires. On ctx expiry
	// it returns models.ErrTurnInProgress. The returned release function is
	// safe to call exactly once.
	Acquire(ctx context.Context, userID uuid.UUID, campaignID string) (release func(), err error)
}
