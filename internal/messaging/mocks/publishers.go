package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chromance-server/internal/messaging"
)

// Mock GameEventPublisher
type GameEventPublisher struct {
	mock.Mock
}

func (m *GameEventPublisher) PublishGameEvent(ctx context.Context, event messaging.GameEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
func (m *GameEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
