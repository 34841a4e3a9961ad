package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chromance-server/pkg/ai"
)

// Mock Oracle
type Oracle struct {
	mock.Mock
}

func (m *Oracle) Narrate(ctx context.Context, req ai.NarrationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
func (m *Oracle) Summarize(ctx context.Context, instructions, text string) (string, error) {
	args := m.Called(ctx, instructions, text)
	return args.String(0), args.Error(1)
}

// Mock Embedder
type Embedder struct {
	mock.Mock
}

func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	emb, _ := args.Get(0).([]float32)
	return emb, args.Error(1)
}
