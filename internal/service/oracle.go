package service

import (
	"context"

	"chromance-server/pkg/ai"
)

// Oracle is the language-model collaborator: narration for turns,
// summarization for lore extraction. Satisfied by *ai.Client.
type Oracle interface {
	Narrate(ctx context.Context, req ai.NarrationRequest) (string, error)
	Summarize(ctx context.Context, instructions, text string) (string, error)
}

// Embedder converts text to vectors. Write-time and query-time embeddings
// must come from the same Embedder so similarity scores are comparable.
// Satisfied by *ai.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
