package llm

import "context"

// Chat produces a completion for the fixed two-message prompt shape used by
// the query pipeline: one system instruction and one user message.
type Chat interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder computes dense vectors for chunk texts and queries.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
