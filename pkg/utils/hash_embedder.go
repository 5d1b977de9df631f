package utils

import "context"

// HashEmbedder is the offline embedder used when no embedding provider is configured.
type HashEmbedder struct {
	Dim int
}

func (h HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return HashVector(text, h.Dim), nil
}
