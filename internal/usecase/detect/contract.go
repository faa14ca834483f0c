package detect

import (
	"context"

	"github.com/seclens/termwatch/internal/domain"
)

// Embedder vectorizes query text for semantic comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
