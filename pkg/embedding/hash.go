package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"docchat-go/internal/errs"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashClient is a deterministic, offline embedder based on feature hashing of
// lower-cased word tokens. Vectors are L2-normalized, so texts sharing more
// words have a smaller cosine distance. Used for local development and tests.
type HashClient struct {
	dim int
}

// NewHashClient creates a hashing embedder producing vectors of length dim.
func NewHashClient(dim int) *HashClient {
	if dim <= 0 {
		dim = 256
	}
	return &HashClient{dim: dim}
}

func (h *HashClient) Dimension() int { return h.dim }

func (h *HashClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrEmbeddingUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text: %w: %w", errs.ErrInvalidInput, errs.ErrEmbeddingUnavailable)
	}

	vec := make([]float32, h.dim)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(tok))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.dim))
		// the top bit picks the sign so collisions partly cancel out
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
