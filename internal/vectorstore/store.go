// Package vectorstore persists chunk text with its embedding and answers
// per-document nearest-neighbour queries under cosine distance.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docchat-go/internal/errs"
)

// Store is the vector store used by both pipelines.
type Store interface {
	// Dimension is the vector length accepted by Insert and QueryNearest.
	Dimension() int
	// Insert persists one chunk. Calling it twice with the same content creates two chunks.
	Insert(ctx context.Context, documentID, content string, embedding []float32) (string, error)
	// QueryNearest returns up to k chunk contents of documentID ordered by
	// increasing distance, earlier chunks first on ties. A document without
	// chunks yields an empty slice.
	QueryNearest(ctx context.Context, documentID string, query []float32, k int) ([]string, error)
	// DeleteByDocument removes every chunk of documentID.
	DeleteByDocument(ctx context.Context, documentID string) error
}

// CheckDimension verifies that an embedder and a store agree on vector length.
// A mismatch is a configuration error and must stop startup.
func CheckDimension(embedderDim int, store Store) error {
	if embedderDim != store.Dimension() {
		return fmt.Errorf("embedder produces %d dims but vector store expects %d: %w",
			embedderDim, store.Dimension(), errs.ErrDimensionMismatch)
	}
	return nil
}

func checkVector(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("vector has %d dims, store expects %d: %w", len(v), dim, errs.ErrDimensionMismatch)
	}
	return nil
}

func checkK(k int) error {
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d: %w", k, errs.ErrInvalidInput)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

type candidate struct {
	content  string
	distance float64
}

// nearest expects candidates in insertion order and returns the k closest
// contents; the stable sort keeps insertion order between equal distances.
func nearest(candidates []candidate, k int) []string {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].content
	}
	return out
}
