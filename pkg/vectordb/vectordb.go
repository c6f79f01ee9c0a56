// Package vectordb defines the vector index contract shared by the
// Elasticsearch and in-memory backends.
package vectordb

import (
	"context"

	"consultor-ia-go/internal/model"
)

// Record is one chunk with its embedding, keyed by Chunk.ID.
type Record struct {
	Chunk  model.DocumentChunk
	Vector []float32
}

// Match is a search hit. Distance is cosine distance: 0 = identical.
type Match struct {
	Chunk    model.DocumentChunk
	Distance float64
}

// Index is a vector collection. Upsert with an existing ID replaces the record.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, k int) ([]Match, error)
	Recreate(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
