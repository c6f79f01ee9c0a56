package vectordb

import (
	"context"
	"testing"

	"consultor-ia-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string, v ...float32) Record {
	return Record{Chunk: model.DocumentChunk{ID: id, Source: id + ".pdf"}, Vector: v}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 2.0, CosineDistance([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 2.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
}

func TestMemoryIndex_UpsertSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Record{rec("a", 1, 0), rec("b", 0, 1), rec("c", 1, 1)}))
	// 同一 ID 再写一次是覆盖
	require.NoError(t, idx.Upsert(ctx, []Record{rec("b", 0, 1)}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := idx.Search(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Chunk.ID)
	assert.Equal(t, "c", matches[1].Chunk.ID)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)

	require.NoError(t, idx.Recreate(ctx))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
