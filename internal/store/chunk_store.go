// Package store 是向量集合的适配层：写入分块、按相似度查询、重建集合。
package store

import (
	"context"
	"fmt"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/pkg/embedding"
	"consultor-ia-go/pkg/vectordb"
)

// ChunkStore 对上层隐藏 embedding 与具体向量引擎。
type ChunkStore interface {
	// Add 以分块 ID 做 upsert，重复写入同一分块不会产生重复数据
	Add(ctx context.Context, chunks []model.DocumentChunk) error
	Query(ctx context.Context, text string, k int) ([]model.RetrievalResult, error)
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type vectorChunkStore struct {
	embedder embedding.Client
	index    vectordb.Index
}

// NewChunkStore 组合 embedding 客户端与向量索引。
func NewChunkStore(embedder embedding.Client, index vectordb.Index) ChunkStore {
	return &vectorChunkStore{embedder: embedder, index: index}
}

// 每次请求 embedding 服务的最大分块数
const embedBatchSize = 32

func (s *vectorChunkStore) Add(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]vectordb.Record, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := s.embedder.CreateEmbeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("生成分块 %s#%d-%d 的向量失败: %w", batch[0].Source, batch[0].ChunkIndex, batch[len(batch)-1].ChunkIndex, err)
		}
		for i, c := range batch {
			if c.ID == "" {
				c.ID = model.ChunkID(c.Path, c.ChunkIndex)
			}
			records = append(records, vectordb.Record{Chunk: c, Vector: vecs[i]})
		}
	}
	return s.index.Upsert(ctx, records)
}

func (s *vectorChunkStore) Query(ctx context.Context, text string, k int) ([]model.RetrievalResult, error) {
	vec, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("生成查询向量失败: %w", err)
	}
	matches, err := s.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	results := make([]model.RetrievalResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, model.RetrievalResult{
			Text:       m.Chunk.Text,
			Source:     m.Chunk.Source,
			Path:       m.Chunk.Path,
			ChunkIndex: m.Chunk.ChunkIndex,
			ChunkID:    m.Chunk.ID,
			Distance:   m.Distance,
		})
	}
	return results, nil
}

func (s *vectorChunkStore) Reset(ctx context.Context) error {
	return s.index.Recreate(ctx)
}

func (s *vectorChunkStore) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}
