// Package app 组装服务端与命令行工具共用的知识库组件。
package app

import (
	"context"
	"fmt"

	"consultor-ia-go/internal/config"
	"consultor-ia-go/internal/pipeline"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/internal/store"
	"consultor-ia-go/pkg/embedding"
	"consultor-ia-go/pkg/es"
	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/tika"
	"consultor-ia-go/pkg/vectordb"
)

// 未配置 embedding 服务时本地哈希向量的维度
const defaultHashingDims = 256

// Knowledge 是知识库的读写组件。
type Knowledge struct {
	Store    store.ChunkStore
	Manifest repository.ManifestRepository
	Ingestor *pipeline.Ingestor
}

// NewEmbedder 在配置了 API Key 时使用远程 embedding 服务，否则退回本地哈希向量。
func NewEmbedder(cfg config.EmbeddingConfig) (embedding.Client, int) {
	if cfg.APIKey == "" {
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = defaultHashingDims
		}
		log.Warnf("[App] 未配置 embedding API Key，使用本地哈希向量, dims: %d", dims)
		return embedding.NewHashingClient(dims), dims
	}
	return embedding.NewClient(cfg), cfg.Dimensions
}

// NewIndex 按 knowledge.store 选择向量后端。
func NewIndex(ctx context.Context, cfg *config.Config, dims int) (vectordb.Index, error) {
	switch cfg.Knowledge.Store {
	case "memory":
		log.Info("[App] 使用进程内向量索引")
		return vectordb.NewMemoryIndex(), nil
	case "", "elasticsearch":
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
		}
		backend, err := es.NewBackend(ctx, client, cfg.Elasticsearch.IndexName, dims)
		if err != nil {
			return nil, fmt.Errorf("初始化 Elasticsearch 索引失败: %w", err)
		}
		log.Infof("[App] 使用 Elasticsearch 索引: %s", cfg.Elasticsearch.IndexName)
		return backend, nil
	default:
		return nil, fmt.Errorf("未知的向量存储类型: %s", cfg.Knowledge.Store)
	}
}

// NewKnowledge 组装提取、切块、向量存储与清单，返回可直接使用的入库器。
func NewKnowledge(ctx context.Context, cfg *config.Config) (*Knowledge, error) {
	embedder, dims := NewEmbedder(cfg.Embedding)
	index, err := NewIndex(ctx, cfg, dims)
	if err != nil {
		return nil, err
	}
	chunkStore := store.NewChunkStore(embedder, index)

	manifest, err := repository.NewFileManifestRepository(cfg.Knowledge.PersistDir)
	if err != nil {
		return nil, fmt.Errorf("加载入库清单失败: %w", err)
	}

	var tikaClient *tika.Client
	if cfg.Tika.ServerURL != "" {
		tikaClient = tika.NewClient(cfg.Tika)
	}
	processor := pipeline.NewProcessor(pipeline.NewExtractor(tikaClient), cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	ingestor := pipeline.NewIngestor(processor, chunkStore, manifest, cfg.Knowledge.Extensions)

	return &Knowledge{Store: chunkStore, Manifest: manifest, Ingestor: ingestor}, nil
}
