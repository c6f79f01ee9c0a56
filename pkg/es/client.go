// Package es 提供了基于 Elasticsearch 的向量索引实现。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"consultor-ia-go/internal/config"
	"consultor-ia-go/internal/model"
	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/vectordb"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Backend 把分块与向量存进一个索引，文档 _id 即分块 ID，重复写入即覆盖。
type Backend struct {
	client *elasticsearch.Client
	index  string
	dims   int
}

// NewClient 根据配置创建 Elasticsearch 客户端。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
}

// NewBackend 确保索引存在后返回 Backend。
func NewBackend(ctx context.Context, client *elasticsearch.Client, index string, dims int) (*Backend, error) {
	b := &Backend{client: client, index: index, dims: dims}
	if err := b.createIndexIfNotExists(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) mapping() string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"source": { "type": "keyword" },
				"path": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"keywords": { "type": "text" },
				"text_content": { "type": "text", "analyzer": "portuguese" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, b.dims)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (b *Backend) createIndexIfNotExists(ctx context.Context) error {
	res, err := b.client.Indices.Exists([]string{b.index}, b.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("[ES] 索引 '%s' 已存在", b.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}
	return b.create(ctx)
}

func (b *Backend) create(ctx context.Context) error {
	res, err := b.client.Indices.Create(
		b.index,
		b.client.Indices.Create.WithBody(strings.NewReader(b.mapping())),
		b.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", b.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", b.index, res.String())
	}
	log.Infof("[ES] 索引 '%s' 创建成功", b.index)
	return nil
}

// Upsert 用一次 _bulk 请求写入全部分块，并带 refresh=true 使结果立即可查。
func (b *Backend) Upsert(ctx context.Context, records []vectordb.Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": b.index, "_id": r.Chunk.ID},
		}
		doc := model.EsChunkDocument{
			ChunkID:    r.Chunk.ID,
			Source:     r.Chunk.Source,
			Path:       r.Chunk.Path,
			ChunkIndex: r.Chunk.ChunkIndex,
			Keywords:   strings.Join(r.Chunk.Keywords, ","),
			Text:       r.Chunk.Text,
			Vector:     r.Vector,
		}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	req := esapi.BulkRequest{
		Index:   b.index,
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, b.client)
	if err != nil {
		return fmt.Errorf("批量写入分块失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("批量写入时 Elasticsearch 返回错误: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("解析批量写入结果失败: %w", err)
	}
	if br.Errors {
		for _, item := range br.Items {
			for _, op := range item {
				if op.Error != nil {
					return fmt.Errorf("索引分块 %s 失败: %s: %s", op.ID, op.Error.Type, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("批量写入部分失败")
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64               `json:"_score"`
			Source model.EsChunkDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 执行 knn 检索。cosine 相似度下 _score = (1+cos)/2，这里换算回余弦距离 1-cos。
func (b *Backend) Search(ctx context.Context, query []float32, k int) ([]vectordb.Match, error) {
	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	body := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   query,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"size":    k,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("编码查询失败: %w", err)
	}

	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(b.index),
		b.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("Elasticsearch 查询失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch 查询返回错误: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("解析查询结果失败: %w", err)
	}

	matches := make([]vectordb.Match, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		doc := h.Source
		var keywords []string
		if doc.Keywords != "" {
			keywords = strings.Split(doc.Keywords, ",")
		}
		matches = append(matches, vectordb.Match{
			Chunk: model.DocumentChunk{
				ID:         doc.ChunkID,
				Source:     doc.Source,
				Path:       doc.Path,
				ChunkIndex: doc.ChunkIndex,
				Keywords:   keywords,
				Text:       doc.Text,
			},
			Distance: ScoreToDistance(h.Score),
		})
	}
	return matches, nil
}

// ScoreToDistance 把 cosine 相似度下的 _score 换算为余弦距离。
func ScoreToDistance(score float64) float64 {
	d := 2 * (1 - score)
	if d < 0 {
		return 0
	}
	return d
}

// Recreate 删除并重建索引。
func (b *Backend) Recreate(ctx context.Context) error {
	res, err := b.client.Indices.Delete([]string{b.index}, b.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("删除索引失败: %w", err)
	}
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		msg := res.String()
		res.Body.Close()
		return fmt.Errorf("删除索引时 Elasticsearch 返回错误: %s", msg)
	}
	res.Body.Close()
	return b.create(ctx)
}

// Count 返回索引中的分块数。
func (b *Backend) Count(ctx context.Context) (int, error) {
	res, err := b.client.Count(b.client.Count.WithIndex(b.index), b.client.Count.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("统计索引失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("统计索引时 Elasticsearch 返回错误: %s", res.String())
	}
	var cr struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("解析统计结果失败: %w", err)
	}
	return cr.Count, nil
}
