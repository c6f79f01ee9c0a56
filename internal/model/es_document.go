package model

// EsChunkDocument 代表存储在 Elasticsearch 中的分块文档。
// 文档 _id 即 DocumentChunk.ID，重复写入即覆盖。
type EsChunkDocument struct {
	ChunkID    string    `json:"chunk_id"`
	Source     string    `json:"source"`
	Path       string    `json:"path"`
	ChunkIndex int       `json:"chunk_index"`
	Keywords   string    `json:"keywords"` // 逗号分隔
	Text       string    `json:"text_content"`
	Vector     []float32 `json:"vector"`
}
