// Package model 包含了应用的数据模型定义。
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DocumentChunk 是从单个源文件按固定大小与重叠切分出来的一段文本。
type DocumentChunk struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"` // 文件名
	Path       string   `json:"path"`   // 绝对路径
	ChunkIndex int      `json:"chunkIndex"`
	Keywords   []string `json:"keywords"`
	Text       string   `json:"text"`
}

// ChunkID 由 (path, chunkIndex) 确定性地生成，重复入库时作为 upsert 的主键。
func ChunkID(path string, chunkIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", path, chunkIndex)))
	return hex.EncodeToString(sum[:])
}

// RetrievalResult 是一次检索命中的分块。Distance 越小越相关。
type RetrievalResult struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Path       string  `json:"path,omitempty"`
	ChunkIndex int     `json:"chunkIndex"`
	ChunkID    string  `json:"chunkId"`
	Distance   float64 `json:"distance"`
	// SearchTerm 仅在扩展检索路径上填充
	SearchTerm string `json:"searchTerm,omitempty"`
}

// DedupKey 用于扩展检索结果去重：(来源文件, 分块序号)。
func (r RetrievalResult) DedupKey() string {
	return fmt.Sprintf("%s_%d", r.Source, r.ChunkIndex)
}
