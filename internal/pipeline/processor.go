// Package pipeline 定义了文档入库的核心流程：提取、切块、增量写入。
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/pkg/log"
)

const (
	docKeywordCount   = 5
	chunkKeywordCount = 3
)

// Processor 把一个文件变成一组带关键词的分块。
type Processor struct {
	extractor    TextExtractor
	chunkSize    int
	chunkOverlap int
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(extractor TextExtractor, chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Processor{extractor: extractor, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// BuildChunks 提取文本并切块。分块 ID 由 (path, index) 决定。
func (p *Processor) BuildChunks(ctx context.Context, path string) ([]model.DocumentChunk, error) {
	log.Infof("[Processor] 步骤1: 提取文本, File: %s", path)
	text, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("提取文本失败: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyContent
	}
	log.Infof("[Processor] 步骤1: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))

	pieces := splitText(text, p.chunkSize, p.chunkOverlap)
	log.Infof("[Processor] 步骤2: 文本分块完成, chunkSize: %d, chunkOverlap: %d, 共 %d 个分块", p.chunkSize, p.chunkOverlap, len(pieces))

	docKeywords := ExtractKeywords(text, docKeywordCount)
	source := filepath.Base(path)
	chunks := make([]model.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, model.DocumentChunk{
			ID:         model.ChunkID(path, i),
			Source:     source,
			Path:       path,
			ChunkIndex: i,
			Keywords:   mergeKeywords(docKeywords, ExtractKeywords(piece, chunkKeywordCount)),
			Text:       piece,
		})
	}
	return chunks, nil
}

// splitText 将长文本按指定大小和重叠进行切分。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		return simpleSplit(text, chunkSize)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	runes := []rune(text)
	if len(runes) == 0 || chunkSize <= 0 {
		return nil
	}
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
