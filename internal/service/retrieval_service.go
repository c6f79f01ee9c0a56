// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/store"
	"consultor-ia-go/pkg/log"
)

// RetrievalOptions 控制首轮检索与扩展检索的规模。
type RetrievalOptions struct {
	TopK          int // 首轮检索返回条数
	FallbackLimit int // 扩展检索合并后的最大条数
	TermK         int // 扩展检索中每个词的检索条数
	MaxTerms      int // 扩展检索最多使用的词数
}

func (o RetrievalOptions) withDefaults() RetrievalOptions {
	if o.TopK <= 0 {
		o.TopK = 8
	}
	if o.FallbackLimit <= 0 {
		o.FallbackLimit = 10
	}
	if o.TermK <= 0 {
		o.TermK = 5
	}
	if o.MaxTerms <= 0 {
		o.MaxTerms = 3
	}
	return o
}

// RetrievalService 定义了知识库检索操作。
type RetrievalService interface {
	// Search 对整个集合做一次向量检索，返回最近的 k 个分块。
	Search(ctx context.Context, query string, k int) ([]model.RetrievalResult, error)
	// BroadSearch 把问题拆成若干关键词分别检索，合并去重后按距离升序截断。
	// 返回值中的 terms 是实际使用的检索词。
	BroadSearch(ctx context.Context, query string, limit int) (results []model.RetrievalResult, terms []string)
	Options() RetrievalOptions
}

type retrievalService struct {
	store store.ChunkStore
	opts  RetrievalOptions
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(chunkStore store.ChunkStore, opts RetrievalOptions) RetrievalService {
	return &retrievalService{store: chunkStore, opts: opts.withDefaults()}
}

func (s *retrievalService) Options() RetrievalOptions {
	return s.opts
}

func (s *retrievalService) Search(ctx context.Context, query string, k int) ([]model.RetrievalResult, error) {
	if k <= 0 {
		k = s.opts.TopK
	}
	log.Infof("[RetrievalService] 开始执行向量检索, query: '%s', topK: %d", query, k)
	results, err := s.store.Query(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	log.Infof("[RetrievalService] 向量检索完成, 命中 %d 条", len(results))
	return results, nil
}

func (s *retrievalService) BroadSearch(ctx context.Context, query string, limit int) ([]model.RetrievalResult, []string) {
	if limit <= 0 {
		limit = s.opts.FallbackLimit
	}
	terms := RelevantTerms(query, s.opts.MaxTerms)
	log.Infof("[RetrievalService] 开始执行扩展检索, query: '%s', 检索词: %v", query, terms)

	seen := make(map[string]struct{})
	var merged []model.RetrievalResult
	for _, term := range terms {
		results, err := s.store.Query(ctx, term, s.opts.TermK)
		if err != nil {
			// 单个词失败只跳过该词
			log.Warnw("[RetrievalService] 检索词检索失败, 已跳过", "term", term, "error", err)
			continue
		}
		for _, r := range results {
			key := r.DedupKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			r.SearchTerm = term
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Distance < merged[j].Distance })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	log.Infof("[RetrievalService] 扩展检索完成, 合并后 %d 条", len(merged))
	return merged, terms
}

// RelevantTerms 小写后按空白切分，保留长度大于 3 的词，最多取前 maxTerms 个。
func RelevantTerms(query string, maxTerms int) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		terms = append(terms, w)
		if len(terms) == maxTerms {
			break
		}
	}
	return terms
}
