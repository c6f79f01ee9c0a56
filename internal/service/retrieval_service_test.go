package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeChunkStore 按查询文本返回预设结果，并记录每次查询。
type fakeChunkStore struct {
	mu      sync.Mutex
	results map[string][]model.RetrievalResult
	errs    map[string]error
	queries []string
}

func (f *fakeChunkStore) Add(context.Context, []model.DocumentChunk) error { return nil }
func (f *fakeChunkStore) Reset(context.Context) error                      { return nil }
func (f *fakeChunkStore) Count(context.Context) (int, error)               { return 0, nil }

func (f *fakeChunkStore) Query(_ context.Context, text string, k int) ([]model.RetrievalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if err := f.errs[text]; err != nil {
		return nil, err
	}
	res := f.results[text]
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func hit(source string, idx int, distance float64) model.RetrievalResult {
	return model.RetrievalResult{Source: source, ChunkIndex: idx, Distance: distance, Text: source}
}

func TestRelevantTerms(t *testing.T) {
	assert.Equal(t, []string{"planejamento", "financeiro", "pequenas"},
		RelevantTerms("Planejamento financeiro de pequenas empresas brasileiras", 3))
	assert.Empty(t, RelevantTerms("o que é mei", 3))
	assert.Equal(t, []string{"fluxo", "caixa"}, RelevantTerms("fluxo de caixa", 3))
}

func TestSearch_UsesTopK(t *testing.T) {
	fs := &fakeChunkStore{results: map[string][]model.RetrievalResult{
		"abrir mei": {hit("a.pdf", 0, 0.1), hit("a.pdf", 1, 0.2), hit("b.pdf", 0, 0.3)},
	}}
	svc := NewRetrievalService(fs, RetrievalOptions{TopK: 2})

	results, err := svc.Search(context.Background(), "abrir mei", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"abrir mei"}, fs.queries)
}

func TestSearch_PropagatesError(t *testing.T) {
	fs := &fakeChunkStore{errs: map[string]error{"x": errors.New("es down")}}
	svc := NewRetrievalService(fs, RetrievalOptions{})

	_, err := svc.Search(context.Background(), "x", 8)
	assert.Error(t, err)
}

func TestBroadSearch_AtMostThreeSubQueries(t *testing.T) {
	fs := &fakeChunkStore{}
	svc := NewRetrievalService(fs, RetrievalOptions{})

	_, terms := svc.BroadSearch(context.Background(), "gestão financeira controle estoque varejo", 10)
	assert.Equal(t, []string{"gestão", "financeira", "controle"}, terms)
	assert.Equal(t, terms, fs.queries)
}

func TestBroadSearch_DedupAndSort(t *testing.T) {
	fs := &fakeChunkStore{results: map[string][]model.RetrievalResult{
		"gestão":     {hit("a.pdf", 0, 0.50), hit("b.pdf", 2, 0.30)},
		"financeira": {hit("b.pdf", 2, 0.10), hit("c.pdf", 1, 0.20)},
		"controle":   {hit("a.pdf", 0, 0.05), hit("d.pdf", 4, 0.90)},
	}}
	svc := NewRetrievalService(fs, RetrievalOptions{})

	results, _ := svc.BroadSearch(context.Background(), "gestão financeira controle", 10)
	require.Len(t, results, 4)

	keys := make(map[string]int)
	for _, r := range results {
		keys[r.DedupKey()]++
	}
	for key, n := range keys {
		assert.Equal(t, 1, n, key)
	}
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
	// 先出现者保留
	assert.Equal(t, "c.pdf", results[0].Source)
	assert.Equal(t, 0.30, results[1].Distance)
	assert.Equal(t, "gestão", results[1].SearchTerm)
}

func TestBroadSearch_SkipsFailedTerm(t *testing.T) {
	fs := &fakeChunkStore{
		results: map[string][]model.RetrievalResult{"financeira": {hit("a.pdf", 0, 0.2)}},
		errs:    map[string]error{"gestão": errors.New("timeout")},
	}
	svc := NewRetrievalService(fs, RetrievalOptions{})

	core, logs := observer.New(zap.WarnLevel)
	log.SetLogger(zap.New(core))
	defer log.SetLogger(nil)

	results, terms := svc.BroadSearch(context.Background(), "gestão financeira", 10)
	assert.Len(t, terms, 2)
	require.Len(t, results, 1)
	assert.Equal(t, "financeira", results[0].SearchTerm)

	warned := logs.FilterField(zap.String("term", "gestão")).All()
	require.Len(t, warned, 1)
	assert.Equal(t, zap.WarnLevel, warned[0].Level)
}

func TestBroadSearch_TruncatesToLimit(t *testing.T) {
	var many []model.RetrievalResult
	for i := 0; i < 5; i++ {
		many = append(many, hit("a.pdf", i, float64(i)/10))
	}
	fs := &fakeChunkStore{results: map[string][]model.RetrievalResult{"vendas": many}}
	svc := NewRetrievalService(fs, RetrievalOptions{})

	results, _ := svc.BroadSearch(context.Background(), "vendas", 3)
	assert.Len(t, results, 3)
}
