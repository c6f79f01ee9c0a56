package vectordb

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force in-process index, used offline and in tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]Record)}
}

func (m *MemoryIndex) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, exists := m.records[r.Chunk.ID]; !exists {
			m.order = append(m.order, r.Chunk.ID)
		}
		m.records[r.Chunk.ID] = r
	}
	return nil
}

// Search ranks every record by cosine distance. Ties keep insertion order.
func (m *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		r := m.records[id]
		matches = append(matches, Match{Chunk: r.Chunk, Distance: CosineDistance(query, r.Vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MemoryIndex) Recreate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]Record)
	m.order = nil
	return nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
