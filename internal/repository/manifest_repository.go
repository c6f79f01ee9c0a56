package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"consultor-ia-go/internal/model"
)

// ManifestFileName 与向量库持久化目录放在一起。
const ManifestFileName = "processed_documents.json"

// ManifestRepository 持久化 path -> {hash, 时间, 分块数}。
type ManifestRepository interface {
	Get(path string) (model.ManifestEntry, bool)
	Put(entry model.ManifestEntry) error
	Delete(path string) (bool, error)
	Clear() error
	List() []model.ManifestEntry
}

type fileManifestRepository struct {
	mu      sync.RWMutex
	file    string
	entries map[string]model.ManifestEntry
}

// NewFileManifestRepository 从 dir 下的 JSON 文件加载清单；文件不存在时从空清单开始。
func NewFileManifestRepository(dir string) (ManifestRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manifest dir: %w", err)
	}
	r := &fileManifestRepository{
		file:    filepath.Join(dir, ManifestFileName),
		entries: make(map[string]model.ManifestEntry),
	}

	data, err := os.ReadFile(r.file)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.entries); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", r.file, err)
		}
	}
	return r, nil
}

func (r *fileManifestRepository) Get(path string) (model.ManifestEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[path]
	return e, ok
}

func (r *fileManifestRepository) Put(entry model.ManifestEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.entries[entry.Path]
	r.entries[entry.Path] = entry
	if err := r.flush(); err != nil {
		// 写盘失败时内存状态回滚，保持与磁盘一致
		if existed {
			r.entries[entry.Path] = prev
		} else {
			delete(r.entries, entry.Path)
		}
		return err
	}
	return nil
}

func (r *fileManifestRepository) Delete(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.entries[path]
	if !ok {
		return false, nil
	}
	delete(r.entries, path)
	if err := r.flush(); err != nil {
		r.entries[path] = prev
		return false, err
	}
	return true, nil
}

func (r *fileManifestRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.entries
	r.entries = make(map[string]model.ManifestEntry)
	if err := r.flush(); err != nil {
		r.entries = prev
		return err
	}
	return nil
}

// List 按路径排序返回所有条目。
func (r *fileManifestRepository) List() []model.ManifestEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ManifestEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// flush 先写临时文件再 rename，避免半写的清单。调用方需持有写锁。
func (r *fileManifestRepository) flush() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.file), ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close manifest: %w", err)
	}
	if err := os.Rename(tmpName, r.file); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}
