package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/internal/store"
	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/tasks"
)

// DefaultExtensions 是默认支持入库的文件类型。
var DefaultExtensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md"}

// Ingestor 以清单为唯一依据做增量入库：内容未变的文件不会再次处理。
type Ingestor struct {
	processor  *Processor
	store      store.ChunkStore
	manifest   repository.ManifestRepository
	extensions map[string]struct{}
	now        func() time.Time
}

// NewIngestor 创建一个新的 Ingestor。extensions 为空时使用 DefaultExtensions。
func NewIngestor(processor *Processor, chunkStore store.ChunkStore, manifest repository.ManifestRepository, extensions []string) *Ingestor {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Ingestor{
		processor:  processor,
		store:      chunkStore,
		manifest:   manifest,
		extensions: exts,
		now:        time.Now,
	}
}

// Supported 判断扩展名是否在支持列表中。
func (i *Ingestor) Supported(path string) bool {
	_, ok := i.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// FileHash 计算整个文件的 SHA-256。
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsProcessed 仅当清单中有记录、文件仍存在且当前哈希与记录一致时返回 true。
// 计算哈希出错一律视为未处理。
func (i *Ingestor) IsProcessed(path string) bool {
	hash, err := FileHash(path)
	if err != nil {
		return false
	}
	return i.matches(path, hash)
}

func (i *Ingestor) matches(path, hash string) bool {
	entry, ok := i.manifest.Get(path)
	return ok && entry.Hash == hash
}

// IngestIncremental 若文件已处理则什么都不做；否则先写入向量库，再更新清单。
// 清单记录的是调用时的哈希，写入期间文件被修改时下一次检查会判定为未处理。
// 两步之间崩溃会让文件保持"未处理"，重试时依靠分块 ID 的 upsert 吸收重复写入。
func (i *Ingestor) IngestIncremental(ctx context.Context, chunks []model.DocumentChunk, path string) (bool, error) {
	hash, err := FileHash(path)
	if err != nil {
		return false, fmt.Errorf("计算文件哈希失败: %w", err)
	}
	if i.matches(path, hash) {
		return false, nil
	}
	if err := i.storeAndMark(ctx, chunks, path, hash); err != nil {
		return false, err
	}
	return true, nil
}

// storeAndMark 的 hash 必须是提取文本之前计算的，保证清单与已写入的分块对应同一份内容。
func (i *Ingestor) storeAndMark(ctx context.Context, chunks []model.DocumentChunk, path, hash string) error {
	if err := i.store.Add(ctx, chunks); err != nil {
		return fmt.Errorf("写入向量库失败: %w", err)
	}
	return i.manifest.Put(model.ManifestEntry{
		Path:        path,
		Hash:        hash,
		ProcessedAt: model.LocalTime(i.now()),
		ChunkCount:  len(chunks),
	})
}

// IngestFile 处理单个文件。force 为 true 时先删除清单记录，强制重新处理。
func (i *Ingestor) IngestFile(ctx context.Context, path string, force bool) model.FileIngestResult {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	res := model.FileIngestResult{Path: path}

	if !i.Supported(path) {
		res.Status = model.IngestFailed
		res.Error = fmt.Sprintf("%v: %s", ErrUnsupportedFile, filepath.Ext(path))
		return res
	}
	if force {
		if _, err := i.manifest.Delete(path); err != nil {
			res.Status = model.IngestFailed
			res.Error = err.Error()
			return res
		}
	}
	hash, err := FileHash(path)
	if err != nil {
		res.Status = model.IngestFailed
		res.Error = fmt.Sprintf("计算文件哈希失败: %v", err)
		return res
	}
	if i.matches(path, hash) {
		res.Status = model.IngestSkipped
		return res
	}

	chunks, err := i.processor.BuildChunks(ctx, path)
	if err != nil {
		log.Errorf("[Ingestor] 处理文件失败: %s, error: %v", path, err)
		res.Status = model.IngestFailed
		res.Error = err.Error()
		return res
	}
	if err := i.storeAndMark(ctx, chunks, path, hash); err != nil {
		log.Errorf("[Ingestor] 入库失败: %s, error: %v", path, err)
		res.Status = model.IngestFailed
		res.Error = err.Error()
		return res
	}

	log.Infof("[Ingestor] 文件入库成功: %s, 分块数: %d", path, len(chunks))
	res.Status = model.IngestProcessed
	res.ChunkCount = len(chunks)
	return res
}

// IngestDirectory 递归遍历 root，单个文件失败不会中断整个遍历。
func (i *Ingestor) IngestDirectory(ctx context.Context, root string) (model.IngestReport, error) {
	var report model.IngestReport
	if _, err := os.Stat(root); err != nil {
		return report, fmt.Errorf("目录不可用: %w", err)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			report.Add(model.FileIngestResult{Path: path, Status: model.IngestFailed, Error: walkErr.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), "~$") || !i.Supported(path) {
			return nil
		}
		report.Add(i.IngestFile(ctx, path, false))
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipDir) {
		return report, err
	}

	log.Infof("[Ingestor] 目录入库完成: %s, 新处理: %d, 跳过: %d, 出错: %d", root, report.Processed, report.Skipped, report.Failed)
	return report, nil
}

// RemoveFile 只删除清单记录，向量库中的分块不会被撤回。
func (i *Ingestor) RemoveFile(path string) (bool, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return i.manifest.Delete(path)
}

// ClearAll 重建向量集合并清空清单。出错时状态未定义，需要整体重试。
func (i *Ingestor) ClearAll(ctx context.Context) error {
	if err := i.store.Reset(ctx); err != nil {
		return fmt.Errorf("重建向量集合失败: %w", err)
	}
	if err := i.manifest.Clear(); err != nil {
		return fmt.Errorf("清空清单失败: %w", err)
	}
	log.Info("[Ingestor] 知识库已清空")
	return nil
}

// Stats 返回向量库分块总数与清单中的文件明细。
func (i *Ingestor) Stats(ctx context.Context) (model.KnowledgeStats, error) {
	files := i.manifest.List()
	total, err := i.store.Count(ctx)
	if err != nil {
		return model.KnowledgeStats{TotalFiles: len(files), Files: files}, err
	}
	return model.KnowledgeStats{TotalChunks: total, TotalFiles: len(files), Files: files}, nil
}

// Process 实现 kafka.TaskProcessor，异步入库单个文件。
func (i *Ingestor) Process(ctx context.Context, task tasks.IngestTask) error {
	res := i.IngestFile(ctx, task.Path, task.Force)
	if res.Status == model.IngestFailed {
		return errors.New(res.Error)
	}
	return nil
}
