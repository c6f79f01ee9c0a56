package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/pkg/log"

	"github.com/fsnotify/fsnotify"
)

// FileIngester 是 Watcher 需要的入库能力，由 Ingestor 实现。
type FileIngester interface {
	Supported(path string) bool
	IngestFile(ctx context.Context, path string, force bool) model.FileIngestResult
}

// Watcher 监听文档目录，文件写入稳定 debounce 时长后触发增量入库。
type Watcher struct {
	root     string
	ingester FileIngester
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher 创建目录监听器。
func NewWatcher(root string, ingester FileIngester, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		root:     root,
		ingester: ingester,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Run 阻塞直到 ctx 取消。新建的子目录会被加入监听。
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, w.root); err != nil {
		return err
	}
	log.Infof("[Watcher] 开始监听目录: %s", w.root)

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addRecursive(fw, ev.Name); err != nil {
						log.Warnf("[Watcher] 监听子目录失败: %s, error: %v", ev.Name, err)
					}
					continue
				}
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warnf("[Watcher] fsnotify 错误: %v", err)
		}
	}
}

// handleEvent 只关心写入与新建；删除与重命名不会撤回已入库的分块。
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	if !w.ingester.Supported(ev.Name) {
		return false
	}
	w.schedule(ctx, ev.Name)
	return true
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		res := w.ingester.IngestFile(ctx, path, false)
		log.Infof("[Watcher] 文件变更入库: %s, 状态: %s", path, res.Status)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
