package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/storage"
	"consultor-ia-go/pkg/tasks"
)

var (
	// ErrUnsupportedUpload 表示上传文件的扩展名不在支持列表中。
	ErrUnsupportedUpload = errors.New("tipo de arquivo não suportado")
	// ErrArchiveDisabled 表示没有配置 MySQL 或 MinIO，无法提供下载链接。
	ErrArchiveDisabled = errors.New("arquivamento de documentos não configurado")
	// ErrPathOutsideDocs 表示请求的路径不在文档目录内。
	ErrPathOutsideDocs = errors.New("caminho fora do diretório de documentos")
)

// Ingester 是文档服务依赖的入库能力，由 pipeline.Ingestor 实现。
type Ingester interface {
	Supported(path string) bool
	IsProcessed(path string) bool
	IngestFile(ctx context.Context, path string, force bool) model.FileIngestResult
	IngestDirectory(ctx context.Context, root string) (model.IngestReport, error)
	RemoveFile(path string) (bool, error)
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (model.KnowledgeStats, error)
}

// TaskQueue 投递异步入库任务，由 kafka.Producer 实现。
type TaskQueue interface {
	ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error
}

// DocumentInfo 是文档目录中的一个文件。
type DocumentInfo struct {
	Name   string `json:"nome"`
	Type   string `json:"tipo"`
	Size   int64  `json:"tamanho"`
	Folder string `json:"pasta"`
	Path   string `json:"caminho"`
}

// FileCheckDTO 是单个文件的入库状态。
type FileCheckDTO struct {
	Path      string               `json:"path"`
	Exists    bool                 `json:"exists"`
	Processed bool                 `json:"processed"`
	Entry     *model.ManifestEntry `json:"entry,omitempty"`
}

// UploadResultDTO 是一次上传的结果。Queued 为 true 时入库结果稍后才会出现在统计中。
type UploadResultDTO struct {
	FileName string                  `json:"fileName"`
	FileMD5  string                  `json:"fileMd5"`
	Size     int64                   `json:"size"`
	Archived bool                    `json:"archived"`
	Queued   bool                    `json:"queued"`
	Result   *model.FileIngestResult `json:"result,omitempty"`
}

// DownloadInfoDTO 封装了文件下载链接所需的信息。
type DownloadInfoDTO struct {
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
	FileSize    int64  `json:"fileSize"`
}

// DocumentService 接口定义了知识库文档管理相关的业务操作。
type DocumentService interface {
	IngestAll(ctx context.Context) (model.IngestReport, error)
	AddFile(ctx context.Context, path string, force bool) model.FileIngestResult
	CheckFile(path string) (FileCheckDTO, error)
	RemoveFile(path string) (bool, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (model.KnowledgeStats, error)
	ListDocuments() ([]DocumentInfo, error)
	Upload(ctx context.Context, fileName string, r io.Reader, async bool) (*UploadResultDTO, error)
	ListUploads(limit int) ([]model.DocumentUpload, error)
	GenerateDownloadURL(ctx context.Context, fileMD5 string) (*DownloadInfoDTO, error)
	// Process 实现 kafka.TaskProcessor，入库后回写上传记录状态。
	Process(ctx context.Context, task tasks.IngestTask) error
}

type documentService struct {
	docsDir    string
	ingester   Ingester
	manifest   repository.ManifestRepository
	uploadRepo repository.UploadRepository // 可为 nil
	objects    storage.ObjectStore         // 可为 nil
	queue      TaskQueue                   // 可为 nil，此时总是同步入库
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docsDir string,
	ingester Ingester,
	manifest repository.ManifestRepository,
	uploadRepo repository.UploadRepository,
	objects storage.ObjectStore,
	queue TaskQueue,
) DocumentService {
	return &documentService{
		docsDir:    docsDir,
		ingester:   ingester,
		manifest:   manifest,
		uploadRepo: uploadRepo,
		objects:    objects,
		queue:      queue,
	}
}

func (s *documentService) IngestAll(ctx context.Context) (model.IngestReport, error) {
	if err := os.MkdirAll(s.docsDir, 0o755); err != nil {
		return model.IngestReport{}, err
	}
	return s.ingester.IngestDirectory(ctx, s.docsDir)
}

func (s *documentService) AddFile(ctx context.Context, path string, force bool) model.FileIngestResult {
	resolved, err := s.resolve(path)
	if err != nil {
		return model.FileIngestResult{Path: path, Status: model.IngestFailed, Error: err.Error()}
	}
	return s.ingester.IngestFile(ctx, resolved, force)
}

func (s *documentService) CheckFile(path string) (FileCheckDTO, error) {
	path, err := s.resolve(path)
	if err != nil {
		return FileCheckDTO{}, err
	}
	dto := FileCheckDTO{Path: path}
	if _, err := os.Stat(path); err == nil {
		dto.Exists = true
	}
	dto.Processed = s.ingester.IsProcessed(path)
	if entry, ok := s.manifest.Get(path); ok {
		dto.Entry = &entry
	}
	return dto, nil
}

func (s *documentService) RemoveFile(path string) (bool, error) {
	resolved, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	return s.ingester.RemoveFile(resolved)
}

func (s *documentService) Clear(ctx context.Context) error {
	return s.ingester.ClearAll(ctx)
}

func (s *documentService) Stats(ctx context.Context) (model.KnowledgeStats, error) {
	return s.ingester.Stats(ctx)
}

// ListDocuments 列出文档目录下所有支持的文件，目录不存在时返回空列表。
func (s *documentService) ListDocuments() ([]DocumentInfo, error) {
	docs := []DocumentInfo{}
	if _, err := os.Stat(s.docsDir); errors.Is(err, fs.ErrNotExist) {
		return docs, nil
	}
	err := filepath.WalkDir(s.docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !s.ingester.Supported(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		docs = append(docs, DocumentInfo{
			Name:   d.Name(),
			Type:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Size:   info.Size(),
			Folder: filepath.Base(filepath.Dir(path)),
			Path:   path,
		})
		return nil
	})
	return docs, err
}

// Upload 保存文件到文档目录，可选归档到对象存储，再同步或异步入库。
func (s *documentService) Upload(ctx context.Context, fileName string, r io.Reader, async bool) (*UploadResultDTO, error) {
	fileName = filepath.Base(fileName)
	if fileName == "." || fileName == string(filepath.Separator) || !s.ingester.Supported(fileName) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUpload, fileName)
	}
	if err := os.MkdirAll(s.docsDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建文档目录失败: %w", err)
	}

	localPath, err := filepath.Abs(filepath.Join(s.docsDir, fileName))
	if err != nil {
		return nil, err
	}
	fileMD5, size, err := saveFile(localPath, r)
	if err != nil {
		return nil, err
	}
	log.Infof("[DocumentService] 文件已保存: %s, MD5: %s, 大小: %d", localPath, fileMD5, size)

	res := &UploadResultDTO{FileName: fileName, FileMD5: fileMD5, Size: size}
	objectKey := ""
	if s.objects != nil {
		objectKey = fmt.Sprintf("uploads/%s/%s", fileMD5, fileName)
		if err := s.archive(ctx, localPath, objectKey, size); err != nil {
			// 归档失败不影响入库
			log.Warnf("[DocumentService] 归档到对象存储失败: %v", err)
			objectKey = ""
		} else {
			res.Archived = true
		}
	}

	record := &model.DocumentUpload{
		FileMD5:   fileMD5,
		FileName:  fileName,
		TotalSize: size,
		LocalPath: localPath,
		ObjectKey: objectKey,
		Status:    model.UploadReceived,
	}
	if s.uploadRepo != nil {
		if err := s.uploadRepo.Create(record); err != nil {
			log.Errorf("[DocumentService] 创建上传记录失败: %v", err)
		}
	}

	task := tasks.IngestTask{Path: localPath, FileName: fileName, FileMD5: fileMD5, UploadID: record.ID}
	if async && s.queue != nil {
		err := s.queue.ProduceIngestTask(ctx, task)
		if err == nil {
			res.Queued = true
			return res, nil
		}
		log.Warnf("[DocumentService] 投递入库任务失败，改为同步入库: %v", err)
	}

	result := s.ingest(ctx, task)
	res.Result = &result
	return res, nil
}

func (s *documentService) ListUploads(limit int) ([]model.DocumentUpload, error) {
	if s.uploadRepo == nil {
		return nil, ErrArchiveDisabled
	}
	return s.uploadRepo.List(limit)
}

// GenerateDownloadURL 生成归档原始文件的临时下载链接，有效期 1 小时。
func (s *documentService) GenerateDownloadURL(ctx context.Context, fileMD5 string) (*DownloadInfoDTO, error) {
	if s.uploadRepo == nil || s.objects == nil {
		return nil, ErrArchiveDisabled
	}
	record, err := s.uploadRepo.FindLatestByMD5(fileMD5)
	if err != nil {
		return nil, fmt.Errorf("上传记录不存在: %w", err)
	}
	if record.ObjectKey == "" {
		return nil, errors.New("文件未归档到对象存储")
	}
	u, err := s.objects.PresignedURL(ctx, record.ObjectKey, time.Hour)
	if err != nil {
		return nil, err
	}
	return &DownloadInfoDTO{FileName: record.FileName, DownloadURL: u, FileSize: record.TotalSize}, nil
}

func (s *documentService) Process(ctx context.Context, task tasks.IngestTask) error {
	res := s.ingest(ctx, task)
	if res.Status == model.IngestFailed {
		return errors.New(res.Error)
	}
	return nil
}

func (s *documentService) ingest(ctx context.Context, task tasks.IngestTask) model.FileIngestResult {
	res := s.ingester.IngestFile(ctx, task.Path, task.Force)
	if s.uploadRepo == nil || task.UploadID == 0 {
		return res
	}
	var err error
	switch res.Status {
	case model.IngestFailed:
		err = s.uploadRepo.MarkFailed(task.UploadID, res.Error)
	case model.IngestProcessed:
		err = s.uploadRepo.MarkIngested(task.UploadID, res.ChunkCount)
	case model.IngestSkipped:
		// 内容与已入库版本相同，沿用清单中的分块数
		chunkCount := 0
		if entry, ok := s.manifest.Get(res.Path); ok {
			chunkCount = entry.ChunkCount
		}
		err = s.uploadRepo.MarkIngested(task.UploadID, chunkCount)
	}
	if err != nil {
		log.Errorf("[DocumentService] 更新上传记录状态失败, id: %d, error: %v", task.UploadID, err)
	}
	return res
}

// resolve 把相对路径解释为文档目录下的文件，目录之外的路径一律拒绝。
func (s *documentService) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(s.docsDir, path)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideDocs, path)
	}
	root, err := filepath.Abs(s.docsDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideDocs, path)
	}
	return abs, nil
}

func (s *documentService) archive(ctx context.Context, localPath, objectKey string, size int64) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.objects.Put(ctx, objectKey, f, size, contentType)
}

// saveFile 写入磁盘的同时计算 MD5。先写临时文件再改名，避免监听器读到半个文件。
func saveFile(path string, r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := md5.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("写入文件失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("保存文件失败: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
