package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/pipeline"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/internal/store"
	"consultor-ia-go/pkg/embedding"
	"consultor-ia-go/pkg/tasks"
	"consultor-ia-go/pkg/vectordb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	tasks []tasks.IngestTask
	err   error
}

func (q *fakeQueue) ProduceIngestTask(_ context.Context, task tasks.IngestTask) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type fakeObjectStore struct {
	objects map[string]string
}

func (s *fakeObjectStore) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[name] = string(b)
	return nil
}

func (s *fakeObjectStore) PresignedURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://minio.local/" + name, nil
}

type fakeUploadRepo struct {
	records []model.DocumentUpload
}

func (r *fakeUploadRepo) Create(record *model.DocumentUpload) error {
	record.ID = uint(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeUploadRepo) FindLatestByMD5(fileMD5 string) (*model.DocumentUpload, error) {
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].FileMD5 == fileMD5 {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *fakeUploadRepo) MarkIngested(id uint, chunkCount int) error {
	r.records[id-1].Status = model.UploadIngested
	r.records[id-1].ChunkCount = chunkCount
	return nil
}

func (r *fakeUploadRepo) MarkFailed(id uint, reason string) error {
	r.records[id-1].Status = model.UploadFailed
	r.records[id-1].Error = reason
	return nil
}

func (r *fakeUploadRepo) List(int) ([]model.DocumentUpload, error) {
	return r.records, nil
}

type documentFixture struct {
	svc      DocumentService
	docs     string
	uploads  *fakeUploadRepo
	objects  *fakeObjectStore
	queue    *fakeQueue
	manifest repository.ManifestRepository
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	manifest, err := repository.NewFileManifestRepository(t.TempDir())
	require.NoError(t, err)
	chunkStore := store.NewChunkStore(embedding.NewHashingClient(64), vectordb.NewMemoryIndex())
	ingestor := pipeline.NewIngestor(pipeline.NewProcessor(pipeline.NewExtractor(nil), 200, 50), chunkStore, manifest, nil)

	f := &documentFixture{
		docs:     t.TempDir(),
		uploads:  &fakeUploadRepo{},
		objects:  &fakeObjectStore{objects: map[string]string{}},
		queue:    &fakeQueue{},
		manifest: manifest,
	}
	f.svc = NewDocumentService(f.docs, ingestor, manifest, f.uploads, f.objects, f.queue)
	return f
}

func TestUpload_SyncIngest(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "guia.txt", strings.NewReader("como formalizar um MEI"), false)
	require.NoError(t, err)
	assert.True(t, res.Archived)
	assert.False(t, res.Queued)
	require.NotNil(t, res.Result)
	assert.Equal(t, model.IngestProcessed, res.Result.Status)
	assert.Len(t, res.FileMD5, 32)

	assert.Equal(t, "como formalizar um MEI", f.objects.objects["uploads/"+res.FileMD5+"/guia.txt"])
	require.Len(t, f.uploads.records, 1)
	assert.Equal(t, model.UploadIngested, f.uploads.records[0].Status)
	assert.Equal(t, 1, f.uploads.records[0].ChunkCount)

	check, err := f.svc.CheckFile("guia.txt")
	require.NoError(t, err)
	assert.True(t, check.Exists)
	assert.True(t, check.Processed)
	require.NotNil(t, check.Entry)

	dl, err := f.svc.GenerateDownloadURL(ctx, res.FileMD5)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/uploads/"+res.FileMD5+"/guia.txt", dl.DownloadURL)
}

func TestUpload_AsyncQueuesTask(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "guia.txt", strings.NewReader("conteúdo"), true)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Nil(t, res.Result)
	require.Len(t, f.queue.tasks, 1)
	task := f.queue.tasks[0]
	assert.Equal(t, uint(1), task.UploadID)
	assert.Equal(t, model.UploadReceived, f.uploads.records[0].Status)

	// 消费者回调
	require.NoError(t, f.svc.Process(ctx, task))
	assert.Equal(t, model.UploadIngested, f.uploads.records[0].Status)
}

func TestUpload_QueueFailureFallsBackToSync(t *testing.T) {
	f := newDocumentFixture(t)
	f.queue.err = errors.New("broker down")

	res, err := f.svc.Upload(context.Background(), "guia.txt", strings.NewReader("conteúdo"), true)
	require.NoError(t, err)
	assert.False(t, res.Queued)
	require.NotNil(t, res.Result)
	assert.Equal(t, model.IngestProcessed, res.Result.Status)
}

func TestUpload_RejectsUnsupported(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Upload(context.Background(), "../foto.png", strings.NewReader("x"), false)
	assert.ErrorIs(t, err, ErrUnsupportedUpload)
	assert.Empty(t, f.uploads.records)
}

func TestUpload_FailedIngestMarksRecord(t *testing.T) {
	f := newDocumentFixture(t)

	res, err := f.svc.Upload(context.Background(), "vazio.txt", strings.NewReader("  "), false)
	require.NoError(t, err)
	assert.Equal(t, model.IngestFailed, res.Result.Status)
	assert.Equal(t, model.UploadFailed, f.uploads.records[0].Status)
	assert.NotEmpty(t, f.uploads.records[0].Error)
}

func TestListDocumentsAndRemove(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(f.docs, "manuais"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.docs, "manuais", "moa.md"), []byte("manual"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.docs, "foto.png"), []byte("x"), 0o644))

	docs, err := f.svc.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "moa.md", docs[0].Name)
	assert.Equal(t, "md", docs[0].Type)
	assert.Equal(t, "manuais", docs[0].Folder)

	report, err := f.svc.IngestAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	removed, err := f.svc.RemoveFile(docs[0].Path)
	require.NoError(t, err)
	assert.True(t, removed)
	check, err := f.svc.CheckFile(docs[0].Path)
	require.NoError(t, err)
	assert.False(t, check.Processed)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalFiles)
	assert.Equal(t, 1, stats.TotalChunks, "移除清单记录不会撤回分块")
}

func TestDownloadURL_Disabled(t *testing.T) {
	manifest, err := repository.NewFileManifestRepository(t.TempDir())
	require.NoError(t, err)
	svc := NewDocumentService(t.TempDir(), nil, manifest, nil, nil, nil)

	_, err = svc.GenerateDownloadURL(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	_, err = svc.ListUploads(10)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestFileOps_RejectPathsOutsideDocs(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	outside := filepath.Join(t.TempDir(), "segredo.txt")
	require.NoError(t, os.WriteFile(outside, []byte("fora do acervo"), 0o644))

	for _, p := range []string{outside, "../segredo.txt", filepath.Join(f.docs, "..", "segredo.txt")} {
		res := f.svc.AddFile(ctx, p, true)
		assert.Equal(t, model.IngestFailed, res.Status, p)

		_, err := f.svc.CheckFile(p)
		assert.True(t, errors.Is(err, ErrPathOutsideDocs), p)

		_, err = f.svc.RemoveFile(p)
		assert.True(t, errors.Is(err, ErrPathOutsideDocs), p)
	}

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalChunks)

	require.NoError(t, os.WriteFile(filepath.Join(f.docs, "dentro.txt"), []byte("abrir mei"), 0o644))
	res := f.svc.AddFile(ctx, filepath.Join(f.docs, "sub", "..", "dentro.txt"), false)
	assert.Equal(t, model.IngestProcessed, res.Status)
}
