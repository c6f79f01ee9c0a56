package model

// ManifestEntry 记录一个已入库文件的指纹，是增量入库的唯一依据。
type ManifestEntry struct {
	Path        string    `json:"path"`
	Hash        string    `json:"hash"`
	ProcessedAt LocalTime `json:"processedAt"`
	ChunkCount  int       `json:"chunkCount"`
}

// IngestStatus 表示单个文件在一次入库中的结果。
type IngestStatus string

const (
	IngestProcessed IngestStatus = "processed"
	IngestSkipped   IngestStatus = "skipped"
	IngestFailed    IngestStatus = "error"
)

// FileIngestResult 是单个文件的入库明细。
type FileIngestResult struct {
	Path       string       `json:"path"`
	Status     IngestStatus `json:"status"`
	ChunkCount int          `json:"chunkCount,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// IngestReport 汇总一次目录入库：新处理 / 未变跳过 / 出错。
type IngestReport struct {
	Processed int                `json:"processed"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Files     []FileIngestResult `json:"files"`
}

// Add 累加一个文件的结果。
func (r *IngestReport) Add(res FileIngestResult) {
	switch res.Status {
	case IngestProcessed:
		r.Processed++
	case IngestSkipped:
		r.Skipped++
	case IngestFailed:
		r.Failed++
	}
	r.Files = append(r.Files, res)
}

// KnowledgeStats 是知识库的统计信息。
type KnowledgeStats struct {
	TotalChunks int             `json:"totalChunks"`
	TotalFiles  int             `json:"totalFiles"`
	Files       []ManifestEntry `json:"files"`
}
