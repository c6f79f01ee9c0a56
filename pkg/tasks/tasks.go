// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestTask asks a worker to run incremental ingestion for one file.
type IngestTask struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	FileMD5  string `json:"file_md5,omitempty"`
	Force    bool   `json:"force"` // drop the manifest entry first so the file is reprocessed
	UploadID uint   `json:"upload_id,omitempty"`
}

// Key identifies the task for retry bookkeeping.
func (t IngestTask) Key() string {
	if t.FileMD5 != "" {
		return t.FileMD5
	}
	return t.Path
}
