package model

import "time"

// 上传文档的入库状态。
const (
	UploadReceived = 0
	UploadIngested = 1
	UploadFailed   = 2
)

// DocumentUpload 记录一次通过 API 上传的文档：本地路径、对象存储位置与入库状态。
type DocumentUpload struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5    string     `gorm:"type:varchar(32);not null;index" json:"fileMd5"`
	FileName   string     `gorm:"type:varchar(255);not null" json:"fileName"`
	TotalSize  int64      `gorm:"not null" json:"totalSize"`
	LocalPath  string     `gorm:"type:varchar(512);not null" json:"localPath"`
	ObjectKey  string     `gorm:"type:varchar(512)" json:"objectKey"`
	Status     int        `gorm:"type:tinyint;not null;default:0" json:"status"`
	ChunkCount int        `gorm:"not null;default:0" json:"chunkCount"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	IngestedAt *time.Time `gorm:"default:null" json:"ingestedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentUpload) TableName() string {
	return "document_upload"
}
