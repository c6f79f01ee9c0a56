package repository

import (
	"time"

	"consultor-ia-go/internal/model"

	"gorm.io/gorm"
)

// UploadRepository 持久化通过 API 上传的文档记录。
type UploadRepository interface {
	Create(record *model.DocumentUpload) error
	FindLatestByMD5(fileMD5 string) (*model.DocumentUpload, error)
	MarkIngested(id uint, chunkCount int) error
	MarkFailed(id uint, reason string) error
	List(limit int) ([]model.DocumentUpload, error)
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(record *model.DocumentUpload) error {
	return r.db.Create(record).Error
}

func (r *uploadRepository) FindLatestByMD5(fileMD5 string) (*model.DocumentUpload, error) {
	var record model.DocumentUpload
	err := r.db.Where("file_md5 = ?", fileMD5).Order("id desc").First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *uploadRepository) MarkIngested(id uint, chunkCount int) error {
	now := time.Now()
	return r.db.Model(&model.DocumentUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      model.UploadIngested,
		"chunk_count": chunkCount,
		"ingested_at": &now,
		"error":       "",
	}).Error
}

func (r *uploadRepository) MarkFailed(id uint, reason string) error {
	return r.db.Model(&model.DocumentUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": model.UploadFailed,
		"error":  reason,
	}).Error
}

func (r *uploadRepository) List(limit int) ([]model.DocumentUpload, error) {
	var records []model.DocumentUpload
	q := r.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}
