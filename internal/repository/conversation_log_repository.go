package repository

import (
	"consultor-ia-go/internal/model"

	"gorm.io/gorm"
)

// ConversationLogRepository 将每轮问答写入 conversations 表，供审计与指标统计。
type ConversationLogRepository interface {
	Create(conv *model.Conversation) error
	FindBySession(sessionID string, limit int) ([]model.Conversation, error)
	CountByStrategy() (map[string]int64, error)
}

type conversationLogRepository struct {
	db *gorm.DB
}

// NewConversationLogRepository 创建一个新的 ConversationLogRepository 实例。
func NewConversationLogRepository(db *gorm.DB) ConversationLogRepository {
	return &conversationLogRepository{db: db}
}

func (r *conversationLogRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// FindBySession 按时间倒序返回某个会话最近的记录。
func (r *conversationLogRepository) FindBySession(sessionID string, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	q := r.db.Where("session_id = ?", sessionID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&convs).Error
	return convs, err
}

func (r *conversationLogRepository) CountByStrategy() (map[string]int64, error) {
	var rows []struct {
		Strategy string
		Total    int64
	}
	err := r.db.Model(&model.Conversation{}).
		Select("strategy, count(*) as total").
		Group("strategy").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Strategy] = row.Total
	}
	return out, nil
}
