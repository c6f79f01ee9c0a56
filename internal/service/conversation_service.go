package service

import (
	"context"
	"errors"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/repository"
)

// ErrAuditDisabled 表示没有配置 MySQL，审计日志不可查询。
var ErrAuditDisabled = errors.New("conversation audit log is disabled")

// ConversationService 定义了会话历史与审计日志的查询操作。
type ConversationService interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Turn, error)
	ClearHistory(ctx context.Context, sessionID string) error
	ActiveSessions(ctx context.Context) (int, error)
	AuditLog(sessionID string, limit int) ([]model.Conversation, error)
	StrategyCounts() (map[string]int64, error)
}

type conversationService struct {
	sessions  repository.SessionRepository
	auditRepo repository.ConversationLogRepository
}

// NewConversationService 创建一个新的 ConversationService。auditRepo 可为 nil。
func NewConversationService(sessions repository.SessionRepository, auditRepo repository.ConversationLogRepository) ConversationService {
	return &conversationService{sessions: sessions, auditRepo: auditRepo}
}

// GetHistory 返回会话当前保留的问答轮次，过期会话返回空。
func (s *conversationService) GetHistory(ctx context.Context, sessionID string) ([]model.Turn, error) {
	history, err := s.sessions.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.Turn{}
	}
	return history, nil
}

func (s *conversationService) ClearHistory(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

func (s *conversationService) ActiveSessions(ctx context.Context) (int, error) {
	return s.sessions.ActiveSessions(ctx)
}

func (s *conversationService) AuditLog(sessionID string, limit int) ([]model.Conversation, error) {
	if s.auditRepo == nil {
		return nil, ErrAuditDisabled
	}
	return s.auditRepo.FindBySession(sessionID, limit)
}

func (s *conversationService) StrategyCounts() (map[string]int64, error) {
	if s.auditRepo == nil {
		return nil, ErrAuditDisabled
	}
	return s.auditRepo.CountByStrategy()
}
