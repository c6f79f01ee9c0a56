package handler

import (
	"errors"
	"net/http"
	"strconv"

	"consultor-ia-go/internal/middleware"
	"consultor-ia-go/internal/service"
	"consultor-ia-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与会话历史相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetHistory 返回当前会话保留的问答轮次。
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	sessionID := middleware.SessionID(c, "")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 session_id", "data": nil})
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), sessionID)
	if err != nil {
		log.Error("[ConversationHandler] 获取会话历史失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to retrieve conversation history", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"sessionId": sessionID, "historico": history}})
}

// ClearHistory 清空当前会话。
func (h *ConversationHandler) ClearHistory(c *gin.Context) {
	sessionID := middleware.SessionID(c, "")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 session_id", "data": nil})
		return
	}

	if err := h.service.ClearHistory(c.Request.Context(), sessionID); err != nil {
		log.Error("[ConversationHandler] 清空会话历史失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to clear conversation history", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Histórico limpo com sucesso", "data": nil})
}

// GetAuditLog 返回审计日志中当前会话的记录，需要配置 MySQL。
func (h *ConversationHandler) GetAuditLog(c *gin.Context) {
	sessionID := middleware.SessionID(c, "")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	records, err := h.service.AuditLog(sessionID, limit)
	if errors.Is(err, service.ErrAuditDisabled) {
		c.JSON(http.StatusNotImplemented, gin.H{"code": http.StatusNotImplemented, "message": err.Error(), "data": nil})
		return
	}
	if err != nil {
		log.Error("[ConversationHandler] 查询审计日志失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to query audit log", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": records})
}
