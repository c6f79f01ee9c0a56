package handler

import (
	"errors"
	"net/http"
	"time"

	"consultor-ia-go/internal/service"
	"consultor-ia-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// StatusHandler 汇总服务运行状态，供前端侧栏与运维探活使用。
type StatusHandler struct {
	docService          service.DocumentService
	consultantService   service.ConsultantService
	conversationService service.ConversationService
	modelName           string
	llmConfigured       bool
	startedAt           time.Time
}

// NewStatusHandler 创建一个新的 StatusHandler 实例。
func NewStatusHandler(
	docService service.DocumentService,
	consultantService service.ConsultantService,
	conversationService service.ConversationService,
	modelName string,
	llmConfigured bool,
) *StatusHandler {
	return &StatusHandler{
		docService:          docService,
		consultantService:   consultantService,
		conversationService: conversationService,
		modelName:           modelName,
		llmConfigured:       llmConfigured,
		startedAt:           time.Now(),
	}
}

// Health 只用于存活探测。
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status 返回知识库、顾问名册与会话的汇总信息。单项失败不影响其他项。
func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	data := gin.H{
		"online":        true,
		"modelo":        h.modelName,
		"llmConfigured": h.llmConfigured,
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		"consultores":   h.consultantService.Stats(),
	}

	if stats, err := h.docService.Stats(ctx); err != nil {
		log.Error("[StatusHandler] 获取知识库统计失败", err)
	} else {
		data["documentos"] = stats.TotalChunks
		data["arquivos"] = stats.TotalFiles
	}

	if n, err := h.conversationService.ActiveSessions(ctx); err != nil {
		log.Error("[StatusHandler] 获取活跃会话数失败", err)
	} else {
		data["sessoesAtivas"] = n
	}

	counts, err := h.conversationService.StrategyCounts()
	switch {
	case errors.Is(err, service.ErrAuditDisabled):
	case err != nil:
		log.Error("[StatusHandler] 统计回答策略失败", err)
	default:
		data["estrategias"] = counts
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// Metrics 返回按回答策略统计的对话数与活跃会话数，需要配置 MySQL 才有策略统计。
func (h *StatusHandler) Metrics(c *gin.Context) {
	active, err := h.conversationService.ActiveSessions(c.Request.Context())
	if err != nil {
		log.Error("[StatusHandler] 获取活跃会话数失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取指标失败", "data": nil})
		return
	}
	counts, err := h.conversationService.StrategyCounts()
	if err != nil && !errors.Is(err, service.ErrAuditDisabled) {
		log.Error("[StatusHandler] 统计回答策略失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取指标失败", "data": nil})
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"sessoesAtivas":  active,
		"totalConversas": total,
		"porEstrategia":  counts,
		"auditoriaAtiva": err == nil,
	}})
}
