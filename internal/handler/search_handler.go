package handler

import (
	"net/http"
	"strconv"

	"consultor-ia-go/internal/service"
	"consultor-ia-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 直接暴露知识库检索结果，便于排查召回质量。
type SearchHandler struct {
	retrieval service.RetrievalService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(retrieval service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

// Search 处理检索请求。broad=true 时在主检索为空后执行关键词扩展检索。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)

	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的查询参数", "data": nil})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", strconv.Itoa(h.retrieval.Options().TopK)))
	if err != nil || topK <= 0 {
		topK = h.retrieval.Options().TopK
	}
	broad, _ := strconv.ParseBool(c.DefaultQuery("broad", "false"))

	results, err := h.retrieval.Search(c.Request.Context(), query, topK)
	if err != nil {
		log.Errorf("[SearchHandler] 检索服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索失败", "data": nil})
		return
	}

	var terms []string
	if len(results) == 0 && broad {
		results, terms = h.retrieval.BroadSearch(c.Request.Context(), query, h.retrieval.Options().FallbackLimit)
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"results": results,
		"terms":   terms,
	}})
}
