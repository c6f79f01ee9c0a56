package handler

import (
	"net/http"
	"strconv"

	"consultor-ia-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ConsultantHandler 提供顾问名册的查询接口。
type ConsultantHandler struct {
	service service.ConsultantService
}

// NewConsultantHandler 创建一个新的 ConsultantHandler 实例。
func NewConsultantHandler(service service.ConsultantService) *ConsultantHandler {
	return &ConsultantHandler{service: service}
}

// Search 按关键词检索顾问，按相关度降序。
func (h *ConsultantHandler) Search(c *gin.Context) {
	term := c.Query("termo")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 termo 参数", "data": nil})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		limit = 0
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.service.Search(term, limit)})
}

// ByArea 返回某个领域下的全部顾问。
func (h *ConsultantHandler) ByArea(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.service.ByArea(c.Param("area"))})
}

func (h *ConsultantHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.service.Stats()})
}
