package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"consultor-ia-go/internal/service"
	"consultor-ia-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理知识库文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// FileRequest 指定知识库中的单个文件，Path 可以是相对文档目录的路径。
type FileRequest struct {
	Path  string `json:"path" binding:"required"`
	Force bool   `json:"force"`
}

// ListDocuments 列出文档目录中支持的文件。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.docService.ListDocuments()
	if err != nil {
		log.Error("[DocumentHandler] 列出文档失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取文档列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"documentos": docs, "total": len(docs)}})
}

// Upload 接收 multipart 表单中的一个或多个文件。async=true 时通过 Kafka 异步入库。
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的上传表单", "data": nil})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Nenhum arquivo enviado", "data": nil})
		return
	}
	async, _ := strconv.ParseBool(c.DefaultPostForm("async", "false"))

	results := make([]gin.H, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			results = append(results, gin.H{"fileName": fh.Filename, "error": err.Error()})
			continue
		}
		res, err := h.docService.Upload(c.Request.Context(), fh.Filename, f, async)
		_ = f.Close()
		if err != nil {
			if !errors.Is(err, service.ErrUnsupportedUpload) {
				log.Error("[DocumentHandler] 上传文件失败", err)
			}
			results = append(results, gin.H{"fileName": fh.Filename, "error": err.Error()})
			continue
		}
		results = append(results, gin.H{"fileName": fh.Filename, "result": res})
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}

// IngestAll 增量处理整个文档目录。
func (h *DocumentHandler) IngestAll(c *gin.Context) {
	report, err := h.docService.IngestAll(c.Request.Context())
	if err != nil {
		log.Error("[DocumentHandler] 目录入库失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": report})
}

// AddFile 处理单个文件，force 为 true 时忽略清单。
func (h *DocumentHandler) AddFile(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	res := h.docService.AddFile(c.Request.Context(), req.Path, req.Force)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": res})
}

// CheckFile 查询单个文件是否已入库。
func (h *DocumentHandler) CheckFile(c *gin.Context) {
	path := strings.TrimSpace(c.Query("path"))
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 path 参数", "data": nil})
		return
	}
	check, err := h.docService.CheckFile(path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": check})
}

// RemoveFile 只删除清单记录，向量库中的分块保留到下一次清空。
func (h *DocumentHandler) RemoveFile(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	removed, err := h.docService.RemoveFile(req.Path)
	if errors.Is(err, service.ErrPathOutsideDocs) {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	}
	if err != nil {
		log.Error("[DocumentHandler] 删除清单记录失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除清单记录失败", "data": nil})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "arquivo não está no manifesto", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"removed":        true,
		"chunksRetained": true,
		"note":           "os trechos permanecem no armazenamento até a base ser limpa",
	}})
}

// Clear 清空向量库与清单。
func (h *DocumentHandler) Clear(c *gin.Context) {
	if err := h.docService.Clear(c.Request.Context()); err != nil {
		log.Error("[DocumentHandler] 清空知识库失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "清空知识库失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Base de conhecimento limpa", "data": nil})
}

// Stats 返回分块数量与清单条目。
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.docService.Stats(c.Request.Context())
	if err != nil {
		log.Error("[DocumentHandler] 获取统计失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取统计失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": stats})
}

// ListUploads 列出上传记录，需要配置 MySQL。
func (h *DocumentHandler) ListUploads(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	uploads, err := h.docService.ListUploads(limit)
	if errors.Is(err, service.ErrArchiveDisabled) {
		c.JSON(http.StatusNotImplemented, gin.H{"code": http.StatusNotImplemented, "message": err.Error(), "data": nil})
		return
	}
	if err != nil {
		log.Error("[DocumentHandler] 查询上传记录失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取上传记录失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": uploads})
}

// GenerateDownloadURL 为已归档的上传文件生成临时下载链接。
func (h *DocumentHandler) GenerateDownloadURL(c *gin.Context) {
	fileMD5 := c.Query("fileMd5")
	if fileMD5 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 fileMd5 参数", "data": nil})
		return
	}
	info, err := h.docService.GenerateDownloadURL(c.Request.Context(), fileMD5)
	if errors.Is(err, service.ErrArchiveDisabled) {
		c.JSON(http.StatusNotImplemented, gin.H{"code": http.StatusNotImplemented, "message": err.Error(), "data": nil})
		return
	}
	if err != nil {
		log.Error("[DocumentHandler] 生成下载链接失败", err)
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文件不存在或尚未归档", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": info})
}
