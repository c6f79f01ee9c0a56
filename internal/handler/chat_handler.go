// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"consultor-ia-go/internal/middleware"
	"consultor-ia-go/internal/service"
	"consultor-ia-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatRequest 是聊天接口的请求体。关闭认证时由 SessionID 区分会话。
type ChatRequest struct {
	Message   string `json:"mensagem" binding:"required"`
	SessionID string `json:"session_id"`
}

// ChatHandler 负责处理 HTTP 与 WebSocket 聊天请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 处理一次完整的问答，返回结构化结果。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "mensagem não pode ser vazia", "data": nil})
		return
	}

	sessionID := middleware.SessionID(c, req.SessionID)
	result := h.chatService.Chat(c.Request.Context(), sessionID, req.Message)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result.ToDTO()})
}

// Handle 处理一个 WebSocket 连接：每条消息先推送流式分块，再推送完整结果与完成通知。
func (h *ChatHandler) Handle(c *gin.Context) {
	sessionID := middleware.SessionID(c, "")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("[ChatHandler] WebSocket 连接已建立, session: %s", sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("[ChatHandler] 从 WebSocket 读取消息失败: %v", err)
			break
		}

		req := parseSocketMessage(message)
		if strings.TrimSpace(req.Message) == "" {
			writeJSON(conn, gin.H{"error": "mensagem não pode ser vazia"})
			continue
		}
		// 第一条消息确定的会话 ID 在整个连接内复用
		if sessionID == "" {
			sessionID = req.SessionID
		}

		result := h.chatService.ChatStream(c.Request.Context(), sessionID, req.Message, func(delta string) error {
			return writeJSON(conn, gin.H{"chunk": delta})
		})
		sessionID = result.SessionID

		if err := writeJSON(conn, gin.H{"type": "result", "data": result.ToDTO()}); err != nil {
			log.Warnf("[ChatHandler] 发送结果失败: %v", err)
			break
		}
		sendCompletion(conn)
	}
}

// parseSocketMessage 接受 JSON 请求体，也接受纯文本消息。
func parseSocketMessage(message []byte) ChatRequest {
	var req ChatRequest
	if len(message) > 0 && message[0] == '{' {
		if err := json.Unmarshal(message, &req); err == nil {
			return req
		}
	}
	return ChatRequest{Message: string(message)}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(conn *websocket.Conn) {
	now := time.Now()
	_ = writeJSON(conn, gin.H{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	})
}
