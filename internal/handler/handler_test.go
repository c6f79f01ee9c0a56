package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/pipeline"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/internal/service"
	"consultor-ia-go/internal/store"
	"consultor-ia-go/pkg/embedding"
	"consultor-ia-go/pkg/vectordb"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	lastSession string
	lastMessage string
}

func (s *stubChat) Chat(ctx context.Context, sessionID, message string) model.ChatResult {
	return s.ChatStream(ctx, sessionID, message, nil)
}

func (s *stubChat) ChatStream(_ context.Context, sessionID, message string, onDelta func(string) error) model.ChatResult {
	s.lastSession = sessionID
	s.lastMessage = message
	if sessionID == "" {
		sessionID = "gerada"
	}
	if onDelta != nil {
		_ = onDelta("Olá")
	}
	return model.ChatResult{
		SessionID: sessionID,
		Intent:    "saudacao",
		Reply:     model.CannedReply{Message: "Olá"},
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	r := gin.New()
	r.POST("/chat", NewChatHandler(&stubChat{}).Chat)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"mensagem":"   "}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_UsesSessionFromBody(t *testing.T) {
	chat := &stubChat{}
	r := gin.New()
	r.POST("/chat", NewChatHandler(chat).Chat)

	w := httptest.NewRecorder()
	body := `{"mensagem":"oi","session_id":"s-1"}`
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", chat.lastSession)

	var dto model.ChatResponseDTO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &dto))
	assert.Equal(t, model.StrategyDirect, dto.Strategy)
	assert.Equal(t, "Olá", dto.Answer)
	assert.Equal(t, "s-1", dto.SessionID)
}

func TestChat_SessionHeaderWins(t *testing.T) {
	chat := &stubChat{}
	r := gin.New()
	r.POST("/chat", NewChatHandler(chat).Chat)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"mensagem":"oi","session_id":"corpo"}`))
	req.Header.Set("X-Session-ID", "cabecalho")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "cabecalho", chat.lastSession)
}

func TestHandle_WebSocketFrames(t *testing.T) {
	chat := &stubChat{}
	r := gin.New()
	r.GET("/ws", NewChatHandler(chat).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("bom dia")))

	var frames []map[string]interface{}
	for i := 0; i < 3; i++ {
		var frame map[string]interface{}
		require.NoError(t, conn.ReadJSON(&frame))
		frames = append(frames, frame)
	}

	assert.Equal(t, "Olá", frames[0]["chunk"])
	assert.Equal(t, "result", frames[1]["type"])
	data := frames[1]["data"].(map[string]interface{})
	assert.Equal(t, "gerada", data["sessionId"])
	assert.Equal(t, "completion", frames[2]["type"])
	assert.Equal(t, "bom dia", chat.lastMessage)
}

func TestParseSocketMessage(t *testing.T) {
	req := parseSocketMessage([]byte(`{"mensagem":"oi","session_id":"x"}`))
	assert.Equal(t, "oi", req.Message)
	assert.Equal(t, "x", req.SessionID)

	assert.Equal(t, "{quebrado", parseSocketMessage([]byte("{quebrado")).Message)
	assert.Equal(t, "texto", parseSocketMessage([]byte("texto")).Message)
}

func newConsultantService() service.ConsultantService {
	repo := repository.NewConsultantRepository([]model.ConsultantGroup{{
		Key:     "marketing_digital",
		Area:    "Marketing",
		SubArea: "Digital",
		Consultants: []model.Consultant{
			{Name: "Carla", Area: "Marketing", SubArea: "Digital"},
		},
	}})
	return service.NewConsultantService(repo, 3)
}

func TestConsultantHandler(t *testing.T) {
	r := gin.New()
	h := NewConsultantHandler(newConsultantService())
	r.GET("/consultores", h.Search)
	r.GET("/consultores/stats", h.Stats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/consultores", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/consultores?termo=marketing", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var found []model.Consultant
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Carla", found[0].Name)
	assert.Equal(t, 4, found[0].Relevance)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/consultores/stats", nil))
	var stats model.ConsultantStats
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &stats))
	assert.Equal(t, 1, stats.TotalConsultants)
}

func TestConversationHandler_AuditDisabled(t *testing.T) {
	sessions := repository.NewMemorySessionRepository(0, nil)
	r := gin.New()
	h := NewConversationHandler(service.NewConversationService(sessions, nil))
	r.GET("/historico", h.GetHistory)
	r.GET("/auditoria", h.GetAuditLog)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/historico?session_id=s", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"historico":[]`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auditoria?session_id=s", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func newDocumentService(t *testing.T) (service.DocumentService, string) {
	t.Helper()
	docsDir := t.TempDir()
	manifest, err := repository.NewFileManifestRepository(t.TempDir())
	require.NoError(t, err)
	chunkStore := store.NewChunkStore(embedding.NewHashingClient(64), vectordb.NewMemoryIndex())
	ingestor := pipeline.NewIngestor(pipeline.NewProcessor(pipeline.NewExtractor(nil), 100, 20), chunkStore, manifest, nil)
	return service.NewDocumentService(docsDir, ingestor, manifest, nil, nil, nil), docsDir
}

func TestDocumentAndStatusHandlers(t *testing.T) {
	docs, docsDir := newDocumentService(t)
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "mei.txt"), []byte("O MEI é o microempreendedor individual."), 0o644))

	sessions := repository.NewMemorySessionRepository(0, nil)
	dh := NewDocumentHandler(docs)
	sh := NewStatusHandler(docs, newConsultantService(), service.NewConversationService(sessions, nil), "modelo-teste", false)

	r := gin.New()
	r.POST("/documents/ingest", dh.IngestAll)
	r.DELETE("/documents/file", dh.RemoveFile)
	r.GET("/documents/check", dh.CheckFile)
	r.GET("/status", sh.Status)
	r.GET("/metrics", sh.Metrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents/ingest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var report model.IngestReport
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &report))
	assert.Equal(t, 1, report.Processed)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
	assert.Equal(t, true, status["online"])
	assert.Equal(t, "modelo-teste", status["modelo"])
	assert.Equal(t, false, status["llmConfigured"])
	assert.EqualValues(t, 1, status["documentos"])
	assert.NotContains(t, status, "estrategias")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"auditoriaAtiva":false`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/file", strings.NewReader(`{"path":"mei.txt"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunksRetained":true`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/file", strings.NewReader(`{"path":"mei.txt"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/file", strings.NewReader(`{"path":"../../etc/passwd"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/check?path=/etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
