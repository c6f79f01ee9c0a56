package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"consultor-ia-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *token.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/s", AuthMiddleware(m), func(c *gin.Context) {
		c.String(http.StatusOK, SessionID(c, "corpo"))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	m := token.NewJWTManager("segredo", 1)
	tok, err := m.GenerateToken(7, "ana")
	require.NoError(t, err)
	r := newRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/s", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set(SessionHeader, "ignorado")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_7", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s?token="+tok, nil))
	assert.Equal(t, "user_7", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s?token=lixo", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionID_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/s", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c, "corpo")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s?session_id=q", nil))
	assert.Equal(t, "q", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))
	assert.Equal(t, "corpo", w.Body.String())
}
