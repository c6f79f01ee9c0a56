package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"consultor-ia-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, chunks ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotNil(t, req.Temperature)
		assert.Equal(t, 0.2, *req.Temperature)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestGenerate_AccumulatesStream(t *testing.T) {
	srv := sseServer(t, "Para abrir ", "um MEI, ", "acesse o portal.")
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.True(t, c.Configured())

	var deltas []string
	answer, err := c.Generate(context.Background(),
		[]Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		Params(0.2, 100),
		func(d string) error { deltas = append(deltas, d); return nil })
	require.NoError(t, err)
	assert.Equal(t, "Para abrir um MEI, acesse o portal.", answer)
	assert.Len(t, deltas, 3)
}

func TestGenerate_NotConfigured(t *testing.T) {
	c := NewClient(config.LLMConfig{})
	assert.False(t, c.Configured())

	_, err := c.Generate(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerate_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "oi"}}, nil, nil)
	assert.ErrorContains(t, err, "quota exceeded")
}
