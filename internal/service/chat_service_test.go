package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"consultor-ia-go/internal/config"
	"consultor-ia-go/internal/intent"
	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetrieval struct {
	mu         sync.Mutex
	primary    []model.RetrievalResult
	primaryErr error
	broad      []model.RetrievalResult
	broadCalls int
}

func (f *fakeRetrieval) Search(context.Context, string, int) ([]model.RetrievalResult, error) {
	return f.primary, f.primaryErr
}

func (f *fakeRetrieval) BroadSearch(_ context.Context, query string, _ int) ([]model.RetrievalResult, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadCalls++
	return f.broad, RelevantTerms(query, 3)
}

func (f *fakeRetrieval) Options() RetrievalOptions {
	return RetrievalOptions{}.withDefaults()
}

type fakeLLM struct {
	mu         sync.Mutex
	configured bool
	answer     string
	err        error
	calls      int
	lastMsgs   []llm.Message
	lastParams *llm.GenerationParams
}

func (f *fakeLLM) Configured() bool { return f.configured }

func (f *fakeLLM) Generate(_ context.Context, msgs []llm.Message, gen *llm.GenerationParams, onDelta func(string) error) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMsgs = msgs
	f.lastParams = gen
	if f.err != nil {
		return "", f.err
	}
	if onDelta != nil {
		if err := onDelta(f.answer); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

type chatFixture struct {
	svc       ChatService
	retrieval *fakeRetrieval
	llm       *fakeLLM
	sessions  repository.SessionRepository
}

func newChatFixture(t *testing.T, maxTurns int) *chatFixture {
	t.Helper()
	retrieval := &fakeRetrieval{}
	gen := &fakeLLM{configured: true, answer: "resposta gerada"}
	sessions := repository.NewMemorySessionRepository(time.Hour, time.Now)
	consultants := NewConsultantService(repository.NewConsultantRepository([]model.ConsultantGroup{{
		Key: "formalizacao_mei", Area: "Formalização", SubArea: "MEI",
		Consultants: []model.Consultant{{Name: "Ana", Area: "Formalização", SubArea: "MEI"}},
	}}), 3)

	svc := NewChatService(
		intent.NewClassifier(intent.DefaultRules()),
		retrieval, consultants, gen, sessions, nil,
		ChatOptions{
			MaxTurns:     maxTurns,
			ContextTurns: 3,
			Generation: config.LLMGenerationConfig{
				BaseTemperature: 0.2, BaseMaxTokens: 2500,
				FallbackTemperature: 0.4, FallbackMaxTokens: 1500,
				FreeTemperature: 0.7, FreeMaxTokens: 1500,
			},
		},
	)
	return &chatFixture{svc: svc, retrieval: retrieval, llm: gen, sessions: sessions}
}

func (f *chatFixture) history(t *testing.T, sessionID string) []model.Turn {
	t.Helper()
	h, err := f.sessions.GetHistory(context.Background(), sessionID)
	require.NoError(t, err)
	return h
}

func TestChat_GreetingIsCanned(t *testing.T) {
	f := newChatFixture(t, 10)

	res := f.svc.Chat(context.Background(), "s1", "Olá")
	require.IsType(t, model.CannedReply{}, res.Reply)
	assert.Equal(t, model.StrategyDirect, res.Reply.Strategy())
	assert.Equal(t, "greeting", res.Intent)
	assert.Equal(t, 0, f.llm.calls)
	assert.Len(t, f.history(t, "s1"), 1)
}

func TestChat_BaseAnswerDoesNotInvokeFallback(t *testing.T) {
	f := newChatFixture(t, 10)
	f.retrieval.primary = []model.RetrievalResult{
		{Source: "guia_mei.pdf", ChunkIndex: 0, Text: "O MEI pode faturar...", Distance: 0.1},
		{Source: "guia_mei.pdf", ChunkIndex: 1, Text: "Para abrir...", Distance: 0.2},
	}

	res := f.svc.Chat(context.Background(), "s1", "Como abrir uma MEI?")
	base, ok := res.Reply.(model.BaseAnswer)
	require.True(t, ok, "reply: %#v", res.Reply)
	assert.Equal(t, 0, f.retrieval.broadCalls)
	assert.Equal(t, []string{"guia_mei.pdf"}, base.Sources)
	assert.Contains(t, base.Answer, "resposta gerada")
	assert.Contains(t, base.Answer, "📚 **Fontes consultadas:**")
	require.Len(t, base.Consultants, 1)
	assert.Equal(t, "Ana", base.Consultants[0].Name)
	require.NotNil(t, f.llm.lastParams)
	assert.Equal(t, 0.2, *f.llm.lastParams.Temperature)
	assert.Contains(t, f.llm.lastMsgs[len(f.llm.lastMsgs)-1].Content, "[DOCUMENTO OFICIAL SEBRAE 1: guia_mei.pdf - Seção 0]")
}

func TestChat_FallbackWhenPrimaryEmpty(t *testing.T) {
	f := newChatFixture(t, 10)
	f.retrieval.broad = []model.RetrievalResult{{Source: "financas.pdf", Text: "capital de giro", Distance: 0.4}}

	res := f.svc.Chat(context.Background(), "s1", "Preciso de crédito para minha empresa")
	fb, ok := res.Reply.(model.FallbackAnswer)
	require.True(t, ok, "reply: %#v", res.Reply)
	assert.Equal(t, 1, f.retrieval.broadCalls)
	assert.Equal(t, []string{"preciso", "crédito", "para"}, fb.SearchTerms)
	assert.Equal(t, model.StrategyFallback, res.ToDTO().Strategy)
	assert.Equal(t, 0.4, *f.llm.lastParams.Temperature)
}

func TestChat_NotFoundSkipsGeneration(t *testing.T) {
	f := newChatFixture(t, 10)

	res := f.svc.Chat(context.Background(), "s1", "Como abrir uma MEI?")
	nf, ok := res.Reply.(model.NotFound)
	require.True(t, ok, "reply: %#v", res.Reply)
	assert.Equal(t, 0, f.llm.calls)
	assert.Len(t, nf.Consultants, 1)
	assert.Contains(t, nf.Message, "Informação não encontrada")
	assert.Len(t, f.history(t, "s1"), 1)
}

func TestChat_GenericQuestionWithoutResultsIsFree(t *testing.T) {
	f := newChatFixture(t, 10)

	res := f.svc.Chat(context.Background(), "s1", "Qual a capital da França?")
	require.IsType(t, model.FreeAnswer{}, res.Reply)
	assert.Equal(t, "generic_question", res.Intent)
	assert.Equal(t, 1, f.llm.calls)
	assert.Equal(t, 0.7, *f.llm.lastParams.Temperature)
}

func TestChat_GenerationErrorRecordsNoTurn(t *testing.T) {
	f := newChatFixture(t, 10)
	f.retrieval.primary = []model.RetrievalResult{{Source: "a.pdf", Text: "x"}}
	f.llm.err = errors.New("quota exceeded")

	res := f.svc.Chat(context.Background(), "s1", "Como abrir uma MEI?")
	er, ok := res.Reply.(model.ErrorReply)
	require.True(t, ok, "reply: %#v", res.Reply)
	assert.Equal(t, "quota exceeded", er.Err)
	assert.Equal(t, model.StrategyError, res.Reply.Strategy())
	assert.Empty(t, f.history(t, "s1"))
}

func TestChat_RetrievalErrorIsStructured(t *testing.T) {
	f := newChatFixture(t, 10)
	f.retrieval.primaryErr = errors.New("index unavailable")

	res := f.svc.Chat(context.Background(), "s1", "Como abrir uma MEI?")
	require.IsType(t, model.ErrorReply{}, res.Reply)
	dto := res.ToDTO()
	assert.Equal(t, "index unavailable", dto.Error)
	require.Len(t, dto.Consultants, 1)
	assert.Equal(t, "Ana", dto.Consultants[0].Name)
	assert.Empty(t, f.history(t, "s1"))
}

func TestChat_NotConfigured(t *testing.T) {
	f := newChatFixture(t, 10)
	f.llm.configured = false

	res := f.svc.Chat(context.Background(), "s1", "Como abrir uma MEI?")
	require.IsType(t, model.NotConfigured{}, res.Reply)
	assert.Equal(t, "knowledge_query", res.Intent)
	assert.Equal(t, 0, f.llm.calls)

	// 问候不依赖 LLM
	res = f.svc.Chat(context.Background(), "s1", "oi")
	assert.IsType(t, model.CannedReply{}, res.Reply)
}

func TestChat_TruncationNotice(t *testing.T) {
	f := newChatFixture(t, 2)
	ctx := context.Background()

	assert.Empty(t, f.svc.Chat(ctx, "s1", "oi").TruncationNotice)
	assert.Empty(t, f.svc.Chat(ctx, "s1", "obrigado").TruncationNotice)
	res := f.svc.Chat(ctx, "s1", "tchau")
	assert.NotEmpty(t, res.TruncationNotice)
	assert.True(t, strings.HasSuffix(res.ToDTO().Answer, res.TruncationNotice))

	history := f.history(t, "s1")
	require.Len(t, history, 2)
	assert.Equal(t, "obrigado", history[0].Question)
	assert.Equal(t, "tchau", history[1].Question)
}

func TestChat_HistoryIsSentAsContext(t *testing.T) {
	f := newChatFixture(t, 10)
	ctx := context.Background()
	f.svc.Chat(ctx, "s1", "oi")

	f.svc.Chat(ctx, "s1", "Qual a capital da França?")
	require.Len(t, f.llm.lastMsgs, 4)
	assert.Equal(t, "system", f.llm.lastMsgs[0].Role)
	assert.Equal(t, "oi", f.llm.lastMsgs[1].Content)
	assert.Equal(t, "assistant", f.llm.lastMsgs[2].Role)
}

func TestChat_GeneratesSessionID(t *testing.T) {
	f := newChatFixture(t, 10)

	res := f.svc.Chat(context.Background(), "", "oi")
	assert.NotEmpty(t, res.SessionID)
	assert.Len(t, f.history(t, res.SessionID), 1)
}

func TestChatStream_ForwardsDeltas(t *testing.T) {
	f := newChatFixture(t, 10)
	var chunks []string

	res := f.svc.ChatStream(context.Background(), "s1", "Qual a capital da França?", func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	require.IsType(t, model.FreeAnswer{}, res.Reply)
	assert.Equal(t, []string{"resposta gerada"}, chunks)
}

func TestChat_ConcurrentSameSession(t *testing.T) {
	f := newChatFixture(t, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.Chat(ctx, "s1", "oi")
		}()
	}
	wg.Wait()
	assert.Len(t, f.history(t, "s1"), 20)
}
