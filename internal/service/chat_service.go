package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"consultor-ia-go/internal/config"
	"consultor-ia-go/internal/intent"
	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/pkg/llm"
	"consultor-ia-go/pkg/log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ChatOptions 控制历史长度、顾问数量与各策略的生成参数。
type ChatOptions struct {
	MaxTurns        int
	ContextTurns    int
	ConsultantLimit int
	Generation      config.LLMGenerationConfig
	Prompt          config.LLMPromptConfig
}

// ChatService 定义了对话编排操作。它从不返回 error，所有失败都落在 Reply 里。
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) model.ChatResult
	// ChatStream 与 Chat 相同，但会把 LLM 的流式分块交给 onDelta。
	ChatStream(ctx context.Context, sessionID, message string, onDelta func(string) error) model.ChatResult
}

type chatService struct {
	classifier  *intent.Classifier
	retrieval   RetrievalService
	consultants ConsultantService
	llmClient   llm.Client
	sessions    repository.SessionRepository
	auditRepo   repository.ConversationLogRepository // 可为 nil
	prompts     promptBuilder
	opts        ChatOptions
	locks       *sessionLocks
	now         func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。auditRepo 为 nil 时不写审计日志。
func NewChatService(
	classifier *intent.Classifier,
	retrieval RetrievalService,
	consultants ConsultantService,
	llmClient llm.Client,
	sessions repository.SessionRepository,
	auditRepo repository.ConversationLogRepository,
	opts ChatOptions,
) ChatService {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	if opts.ContextTurns < 0 {
		opts.ContextTurns = 0
	}
	return &chatService{
		classifier:  classifier,
		retrieval:   retrieval,
		consultants: consultants,
		llmClient:   llmClient,
		sessions:    sessions,
		auditRepo:   auditRepo,
		prompts:     newPromptBuilder(opts.Prompt),
		opts:        opts,
		locks:       newSessionLocks(),
		now:         time.Now,
	}
}

func (s *chatService) Chat(ctx context.Context, sessionID, message string) model.ChatResult {
	return s.ChatStream(ctx, sessionID, message, nil)
}

func (s *chatService) ChatStream(ctx context.Context, sessionID, message string, onDelta func(string) error) model.ChatResult {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}
	// 同一会话串行处理，避免历史的读写交错
	unlock := s.locks.lock(sessionID)
	defer unlock()

	in := s.classifier.Classify(message)
	log.Infof("[ChatService] 意图识别完成, session: %s, type: %s, confidence: %.2f, reason: %s",
		sessionID, in.Kind, in.Confidence, in.Reason)

	result := model.ChatResult{
		SessionID:  sessionID,
		Intent:     string(in.Kind),
		Confidence: in.Confidence,
	}

	reply := s.answer(ctx, sessionID, message, in, onDelta)
	result.Reply = reply

	switch reply.(type) {
	case model.ErrorReply, model.NotConfigured:
		// 失败的轮次不写入历史
	default:
		truncated, err := s.sessions.AppendTurn(ctx, sessionID, model.Turn{
			Question:  message,
			Answer:    reply.Text(),
			Timestamp: s.now(),
		}, s.opts.MaxTurns)
		if err != nil {
			log.Errorf("[ChatService] 保存会话历史失败, session: %s, error: %v", sessionID, err)
		} else if truncated {
			result.TruncationNotice = fmt.Sprintf(truncationNotice, s.opts.MaxTurns)
		}
	}

	s.audit(sessionID, message, in, reply)
	return result
}

// answer 实现决策流程：固定回复 > 未配置 > 首轮检索 > 扩展检索 > 未找到/自由生成。
func (s *chatService) answer(ctx context.Context, sessionID, message string, in intent.Intent, onDelta func(string) error) model.Reply {
	if in.DirectReply != "" {
		return model.CannedReply{Message: in.DirectReply}
	}
	if s.llmClient == nil || !s.llmClient.Configured() {
		log.Warnf("[ChatService] LLM 未配置, session: %s", sessionID)
		return model.NotConfigured{Message: notConfiguredMessage}
	}

	history, err := s.contextHistory(ctx, sessionID)
	if err != nil {
		return errorReply("读取会话历史失败", err)
	}

	if !in.ShouldSearchBase {
		return s.free(ctx, message, history, nil, onDelta)
	}

	// 检索与顾问匹配互不依赖，并行执行
	var (
		results     []model.RetrievalResult
		consultants []model.Consultant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = s.retrieval.Search(gctx, message, s.retrieval.Options().TopK)
		return err
	})
	if in.ShouldListConsultants && s.consultants != nil {
		g.Go(func() error {
			consultants = s.consultants.SearchForQuestion(message, s.opts.ConsultantLimit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// 顾问匹配不依赖检索结果，检索失败时仍然返回
		reply := errorReply("知识库检索失败", err)
		if er, ok := reply.(model.ErrorReply); ok {
			er.Consultants = consultants
			return er
		}
		return reply
	}

	analysis := analyzeQuery(message)
	if len(results) > 0 {
		return s.base(ctx, message, analysis, results, consultants, history, onDelta)
	}

	broad, terms := s.retrieval.BroadSearch(ctx, message, s.retrieval.Options().FallbackLimit)
	if len(broad) > 0 {
		return s.fallback(ctx, message, analysis, broad, terms, consultants, history, onDelta)
	}

	if in.Kind == intent.KindKnowledgeQuery {
		log.Infof("[ChatService] 两轮检索均无结果, session: %s", sessionID)
		text := formatAnswer(fmt.Sprintf(notFoundMessage, message), analysis.Reasoning, nil, consultants, model.StrategyNotFound)
		return model.NotFound{Message: text, Consultants: consultants}
	}
	return s.free(ctx, message, history, consultants, onDelta)
}

func (s *chatService) base(ctx context.Context, message string, analysis queryAnalysis, results []model.RetrievalResult,
	consultants []model.Consultant, history []model.Turn, onDelta func(string) error) model.Reply {
	gen := s.opts.Generation
	msgs := s.prompts.baseMessages(message, analysis, results, history)
	text, err := s.llmClient.Generate(ctx, msgs, llm.Params(gen.BaseTemperature, gen.BaseMaxTokens), onDelta)
	if err != nil {
		return errorReply("基于官方文档生成回答失败", err)
	}
	sources := uniqueSources(results)
	return model.BaseAnswer{
		Answer:      formatAnswer(text, analysis.Reasoning, sources, consultants, model.StrategyBase),
		Sources:     sources,
		Results:     results,
		Consultants: consultants,
	}
}

func (s *chatService) fallback(ctx context.Context, message string, analysis queryAnalysis, results []model.RetrievalResult,
	terms []string, consultants []model.Consultant, history []model.Turn, onDelta func(string) error) model.Reply {
	gen := s.opts.Generation
	msgs := s.prompts.fallbackMessages(message, analysis, results, history)
	text, err := s.llmClient.Generate(ctx, msgs, llm.Params(gen.FallbackTemperature, gen.FallbackMaxTokens), onDelta)
	if err != nil {
		return errorReply("基于扩展检索生成回答失败", err)
	}
	sources := uniqueSources(results)
	return model.FallbackAnswer{
		Answer:      formatAnswer(text, analysis.Reasoning, sources, consultants, model.StrategyFallback),
		Sources:     sources,
		Results:     results,
		SearchTerms: terms,
		Consultants: consultants,
	}
}

func (s *chatService) free(ctx context.Context, message string, history []model.Turn, consultants []model.Consultant, onDelta func(string) error) model.Reply {
	gen := s.opts.Generation
	msgs := s.prompts.freeMessages(message, history)
	text, err := s.llmClient.Generate(ctx, msgs, llm.Params(gen.FreeTemperature, gen.FreeMaxTokens), onDelta)
	if err != nil {
		return errorReply("自由生成回答失败", err)
	}
	return model.FreeAnswer{
		Answer:      formatAnswer(text, "", nil, consultants, model.StrategyFree),
		Consultants: consultants,
	}
}

// contextHistory 只取最近 ContextTurns 轮作为 LLM 上下文。
func (s *chatService) contextHistory(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if s.opts.ContextTurns == 0 {
		return nil, nil
	}
	history, err := s.sessions.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(history) > s.opts.ContextTurns {
		history = history[len(history)-s.opts.ContextTurns:]
	}
	return history, nil
}

func (s *chatService) audit(sessionID, message string, in intent.Intent, reply model.Reply) {
	if s.auditRepo == nil {
		return
	}
	err := s.auditRepo.Create(&model.Conversation{
		SessionID: sessionID,
		Intent:    string(in.Kind),
		Strategy:  string(reply.Strategy()),
		Question:  message,
		Answer:    reply.Text(),
	})
	if err != nil {
		log.Errorf("[ChatService] 写入对话审计日志失败, session: %s, error: %v", sessionID, err)
	}
}

func errorReply(prefix string, err error) model.Reply {
	log.Errorf("[ChatService] %s: %v", prefix, err)
	if errors.Is(err, llm.ErrNotConfigured) {
		return model.NotConfigured{Message: notConfiguredMessage}
	}
	return model.ErrorReply{
		Message: fmt.Sprintf(errorMessage, err.Error()),
		Err:     err.Error(),
	}
}

// sessionLocks 是按会话 ID 分配的互斥锁，无人持有时回收。
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
