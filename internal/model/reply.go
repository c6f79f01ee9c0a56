package model

// Strategy 标记一次回答最终走的路径。
type Strategy string

const (
	StrategyDirect        Strategy = "resposta_direta"
	StrategyBase          Strategy = "base_interna_oficial"
	StrategyFallback      Strategy = "busca_ampla_com_resultados_parciais"
	StrategyFree          Strategy = "conversa_livre"
	StrategyNotFound      Strategy = "nenhuma_informacao_encontrada"
	StrategyError         Strategy = "erro_processamento"
	StrategyNotConfigured Strategy = "nao_configurado"
)

// Reply 是一次对话请求的终态，每种结果只携带与它相关的字段。
type Reply interface {
	Strategy() Strategy
	// Text 是展示给用户的完整文本
	Text() string
	isReply()
}

// CannedReply 是问候/闲聊的固定回复，不检索也不调用 LLM。
type CannedReply struct {
	Message string
}

// BaseAnswer 是基于首轮向量检索结果生成的回答。
type BaseAnswer struct {
	Answer      string
	Sources     []string
	Results     []RetrievalResult
	Consultants []Consultant
}

// FallbackAnswer 是基于扩展检索（逐词检索）结果生成的回答。
type FallbackAnswer struct {
	Answer      string
	Sources     []string
	Results     []RetrievalResult
	SearchTerms []string
	Consultants []Consultant
}

// FreeAnswer 是检索无结果且问题不属于知识库范畴时的自由生成。
type FreeAnswer struct {
	Answer      string
	Consultants []Consultant
}

// NotFound 是检索两轮都为空时的固定结果，不调用 LLM。
type NotFound struct {
	Message     string
	Consultants []Consultant
}

// ErrorReply 表示生成或检索过程中出错，本轮不写入历史。
type ErrorReply struct {
	Message     string
	Err         string
	Consultants []Consultant
}

// NotConfigured 表示未配置文本生成服务。
type NotConfigured struct {
	Message string
}

func (CannedReply) Strategy() Strategy    { return StrategyDirect }
func (BaseAnswer) Strategy() Strategy     { return StrategyBase }
func (FallbackAnswer) Strategy() Strategy { return StrategyFallback }
func (FreeAnswer) Strategy() Strategy     { return StrategyFree }
func (NotFound) Strategy() Strategy       { return StrategyNotFound }
func (ErrorReply) Strategy() Strategy     { return StrategyError }
func (NotConfigured) Strategy() Strategy  { return StrategyNotConfigured }

func (r CannedReply) Text() string    { return r.Message }
func (r BaseAnswer) Text() string     { return r.Answer }
func (r FallbackAnswer) Text() string { return r.Answer }
func (r FreeAnswer) Text() string     { return r.Answer }
func (r NotFound) Text() string       { return r.Message }
func (r ErrorReply) Text() string     { return r.Message }
func (r NotConfigured) Text() string  { return r.Message }

func (CannedReply) isReply()    {}
func (BaseAnswer) isReply()     {}
func (FallbackAnswer) isReply() {}
func (FreeAnswer) isReply()     {}
func (NotFound) isReply()       {}
func (ErrorReply) isReply()     {}
func (NotConfigured) isReply()  {}

// ChatResult 是编排器对外返回的结构化结果。
type ChatResult struct {
	SessionID        string
	Intent           string
	Confidence       float64
	Reply            Reply
	TruncationNotice string
}

// ChatResponseDTO 是 ChatResult 的 JSON 形态，字段按 Reply 的具体类型填充。
type ChatResponseDTO struct {
	SessionID        string            `json:"sessionId"`
	Intent           string            `json:"intent"`
	Confidence       float64           `json:"confidence"`
	Strategy         Strategy          `json:"strategy"`
	Answer           string            `json:"answer"`
	Sources          []string          `json:"sources,omitempty"`
	Results          []RetrievalResult `json:"results,omitempty"`
	SearchTerms      []string          `json:"searchTerms,omitempty"`
	Consultants      []Consultant      `json:"consultants,omitempty"`
	Error            string            `json:"error,omitempty"`
	TruncationNotice string            `json:"truncationNotice,omitempty"`
}

// ToDTO 展开 Reply 的具体类型。
func (r ChatResult) ToDTO() ChatResponseDTO {
	dto := ChatResponseDTO{
		SessionID:        r.SessionID,
		Intent:           r.Intent,
		Confidence:       r.Confidence,
		TruncationNotice: r.TruncationNotice,
	}
	if r.Reply == nil {
		return dto
	}
	dto.Strategy = r.Reply.Strategy()
	dto.Answer = r.Reply.Text()
	switch v := r.Reply.(type) {
	case BaseAnswer:
		dto.Sources = v.Sources
		dto.Results = v.Results
		dto.Consultants = v.Consultants
	case FallbackAnswer:
		dto.Sources = v.Sources
		dto.Results = v.Results
		dto.SearchTerms = v.SearchTerms
		dto.Consultants = v.Consultants
	case FreeAnswer:
		dto.Consultants = v.Consultants
	case NotFound:
		dto.Consultants = v.Consultants
	case ErrorReply:
		dto.Error = v.Err
		dto.Consultants = v.Consultants
	}
	if r.TruncationNotice != "" {
		dto.Answer += "\n\n" + r.TruncationNotice
	}
	return dto
}
