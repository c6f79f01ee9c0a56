package service

import (
	"fmt"
	"sort"
	"strings"

	"consultor-ia-go/internal/config"
	"consultor-ia-go/internal/model"
	"consultor-ia-go/pkg/llm"
)

const (
	defaultAssistantName = "Consultor IA Sebrae"
	defaultPersona       = "Especialista sênior em inteligência artificial e análise de dados, Consultor de Produtos e Serviços do Sebrae"
	defaultMission       = "Fornecer respostas precisas, práticas e atualizadas, ajudando os analistas Sebrae a entender soluções do Sebrae, " +
		"fichas técnicas (FT) e manuais de operacionalização da aplicação (MOA), destacando melhores caminhos para contratar consultores e instrutores."
	defaultRules = `TOM DE COMUNICAÇÃO:
- DIDÁTICO: Explique termos complexos de forma simples
- SOLÍCITO: Mostre-se pronto para ajudar
- PROFISSIONAL: Use linguagem clara, objetiva e encorajadora
- ANALÍTICO: Demonstre expertise em IA e dados quando relevante

DIRETRIZES DE RESPOSTA:
1. TRANSPARÊNCIA DE FONTE: Seja explícito sobre a origem das informações
2. AÇÃO PRÁTICA: Finalize com recomendação ou próximo passo
3. FOCO EM PRODUTOS/SERVIÇOS: Destaque FTs, MOAs e oportunidades de consultoria`

	// 扩展检索只把前 5 条放进上下文
	fallbackContextLimit = 5

	notFoundMessage = `Não encontrei informações específicas sobre '%s' em nossa base de documentos oficial.

📋 **Recomendação:**
- Reformule a pergunta sendo mais específico
- Mencione se busca por um produto/serviço específico do Sebrae
- Indique o setor ou área de interesse

🎯 **Próximo Passo:**
Entre em contato com o atendimento Sebrae para consultas especializadas que possam não estar cobertas em nossos manuais técnicos.`

	notConfiguredMessage = "O serviço de geração de texto não foi configurado. Defina llm.api_key (ou CONSULTOR_LLM_API_KEY) para habilitar as respostas."
	errorMessage         = "Erro ao processar sua consulta: %s"
	truncationNotice     = "ℹ️ *O histórico desta conversa foi resumido: apenas as %d interações mais recentes são mantidas.*"
)

// promptBuilder 根据配置组装各回答策略的消息。
type promptBuilder struct {
	cfg config.LLMPromptConfig
}

func newPromptBuilder(cfg config.LLMPromptConfig) promptBuilder {
	if cfg.AssistantName == "" {
		cfg.AssistantName = defaultAssistantName
	}
	if cfg.Persona == "" {
		cfg.Persona = defaultPersona
	}
	if cfg.Mission == "" {
		cfg.Mission = defaultMission
	}
	if cfg.Rules == "" {
		cfg.Rules = defaultRules
	}
	return promptBuilder{cfg: cfg}
}

func (p promptBuilder) identity() string {
	return fmt.Sprintf("Você é o \"%s\" - %s.\n\nMissão: %s\n\n%s", p.cfg.AssistantName, p.cfg.Persona, p.cfg.Mission, p.cfg.Rules)
}

// queryAnalysis 是回答开头展示的简短分析。
type queryAnalysis struct {
	NeedType  string
	Reasoning string
}

func analyzeQuery(question string) queryAnalysis {
	lower := strings.ToLower(question)
	need := "produto_sebrae"
	switch {
	case containsAny(lower, "como", "o que é", "conceito", "definição"):
		need = "conceito_negocio"
	case containsAny(lower, "tendência", "mercado", "futuro", "inovação"):
		need = "tendencia_mercado"
	}
	return queryAnalysis{
		NeedType: need,
		Reasoning: fmt.Sprintf("Analisando a consulta '%s', identifico como %s. "+
			"Vou iniciar pela base interna do Sebrae para garantir informações oficiais.", question, need),
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// baseMessages 使用首轮检索到的官方文档作为上下文。
func (p promptBuilder) baseMessages(question string, analysis queryAnalysis, results []model.RetrievalResult, history []model.Turn) []llm.Message {
	var ctx strings.Builder
	for i, r := range results {
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		fmt.Fprintf(&ctx, "[DOCUMENTO OFICIAL SEBRAE %d: %s - Seção %d]\n%s\n[FIM DO DOCUMENTO %d]", i+1, r.Source, r.ChunkIndex, r.Text, i+1)
	}

	user := fmt.Sprintf(`ANÁLISE INICIAL: %s

CONTEXTO DOS DOCUMENTOS OFICIAIS SEBRAE:
%s

PERGUNTA DO ANALISTA: "%s"

INSTRUÇÕES ESPECÍFICAS:
- Inicie mencionando que encontrou informações em documentos oficiais Sebrae
- Use informações de TODOS os documentos relevantes
- Cite especificamente as Fichas Técnicas (FTs) e MOAs encontrados
- Destaque oportunidades para contratação de consultores/instrutores
- Finalize com recomendação prática

RESPOSTA PROFISSIONAL:`, analysis.Reasoning, ctx.String(), question)

	return composeMessages(p.identity(), history, user)
}

// fallbackMessages 使用扩展检索到的部分结果，要求模型说明信息有限。
func (p promptBuilder) fallbackMessages(question string, analysis queryAnalysis, results []model.RetrievalResult, history []model.Turn) []llm.Message {
	var ctx strings.Builder
	for i, r := range results {
		if i == fallbackContextLimit {
			break
		}
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		fmt.Fprintf(&ctx, "[DOCUMENTO PARCIAL %d: %s]\n%s", i+1, r.Source, r.Text)
	}

	system := p.identity() + `

SITUAÇÃO: A informação específica não foi encontrada em nossa base principal,
mas encontramos algumas referências parciais em documentos.

INSTRUÇÕES:
- Seja transparente que a informação é limitada
- Use o que conseguiu encontrar de forma responsável
- Sugira próximos passos práticos`

	user := fmt.Sprintf(`ANÁLISE: %s

A busca específica não retornou resultados completos, mas encontrei algumas referências parciais:

%s

Pergunta: "%s"

Responda baseado nas informações limitadas disponíveis, seja transparente sobre as limitações e forneça orientações práticas:`,
		analysis.Reasoning, ctx.String(), question)

	return composeMessages(system, history, user)
}

// freeMessages 不带检索上下文，直接回答一般问题。
func (p promptBuilder) freeMessages(question string, history []model.Turn) []llm.Message {
	system := p.identity() + `

SITUAÇÃO: Não há documentos da base interna relacionados a esta pergunta.
Responda com conhecimento geral, deixando claro que a resposta não vem de documentos oficiais Sebrae.`
	return composeMessages(system, history, question)
}

// composeMessages 按 system、历史轮次、当前问题的顺序排列。
func composeMessages(system string, history []model.Turn, user string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)*2+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: system})
	for _, t := range history {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: t.Question},
			llm.Message{Role: "assistant", Content: t.Answer},
		)
	}
	return append(msgs, llm.Message{Role: "user", Content: user})
}

// uniqueSources 返回去重并排序后的来源文件名。
func uniqueSources(results []model.RetrievalResult) []string {
	seen := make(map[string]struct{}, len(results))
	var sources []string
	for _, r := range results {
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		sources = append(sources, r.Source)
	}
	sort.Strings(sources)
	return sources
}

// formatAnswer 在模型输出外补充分析、来源、顾问与策略说明。
func formatAnswer(answer, reasoning string, sources []string, consultants []model.Consultant, strategy model.Strategy) string {
	var b strings.Builder
	if reasoning != "" {
		fmt.Fprintf(&b, "💭 **Análise:** %s\n\n", reasoning)
	}
	b.WriteString(answer)

	if len(sources) > 0 {
		b.WriteString("\n\n---\n📚 **Fontes consultadas:**\n")
		for i, s := range sources {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}

	if len(consultants) > 0 {
		b.WriteString("\n\n---\n👥 **CONSULTORES ESPECIALIZADOS DISPONÍVEIS:**\n\n")
		for i, c := range consultants {
			fmt.Fprintf(&b, "**Consultor %d:**\n%s\n\n", i+1, FormatConsultant(c))
		}
		b.WriteString("💼 *Para contratar estes consultores, entre em contato diretamente através dos dados informados acima.*")
	}

	switch strategy {
	case model.StrategyBase:
		b.WriteString("\n📄 *Resposta baseada em documentos oficiais Sebrae*")
	case model.StrategyFallback:
		b.WriteString("\n🔍 *Resposta baseada em busca ampla - informações parciais*")
	case model.StrategyNotFound:
		b.WriteString("\n❓ *Informação não encontrada na base de conhecimento oficial*")
	case model.StrategyFree:
		b.WriteString("\n💬 *Resposta baseada em conhecimento geral, sem documentos da base oficial*")
	}

	b.WriteString("\n\n---\n")
	if len(consultants) > 0 {
		b.WriteString("✨ **Próximos passos:** Além dos consultores indicados acima, posso ajudar a identificar cursos específicos do Sebrae para sua necessidade.")
	} else {
		b.WriteString("💡 **Quer aprofundar?** Posso ajudar a conectar você com consultores especializados ou identificar cursos específicos do Sebrae para sua necessidade.")
	}
	return b.String()
}
