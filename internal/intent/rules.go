package intent

import (
	"fmt"

	"github.com/spf13/viper"
)

// 闲聊分组名，同时作为固定回复表的键。
const (
	GroupIdentity = "identity"
	GroupThanks   = "thanks"
	GroupFarewell = "farewell"
	GroupHelp     = "help"
	// GroupShort 是"疑问形式但过短"的消息使用的回复键
	GroupShort = "short"
)

// Rules 是分类器使用的短语表，全部为数据而不是逻辑，可从 YAML 覆盖。
type Rules struct {
	Greetings         []string            `mapstructure:"greetings"`
	CasualGroups      map[string][]string `mapstructure:"casual_groups"`
	DomainKeywords    []string            `mapstructure:"domain_keywords"`
	Interrogatives    []string            `mapstructure:"interrogatives"`
	MinQuestionLength int                 `mapstructure:"min_question_length"`
	GreetingReply     string              `mapstructure:"greeting_reply"`
	CasualReplies     map[string]string   `mapstructure:"casual_replies"`
}

// DefaultRules 返回内置规则表。
func DefaultRules() Rules {
	return Rules{
		Greetings: []string{
			"oi", "ola", "oie", "opa", "hey", "hello", "hi", "salve", "e ai", "eai",
			"bom dia", "boa tarde", "boa noite", "saudacoes",
		},
		CasualGroups: map[string][]string{
			GroupIdentity: {
				"quem e voce", "quem voce e", "qual seu nome", "qual o seu nome", "como voce se chama",
				"voce e um robo", "voce e humano", "voce e uma ia", "o que voce e",
			},
			GroupThanks: {
				"obrigado", "obrigada", "muito obrigado", "valeu", "agradeco", "grato", "grata", "thanks",
			},
			GroupFarewell: {
				"tchau", "ate logo", "ate mais", "ate breve", "adeus", "bye",
			},
			GroupHelp: {
				"o que voce pode fazer", "o que voce faz", "como voce pode me ajudar", "como voce funciona",
				"quais sao suas funcoes", "como usar este chat", "como funciona este chat",
			},
		},
		DomainKeywords: []string{
			"sebrae", "sebraetec", "mei", "microempreendedor", "microempresa", "empreendedor", "empreendedorismo",
			"empresa", "empresas", "negocio", "negocios", "cnpj", "formalizacao", "formalizar",
			"simples nacional", "tributo", "tributos", "imposto", "impostos", "nota fiscal",
			"credito", "emprestimo", "financiamento", "capital de giro", "fluxo de caixa", "financas",
			"precificacao", "custos", "marketing", "vendas", "mercado", "cliente", "clientes",
			"plano de negocio", "plano de negocios", "gestao", "consultoria", "consultor", "consultores",
			"curso", "cursos", "capacitacao", "oficina", "palestra", "ficha tecnica", "moa", "ft",
			"produto", "produtos", "servico", "servicos", "inovacao", "startup", "exportacao",
			"licitacao", "licitacoes", "compras publicas", "contrato", "juridico", "legislacao",
			"franquia", "cooperativa", "agronegocio", "artesanato", "turismo", "industria", "comercio",
			"socio", "contabilidade", "contador", "alvara", "registro de marca",
		},
		Interrogatives: []string{
			"como", "qual", "quais", "quando", "onde", "quem", "quanto", "quanta", "quantos", "quantas",
			"por que", "porque", "o que", "pode", "posso", "devo", "existe", "existem",
		},
		MinQuestionLength: 10,
		GreetingReply: "Olá! Sou o Consultor IA. Posso ajudar com produtos, serviços e consultorias " +
			"para o seu negócio. Sobre o que você gostaria de conversar?",
		CasualReplies: map[string]string{
			GroupIdentity: "Sou o Consultor IA, um assistente que responde com base nos documentos " +
				"oficiais da base de conhecimento e indica consultores especializados.",
			GroupThanks:   "Por nada! Se surgir outra dúvida sobre o seu negócio, é só perguntar.",
			GroupFarewell: "Até logo! Quando precisar, estarei por aqui.",
			GroupHelp: "Posso responder perguntas sobre produtos e serviços, formalização, gestão, " +
				"finanças e marketing, além de indicar consultores por área de atuação.",
			GroupShort: "Pode detalhar um pouco mais a sua pergunta? Assim consigo buscar a informação certa.",
		},
	}
}

// LoadRules 从 YAML 文件读取规则；文件中缺失的字段沿用内置值。
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return rules, fmt.Errorf("读取意图规则文件失败: %w", err)
	}

	var loaded Rules
	if err := v.Unmarshal(&loaded); err != nil {
		return rules, fmt.Errorf("解析意图规则失败: %w", err)
	}

	if len(loaded.Greetings) > 0 {
		rules.Greetings = loaded.Greetings
	}
	if len(loaded.CasualGroups) > 0 {
		rules.CasualGroups = loaded.CasualGroups
	}
	if len(loaded.DomainKeywords) > 0 {
		rules.DomainKeywords = loaded.DomainKeywords
	}
	if len(loaded.Interrogatives) > 0 {
		rules.Interrogatives = loaded.Interrogatives
	}
	if loaded.MinQuestionLength > 0 {
		rules.MinQuestionLength = loaded.MinQuestionLength
	}
	if loaded.GreetingReply != "" {
		rules.GreetingReply = loaded.GreetingReply
	}
	for k, reply := range loaded.CasualReplies {
		rules.CasualReplies[k] = reply
	}
	return rules, nil
}
