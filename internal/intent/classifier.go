// Package intent 决定一条消息走固定回复、知识库检索还是自由生成。
package intent

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind 是消息意图类型。
type Kind string

const (
	KindGreeting        Kind = "greeting"
	KindCasual          Kind = "casual"
	KindKnowledgeQuery  Kind = "knowledge_query"
	KindGenericQuestion Kind = "generic_question"
	KindUndetermined    Kind = "undetermined"
)

// Intent 是一次分类的结果。
type Intent struct {
	Kind                  Kind     `json:"type"`
	Confidence            float64  `json:"confidence"`
	ShouldSearchBase      bool     `json:"shouldSearchBase"`
	ShouldListConsultants bool     `json:"shouldListConsultants"`
	DirectReply           string   `json:"directReply,omitempty"` // 非空时直接回复，不检索也不调用 LLM
	MatchedKeywords       []string `json:"matchedKeywords,omitempty"`
	CasualGroup           string   `json:"casualGroup,omitempty"`
	Reason                string   `json:"reason"`
}

// Classifier 按固定优先级匹配规则：问候 > 闲聊 > 知识库 > 一般问题 > 未确定。
type Classifier struct {
	rules          Rules
	greetings      []string
	casualGroups   []casualGroup
	domainKeywords []string
	interrogatives []string
}

type casualGroup struct {
	name    string
	phrases []string
}

// NewClassifier 预先规范化规则表中的短语。
func NewClassifier(rules Rules) *Classifier {
	c := &Classifier{rules: rules}
	c.greetings = normalizeAll(rules.Greetings)
	// 长问候优先，"bom dia" 要先于 "bom" 这类短词匹配
	sort.SliceStable(c.greetings, func(i, j int) bool { return len(c.greetings[i]) > len(c.greetings[j]) })

	names := make([]string, 0, len(rules.CasualGroups))
	for name := range rules.CasualGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.casualGroups = append(c.casualGroups, casualGroup{name: name, phrases: normalizeAll(rules.CasualGroups[name])})
	}

	c.domainKeywords = normalizeAll(rules.DomainKeywords)
	c.interrogatives = normalizeAll(rules.Interrogatives)
	if c.rules.MinQuestionLength <= 0 {
		c.rules.MinQuestionLength = 10
	}
	return c
}

// Classify 是纯函数，相同输入总是得到相同结果。
func (c *Classifier) Classify(message string) Intent {
	trimmed := strings.TrimSpace(message)
	normalized := Normalize(trimmed)
	padded := " " + strings.Join(Tokenize(normalized), " ") + " "

	if c.isGreeting(normalized) {
		return Intent{
			Kind:        KindGreeting,
			Confidence:  1.0,
			DirectReply: c.rules.GreetingReply,
			Reason:      "mensagem de saudação",
		}
	}

	for _, group := range c.casualGroups {
		for _, phrase := range group.phrases {
			if containsPhrase(padded, phrase) {
				return Intent{
					Kind:        KindCasual,
					Confidence:  0.95,
					DirectReply: c.casualReply(group.name),
					CasualGroup: group.name,
					Reason:      "conversa casual: " + group.name,
				}
			}
		}
	}

	var hits []string
	for _, kw := range c.domainKeywords {
		if containsPhrase(padded, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) > 0 {
		confidence := 0.7 + 0.1*float64(len(hits))
		if confidence > 1.0 {
			confidence = 1.0
		}
		return Intent{
			Kind:                  KindKnowledgeQuery,
			Confidence:            confidence,
			ShouldSearchBase:      true,
			ShouldListConsultants: true,
			MatchedKeywords:       hits,
			Reason:                "palavras-chave do domínio encontradas",
		}
	}

	if c.looksLikeQuestion(trimmed, padded) {
		if utf8.RuneCountInString(trimmed) >= c.rules.MinQuestionLength {
			return Intent{
				Kind:             KindGenericQuestion,
				Confidence:       0.6,
				ShouldSearchBase: true,
				Reason:           "pergunta genérica",
			}
		}
		return Intent{
			Kind:        KindCasual,
			Confidence:  0.8,
			DirectReply: c.casualReply(GroupShort),
			CasualGroup: GroupShort,
			Reason:      "pergunta muito curta",
		}
	}

	return Intent{
		Kind:             KindUndetermined,
		Confidence:       0.4,
		ShouldSearchBase: true,
		Reason:           "nenhuma regra correspondente",
	}
}

func (c *Classifier) isGreeting(normalized string) bool {
	for _, g := range c.greetings {
		if normalized == g {
			return true
		}
		if strings.HasPrefix(normalized, g) && onlyTrailingPunct(normalized[len(g):]) {
			return true
		}
	}
	return false
}

func (c *Classifier) looksLikeQuestion(raw, padded string) bool {
	if strings.Contains(raw, "?") {
		return true
	}
	for _, w := range c.interrogatives {
		if containsPhrase(padded, w) {
			return true
		}
	}
	return false
}

func (c *Classifier) casualReply(group string) string {
	if reply, ok := c.rules.CasualReplies[group]; ok && reply != "" {
		return reply
	}
	return c.rules.CasualReplies[GroupHelp]
}

// "?" 不算问候后的标点："oi?" 应当落到"过短的问题"分支。
func onlyTrailingPunct(rest string) bool {
	if rest == "" {
		return true
	}
	for _, r := range rest {
		if unicode.IsSpace(r) {
			continue
		}
		if !strings.ContainsRune("!.,;:~", r) {
			return false
		}
	}
	return true
}

func containsPhrase(padded, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(padded, " "+phrase+" ")
}

// Normalize 转小写并去掉重音符号，"Olá" 与 "ola" 视为相同。
func Normalize(s string) string {
	// transform.Chain 有内部状态，每次调用单独构造
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Tokenize 按非字母数字字符切分，不改变大小写，需要时先调用 Normalize。
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := strings.Join(Tokenize(Normalize(s)), " ")
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
