package pipeline

import (
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+`)

// portugueseStopwords 是关键词统计时忽略的功能词。
var portugueseStopwords = toSet(
	"a", "o", "as", "os", "um", "uma", "uns", "umas", "de", "da", "do", "das", "dos", "em", "na", "no",
	"nas", "nos", "por", "para", "pela", "pelo", "pelas", "pelos", "com", "sem", "sob", "sobre", "entre",
	"e", "ou", "mas", "que", "se", "como", "quando", "onde", "qual", "quais", "ao", "aos", "à", "às",
	"é", "são", "ser", "foi", "era", "está", "estão", "ter", "tem", "têm", "há", "mais", "menos", "muito",
	"já", "não", "sim", "seu", "sua", "seus", "suas", "ele", "ela", "eles", "elas", "isso", "isto",
	"este", "esta", "esse", "essa", "aquele", "aquela", "também", "pode", "podem", "deve", "devem",
	"cada", "todo", "toda", "todos", "todas", "até", "após", "desde", "outro", "outra", "mesmo", "nº",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ExtractKeywords 按词频返回前 n 个关键词（忽略停用词与 3 个字母以下的词），
// 频次相同时按首次出现顺序。
func ExtractKeywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	freq := make(map[string]int)
	var order []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, stop := portugueseStopwords[tok]; stop {
			continue
		}
		if freq[tok] == 0 {
			order = append(order, tok)
		}
		freq[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// mergeKeywords 合并文档级与分块级关键词并去重。
func mergeKeywords(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, k := range list {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
