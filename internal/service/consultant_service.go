package service

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/repository"
	"consultor-ia-go/pkg/log"
)

// 提取顾问检索词时丢弃的功能词。
var consultantStopWords = map[string]struct{}{
	"como": {}, "que": {}, "qual": {}, "onde": {}, "quando": {},
	"por": {}, "para": {}, "um": {}, "uma": {}, "o": {}, "a": {},
}

// ConsultantService 定义了顾问匹配操作。
type ConsultantService interface {
	// Search 按相关度降序返回最多 limit 个顾问，同分保持加载顺序。
	Search(term string, limit int) []model.Consultant
	// SearchForQuestion 先从问题中提取检索词，再调用 Search。
	SearchForQuestion(question string, limit int) []model.Consultant
	ByArea(area string) []model.Consultant
	Stats() model.ConsultantStats
}

type consultantService struct {
	repo         *repository.ConsultantRepository
	defaultLimit int
}

// NewConsultantService 创建一个新的 ConsultantService 实例。
func NewConsultantService(repo *repository.ConsultantRepository, defaultLimit int) ConsultantService {
	if defaultLimit <= 0 {
		defaultLimit = 3
	}
	return &consultantService{repo: repo, defaultLimit: defaultLimit}
}

func (s *consultantService) Search(term string, limit int) []model.Consultant {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	var found []model.Consultant
	for _, g := range s.repo.Groups() {
		relevance := Relevance(term, g.Area, g.SubArea)
		if relevance == 0 {
			continue
		}
		for _, c := range g.Consultants {
			c.Relevance = relevance
			found = append(found, c)
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Relevance > found[j].Relevance })
	if len(found) > limit {
		found = found[:limit]
	}
	log.Infof("[ConsultantService] 顾问检索完成, term: '%s', 返回 %d 个", term, len(found))
	return found
}

func (s *consultantService) SearchForQuestion(question string, limit int) []model.Consultant {
	return s.Search(ConsultantSearchTerms(question), limit)
}

func (s *consultantService) ByArea(area string) []model.Consultant {
	return s.repo.ByArea(area)
}

func (s *consultantService) Stats() model.ConsultantStats {
	return s.repo.Stats()
}

// Relevance 计算检索词与一个 (area, sub-area) 组的相关度，term 需已小写。
// 整词命中领域 +3、命中子领域 +2；每个长度大于 2 的词再分别 +1。
func Relevance(term, area, subArea string) int {
	area = strings.ToLower(area)
	subArea = strings.ToLower(subArea)

	score := 0
	if strings.Contains(area, term) {
		score += 3
	}
	if strings.Contains(subArea, term) {
		score += 2
	}
	for _, w := range strings.Fields(term) {
		if len([]rune(w)) <= 2 {
			continue
		}
		if strings.Contains(area, w) {
			score++
		}
		if strings.Contains(subArea, w) {
			score++
		}
	}
	return score
}

// ConsultantSearchTerms 去掉词首尾标点，丢弃功能词与过短的词，返回以空格连接的小写检索词。
func ConsultantSearchTerms(question string) string {
	var terms []string
	for _, w := range strings.Fields(question) {
		lw := strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
		if _, stop := consultantStopWords[lw]; stop {
			continue
		}
		if len([]rune(lw)) <= 2 {
			continue
		}
		terms = append(terms, lw)
	}
	return strings.Join(terms, " ")
}

// FormatConsultant 把顾问渲染成多行 markdown，空字段对应的行会被省略。
func FormatConsultant(c model.Consultant) string {
	var lines []string

	if c.Name != "" {
		lines = append(lines, fmt.Sprintf("👤 **%s**", c.Name))
	} else if c.RazaoSocial != "" {
		lines = append(lines, fmt.Sprintf("🏢 **%s**", c.RazaoSocial))
	}

	if c.Area != "" {
		area := c.Area
		if c.SubArea != "" {
			area += " - " + c.SubArea
		}
		lines = append(lines, "🎯 **Especialidade:** "+area)
	}

	if c.CompanyArea != "" {
		area := c.CompanyArea
		if c.CompanySubArea != "" {
			area += " - " + c.CompanySubArea
		}
		lines = append(lines, "🏭 **Área de Atuação:** "+area)
	}

	var contacts []string
	if c.Email != "" {
		contacts = append(contacts, "📧 "+c.Email)
	}
	if c.Phone != "" {
		contacts = append(contacts, "📱 "+c.Phone)
	}
	if len(contacts) > 0 {
		lines = append(lines, "📞 **Contato:** "+strings.Join(contacts, " | "))
	}

	var location []string
	if c.City != "" {
		location = append(location, c.City)
	}
	if c.State != "" {
		location = append(location, c.State)
	}
	if len(location) > 0 {
		lines = append(lines, "📍 **Localização:** "+strings.Join(location, " - "))
	}

	if c.RegionalOffice != "" {
		lines = append(lines, "🏛️ **Escritório Regional:** "+c.RegionalOffice)
	}
	if c.ServiceNature != "" {
		lines = append(lines, "⚙️ **Serviços:** "+c.ServiceNature)
	}
	if c.LegalRepresentative != "" {
		lines = append(lines, "👔 **Representante:** "+c.LegalRepresentative)
	}
	return strings.Join(lines, "\n")
}
