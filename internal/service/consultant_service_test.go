package service

import (
	"strings"
	"testing"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsultantFixture() ConsultantService {
	repo := repository.NewConsultantRepository([]model.ConsultantGroup{
		{
			Key: "marketing_digital", Area: "Marketing Digital",
			Consultants: []model.Consultant{
				{Name: "Ana", Area: "Marketing Digital"},
				{Name: "Bruno", Area: "Marketing Digital"},
			},
		},
		{
			Key: "financas_credito", Area: "Finanças", SubArea: "Crédito",
			Consultants: []model.Consultant{{Name: "Carla", Area: "Finanças", SubArea: "Crédito"}},
		},
		{
			Key: "gestao_marketing", Area: "Gestão", SubArea: "Marketing",
			Consultants: []model.Consultant{{RazaoSocial: "Delta Ltda", Area: "Gestão", SubArea: "Marketing"}},
		},
	})
	return NewConsultantService(repo, 3)
}

func TestRelevance(t *testing.T) {
	assert.Equal(t, 4, Relevance("marketing", "Marketing Digital", ""))
	assert.Equal(t, 3, Relevance("marketing", "Gestão", "Marketing"))
	assert.Equal(t, 0, Relevance("exportação", "Marketing Digital", ""))
	// "de" 太短，不单独计分
	assert.Equal(t, 1, Relevance("plano de marketing", "Marketing Digital", ""))
}

func TestSearch_GroupRelevanceInherited(t *testing.T) {
	svc := newConsultantFixture()

	found := svc.Search("marketing", 10)
	require.Len(t, found, 3)
	assert.Equal(t, "Ana", found[0].Name)
	assert.Equal(t, 4, found[0].Relevance)
	assert.Equal(t, "Bruno", found[1].Name)
	assert.Equal(t, 4, found[1].Relevance)
	assert.Equal(t, "Delta Ltda", found[2].RazaoSocial)
	assert.Equal(t, 3, found[2].Relevance)
}

func TestSearch_LimitAndEmpty(t *testing.T) {
	svc := newConsultantFixture()

	assert.Len(t, svc.Search("marketing", 1), 1)
	assert.Len(t, svc.Search("marketing", 0), 3, "limit 0 使用默认值")
	assert.Empty(t, svc.Search("   ", 5))
	assert.Empty(t, svc.Search("turismo", 5))
}

func TestConsultantSearchTerms(t *testing.T) {
	assert.Equal(t, "preciso crédito minha empresa", ConsultantSearchTerms("Como preciso de crédito para minha empresa"))
	assert.Equal(t, "", ConsultantSearchTerms("o que é"))
	assert.Equal(t, "abrir mei", ConsultantSearchTerms("Como abrir uma MEI?"))
}

func TestSearchForQuestion(t *testing.T) {
	svc := newConsultantFixture()

	found := svc.SearchForQuestion("Quero crédito", 5)
	require.Len(t, found, 1)
	assert.Equal(t, "Carla", found[0].Name)
}

func TestFormatConsultant(t *testing.T) {
	out := FormatConsultant(model.Consultant{
		Name: "Ana", Area: "Marketing", SubArea: "Digital",
		Email: "ana@example.com", Phone: "11 9999", City: "Recife", State: "PE",
	})
	assert.Contains(t, out, "👤 **Ana**")
	assert.Contains(t, out, "🎯 **Especialidade:** Marketing - Digital")
	assert.Contains(t, out, "📞 **Contato:** 📧 ana@example.com | 📱 11 9999")
	assert.Contains(t, out, "📍 **Localização:** Recife - PE")
	assert.NotContains(t, out, "Representante")

	company := FormatConsultant(model.Consultant{RazaoSocial: "Delta Ltda"})
	assert.True(t, strings.HasPrefix(company, "🏢 **Delta Ltda**"))
}
