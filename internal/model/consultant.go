package model

import "strings"

// Consultant 来自名册表格的一行。Relevance 每次检索重新计算，不属于记录本身。
type Consultant struct {
	Name                string `json:"nome,omitempty"`
	RazaoSocial         string `json:"razaoSocial,omitempty"`
	Area                string `json:"area"`
	SubArea             string `json:"subarea"`
	Email               string `json:"email,omitempty"`
	Phone               string `json:"telefone,omitempty"`
	City                string `json:"cidade,omitempty"`
	State               string `json:"estado,omitempty"`
	CNPJ                string `json:"cnpj,omitempty"`
	CompanyArea         string `json:"areaEmpresa,omitempty"`
	CompanySubArea      string `json:"subareaEmpresa,omitempty"`
	ServiceNature       string `json:"naturezaServico,omitempty"`
	Address             string `json:"endereco,omitempty"`
	District            string `json:"bairro,omitempty"`
	ZipCode             string `json:"cep,omitempty"`
	RegionalOffice      string `json:"escritorioRegional,omitempty"`
	LegalRepresentative string `json:"representanteLegal,omitempty"`
	SourceFile          string `json:"arquivoOrigem,omitempty"`
	Relevance           int    `json:"relevancia"`
}

// DisplayName 优先返回姓名，其次是企业名称。
func (c Consultant) DisplayName() string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return c.RazaoSocial
}

// ConsultantGroup 是同一 (area, sub-area) 下的全部顾问。
type ConsultantGroup struct {
	Key         string       `json:"key"`
	Area        string       `json:"area"`
	SubArea     string       `json:"subarea"`
	Consultants []Consultant `json:"consultants"`
}

// Label 用于统计展示，形如 "Marketing - Digital"。
func (g ConsultantGroup) Label() string {
	if g.SubArea == "" {
		return g.Area
	}
	return g.Area + " - " + g.SubArea
}

// ConsultantStats 是名册统计。
type ConsultantStats struct {
	TotalConsultants int      `json:"totalConsultants"`
	TotalGroups      int      `json:"totalGroups"`
	Areas            []string `json:"areas"`
}
