package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"consultor-ia-go/internal/model"
	"consultor-ia-go/pkg/log"

	"github.com/xuri/excelize/v2"
)

// columnAliases 把表头别名映射到逻辑字段，匹配时忽略大小写与首尾空白。
var columnAliases = []struct {
	field   string
	aliases []string
}{
	{"nome", []string{"nome", "consultor", "nome_consultor", "nome do consultor", "equipe técnica", "equipe_tecnica"}},
	{"email", []string{"email", "e-mail", "e_mail", "correio", "e-mail 01"}},
	{"telefone", []string{"telefone", "fone", "celular", "contato", "telefone 01", "telefone do profissional"}},
	{"cidade", []string{"cidade", "localidade", "municipio", "município"}},
	{"estado", []string{"estado", "uf", "regiao", "região"}},
	{"razao_social", []string{"razao social", "razão social", "empresa"}},
	{"cnpj", []string{"cnpj"}},
	{"area_empresa", []string{"área da empresa", "area da empresa"}},
	{"subarea_empresa", []string{"subárea da empresa", "subarea da empresa"}},
	{"natureza_servico", []string{"natureza da prestação de serviço", "natureza servico"}},
	{"endereco", []string{"rua", "endereço", "endereco"}},
	{"bairro", []string{"bairro"}},
	{"cep", []string{"cep"}},
	{"escritorio_regional", []string{"escritório regional", "escritorio regional"}},
	{"representante_legal", []string{"nome do representante legal", "representante legal"}},
}

// ConsultantRepository 是启动时加载、运行期只读的顾问名册。
type ConsultantRepository struct {
	groups []model.ConsultantGroup
}

// NewConsultantRepository 用已有分组构造名册，主要用于测试。
func NewConsultantRepository(groups []model.ConsultantGroup) *ConsultantRepository {
	return &ConsultantRepository{groups: groups}
}

// LoadConsultantRepository 读取 dir 下所有 .xlsx 文件。目录不存在时返回空名册；
// 单个文件解析失败只记录日志。
func LoadConsultantRepository(dir string) (*ConsultantRepository, error) {
	repo := &ConsultantRepository{}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("[ConsultantRepository] 顾问目录不存在: %s", dir)
		return repo, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取顾问目录失败: %w", err)
	}

	index := make(map[string]int)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".xlsx") || strings.HasPrefix(name, "~$") {
			continue
		}
		area, subArea := AreaFromFileName(name)
		consultants, err := readRoster(filepath.Join(dir, name), area, subArea)
		if err != nil {
			log.Errorf("[ConsultantRepository] 加载文件 %s 失败: %v", name, err)
			continue
		}
		if len(consultants) == 0 {
			continue
		}

		key := strings.ToLower(strings.ReplaceAll(area+"_"+subArea, " ", "_"))
		if i, ok := index[key]; ok {
			repo.groups[i].Consultants = append(repo.groups[i].Consultants, consultants...)
			continue
		}
		index[key] = len(repo.groups)
		repo.groups = append(repo.groups, model.ConsultantGroup{
			Key:         key,
			Area:        area,
			SubArea:     subArea,
			Consultants: consultants,
		})
	}

	log.Infof("[ConsultantRepository] 已加载 %d 个顾问分组", len(repo.groups))
	return repo, nil
}

// AreaFromFileName 从文件名解析 (area, sub-area)：按 "_" 切分，第一段为领域，其余为子领域。
func AreaFromFileName(fileName string) (string, string) {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return strings.TrimSpace(stem), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(strings.Join(parts[1:], " "))
}

// Groups 按加载顺序返回所有分组。
func (r *ConsultantRepository) Groups() []model.ConsultantGroup {
	return r.groups
}

// ByArea 返回分组键包含 area 的全部顾问。
func (r *ConsultantRepository) ByArea(area string) []model.Consultant {
	needle := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(area), " ", "_"))
	var out []model.Consultant
	for _, g := range r.groups {
		if needle != "" && strings.Contains(g.Key, needle) {
			out = append(out, g.Consultants...)
		}
	}
	return out
}

func readRoster(path, area, subArea string) ([]model.Consultant, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	columns := resolveColumns(rows[0])
	source := filepath.Base(path)
	var out []model.Consultant
	for _, row := range rows[1:] {
		values := make(map[string]string, len(columns))
		for field, idx := range columns {
			if idx < len(row) {
				if v := strings.TrimSpace(row[idx]); v != "" {
					values[field] = v
				}
			}
		}
		// 没有姓名也没有企业名称的行丢弃
		if values["nome"] == "" && values["razao_social"] == "" {
			continue
		}
		out = append(out, model.Consultant{
			Name:                values["nome"],
			RazaoSocial:         values["razao_social"],
			Area:                area,
			SubArea:             subArea,
			Email:               values["email"],
			Phone:               values["telefone"],
			City:                values["cidade"],
			State:               values["estado"],
			CNPJ:                values["cnpj"],
			CompanyArea:         values["area_empresa"],
			CompanySubArea:      values["subarea_empresa"],
			ServiceNature:       values["natureza_servico"],
			Address:             values["endereco"],
			District:            values["bairro"],
			ZipCode:             values["cep"],
			RegionalOffice:      values["escritorio_regional"],
			LegalRepresentative: values["representante_legal"],
			SourceFile:          source,
		})
	}
	return out, nil
}

// resolveColumns 为每个逻辑字段找到第一个匹配别名的列下标。
func resolveColumns(header []string) map[string]int {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	columns := make(map[string]int)
	for _, c := range columnAliases {
		for _, alias := range c.aliases {
			if i := indexOf(lower, alias); i >= 0 {
				columns[c.field] = i
				break
			}
		}
	}
	return columns
}

func indexOf(items []string, target string) int {
	for i, s := range items {
		if s == target {
			return i
		}
	}
	return -1
}

// Stats 统计顾问总数、分组数与排序后的分组标签。
func (r *ConsultantRepository) Stats() model.ConsultantStats {
	stats := model.ConsultantStats{TotalGroups: len(r.groups)}
	for _, g := range r.groups {
		stats.TotalConsultants += len(g.Consultants)
		stats.Areas = append(stats.Areas, g.Label())
	}
	sort.Strings(stats.Areas)
	return stats
}
