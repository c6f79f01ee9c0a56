package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"consultor-ia-go/pkg/tika"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFile 表示扩展名不在支持列表中，或没有可用的提取服务。
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrEmptyContent 表示文件没有可提取的文本。
	ErrEmptyContent = errors.New("no text content extracted")
)

// TextExtractor 从单个文件提取纯文本，失败只影响该文件。
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Extractor 纯文本直接读取，表格用 excelize 逐行拼接，其余格式交给 Tika。
type Extractor struct {
	tika *tika.Client
}

// NewExtractor tikaClient 可以为 nil，此时 PDF/DOCX 返回 ErrUnsupportedFile。
func NewExtractor(tikaClient *tika.Client) *Extractor {
	return &Extractor{tika: tikaClient}
}

func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".xlsx":
		return extractSpreadsheet(path)
	case ".pdf", ".docx":
		if e.tika == nil {
			return "", fmt.Errorf("%w: %s (tika não configurado)", ErrUnsupportedFile, filepath.Ext(path))
		}
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return e.tika.ExtractText(ctx, f, filepath.Base(path))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
}

// extractSpreadsheet 把每个工作表的每一行用空格连接成一行文本。
func extractSpreadsheet(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("读取工作表 %s 失败: %w", sheet, err)
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
