package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"consultor-ia-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSplitText(t *testing.T) {
	text := strings.Repeat("a", 2500)

	chunks := splitText(text, 1000, 200)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	// 第三块从 1600 开始
	assert.Len(t, chunks[2], 900)

	assert.Nil(t, splitText("", 1000, 200))
	assert.Equal(t, []string{"curto"}, splitText("curto", 1000, 200))
}

func TestSplitText_CountsRunes(t *testing.T) {
	text := strings.Repeat("ç", 15)
	chunks := splitText(text, 10, 5)
	require.Len(t, chunks, 2)
	assert.Equal(t, 10, len([]rune(chunks[0])))
	assert.Equal(t, 10, len([]rune(chunks[1])))
}

func TestSplitText_InvalidOverlapFallsBack(t *testing.T) {
	chunks := splitText("abcdefghij", 4, 4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
}

func TestExtractKeywords(t *testing.T) {
	text := "O MEI pode emitir nota fiscal. O MEI paga o DAS mensal. Nota fiscal eletrônica para o MEI."
	kws := ExtractKeywords(text, 3)
	assert.Equal(t, []string{"mei", "nota", "fiscal"}, kws)
	assert.Empty(t, ExtractKeywords("a o de", 5))
}

func TestBuildChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guia.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("empreendedor formaliza empresa. ", 60)), 0o644))

	p := NewProcessor(NewExtractor(nil), 1000, 200)
	chunks, err := p.BuildChunks(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "guia.txt", c.Source)
		assert.Equal(t, path, c.Path)
		assert.Equal(t, model.ChunkID(path, i), c.ID)
		assert.Contains(t, c.Keywords, "empreendedor")
	}
}

func TestExtractor(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	e := NewExtractor(nil)

	xlsx := filepath.Join(dir, "tabela.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Produto", "Preço"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Consultoria", "100"}))
	require.NoError(t, f.SaveAs(xlsx))
	require.NoError(t, f.Close())

	text, err := e.Extract(ctx, xlsx)
	require.NoError(t, err)
	assert.Equal(t, "Produto Preço\nConsultoria 100\n", text)

	_, err = e.Extract(ctx, filepath.Join(dir, "manual.pdf"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = e.Extract(ctx, filepath.Join(dir, "imagem.png"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}
