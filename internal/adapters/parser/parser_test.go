package parser

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_PlainText(t *testing.T) {
	p := New("")
	path := writeTemp(t, "doc.txt", "  hello  \n\n\nworld  \n")
	text, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)
}

func TestParse_Markdown(t *testing.T) {
	p := New("")
	path := writeTemp(t, "doc.md", "# Title\n\nsome body text")
	text, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "# Title")
	assert.Contains(t, text, "some body text")
}

func TestParse_CSVVerbatim(t *testing.T) {
	p := New("")
	path := writeTemp(t, "data.csv", "a,b,c\n1,2,3")
	text, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "a,b,c")
}

func TestParse_XLSXUnsupported(t *testing.T) {
	p := New("")
	path := writeTemp(t, "book.xlsx", "not really xlsx")
	_, err := p.Parse(context.Background(), path)
	require.Error(t, err)
}

func TestParse_DOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:tab/></w:r><w:r><w:t>World</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	p2 := New("")
	text, err := p2.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World")
}

func TestParse_PDFFallbackHeuristic(t *testing.T) {
	p := New("")
	// Construct a minimal fake PDF-ish byte stream with parenthetical text
	// objects, long enough to clear the low-quality floor.
	content := "BT (This is some reasonably long extracted sentence of text) Tj ET\n" +
		"BT (Another chunk of readable text follows here too) Tj ET\n"
	path := writeTemp(t, "fake.pdf", content)
	text, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "reasonably long extracted sentence")
}

func TestParse_PDFGarbageRejected(t *testing.T) {
	p := New("")
	path := writeTemp(t, "garbage.pdf", "\x00\x01\x02\x03 no parens here at all")
	_, err := p.Parse(context.Background(), path)
	require.Error(t, err)
}

func TestNormalize_CollapsesAndTrims(t *testing.T) {
	out := normalize("  a  \n\n\n  b  \n\n c")
	assert.Equal(t, "a\nb\nc", out)
}
