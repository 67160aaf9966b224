// Package parser implements the Document Parser: format dispatch by
// lowercased extension, PDF/DOCX extraction, and text normalization.
// Grounded on the teacher's loader/python_pdf adapters, generalized to
// the full format table in spec.md §4.1 and ported from
// original_source/knowledge_base/document.rs's clean_text/parse_document.
package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
)

// textExtensions are treated as plain text verbatim, per spec.md §4.1's
// "anything else with a known text extension" clause and
// original_source's DocumentFormat::Txt extension list.
var textExtensions = map[string]bool{
	"txt": true, "text": true, "md": true, "markdown": true,
	"rs": true, "js": true, "ts": true, "py": true, "java": true,
	"c": true, "cpp": true, "h": true, "go": true,
}

// Parser implements ports.DocumentParser.
type Parser struct {
	// PDFToTextPath is the external text-extraction helper invoked for
	// PDFs, analogous to original_source's `pdftotext -layout`. Empty
	// disables the helper and falls straight to the heuristic scan.
	PDFToTextPath string
}

// New creates a Parser. pdfToTextPath may be empty.
func New(pdfToTextPath string) *Parser {
	return &Parser{PDFToTextPath: pdfToTextPath}
}

// Parse extracts and normalizes text from path.
func (p *Parser) Parse(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	var raw string
	var err error

	switch ext {
	case "pdf":
		raw, err = p.parsePDF(ctx, path)
	case "doc", "docx":
		raw, err = parseDOCX(path)
	case "xls", "xlsx":
		return "", fmt.Errorf("%w: unsupported spreadsheet format %q, use csv", domerrors.ErrDocumentParse, ext)
	case "csv":
		raw, err = readFile(path)
	case "html", "htm":
		raw, err = readFile(path)
	default:
		if !textExtensions[ext] {
			// Unknown extensions fall back to plain text per spec.md §4.1
			// ("anything else with a known text extension is treated as
			// plain text" — an unrecognized one is still attempted as text).
			raw, err = readFile(path)
		} else {
			raw, err = readFile(path)
		}
	}
	if err != nil {
		return "", err
	}

	return normalize(raw), nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domerrors.ErrDocumentParse, err)
	}
	return string(data), nil
}

// parsePDF delegates to the external helper if configured, then falls
// back to a minimal parenthetical-literal scan of the raw PDF stream.
func (p *Parser) parsePDF(ctx context.Context, path string) (string, error) {
	if p.PDFToTextPath != "" {
		if text, err := p.runPDFToText(ctx, path); err == nil {
			return text, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading pdf: %v", domerrors.ErrDocumentParse, err)
	}
	return extractPDFLiterals(data)
}

func (p *Parser) runPDFToText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, p.PDFToTextPath, "-layout", path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// extractPDFLiterals performs a minimal, heuristic scan for text between
// parentheses in a raw PDF byte stream (PDF text-showing operators embed
// literal strings this way). Low-quality results are rejected as a parse
// error rather than ingested as noise (spec.md §9 open question).
func extractPDFLiterals(data []byte) (string, error) {
	var sb strings.Builder
	inParen := false
	depth := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '(' && !inParen:
			inParen = true
			depth = 1
		case c == '(' && inParen:
			depth++
			sb.WriteByte(c)
		case c == ')' && inParen:
			depth--
			if depth == 0 {
				inParen = false
				sb.WriteByte(' ')
			} else {
				sb.WriteByte(c)
			}
		case inParen:
			sb.WriteByte(c)
		}
	}

	text := sb.String()
	if !looksLikeText(text) {
		return "", fmt.Errorf("%w: pdf fallback extraction produced low-quality output", domerrors.ErrDocumentParse)
	}
	return text, nil
}

// looksLikeText rejects near-empty or mostly-non-printable extraction
// results, treating them as a parse failure instead of ingesting garbage.
func looksLikeText(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 20 {
		return false
	}
	printable := 0
	for _, r := range trimmed {
		if r == '\n' || r == '\t' || (r >= 32 && r < 127) {
			printable++
		}
	}
	return float64(printable)/float64(len([]rune(trimmed))) >= 0.85
}

// parseDOCX treats the file as a ZIP archive and concatenates text nodes
// inside word/document.xml, mapping tab/break markers to \t/\n.
func parseDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening docx as zip: %v", domerrors.ErrDocumentParse, err)
	}
	defer r.Close()

	var docXML *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docXML = f
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: word/document.xml not found in docx", domerrors.ErrDocumentParse)
	}

	rc, err := docXML.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domerrors.ErrDocumentParse, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domerrors.ErrDocumentParse, err)
	}

	return extractDOCXText(string(data)), nil
}

// extractDOCXText walks <w:t>...</w:t> runs and maps <w:tab/>/<w:br/>
// markers to tab/newline, mirroring original_source's XML text scan.
func extractDOCXText(xml string) string {
	xml = strings.ReplaceAll(xml, "<w:tab/>", "<w:t>\t</w:t>")
	xml = strings.ReplaceAll(xml, "<w:br/>", "<w:t>\n</w:t>")

	var sb strings.Builder
	for _, part := range strings.Split(xml, "<w:t")[1:] {
		end := strings.Index(part, "</w:t>")
		if end == -1 {
			continue
		}
		start := strings.Index(part, ">")
		if start == -1 || start > end {
			continue
		}
		sb.WriteString(part[start+1 : end])
	}
	return sb.String()
}

// normalize trims each line, drops empty lines, and collapses runs of
// three or more newlines to two.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	joined := strings.Join(kept, "\n")

	for strings.Contains(joined, "\n\n\n") {
		joined = strings.ReplaceAll(joined, "\n\n\n", "\n\n")
	}
	return joined
}
