// Package extract converts uploaded files into plain text plus basic counts.
package extract

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

// Result holds the extracted text and its basic metadata.
type Result struct {
	Text           string
	WordCount      int
	CharacterCount int
}

// Extract converts raw file bytes of the declared type into plain text.
// It performs no file I/O; callers read the file and supply the bytes.
func Extract(data []byte, fileType domain.FileType) (*Result, error) {
	var text string
	var err error

	switch fileType {
	case domain.FileTypePDF:
		text, err = extractPDF(data)
	case domain.FileTypeText:
		text = string(data)
	case domain.FileTypeMarkdown:
		text, err = extractMarkdown(data)
	case domain.FileTypeDocx:
		text, err = extractDocx(data)
	default:
		return nil, domain.ErrUnsupportedFormat
	}
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "failed to extract document text", err)
	}

	text = normalizeText(text)
	return &Result{
		Text:           text,
		WordCount:      len(strings.Fields(text)),
		CharacterCount: utf8.RuneCountInString(text),
	}, nil
}

// ExtractFile reads path and extracts it. Path validation is the file store's
// concern; this helper only exists for callers holding a resolved local path.
func ExtractFile(path string, fileType domain.FileType) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "failed to read document file", err)
	}
	return Extract(data, fileType)
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractDocx(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return stripDocxTags(content), nil
}

// extractMarkdown walks the goldmark AST and collects text segments,
// discarding formatting so headings and emphasis don't leak syntax into the
// embedded text.
func extractMarkdown(data []byte) (string, error) {
	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(data))
			if node.HardLineBreak() || node.SoftLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(data))
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// stripDocxTags removes WordprocessingML markup the docx reader leaves in the
// raw document content, keeping only run text.
func stripDocxTags(content string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// normalizeText collapses runs of blank lines and trims trailing whitespace
// per line, preserving paragraph structure for the chunker.
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
