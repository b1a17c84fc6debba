package ingestfmt

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

var allowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".py":   true,
	".js":   true,
	".json": true,
	".csv":  true,
	".html": true,
	".xml":  true,
	".rst":  true,
	".tex":  true,
}

func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Normalize turns uploaded file content into plain text ready for
// chunking. Markdown loses its structural syntax so headings and list
// markers do not pollute lexical search; everything else passes through as
// is.
func Normalize(filename string, content []byte) (string, error) {
	if !AllowedExtension(filename) {
		return "", errs.Invalidf("file type %q is not supported", filepath.Ext(filename))
	}
	if !utf8.Valid(content) {
		return "", errs.Invalidf("file %q is not valid utf-8 text", filename)
	}
	if strings.ToLower(filepath.Ext(filename)) == ".md" {
		return markdownToText(content), nil
	}
	return string(content), nil
}

func markdownToText(content []byte) string {
	md := goldmark.New()
	reader := text.NewReader(content)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(content))
			}
			if code := strings.TrimSpace(sb.String()); code != "" {
				blocks = append(blocks, code)
			}
		default:
			if txt := extractText(node, content); txt != "" {
				blocks = append(blocks, txt)
			}
		}
	}
	return strings.Join(blocks, "\n\n")
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteString(" ")
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
