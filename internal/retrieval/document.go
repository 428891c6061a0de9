package retrieval

import (
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// DocumentText returns the indexable text of a document. Markdown files are
// flattened to their text content; anything else is used as is.
func DocumentText(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return MarkdownText(data)
	}
	return string(data)
}

// MarkdownText drops markdown syntax and keeps one block per line.
func MarkdownText(src []byte) string {
	doc := parser.NewWithExtensions(parser.CommonExtensions).Parse(src)

	var sb strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch node.(type) {
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.TableRow:
			if !entering {
				sb.WriteString("\n")
			}
		}
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			sb.Write(n.Literal)
		case *ast.Code:
			sb.Write(n.Literal)
		case *ast.CodeBlock:
			// Leaves are only visited on entry.
			sb.Write(n.Literal)
			sb.WriteString("\n")
		case *ast.Softbreak, *ast.Hardbreak:
			sb.WriteString(" ")
		case *ast.TableCell:
			sb.WriteString(" ")
		}
		return ast.GoToNext
	})

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
