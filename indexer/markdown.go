package indexer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// flattenText reduces a possibly markdown-rich field value to plain prose
// before it reaches the embedding provider, so markup tokens don't pollute
// the vector. Plain strings pass through unchanged apart from whitespace
// collapsing.
func flattenText(value string) string {
	source := []byte(value)
	root := markdown.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			sb.WriteByte(' ')
		case *ast.AutoLink:
			sb.Write(node.URL(source))
			sb.WriteByte(' ')
		case *ast.CodeBlock:
			writeLines(&sb, source, node)
		case *ast.FencedCodeBlock:
			writeLines(&sb, source, node)
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(sb.String()), " ")
}

func writeLines(sb *strings.Builder, source []byte, node ast.Node) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
		sb.WriteByte(' ')
	}
}
