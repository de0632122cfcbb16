// Package preview finds UI component code in assistant replies and hands it
// to a renderer.
package preview

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Template is the renderer template used for extracted components.
const Template = "react"

var previewLanguages = map[string]bool{
	"jsx":        true,
	"tsx":        true,
	"javascript": true,
	"react":      true,
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ExtractCode returns the trimmed body of the first fenced code block tagged
// jsx, tsx, javascript or react.
func ExtractCode(content string) (string, bool) {
	if !strings.Contains(content, "```") && !strings.Contains(content, "~~~") {
		return "", false
	}
	source := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var code string
	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !previewLanguages[strings.ToLower(string(block.Language(source)))] {
			return ast.WalkSkipChildren, nil
		}
		var buf bytes.Buffer
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		code = strings.TrimSpace(buf.String())
		found = true
		return ast.WalkStop, nil
	})
	if !found || code == "" {
		return "", false
	}
	return code, true
}
