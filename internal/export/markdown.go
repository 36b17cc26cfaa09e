package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in the source is omitted; the renderer is not configured WithUnsafe.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownToHTML converts model-written Markdown to an HTML fragment.
func MarkdownToHTML(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
