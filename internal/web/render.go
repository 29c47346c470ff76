package web

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// newMarkdown returns the renderer for assistant turns. Raw HTML in the
// source is omitted.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func (s *Server) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		s.logger.Warn("markdown render failed", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}
