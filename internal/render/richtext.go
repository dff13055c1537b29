// Package render converts document block trees into HTML fragments.
//
// Rendering is fidelity-preserving: preformatted block types (code,
// quote, callout) keep embedded newlines byte-for-byte, while prose
// block types convert them to explicit <br/> markers. Failures are
// isolated per block and never abort sibling or ancestor rendering.
package render

import (
	"html"
	"strings"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
)

// NewlineMode controls how embedded newlines inside a span are emitted.
type NewlineMode int

const (
	// NewlinePreserve keeps newlines as literal characters. Used inside
	// preformatted containers where whitespace is significant.
	NewlinePreserve NewlineMode = iota
	// NewlineBreak converts newlines to <br/> markers. Used inside
	// normal prose where HTML would otherwise collapse them.
	NewlineBreak
)

// FormatSpans renders a span sequence to a safe HTML fragment. Inline
// tags nest in a fixed order, outermost first: link, bold, italic,
// strikethrough, underline, code.
func FormatSpans(spans []docmodel.RichTextSpan, mode NewlineMode) string {
	var b strings.Builder
	for _, span := range spans {
		b.WriteString(formatSpan(span, mode))
	}
	return b.String()
}

func formatSpan(span docmodel.RichTextSpan, mode NewlineMode) string {
	text := html.EscapeString(span.Text)
	if mode == NewlineBreak {
		text = strings.ReplaceAll(text, "\n", "<br/>")
	}

	a := span.Annotations
	if a.Code {
		text = "<code>" + text + "</code>"
	}
	if a.Underline {
		text = "<u>" + text + "</u>"
	}
	if a.Strikethrough {
		text = "<del>" + text + "</del>"
	}
	if a.Italic {
		text = "<em>" + text + "</em>"
	}
	if a.Bold {
		text = "<strong>" + text + "</strong>"
	}
	if span.Link != "" {
		text = `<a href="` + html.EscapeString(span.Link) + `">` + text + `</a>`
	}
	return text
}
