package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
)

func span(text string) docmodel.RichTextSpan {
	return docmodel.RichTextSpan{Text: text}
}

func TestFormatSpansEscaping(t *testing.T) {
	got := FormatSpans([]docmodel.RichTextSpan{span(`<script>alert("x")</script> & co`)}, NewlineBreak)
	assert.Equal(t, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt; &amp; co", got)
}

func TestFormatSpansNewlineModes(t *testing.T) {
	spans := []docmodel.RichTextSpan{span("line one\nline two")}

	assert.Equal(t, "line one\nline two", FormatSpans(spans, NewlinePreserve))
	assert.Equal(t, "line one<br/>line two", FormatSpans(spans, NewlineBreak))
}

func TestFormatSpansAnnotationNesting(t *testing.T) {
	tests := []struct {
		name string
		span docmodel.RichTextSpan
		want string
	}{
		{
			"bold",
			docmodel.RichTextSpan{Text: "x", Annotations: docmodel.Annotations{Bold: true}},
			"<strong>x</strong>",
		},
		{
			"bold italic code nest outermost first",
			docmodel.RichTextSpan{Text: "x", Annotations: docmodel.Annotations{Bold: true, Italic: true, Code: true}},
			"<strong><em><code>x</code></em></strong>",
		},
		{
			"all annotations",
			docmodel.RichTextSpan{Text: "x", Annotations: docmodel.Annotations{
				Bold: true, Italic: true, Strikethrough: true, Underline: true, Code: true,
			}},
			"<strong><em><del><u><code>x</code></u></del></em></strong>",
		},
		{
			"link wraps styling",
			docmodel.RichTextSpan{Text: "x", Link: "https://example.com", Annotations: docmodel.Annotations{Bold: true}},
			`<a href="https://example.com"><strong>x</strong></a>`,
		},
		{
			"link href escaped",
			docmodel.RichTextSpan{Text: "x", Link: `https://example.com/?a=1&b="2"`},
			`<a href="https://example.com/?a=1&amp;b=&#34;2&#34;">x</a>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSpans([]docmodel.RichTextSpan{tt.span}, NewlineBreak))
		})
	}
}

func TestFormatSpansConcatenatesRuns(t *testing.T) {
	spans := []docmodel.RichTextSpan{
		span("plain "),
		{Text: "strong", Annotations: docmodel.Annotations{Bold: true}},
		span(" tail"),
	}
	assert.Equal(t, "plain <strong>strong</strong> tail", FormatSpans(spans, NewlineBreak))
}

func TestFormatSpansEmpty(t *testing.T) {
	assert.Equal(t, "", FormatSpans(nil, NewlineBreak))
}
