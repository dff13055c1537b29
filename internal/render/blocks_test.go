package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
)

func textBlock(bt docmodel.BlockType, text string) docmodel.ContentBlock {
	return docmodel.ContentBlock{Type: bt, RichText: []docmodel.RichTextSpan{{Text: text}}}
}

func renderOne(t *testing.T, block docmodel.ContentBlock) (string, *Report) {
	t.Helper()
	out, report, err := NewRenderer().RenderSequence([]docmodel.ContentBlock{block})
	require.NoError(t, err)
	return out, report
}

// extractText walks the parsed fragment and returns the concatenated
// text nodes under the first element matching tag.
func extractText(t *testing.T, fragment, tag string) string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	require.NoError(t, err)

	var target *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if target != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			target = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	require.NotNil(t, target, "no <%s> in fragment: %s", tag, fragment)

	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(target)
	return b.String()
}

func TestRenderSequenceRequiresConstructor(t *testing.T) {
	var r *Renderer
	_, _, err := r.RenderSequence(nil)
	assert.Error(t, err)

	_, _, err = (&Renderer{}).RenderSequence(nil)
	assert.Error(t, err)
}

func TestCodeBlockPreservesNewlinesByteForByte(t *testing.T) {
	src := "func main() {\n\tfmt.Println(\"hi\")\n}\n\n// trailing\n"
	block := docmodel.ContentBlock{
		Type:     docmodel.BlockCode,
		Language: "go",
		RichText: []docmodel.RichTextSpan{{Text: src}},
	}

	out, report := renderOne(t, block)
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, src, extractText(t, out, "code"))
	assert.Contains(t, out, `<div class="code-header">go</div>`)
}

func TestCodeBlockPlainTextLanguageHidesHeader(t *testing.T) {
	block := docmodel.ContentBlock{
		Type:     docmodel.BlockCode,
		Language: "plain text",
		RichText: []docmodel.RichTextSpan{{Text: "x"}},
	}
	out, _ := renderOne(t, block)
	assert.NotContains(t, out, "code-header")
}

func TestQuoteAndCalloutPreserveNewlines(t *testing.T) {
	text := "first\nsecond\nthird"

	quote, _ := renderOne(t, textBlock(docmodel.BlockQuote, text))
	assert.Contains(t, quote, text)
	assert.NotContains(t, quote, "<br/>")

	callout, _ := renderOne(t, textBlock(docmodel.BlockCallout, text))
	assert.Contains(t, callout, text)
	assert.NotContains(t, callout, "<br/>")
}

func TestParagraphConvertsNewlines(t *testing.T) {
	out, _ := renderOne(t, textBlock(docmodel.BlockParagraph, "a\nb"))
	assert.Equal(t, "<p>a<br/>b</p>", out)
}

func TestEmptyParagraphEmitsNbsp(t *testing.T) {
	out, _ := renderOne(t, docmodel.ContentBlock{Type: docmodel.BlockParagraph})
	assert.Equal(t, "<p>&nbsp;</p>", out)
}

func TestHeadings(t *testing.T) {
	tests := []struct {
		bt  docmodel.BlockType
		tag string
	}{
		{docmodel.BlockHeading1, "h1"},
		{docmodel.BlockHeading2, "h2"},
		{docmodel.BlockHeading3, "h3"},
	}
	for _, tt := range tests {
		out, _ := renderOne(t, textBlock(tt.bt, "Title"))
		assert.Equal(t, "<"+tt.tag+">Title</"+tt.tag+">", out)
	}
}

func TestListGrouping(t *testing.T) {
	blocks := []docmodel.ContentBlock{
		textBlock(docmodel.BlockBulletedListItem, "a"),
		textBlock(docmodel.BlockBulletedListItem, "b"),
		textBlock(docmodel.BlockNumberedListItem, "one"),
		textBlock(docmodel.BlockNumberedListItem, "two"),
		textBlock(docmodel.BlockParagraph, "break"),
		textBlock(docmodel.BlockBulletedListItem, "c"),
	}

	out, report, err := NewRenderer().RenderSequence(blocks)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, 6, report.Rendered)

	assert.Contains(t, out, "<ul><li>a</li><li>b</li></ul>")
	assert.Contains(t, out, "<ol><li>one</li><li>two</li></ol>")
	assert.Contains(t, out, "<p>break</p>")
	assert.Contains(t, out, "<ul><li>c</li></ul>")
	// Consecutive same-type items share one container.
	assert.Equal(t, 2, strings.Count(out, "<ul>"))
	assert.Equal(t, 1, strings.Count(out, "<ol>"))
}

func TestNestedListChildren(t *testing.T) {
	block := docmodel.ContentBlock{
		Type:     docmodel.BlockBulletedListItem,
		RichText: []docmodel.RichTextSpan{{Text: "parent"}},
		Children: []docmodel.ContentBlock{
			textBlock(docmodel.BlockBulletedListItem, "child"),
		},
	}
	out, _ := renderOne(t, block)
	assert.Equal(t, "<ul><li>parent<ul><li>child</li></ul></li></ul>", out)
}

func TestUnknownTypePlaceholderAndSiblingSurvival(t *testing.T) {
	blocks := []docmodel.ContentBlock{
		textBlock(docmodel.BlockParagraph, "before"),
		{ID: "blk-2", Type: docmodel.BlockType("synced_block")},
		textBlock(docmodel.BlockParagraph, "after"),
	}

	out, report, err := NewRenderer().RenderSequence(blocks)
	require.NoError(t, err)

	assert.Contains(t, out, "<p>before</p>")
	assert.Contains(t, out, "<p>after</p>")
	assert.Contains(t, out, `<div class="render-error">Unable to render block (synced_block)</div>`)

	require.Equal(t, 1, report.Failed())
	assert.Equal(t, 2, report.Rendered)
	assert.Equal(t, "blk-2", report.Failures[0].BlockID)
	assert.Equal(t, docmodel.BlockType("synced_block"), report.Failures[0].Type)
}

func TestMalformedBlocksAreIsolated(t *testing.T) {
	blocks := []docmodel.ContentBlock{
		{Type: docmodel.BlockImage}, // no URL
		{Type: docmodel.BlockEquation},
		textBlock(docmodel.BlockParagraph, "survives"),
	}

	out, report, err := NewRenderer().RenderSequence(blocks)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed())
	assert.Contains(t, out, "<p>survives</p>")
	assert.Equal(t, 2, strings.Count(out, "render-error"))
}

func TestTableWithColumnHeader(t *testing.T) {
	cell := func(s string) []docmodel.RichTextSpan { return []docmodel.RichTextSpan{{Text: s}} }
	block := docmodel.ContentBlock{
		Type:            docmodel.BlockTable,
		HasColumnHeader: true,
		Rows: []docmodel.TableRow{
			{Cells: [][]docmodel.RichTextSpan{cell("H1"), cell("H2")}},
			{Cells: [][]docmodel.RichTextSpan{cell("a"), cell("b")}},
		},
	}

	out, report := renderOne(t, block)
	assert.Equal(t, 0, report.Failed())
	assert.Contains(t, out, "<thead><tr><th>H1</th><th>H2</th></tr></thead>")
	assert.Contains(t, out, "<tbody><tr><td>a</td><td>b</td></tr></tbody>")
}

func TestTableRowHeaderUsesThFirstCell(t *testing.T) {
	cell := func(s string) []docmodel.RichTextSpan { return []docmodel.RichTextSpan{{Text: s}} }
	block := docmodel.ContentBlock{
		Type:         docmodel.BlockTable,
		HasRowHeader: true,
		Rows: []docmodel.TableRow{
			{Cells: [][]docmodel.RichTextSpan{cell("name"), cell("v")}},
		},
	}
	out, _ := renderOne(t, block)
	assert.Contains(t, out, "<tr><th>name</th><td>v</td></tr>")
}

func TestEmptyTablePlaceholder(t *testing.T) {
	out, report := renderOne(t, docmodel.ContentBlock{Type: docmodel.BlockTable})
	assert.Equal(t, 0, report.Failed())
	assert.Contains(t, out, "Empty table")
}

func TestImageWithCaption(t *testing.T) {
	block := docmodel.ContentBlock{
		Type:     docmodel.BlockImage,
		ImageURL: "https://example.com/a.png",
		Caption:  []docmodel.RichTextSpan{{Text: "diagram"}},
	}
	out, _ := renderOne(t, block)
	assert.Contains(t, out, `<img src="https://example.com/a.png"`)
	assert.Contains(t, out, "<figcaption>diagram</figcaption>")
}

func TestDivider(t *testing.T) {
	out, _ := renderOne(t, docmodel.ContentBlock{Type: docmodel.BlockDivider})
	assert.Equal(t, "<hr/>", out)
}

func TestToDoCheckedState(t *testing.T) {
	unchecked, _ := renderOne(t, textBlock(docmodel.BlockToDo, "task"))
	assert.Contains(t, unchecked, "☐")
	assert.NotContains(t, unchecked, "checked")

	block := textBlock(docmodel.BlockToDo, "done")
	block.Checked = true
	checked, _ := renderOne(t, block)
	assert.Contains(t, checked, "☑")
	assert.Contains(t, checked, `class="todo-item checked"`)
}

func TestToggleRendersDetails(t *testing.T) {
	block := docmodel.ContentBlock{
		Type:     docmodel.BlockToggle,
		RichText: []docmodel.RichTextSpan{{Text: "More"}},
		Children: []docmodel.ContentBlock{textBlock(docmodel.BlockParagraph, "hidden")},
	}
	out, _ := renderOne(t, block)
	assert.Contains(t, out, "<details")
	assert.Contains(t, out, "<summary>More</summary>")
	assert.Contains(t, out, "<p>hidden</p>")
}

func TestEquation(t *testing.T) {
	out, _ := renderOne(t, docmodel.ContentBlock{Type: docmodel.BlockEquation, Expression: `E = mc^2`})
	assert.Equal(t, `<div class="equation">$$E = mc^2$$</div>`, out)
}

func TestCalloutDefaultIcon(t *testing.T) {
	out, _ := renderOne(t, textBlock(docmodel.BlockCallout, "note"))
	assert.Contains(t, out, "\U0001F4A1")

	block := textBlock(docmodel.BlockCallout, "warn")
	block.Icon = "⚠️"
	out, _ = renderOne(t, block)
	assert.Contains(t, out, "⚠️")
}
