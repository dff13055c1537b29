package docmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func spans(texts ...string) []RichTextSpan {
	out := make([]RichTextSpan, 0, len(texts))
	for _, t := range texts {
		out = append(out, RichTextSpan{Text: t})
	}
	return out
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "", PlainText(nil))
	assert.Equal(t, "hello world", PlainText(spans("hello ", "world")))
}

func TestAttributesGet(t *testing.T) {
	attrs := Attributes{
		{Name: "Category", Value: "HR"},
		{Name: "Author", Value: "mika"},
	}
	assert.Equal(t, "HR", attrs.Get("Category"))
	assert.Equal(t, "", attrs.Get("Version"))
	assert.Equal(t, "", Attributes(nil).Get("anything"))
}

func TestExcerptWalksChildrenAndTableRows(t *testing.T) {
	doc := &SourceDocument{
		Blocks: []ContentBlock{
			{Type: BlockHeading1, RichText: spans("Intro")},
			{
				Type:     BlockParagraph,
				RichText: spans("  body  "),
				Children: []ContentBlock{
					{Type: BlockParagraph, RichText: spans("nested")},
				},
			},
			{
				Type: BlockTable,
				Rows: []TableRow{
					{Cells: [][]RichTextSpan{spans("cell1"), spans("cell2")}},
				},
			},
		},
	}

	assert.Equal(t, "Intro body nested cell1 cell2", doc.Excerpt(0))
}

func TestExcerptTruncatesAtRuneLimit(t *testing.T) {
	doc := &SourceDocument{
		Blocks: []ContentBlock{
			{Type: BlockParagraph, RichText: spans("héllo wörld with accénts")},
		},
	}

	got := doc.Excerpt(8)
	assert.Equal(t, "héllo wö", got)
	assert.Equal(t, 8, len([]rune(got)))
}

func TestExcerptSkipsEmptyBlocks(t *testing.T) {
	doc := &SourceDocument{
		Blocks: []ContentBlock{
			{Type: BlockParagraph},
			{Type: BlockDivider},
			{Type: BlockParagraph, RichText: spans("only")},
			{Type: BlockParagraph, RichText: spans("   ")},
		},
	}
	assert.Equal(t, "only", doc.Excerpt(200))
	assert.False(t, strings.Contains(doc.Excerpt(200), "  "))
}
