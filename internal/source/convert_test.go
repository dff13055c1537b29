package source

import (
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
)

func wireText(text string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: text}}
}

func basic(id string, bt notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{ID: notionapi.BlockID(id), Type: bt}
}

func TestConvertBlockParagraph(t *testing.T) {
	raw := &notionapi.ParagraphBlock{
		BasicBlock: basic("blk-1", notionapi.BlockTypeParagraph),
		Paragraph:  notionapi.Paragraph{RichText: wireText("hello")},
	}

	block := convertBlock(raw)
	assert.Equal(t, "blk-1", block.ID)
	assert.Equal(t, docmodel.BlockParagraph, block.Type)
	require.Len(t, block.RichText, 1)
	assert.Equal(t, "hello", block.RichText[0].Text)
}

func TestConvertBlockCode(t *testing.T) {
	raw := &notionapi.CodeBlock{
		BasicBlock: basic("blk-2", notionapi.BlockTypeCode),
		Code:       notionapi.Code{RichText: wireText("x := 1\n"), Language: "go"},
	}

	block := convertBlock(raw)
	assert.Equal(t, docmodel.BlockCode, block.Type)
	assert.Equal(t, "go", block.Language)
	assert.Equal(t, "x := 1\n", block.RichText[0].Text)
}

func TestConvertBlockCallout(t *testing.T) {
	emoji := notionapi.Emoji("⚠️")
	raw := &notionapi.CalloutBlock{
		BasicBlock: basic("blk-3", notionapi.BlockTypeCallout),
		Callout: notionapi.Callout{
			RichText: wireText("careful"),
			Icon:     &notionapi.Icon{Type: "emoji", Emoji: &emoji},
		},
	}

	block := convertBlock(raw)
	assert.Equal(t, "⚠️", block.Icon)
	assert.Equal(t, "careful", block.RichText[0].Text)
}

func TestConvertBlockImageVariants(t *testing.T) {
	hosted := &notionapi.ImageBlock{
		BasicBlock: basic("blk-4", notionapi.BlockTypeImage),
		Image: notionapi.Image{
			File:    &notionapi.FileObject{URL: "https://files/a.png"},
			Caption: wireText("diagram"),
		},
	}
	block := convertBlock(hosted)
	assert.Equal(t, "https://files/a.png", block.ImageURL)
	assert.Equal(t, "diagram", block.Caption[0].Text)

	external := &notionapi.ImageBlock{
		BasicBlock: basic("blk-5", notionapi.BlockTypeImage),
		Image:      notionapi.Image{External: &notionapi.FileObject{URL: "https://ext/b.png"}},
	}
	assert.Equal(t, "https://ext/b.png", convertBlock(external).ImageURL)

	empty := &notionapi.ImageBlock{BasicBlock: basic("blk-6", notionapi.BlockTypeImage)}
	assert.Empty(t, convertBlock(empty).ImageURL)
}

func TestConvertBlockToDoAndEquation(t *testing.T) {
	todo := &notionapi.ToDoBlock{
		BasicBlock: basic("blk-7", notionapi.BlockTypeToDo),
		ToDo:       notionapi.ToDo{RichText: wireText("task"), Checked: true},
	}
	block := convertBlock(todo)
	assert.Equal(t, docmodel.BlockToDo, block.Type)
	assert.True(t, block.Checked)

	eq := &notionapi.EquationBlock{
		BasicBlock: basic("blk-8", notionapi.BlockTypeEquation),
		Equation:   notionapi.Equation{Expression: "a^2 + b^2"},
	}
	assert.Equal(t, "a^2 + b^2", convertBlock(eq).Expression)
}

func TestConvertBlockUnknownKeepsReportedType(t *testing.T) {
	raw := &notionapi.UnsupportedBlock{
		BasicBlock: basic("blk-9", notionapi.BlockType("synced_block")),
	}
	block := convertBlock(raw)
	assert.Equal(t, docmodel.BlockType("synced_block"), block.Type)
	assert.Empty(t, block.RichText)
}

func TestAttachChildrenMaterializesTableRows(t *testing.T) {
	table := docmodel.ContentBlock{Type: docmodel.BlockTable, HasColumnHeader: true}
	children := []docmodel.ContentBlock{
		{
			Type: docmodel.BlockTableRow,
			Rows: []docmodel.TableRow{{Cells: [][]docmodel.RichTextSpan{{{Text: "h1"}}}}},
		},
		{
			Type: docmodel.BlockTableRow,
			Rows: []docmodel.TableRow{{Cells: [][]docmodel.RichTextSpan{{{Text: "a"}}}}},
		},
	}

	attachChildren(&table, children)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "h1", table.Rows[0].Cells[0][0].Text)
	assert.Empty(t, table.Children)
}

func TestAttachChildrenNestsForOtherTypes(t *testing.T) {
	parent := docmodel.ContentBlock{Type: docmodel.BlockBulletedListItem}
	children := []docmodel.ContentBlock{{Type: docmodel.BlockBulletedListItem}}

	attachChildren(&parent, children)
	assert.Equal(t, children, parent.Children)
	assert.Empty(t, parent.Rows)
}

func TestSpansFromRichTextAnnotationsAndLinks(t *testing.T) {
	spans := spansFromRichText([]notionapi.RichText{
		{
			PlainText: "styled",
			Text:      &notionapi.Text{Content: "styled"},
			Annotations: &notionapi.Annotations{
				Bold: true, Italic: true, Strikethrough: true, Underline: true, Code: true,
			},
		},
		{
			PlainText: "linked",
			Text:      &notionapi.Text{Content: "linked", Link: &notionapi.Link{Url: "https://x"}},
		},
		{
			PlainText: "via href",
			Href:      "https://y",
		},
	})

	require.Len(t, spans, 3)
	assert.Equal(t, docmodel.Annotations{
		Bold: true, Italic: true, Strikethrough: true, Underline: true, Code: true,
	}, spans[0].Annotations)
	assert.Equal(t, "https://x", spans[1].Link)
	assert.Equal(t, "https://y", spans[2].Link)
}

func TestSpansFromRichTextEmpty(t *testing.T) {
	assert.Nil(t, spansFromRichText(nil))
}
