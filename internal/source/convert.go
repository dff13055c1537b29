package source

import (
	"github.com/jomei/notionapi"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
)

// convertBlock maps one wire-format block to the content model. Unknown
// block kinds keep their reported type string so the renderer can emit
// its unsupported-block placeholder for them.
func convertBlock(raw notionapi.Block) docmodel.ContentBlock {
	block := docmodel.ContentBlock{
		ID:   raw.GetID().String(),
		Type: docmodel.BlockType(raw.GetType()),
	}

	switch b := raw.(type) {
	case *notionapi.ParagraphBlock:
		block.RichText = spansFromRichText(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		block.RichText = spansFromRichText(b.Heading1.RichText)
	case *notionapi.Heading2Block:
		block.RichText = spansFromRichText(b.Heading2.RichText)
	case *notionapi.Heading3Block:
		block.RichText = spansFromRichText(b.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		block.RichText = spansFromRichText(b.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		block.RichText = spansFromRichText(b.NumberedListItem.RichText)
	case *notionapi.CodeBlock:
		block.RichText = spansFromRichText(b.Code.RichText)
		block.Language = b.Code.Language
	case *notionapi.QuoteBlock:
		block.RichText = spansFromRichText(b.Quote.RichText)
	case *notionapi.CalloutBlock:
		block.RichText = spansFromRichText(b.Callout.RichText)
		if b.Callout.Icon != nil && b.Callout.Icon.Emoji != nil {
			block.Icon = string(*b.Callout.Icon.Emoji)
		}
	case *notionapi.TableBlock:
		block.HasColumnHeader = b.Table.HasColumnHeader
		block.HasRowHeader = b.Table.HasRowHeader
	case *notionapi.TableRowBlock:
		block.Rows = []docmodel.TableRow{{Cells: cellsFromWire(b.TableRow.Cells)}}
	case *notionapi.ImageBlock:
		block.ImageURL = imageURL(b.Image)
		block.Caption = spansFromRichText(b.Image.Caption)
	case *notionapi.DividerBlock:
		// no payload
	case *notionapi.ToDoBlock:
		block.RichText = spansFromRichText(b.ToDo.RichText)
		block.Checked = b.ToDo.Checked
	case *notionapi.ToggleBlock:
		block.RichText = spansFromRichText(b.Toggle.RichText)
	case *notionapi.EquationBlock:
		block.Expression = b.Equation.Expression
	}

	return block
}

// attachChildren hangs fetched children off their parent. Table rows are
// materialized into the table's Rows so the renderer never walks
// children for tables; everything else nests as Children.
func attachChildren(block *docmodel.ContentBlock, children []docmodel.ContentBlock) {
	if block.Type == docmodel.BlockTable {
		for _, child := range children {
			if child.Type == docmodel.BlockTableRow {
				block.Rows = append(block.Rows, child.Rows...)
				continue
			}
			block.Children = append(block.Children, child)
		}
		return
	}
	block.Children = children
}

func spansFromRichText(spans []notionapi.RichText) []docmodel.RichTextSpan {
	if len(spans) == 0 {
		return nil
	}
	out := make([]docmodel.RichTextSpan, 0, len(spans))
	for _, s := range spans {
		span := docmodel.RichTextSpan{Text: s.PlainText}
		if s.Text != nil {
			if s.Text.Content != "" {
				span.Text = s.Text.Content
			}
			if s.Text.Link != nil {
				span.Link = s.Text.Link.Url
			}
		}
		if span.Link == "" && s.Href != "" {
			span.Link = s.Href
		}
		if a := s.Annotations; a != nil {
			span.Annotations = docmodel.Annotations{
				Bold:          a.Bold,
				Italic:        a.Italic,
				Strikethrough: a.Strikethrough,
				Underline:     a.Underline,
				Code:          a.Code,
			}
		}
		out = append(out, span)
	}
	return out
}

func cellsFromWire(cells [][]notionapi.RichText) [][]docmodel.RichTextSpan {
	out := make([][]docmodel.RichTextSpan, 0, len(cells))
	for _, cell := range cells {
		out = append(out, spansFromRichText(cell))
	}
	return out
}

func imageURL(img notionapi.Image) string {
	switch {
	case img.File != nil:
		return img.File.URL
	case img.External != nil:
		return img.External.URL
	default:
		return ""
	}
}
