// Package docmodel defines the document content model shared by the sync
// pipeline, the content cache, and the renderer: a source document with
// ordered metadata attributes and a tree of typed content blocks carrying
// styled rich text spans.
package docmodel

import (
	"strings"
	"time"
)

// BlockType identifies the kind of a content block. The set is closed:
// the renderer dispatches exhaustively over these values and maps
// anything else to an unsupported-block placeholder.
type BlockType string

const (
	BlockParagraph        BlockType = "paragraph"
	BlockHeading1         BlockType = "heading_1"
	BlockHeading2         BlockType = "heading_2"
	BlockHeading3         BlockType = "heading_3"
	BlockBulletedListItem BlockType = "bulleted_list_item"
	BlockNumberedListItem BlockType = "numbered_list_item"
	BlockCode             BlockType = "code"
	BlockQuote            BlockType = "quote"
	BlockCallout          BlockType = "callout"
	BlockTable            BlockType = "table"
	BlockTableRow         BlockType = "table_row"
	BlockImage            BlockType = "image"
	BlockDivider          BlockType = "divider"
	BlockToDo             BlockType = "to_do"
	BlockToggle           BlockType = "toggle"
	BlockEquation         BlockType = "equation"
)

// Annotations is the set of inline style flags on a rich text span.
type Annotations struct {
	Bold          bool `json:"bold,omitempty"`
	Italic        bool `json:"italic,omitempty"`
	Strikethrough bool `json:"strikethrough,omitempty"`
	Underline     bool `json:"underline,omitempty"`
	Code          bool `json:"code,omitempty"`
}

// RichTextSpan is a styled run of text within a block. Newlines inside
// Text are significant: preformatted block types must preserve them
// byte-for-byte.
type RichTextSpan struct {
	Text        string      `json:"text"`
	Annotations Annotations `json:"annotations,omitempty"`
	Link        string      `json:"link,omitempty"`
}

// TableRow is one row of a table block.
type TableRow struct {
	Cells [][]RichTextSpan `json:"cells"`
}

// ContentBlock is a typed node in a document's block tree. Type-specific
// fields are flattened; only the fields relevant to the block's type are
// populated.
type ContentBlock struct {
	ID       string         `json:"id,omitempty"`
	Type     BlockType      `json:"type"`
	RichText []RichTextSpan `json:"rich_text,omitempty"`
	Children []ContentBlock `json:"children,omitempty"`

	// code
	Language string `json:"language,omitempty"`
	// callout
	Icon string `json:"icon,omitempty"`
	// table
	HasColumnHeader bool       `json:"has_column_header,omitempty"`
	HasRowHeader    bool       `json:"has_row_header,omitempty"`
	Rows            []TableRow `json:"rows,omitempty"`
	// image
	ImageURL string         `json:"image_url,omitempty"`
	Caption  []RichTextSpan `json:"caption,omitempty"`
	// to_do
	Checked bool `json:"checked,omitempty"`
	// equation
	Expression string `json:"expression,omitempty"`
}

// Attribute is one optional document property (category, tags, author,
// version, ...). Order is preserved from the source.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attributes is an ordered list of document properties.
type Attributes []Attribute

// Get returns the value for name, or "" when absent.
func (a Attributes) Get(name string) string {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value
		}
	}
	return ""
}

// SourceDocument is one record from the external content database,
// rebuilt on every sync cycle. AssignedID is empty until the allocator
// issues a permanent identifier.
type SourceDocument struct {
	SourceID      string         `json:"source_id"`
	Title         string         `json:"title"`
	Publish       bool           `json:"publish"`
	AssignedID    string         `json:"assigned_id,omitempty"`
	Meta          Attributes     `json:"meta,omitempty"`
	Blocks        []ContentBlock `json:"blocks,omitempty"`
	LastFetchedAt time.Time      `json:"last_fetched_at"`
}

// PlainText flattens a span sequence to its raw text.
func PlainText(spans []RichTextSpan) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Excerpt extracts the document's visible text up to limit runes,
// joining blocks with single spaces. Used for the search index.
func (d *SourceDocument) Excerpt(limit int) string {
	var parts []string
	var walk func(blocks []ContentBlock)
	walk = func(blocks []ContentBlock) {
		for _, b := range blocks {
			if t := strings.TrimSpace(PlainText(b.RichText)); t != "" {
				parts = append(parts, t)
			}
			for _, row := range b.Rows {
				for _, cell := range row.Cells {
					if t := strings.TrimSpace(PlainText(cell)); t != "" {
						parts = append(parts, t)
					}
				}
			}
			walk(b.Children)
		}
	}
	walk(d.Blocks)

	joined := strings.Join(parts, " ")
	runes := []rune(joined)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit])
	}
	return joined
}
