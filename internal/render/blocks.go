package render

import (
	"fmt"
	"html"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
)

// BlockFailure records one isolated block rendering failure.
type BlockFailure struct {
	BlockID string
	Type    docmodel.BlockType
	Err     error
}

// Report accumulates the outcome of a render pass. Failures never
// propagate as errors; they surface here and as inline placeholders.
type Report struct {
	Rendered int
	Failures []BlockFailure
}

// Failed returns the number of blocks replaced by a placeholder.
func (r *Report) Failed() int { return len(r.Failures) }

type renderFunc func(*Renderer, docmodel.ContentBlock, *Report) (string, error)

// Renderer dispatches content blocks by type to type-specific render
// functions. Adding a block type means adding one entry to the dispatch
// map; control flow elsewhere is unchanged.
type Renderer struct {
	funcs map[docmodel.BlockType]renderFunc
}

// NewRenderer constructs a Renderer with the full dispatch map.
func NewRenderer() *Renderer {
	r := &Renderer{}
	r.funcs = map[docmodel.BlockType]renderFunc{
		docmodel.BlockParagraph:        (*Renderer).renderParagraph,
		docmodel.BlockHeading1:         (*Renderer).renderHeading,
		docmodel.BlockHeading2:         (*Renderer).renderHeading,
		docmodel.BlockHeading3:         (*Renderer).renderHeading,
		docmodel.BlockBulletedListItem: (*Renderer).renderListItem,
		docmodel.BlockNumberedListItem: (*Renderer).renderListItem,
		docmodel.BlockCode:             (*Renderer).renderCode,
		docmodel.BlockQuote:            (*Renderer).renderQuote,
		docmodel.BlockCallout:          (*Renderer).renderCallout,
		docmodel.BlockTable:            (*Renderer).renderTable,
		docmodel.BlockImage:            (*Renderer).renderImage,
		docmodel.BlockDivider:          (*Renderer).renderDivider,
		docmodel.BlockToDo:             (*Renderer).renderToDo,
		docmodel.BlockToggle:           (*Renderer).renderToggle,
		docmodel.BlockEquation:         (*Renderer).renderEquation,
	}
	return r
}

// RenderSequence renders an ordered block sequence to a single HTML
// fragment. Consecutive list-item siblings of the same type are grouped
// into one list container. Content-shape problems (unknown types,
// malformed fields, formatter panics) are isolated per block and
// reported; the only returned error is a programming-contract violation.
func (r *Renderer) RenderSequence(blocks []docmodel.ContentBlock) (string, *Report, error) {
	if r == nil || r.funcs == nil {
		return "", nil, fmt.Errorf("render: Renderer must be constructed with NewRenderer")
	}
	report := &Report{}
	fragment := r.renderSequence(blocks, report)
	return fragment, report, nil
}

func (r *Renderer) renderSequence(blocks []docmodel.ContentBlock, report *Report) string {
	var parts []string
	var listTag string
	var listItems []string

	flushList := func() {
		if listTag != "" && len(listItems) > 0 {
			parts = append(parts, "<"+listTag+">"+strings.Join(listItems, "")+"</"+listTag+">")
		}
		listTag = ""
		listItems = nil
	}

	for _, block := range blocks {
		switch block.Type {
		case docmodel.BlockBulletedListItem, docmodel.BlockNumberedListItem:
			tag := "ul"
			if block.Type == docmodel.BlockNumberedListItem {
				tag = "ol"
			}
			if listTag != tag {
				flushList()
				listTag = tag
			}
			listItems = append(listItems, r.renderBlock(block, report))
		default:
			flushList()
			parts = append(parts, r.renderBlock(block, report))
		}
	}
	flushList()

	return strings.Join(parts, "\n")
}

// renderBlock is the isolation boundary: any error or panic from a
// type-specific render function becomes a visible placeholder fragment
// and a Report entry, never an unwound page render.
func (r *Renderer) renderBlock(block docmodel.ContentBlock, report *Report) (fragment string) {
	defer func() {
		if rec := recover(); rec != nil {
			fragment = r.recordFailure(block, fmt.Errorf("panic: %v", rec), report)
		}
	}()

	fn, ok := r.funcs[block.Type]
	if !ok {
		return r.recordFailure(block, fmt.Errorf("unsupported block type %q", block.Type), report)
	}

	out, err := fn(r, block, report)
	if err != nil {
		return r.recordFailure(block, err, report)
	}
	report.Rendered++
	return out
}

func (r *Renderer) recordFailure(block docmodel.ContentBlock, err error, report *Report) string {
	report.Failures = append(report.Failures, BlockFailure{BlockID: block.ID, Type: block.Type, Err: err})
	slog.Warn("Block render failed, emitting placeholder",
		logfields.BlockID(block.ID),
		logfields.BlockType(string(block.Type)),
		logfields.Error(err))
	return `<div class="render-error">Unable to render block (` + html.EscapeString(string(block.Type)) + `)</div>`
}

// renderChildren renders nested children inside a wrapper div, or
// nothing when the block has none.
func (r *Renderer) renderChildren(block docmodel.ContentBlock, report *Report) string {
	if len(block.Children) == 0 {
		return ""
	}
	return `<div class="block-children">` + r.renderSequence(block.Children, report) + `</div>`
}

func (r *Renderer) renderParagraph(block docmodel.ContentBlock, report *Report) (string, error) {
	text := FormatSpans(block.RichText, NewlineBreak)
	if text == "" {
		text = "&nbsp;"
	}
	return "<p>" + text + "</p>" + r.renderChildren(block, report), nil
}

func (r *Renderer) renderHeading(block docmodel.ContentBlock, report *Report) (string, error) {
	var tag string
	switch block.Type {
	case docmodel.BlockHeading1:
		tag = "h1"
	case docmodel.BlockHeading2:
		tag = "h2"
	case docmodel.BlockHeading3:
		tag = "h3"
	default:
		return "", fmt.Errorf("not a heading type: %s", block.Type)
	}
	return "<" + tag + ">" + FormatSpans(block.RichText, NewlineBreak) + "</" + tag + ">", nil
}

func (r *Renderer) renderListItem(block docmodel.ContentBlock, report *Report) (string, error) {
	// Nested children (sub-lists, paragraphs) render inside the item.
	inner := FormatSpans(block.RichText, NewlineBreak)
	if len(block.Children) > 0 {
		inner += r.renderSequence(block.Children, report)
	}
	return "<li>" + inner + "</li>", nil
}

func (r *Renderer) renderCode(block docmodel.ContentBlock, report *Report) (string, error) {
	var b strings.Builder
	b.WriteString(`<div class="code-block">`)
	if block.Language != "" && block.Language != "plain text" {
		b.WriteString(`<div class="code-header">` + html.EscapeString(block.Language) + `</div>`)
	}
	b.WriteString(`<pre><code>`)
	b.WriteString(FormatSpans(block.RichText, NewlinePreserve))
	b.WriteString(`</code></pre></div>`)
	return b.String(), nil
}

func (r *Renderer) renderQuote(block docmodel.ContentBlock, report *Report) (string, error) {
	return "<blockquote>" + FormatSpans(block.RichText, NewlinePreserve) +
		r.renderChildren(block, report) + "</blockquote>", nil
}

func (r *Renderer) renderCallout(block docmodel.ContentBlock, report *Report) (string, error) {
	icon := block.Icon
	if icon == "" {
		icon = "\U0001F4A1"
	}
	var b strings.Builder
	b.WriteString(`<div class="callout">`)
	b.WriteString(`<div class="callout-icon">` + html.EscapeString(icon) + `</div>`)
	b.WriteString(`<div class="callout-content">` + FormatSpans(block.RichText, NewlinePreserve))
	b.WriteString(r.renderChildren(block, report))
	b.WriteString(`</div></div>`)
	return b.String(), nil
}

func (r *Renderer) renderTable(block docmodel.ContentBlock, report *Report) (string, error) {
	rows := block.Rows
	// Tables fetched with row children instead of materialized rows.
	if len(rows) == 0 {
		for _, child := range block.Children {
			if child.Type == docmodel.BlockTableRow {
				rows = append(rows, docmodel.TableRow{Cells: cellsFromRowBlock(child)})
			}
		}
	}
	if len(rows) == 0 {
		return `<div class="table-wrapper"><table class="content-table"><tbody><tr><td class="table-placeholder">Empty table</td></tr></tbody></table></div>`, nil
	}

	var b strings.Builder
	b.WriteString(`<div class="table-wrapper"><table class="content-table">`)

	bodyRows := rows
	if block.HasColumnHeader {
		b.WriteString("<thead><tr>")
		for _, cell := range rows[0].Cells {
			b.WriteString("<th>" + FormatSpans(cell, NewlineBreak) + "</th>")
		}
		b.WriteString("</tr></thead>")
		bodyRows = rows[1:]
	}

	b.WriteString("<tbody>")
	for _, row := range bodyRows {
		b.WriteString("<tr>")
		for i, cell := range row.Cells {
			tag := "td"
			if block.HasRowHeader && i == 0 {
				tag = "th"
			}
			b.WriteString("<" + tag + ">" + FormatSpans(cell, NewlineBreak) + "</" + tag + ">")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table></div>")
	return b.String(), nil
}

func cellsFromRowBlock(row docmodel.ContentBlock) [][]docmodel.RichTextSpan {
	if len(row.Rows) == 1 {
		return row.Rows[0].Cells
	}
	return nil
}

func (r *Renderer) renderImage(block docmodel.ContentBlock, report *Report) (string, error) {
	if block.ImageURL == "" {
		return "", fmt.Errorf("image block without URL")
	}
	var b strings.Builder
	b.WriteString(`<figure class="image-block"><img src="` + html.EscapeString(block.ImageURL) + `" alt=""/>`)
	if caption := FormatSpans(block.Caption, NewlineBreak); caption != "" {
		b.WriteString("<figcaption>" + caption + "</figcaption>")
	}
	b.WriteString("</figure>")
	return b.String(), nil
}

func (r *Renderer) renderDivider(block docmodel.ContentBlock, report *Report) (string, error) {
	return "<hr/>", nil
}

func (r *Renderer) renderToDo(block docmodel.ContentBlock, report *Report) (string, error) {
	class := "todo-item"
	box := "☐"
	if block.Checked {
		class += " checked"
		box = "☑"
	}
	return `<div class="` + class + `"><span class="checkbox">` + box + `</span><span>` +
		FormatSpans(block.RichText, NewlineBreak) + `</span></div>` +
		r.renderChildren(block, report), nil
}

func (r *Renderer) renderToggle(block docmodel.ContentBlock, report *Report) (string, error) {
	var b strings.Builder
	b.WriteString(`<details class="toggle-block"><summary>`)
	b.WriteString(FormatSpans(block.RichText, NewlineBreak))
	b.WriteString("</summary>")
	b.WriteString(r.renderSequence(block.Children, report))
	b.WriteString("</details>")
	return b.String(), nil
}

func (r *Renderer) renderEquation(block docmodel.ContentBlock, report *Report) (string, error) {
	if block.Expression == "" {
		return "", fmt.Errorf("equation block without expression")
	}
	// Delimiters are rendered client-side by KaTeX auto-render.
	return `<div class="equation">$$` + html.EscapeString(block.Expression) + `$$</div>`, nil
}
