// Package site renders the published document set into a static site:
// one detail page per document, a paginated homepage, a client-side
// search index, and barcode images. Generation is idempotent: the same
// document set produces byte-identical output.
package site

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/intrahub/internal/barcode"
	"git.home.luguber.info/inful/intrahub/internal/config"
	"git.home.luguber.info/inful/intrahub/internal/docmodel"
	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
	"git.home.luguber.info/inful/intrahub/internal/render"
	"git.home.luguber.info/inful/intrahub/internal/stats"
)

//go:embed templates/*.tmpl templates/*.css
var templateFS embed.FS

const (
	documentsDir    = "documents"
	barcodesDir     = "barcodes"
	searchIndexFile = "search-index.json"
	excerptLimit    = 200
)

// CounterReader provides visit counters for detail pages and homepage
// rows. *stats.Store satisfies it.
type CounterReader interface {
	Get(assignedID string) stats.Counters
}

// Result summarizes one site generation run.
type Result struct {
	Documents      int
	Pages          int
	RenderFailures int
	Removed        int
}

// Generator writes the static site for a published document set.
type Generator struct {
	cfg      config.SiteConfig
	renderer *render.Renderer
	counters CounterReader

	docTmpl   *template.Template
	indexTmpl *template.Template
	docCSS    template.CSS
	indexCSS  template.CSS
}

// NewGenerator builds a Generator for the configured output directory.
func NewGenerator(cfg config.SiteConfig, counters CounterReader) (*Generator, error) {
	docTmpl, err := template.ParseFS(templateFS, "templates/document.html.tmpl")
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryInternal, huberr.SeverityFatal, "failed to parse document template")
	}
	indexTmpl, err := template.ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryInternal, huberr.SeverityFatal, "failed to parse index template")
	}
	docCSS, err := templateFS.ReadFile("templates/document.css")
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryInternal, huberr.SeverityFatal, "failed to read document stylesheet")
	}
	indexCSS, err := templateFS.ReadFile("templates/index.css")
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryInternal, huberr.SeverityFatal, "failed to read index stylesheet")
	}
	return &Generator{
		cfg:       cfg,
		renderer:  render.NewRenderer(),
		counters:  counters,
		docTmpl:   docTmpl,
		indexTmpl: indexTmpl,
		docCSS:    template.CSS(docCSS),
		indexCSS:  template.CSS(indexCSS),
	}, nil
}

// Generate writes the full site for docs: detail pages, barcodes, the
// paginated homepage, and the search index, then removes artifacts of
// documents no longer in the set. Every doc must carry an assigned ID.
func (g *Generator) Generate(docs []*docmodel.SourceDocument) (*Result, error) {
	for _, d := range docs {
		if d.AssignedID == "" {
			return nil, huberr.ValidationError("site: document without assigned ID").
				WithContext("source_id", d.SourceID)
		}
	}
	if err := g.ensureDirs(); err != nil {
		return nil, err
	}

	sorted := make([]*docmodel.SourceDocument, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		if g.cfg.SortOrder == "oldest" {
			return sorted[i].AssignedID < sorted[j].AssignedID
		}
		return sorted[i].AssignedID > sorted[j].AssignedID
	})

	result := &Result{Documents: len(sorted)}
	for _, doc := range sorted {
		failures, err := g.writeDocumentPage(doc)
		if err != nil {
			return nil, err
		}
		result.RenderFailures += failures
	}

	pages, err := g.writeHomepage(sorted)
	if err != nil {
		return nil, err
	}
	result.Pages = pages

	if err := g.writeSearchIndex(sorted); err != nil {
		return nil, err
	}

	removed, err := g.cleanup(sorted)
	if err != nil {
		return nil, err
	}
	result.Removed = removed

	slog.Info("Site generation complete",
		logfields.Count(result.Documents),
		slog.Int("pages", result.Pages),
		slog.Int("render_failures", result.RenderFailures),
		slog.Int("removed", result.Removed))
	return result, nil
}

type documentData struct {
	SiteTitle  string
	Title      string
	AssignedID string
	BarcodeURI template.URL
	Counters   stats.Counters
	Meta       docmodel.Attributes
	Content    template.HTML
	CSS        template.CSS
}

func (g *Generator) writeDocumentPage(doc *docmodel.SourceDocument) (int, error) {
	content, report, err := g.renderer.RenderSequence(doc.Blocks)
	if err != nil {
		return 0, err
	}
	if report.Failed() > 0 {
		slog.Warn("Document rendered with placeholders",
			logfields.DocID(doc.AssignedID), slog.Int("failed_blocks", report.Failed()))
	}

	if _, err := barcode.WriteFile(filepath.Join(g.cfg.OutputDir, barcodesDir), doc.AssignedID); err != nil {
		slog.Warn("Barcode file not written", logfields.DocID(doc.AssignedID), logfields.Error(err))
	}

	data := documentData{
		SiteTitle:  g.cfg.Title,
		Title:      doc.Title,
		AssignedID: doc.AssignedID,
		BarcodeURI: template.URL(barcode.DataURI(doc.AssignedID)),
		Counters:   g.counters.Get(doc.AssignedID),
		Meta:       doc.Meta,
		Content:    template.HTML(content),
		CSS:        g.docCSS,
	}

	var buf bytes.Buffer
	if err := g.docTmpl.Execute(&buf, data); err != nil {
		return 0, huberr.Wrap(err, huberr.CategorySite, huberr.SeverityError, "failed to execute document template").
			WithContext("doc_id", doc.AssignedID)
	}
	path := filepath.Join(g.cfg.OutputDir, documentsDir, doc.AssignedID+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return 0, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to write document page").
			WithContext("path", path)
	}
	return report.Failed(), nil
}

type indexRow struct {
	AssignedID string
	Title      string
	Category   string
	Author     string
	Version    string
	Tags       string
	Counters   stats.Counters
}

type pageLink struct {
	Label  string
	URL    string
	Active bool
}

type indexData struct {
	SiteTitle  string
	Rows       []indexRow
	Pagination []pageLink
	CSS        template.CSS
}

// writeHomepage writes index.html plus page-N.html for the overflow
// pages. An empty document set still produces an index.html.
func (g *Generator) writeHomepage(docs []*docmodel.SourceDocument) (int, error) {
	pageSize := g.cfg.PageSize
	totalPages := (len(docs) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	for page := 1; page <= totalPages; page++ {
		start := (page - 1) * pageSize
		end := start + pageSize
		if end > len(docs) {
			end = len(docs)
		}

		rows := make([]indexRow, 0, end-start)
		for _, doc := range docs[start:end] {
			rows = append(rows, indexRow{
				AssignedID: doc.AssignedID,
				Title:      doc.Title,
				Category:   metaOrDash(doc.Meta, "CATEGORY"),
				Author:     metaOrDash(doc.Meta, "AUTHOR"),
				Version:    metaOrDash(doc.Meta, "VERSION"),
				Tags:       metaOrDash(doc.Meta, "TAGS"),
				Counters:   g.counters.Get(doc.AssignedID),
			})
		}

		data := indexData{
			SiteTitle:  g.cfg.Title,
			Rows:       rows,
			Pagination: paginationLinks(page, totalPages),
			CSS:        g.indexCSS,
		}

		var buf bytes.Buffer
		if err := g.indexTmpl.Execute(&buf, data); err != nil {
			return 0, huberr.Wrap(err, huberr.CategorySite, huberr.SeverityError, "failed to execute index template").
				WithContext("page", strconv.Itoa(page))
		}
		path := filepath.Join(g.cfg.OutputDir, pageFileName(page))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return 0, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to write homepage").
				WithContext("path", path)
		}
	}
	return totalPages, nil
}

func pageFileName(page int) string {
	if page == 1 {
		return "index.html"
	}
	return "page-" + strconv.Itoa(page) + ".html"
}

// paginationLinks builds the prev / numbered / next link row. A single
// page gets no pagination at all.
func paginationLinks(current, total int) []pageLink {
	if total <= 1 {
		return nil
	}
	var links []pageLink
	if current > 1 {
		links = append(links, pageLink{Label: "← Previous", URL: "/" + pageFileName(current-1)})
	}
	for i := 1; i <= total; i++ {
		links = append(links, pageLink{
			Label:  strconv.Itoa(i),
			URL:    "/" + pageFileName(i),
			Active: i == current,
		})
	}
	if current < total {
		links = append(links, pageLink{Label: "Next →", URL: "/" + pageFileName(current+1)})
	}
	return links
}

type searchEntry struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Author   string `json:"author"`
	Tags     string `json:"tags"`
	Excerpt  string `json:"excerpt"`
	URL      string `json:"url"`
}

// writeSearchIndex emits the client-side search index. Excerpts are
// NFC-normalized so the same logical text always indexes identically.
func (g *Generator) writeSearchIndex(docs []*docmodel.SourceDocument) error {
	index := make([]searchEntry, 0, len(docs))
	for _, doc := range docs {
		index = append(index, searchEntry{
			DocID:    doc.AssignedID,
			Title:    doc.Title,
			Category: doc.Meta.Get("CATEGORY"),
			Author:   doc.Meta.Get("AUTHOR"),
			Tags:     doc.Meta.Get("TAGS"),
			Excerpt:  norm.NFC.String(doc.Excerpt(excerptLimit)),
			URL:      "/documents/" + doc.AssignedID + ".html",
		})
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return huberr.Wrap(err, huberr.CategorySite, huberr.SeverityError, "failed to marshal search index")
	}
	path := filepath.Join(g.cfg.OutputDir, searchIndexFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to write search index").
			WithContext("path", path)
	}
	return nil
}

// cleanup removes detail pages and barcodes for documents that dropped
// out of the published set.
func (g *Generator) cleanup(docs []*docmodel.SourceDocument) (int, error) {
	keep := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		keep[doc.AssignedID] = struct{}{}
	}

	removed := 0
	for _, sub := range []struct{ dir, ext string }{
		{documentsDir, ".html"},
		{barcodesDir, ".png"},
	} {
		dir := filepath.Join(g.cfg.OutputDir, sub.dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to scan output directory").
				WithContext("path", dir)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, sub.ext) {
				continue
			}
			id := strings.TrimSuffix(name, sub.ext)
			if _, ok := keep[id]; ok {
				continue
			}
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				slog.Warn("Failed to remove stale artifact", logfields.Path(name), logfields.Error(err))
				continue
			}
			slog.Info("Removed unpublished artifact", logfields.Path(filepath.Join(sub.dir, name)))
			removed++
		}
	}
	return removed, nil
}

func (g *Generator) ensureDirs() error {
	for _, dir := range []string{
		g.cfg.OutputDir,
		filepath.Join(g.cfg.OutputDir, documentsDir),
		filepath.Join(g.cfg.OutputDir, barcodesDir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to create output directory").
				WithContext("path", dir)
		}
	}
	return nil
}

func metaOrDash(meta docmodel.Attributes, name string) string {
	if v := meta.Get(name); v != "" {
		return v
	}
	return "-"
}
