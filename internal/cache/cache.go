// Package cache persists fetched documents across sync cycles.
//
// The cache stores one JSON record per source document plus a
// denormalized index of currently-published documents keyed by assigned
// ID. It is fully rebuildable from the source database: any unreadable
// record is treated as absent and re-fetched, never as a fatal failure.
package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
)

const (
	cacheSubdir   = "cache"
	publishedFile = "published.json"
	docFilePrefix = "doc-"
)

// IndexEntry is one row of the denormalized published index, carrying
// what the site generator needs without loading full block trees.
type IndexEntry struct {
	AssignedID string              `json:"assigned_id"`
	SourceID   string              `json:"source_id"`
	Title      string              `json:"title"`
	Meta       docmodel.Attributes `json:"meta,omitempty"`
}

// Cache is a file-backed content cache. Writes are last-write-wins per
// document; there is no versioning.
type Cache struct {
	dir string
}

// Open prepares the cache directory under dataDir.
func Open(dataDir string) (*Cache, error) {
	dir := filepath.Join(dataDir, cacheSubdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to create cache directory")
	}
	return &Cache{dir: dir}, nil
}

// Put persists a document record atomically.
func (c *Cache) Put(doc *docmodel.SourceDocument) error {
	if doc == nil || doc.SourceID == "" {
		return huberr.ValidationError("cache: document with empty source ID")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return huberr.Wrap(err, huberr.CategoryCache, huberr.SeverityError, "failed to marshal document").
			WithContext("source_id", doc.SourceID)
	}
	return c.writeAtomic(c.docPath(doc.SourceID), data)
}

// Get returns the cached document for sourceID. A missing or corrupt
// record reads as absent; corruption is logged and the caller re-fetches.
func (c *Cache) Get(sourceID string) (*docmodel.SourceDocument, bool) {
	data, err := os.ReadFile(c.docPath(sourceID))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Cache record unreadable, treating as absent",
				logfields.SourceID(sourceID), logfields.Error(err))
		}
		return nil, false
	}
	var doc docmodel.SourceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("Cache record corrupt, treating as absent",
			logfields.Error(huberr.CacheCorruption(err, sourceID)))
		return nil, false
	}
	return &doc, true
}

// ListAll returns every readable cached document, skipping corrupt
// records with a warning.
func (c *Cache) ListAll() ([]*docmodel.SourceDocument, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to read cache directory")
	}
	var docs []*docmodel.SourceDocument
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, docFilePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, name))
		if err != nil {
			slog.Warn("Cache record unreadable, skipping", logfields.Path(name), logfields.Error(err))
			continue
		}
		var doc docmodel.SourceDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			id := strings.TrimSuffix(strings.TrimPrefix(name, docFilePrefix), ".json")
			slog.Warn("Cache record corrupt, skipping",
				logfields.Path(name), logfields.Error(huberr.CacheCorruption(err, id)))
			continue
		}
		docs = append(docs, &doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceID < docs[j].SourceID })
	return docs, nil
}

// ListPublished returns the cached documents named by the published
// index, in index order.
func (c *Cache) ListPublished() ([]*docmodel.SourceDocument, error) {
	index, err := c.LoadPublishedIndex()
	if err != nil {
		return nil, err
	}
	var docs []*docmodel.SourceDocument
	for _, entry := range index {
		if doc, ok := c.Get(entry.SourceID); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// LoadPublishedIndex returns the previous cycle's published index. A
// missing or corrupt index reads as empty: the next cycle rebuilds it.
func (c *Cache) LoadPublishedIndex() ([]IndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, publishedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to read published index")
	}
	var index []IndexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		slog.Warn("Published index corrupt, treating as empty", logfields.Error(err))
		return nil, nil
	}
	return index, nil
}

// SavePublishedIndex replaces the published index atomically.
func (c *Cache) SavePublishedIndex(index []IndexEntry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return huberr.Wrap(err, huberr.CategoryCache, huberr.SeverityError, "failed to marshal published index")
	}
	return c.writeAtomic(filepath.Join(c.dir, publishedFile), data)
}

func (c *Cache) docPath(sourceID string) string {
	return filepath.Join(c.dir, docFilePrefix+sanitizeID(sourceID)+".json")
}

// sanitizeID keeps source IDs filesystem-safe.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func (c *Cache) writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to write cache temp file").
			WithContext("path", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to replace cache file").
			WithContext("path", path)
	}
	return nil
}
