package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
	"git.home.luguber.info/inful/intrahub/internal/source"
)

// TestPipeline_FirstPublish verifies the full path for a fresh database:
// IDs allocated densely, written back to the source, and the site
// written with detail pages, barcodes, homepage, and search index.
func TestPipeline_FirstPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	src := &memorySource{
		records: []source.Record{
			{SourceID: "src-a", Title: "Expense Policy", Publish: true,
				Meta: docmodel.Attributes{{Name: "CATEGORY", Value: "Finance"}}},
			{SourceID: "src-b", Title: "Onboarding", Publish: true},
			{SourceID: "src-draft", Title: "Draft", Publish: false},
		},
		blocks: map[string][]docmodel.ContentBlock{
			"src-a": paragraphBlocks("expenses are reimbursed monthly"),
			"src-b": paragraphBlocks("welcome aboard"),
		},
	}

	dataDir, outputDir := t.TempDir(), t.TempDir()
	p := newPipeline(t, src, dataDir, outputDir)
	cycle, siteResult := p.runOnce(t)

	require.Len(t, cycle.Published, 2)
	assert.Len(t, cycle.NewlyPublished, 2)
	assert.Equal(t, 2, siteResult.Documents)
	assert.Equal(t, 1, siteResult.Pages)

	// Write-back landed on the source records.
	for _, rec := range src.records {
		if rec.Publish {
			assert.NotEmpty(t, rec.AssignedID, "record %s should carry its ID", rec.SourceID)
		} else {
			assert.Empty(t, rec.AssignedID)
		}
	}

	// Site artifacts on disk.
	assert.FileExists(t, filepath.Join(outputDir, "index.html"))
	assert.FileExists(t, filepath.Join(outputDir, "search-index.json"))
	assert.FileExists(t, filepath.Join(outputDir, "documents", "DOC-0001.html"))
	assert.FileExists(t, filepath.Join(outputDir, "barcodes", "DOC-0001.png"))

	// Draft never published.
	index, err := os.ReadFile(filepath.Join(outputDir, "index.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(index), "Draft")
}

// TestPipeline_Steady verifies that rerunning an unchanged source is a
// no-op: same IDs, byte-identical site, no new allocations.
func TestPipeline_Steady(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	src := &memorySource{
		records: []source.Record{{SourceID: "src-a", Title: "Policy", Publish: true}},
		blocks:  map[string][]docmodel.ContentBlock{"src-a": paragraphBlocks("stable content")},
	}

	dataDir, outputDir := t.TempDir(), t.TempDir()
	p := newPipeline(t, src, dataDir, outputDir)

	first, _ := p.runOnce(t)
	firstPage, err := os.ReadFile(filepath.Join(outputDir, "documents", first.Published[0].AssignedID+".html"))
	require.NoError(t, err)

	second, _ := p.runOnce(t)
	assert.Empty(t, second.NewlyPublished)
	assert.Equal(t, []string{first.Published[0].AssignedID}, second.StillPublished)

	secondPage, err := os.ReadFile(filepath.Join(outputDir, "documents", second.Published[0].AssignedID+".html"))
	require.NoError(t, err)
	assert.Equal(t, firstPage, secondPage)
}

// TestPipeline_UnpublishRemovesArtifacts verifies that flipping PUBLISH
// off removes the document's site artifacts while its ID mapping stays
// permanent.
func TestPipeline_UnpublishRemovesArtifacts(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	src := &memorySource{
		records: []source.Record{
			{SourceID: "src-a", Title: "Keep", Publish: true},
			{SourceID: "src-b", Title: "Drop", Publish: true},
		},
		blocks: map[string][]docmodel.ContentBlock{
			"src-a": paragraphBlocks("keeps"),
			"src-b": paragraphBlocks("drops"),
		},
	}

	dataDir, outputDir := t.TempDir(), t.TempDir()
	p := newPipeline(t, src, dataDir, outputDir)
	first, _ := p.runOnce(t)
	require.Len(t, first.Published, 2)

	var droppedID string
	for _, doc := range first.Published {
		if doc.SourceID == "src-b" {
			droppedID = doc.AssignedID
		}
	}
	require.NotEmpty(t, droppedID)

	for i := range src.records {
		if src.records[i].SourceID == "src-b" {
			src.records[i].Publish = false
		}
	}
	second, siteResult := p.runOnce(t)
	assert.Equal(t, []string{droppedID}, second.NewlyUnpublished)
	assert.Equal(t, 2, siteResult.Removed)
	assert.NoFileExists(t, filepath.Join(outputDir, "documents", droppedID+".html"))
	assert.NoFileExists(t, filepath.Join(outputDir, "barcodes", droppedID+".png"))

	// Republish: the original ID comes back, never a new one.
	for i := range src.records {
		src.records[i].Publish = true
	}
	third, _ := p.runOnce(t)
	assert.Equal(t, []string{droppedID}, third.NewlyPublished)
	assert.FileExists(t, filepath.Join(outputDir, "documents", droppedID+".html"))
}

// TestPipeline_SearchIndexTracksPublishedSet verifies the search index
// always mirrors the current published set.
func TestPipeline_SearchIndexTracksPublishedSet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	src := &memorySource{
		records: []source.Record{{SourceID: "src-a", Title: "Searchable", Publish: true}},
		blocks:  map[string][]docmodel.ContentBlock{"src-a": paragraphBlocks("findable text body")},
	}

	dataDir, outputDir := t.TempDir(), t.TempDir()
	p := newPipeline(t, src, dataDir, outputDir)
	p.runOnce(t)

	data, err := os.ReadFile(filepath.Join(outputDir, "search-index.json"))
	require.NoError(t, err)
	var entries []map[string]string
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Searchable", entries[0]["title"])
	assert.Contains(t, entries[0]["excerpt"], "findable text body")

	src.records[0].Publish = false
	p.runOnce(t)

	data, err = os.ReadFile(filepath.Join(outputDir, "search-index.json"))
	require.NoError(t, err)
	entries = nil
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Empty(t, entries)
}
