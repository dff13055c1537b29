// Package integration exercises the full publishing pipeline against an
// in-memory source database: fetch, allocation, caching, diffing,
// write-back, and static site generation working together on a real
// filesystem.
package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/intrahub/internal/allocator"
	"git.home.luguber.info/inful/intrahub/internal/cache"
	"git.home.luguber.info/inful/intrahub/internal/config"
	"git.home.luguber.info/inful/intrahub/internal/docmodel"
	"git.home.luguber.info/inful/intrahub/internal/site"
	"git.home.luguber.info/inful/intrahub/internal/source"
	"git.home.luguber.info/inful/intrahub/internal/stats"
	"git.home.luguber.info/inful/intrahub/internal/sync"
)

// memorySource is an in-memory Source. WriteBackID mutates the backing
// records so subsequent queries see assigned IDs, like the real
// database.
type memorySource struct {
	records []source.Record
	blocks  map[string][]docmodel.ContentBlock
}

func (m *memorySource) QueryAll(context.Context) ([]source.Record, error) {
	out := make([]source.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memorySource) FetchBlocks(_ context.Context, sourceID string) ([]docmodel.ContentBlock, error) {
	return m.blocks[sourceID], nil
}

func (m *memorySource) WriteBackID(_ context.Context, sourceID, assignedID string) error {
	for i := range m.records {
		if m.records[i].SourceID == sourceID {
			m.records[i].AssignedID = assignedID
		}
	}
	return nil
}

// pipeline bundles the collaborators for one test run over shared
// data and output directories.
type pipeline struct {
	src       *memorySource
	orch      *sync.Orchestrator
	generator *site.Generator
}

func newPipeline(t *testing.T, src *memorySource, dataDir, outputDir string) *pipeline {
	t.Helper()

	ledger, err := allocator.Open(dataDir)
	require.NoError(t, err)
	contentCache, err := cache.Open(dataDir)
	require.NoError(t, err)
	counters, err := stats.Open(dataDir)
	require.NoError(t, err)

	generator, err := site.NewGenerator(config.SiteConfig{
		OutputDir: outputDir,
		Title:     "INTRA-HUB",
		PageSize:  10,
		SortOrder: "newest",
	}, counters)
	require.NoError(t, err)

	return &pipeline{
		src:       src,
		orch:      sync.NewOrchestrator(src, ledger, contentCache, nil),
		generator: generator,
	}
}

// runOnce executes one sync cycle plus site generation.
func (p *pipeline) runOnce(t *testing.T) (*sync.CycleResult, *site.Result) {
	t.Helper()

	cycle, err := p.orch.RunCycle(context.Background())
	require.NoError(t, err)
	siteResult, err := p.generator.Generate(cycle.Published)
	require.NoError(t, err)
	return cycle, siteResult
}

func paragraphBlocks(text string) []docmodel.ContentBlock {
	return []docmodel.ContentBlock{
		{Type: docmodel.BlockParagraph, RichText: []docmodel.RichTextSpan{{Text: text}}},
	}
}
