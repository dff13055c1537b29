// Package sync runs the periodic publishing cycle: fetch records from
// the source database, allocate permanent IDs, refresh the content
// cache, diff the published set against the previous cycle, and write
// assigned IDs back to the source.
//
// Cycles are idempotent: running twice against an unchanged source
// changes nothing.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/intrahub/internal/allocator"
	"git.home.luguber.info/inful/intrahub/internal/cache"
	"git.home.luguber.info/inful/intrahub/internal/docmodel"
	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
	"git.home.luguber.info/inful/intrahub/internal/metrics"
	"git.home.luguber.info/inful/intrahub/internal/observability"
	"git.home.luguber.info/inful/intrahub/internal/source"
)

// Cycle stage names, in execution order.
const (
	StageFetch     = "fetch"
	StageAllocate  = "allocate"
	StageCache     = "cache"
	StageDiff      = "diff"
	StageWriteBack = "writeback"
)

// CycleResult summarizes one completed sync cycle.
type CycleResult struct {
	CycleID string

	// Published is the full current published set, each document
	// carrying its assigned ID and fresh block content.
	Published []*docmodel.SourceDocument

	NewlyPublished   []string // assigned IDs published this cycle
	StillPublished   []string // assigned IDs published before and now
	NewlyUnpublished []string // assigned IDs dropped this cycle

	WriteBackFailures int
	Duration          time.Duration
}

// Orchestrator drives the sync cycle over its collaborators.
type Orchestrator struct {
	src      source.Source
	ledger   *allocator.Ledger
	cache    *cache.Cache
	recorder metrics.Recorder
}

// NewOrchestrator wires a sync orchestrator. A nil recorder disables
// metrics.
func NewOrchestrator(src source.Source, ledger *allocator.Ledger, c *cache.Cache, recorder metrics.Recorder) *Orchestrator {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Orchestrator{src: src, ledger: ledger, cache: c, recorder: recorder}
}

// RunCycle executes one full sync cycle. Allocation conflicts and an
// unreachable source abort the cycle; per-document fetch and write-back
// failures degrade to warnings and are retried on the next cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	cycleID := uuid.NewString()
	ctx = observability.WithCycleID(ctx, cycleID)
	log := slog.With(logfields.CycleID(cycleID))
	started := time.Now()
	log.Info("Sync cycle started")

	result := &CycleResult{CycleID: cycleID}

	// FETCH
	var records []source.Record
	err := o.stage(ctx, log, StageFetch, func(ctx context.Context) error {
		var ferr error
		records, ferr = o.src.QueryAll(ctx)
		return ferr
	})
	if err != nil {
		o.finish(log, result, started, "failed")
		return nil, err
	}

	published := make([]source.Record, 0, len(records))
	for _, rec := range records {
		if rec.Publish {
			published = append(published, rec)
		}
	}
	log.Info("Fetched source records",
		logfields.Count(len(records)), slog.Int("published", len(published)))

	// ALLOCATE. Only published records allocate. Reconciliation runs
	// over the whole published set before any allocation, so a
	// conflicting source ID can never mint a new one and a conflict
	// aborts the cycle before the ledger changes.
	reWriteBack := make(map[string]string) // source ID -> assigned ID to re-push
	err = o.stage(ctx, log, StageAllocate, func(ctx context.Context) error {
		needsWriteBack := make(map[string]bool, len(published))
		for _, rec := range published {
			needs, rerr := o.ledger.Reconcile(rec.SourceID, rec.AssignedID)
			if rerr != nil {
				return rerr
			}
			needsWriteBack[rec.SourceID] = needs
		}
		for _, rec := range published {
			assignedID, fresh, aerr := o.ledger.AllocateOrGet(rec.SourceID)
			if aerr != nil {
				return aerr
			}
			if fresh {
				log.Info("Allocated document ID",
					logfields.SourceID(rec.SourceID), logfields.DocID(assignedID))
			}
			if needsWriteBack[rec.SourceID] {
				reWriteBack[rec.SourceID] = assignedID
			}
		}
		return nil
	})
	if err != nil {
		o.finish(log, result, started, "failed")
		return nil, err
	}

	// CACHE. Every fetched record is persisted, published or not.
	// Published documents get fresh block content, falling back to the
	// cached copy when the per-document fetch fails; a document with
	// neither is skipped this cycle. Unpublished records keep their
	// record-level state current without a block fetch.
	err = o.stage(ctx, log, StageCache, func(ctx context.Context) error {
		for _, rec := range records {
			if !rec.Publish {
				if cerr := o.cacheUnpublished(rec); cerr != nil {
					return cerr
				}
				continue
			}
			doc, cerr := o.refreshDocument(ctx, log, rec)
			if cerr != nil {
				return cerr
			}
			if doc != nil {
				result.Published = append(result.Published, doc)
			}
		}
		return nil
	})
	if err != nil {
		o.finish(log, result, started, "failed")
		return nil, err
	}

	// DIFF against the previous cycle's published index.
	err = o.stage(ctx, log, StageDiff, func(context.Context) error {
		return o.diffPublished(result)
	})
	if err != nil {
		o.finish(log, result, started, "failed")
		return nil, err
	}

	// WRITEBACK. Fresh allocations plus any records reconciliation
	// flagged as missing their ID field. Failures are warnings: the
	// source still carries an empty ID field, so reconciliation queues
	// the write-back again next cycle.
	err = o.stage(ctx, log, StageWriteBack, func(ctx context.Context) error {
		pending := o.ledger.FreshAllocations()
		for sourceID, assignedID := range reWriteBack {
			pending[sourceID] = assignedID
		}
		for sourceID, assignedID := range pending {
			if wbErr := o.src.WriteBackID(ctx, sourceID, assignedID); wbErr != nil {
				result.WriteBackFailures++
				o.recorder.IncWriteBackResult(false)
				log.Warn("ID write-back failed, will retry next cycle",
					logfields.SourceID(sourceID), logfields.DocID(assignedID), logfields.Error(wbErr))
				continue
			}
			o.recorder.IncWriteBackResult(true)
		}
		return nil
	})
	if err != nil {
		o.finish(log, result, started, "failed")
		return nil, err
	}

	outcome := "success"
	if result.WriteBackFailures > 0 {
		outcome = "warning"
	}
	o.recorder.SetPublishedDocuments(len(result.Published))
	o.finish(log, result, started, outcome)
	return result, nil
}

// refreshDocument fetches fresh content for one published record and
// persists it. Source trouble degrades to the cached copy.
func (o *Orchestrator) refreshDocument(ctx context.Context, log *slog.Logger, rec source.Record) (*docmodel.SourceDocument, error) {
	assignedID, ok := o.ledger.Lookup(rec.SourceID)
	if !ok {
		return nil, huberr.AllocationConflict("published record missing from ledger after allocation: " + rec.SourceID)
	}

	blocks, err := o.src.FetchBlocks(ctx, rec.SourceID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if cached, found := o.cache.Get(rec.SourceID); found {
			log.Warn("Content fetch failed, using cached copy",
				logfields.SourceID(rec.SourceID), logfields.Error(err))
			return cached, nil
		}
		log.Warn("Content fetch failed and no cached copy, skipping document",
			logfields.SourceID(rec.SourceID), logfields.Error(err))
		return nil, nil
	}

	doc := &docmodel.SourceDocument{
		SourceID:      rec.SourceID,
		Title:         rec.Title,
		Publish:       true,
		AssignedID:    assignedID,
		Meta:          rec.Meta,
		Blocks:        blocks,
		LastFetchedAt: time.Now().UTC(),
	}
	if err := o.cache.Put(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// cacheUnpublished persists the record-level state of an unpublished
// record. Blocks from a previously cached copy are carried over so a
// later republish still has a fallback if the source is unreachable.
func (o *Orchestrator) cacheUnpublished(rec source.Record) error {
	doc := &docmodel.SourceDocument{
		SourceID:      rec.SourceID,
		Title:         rec.Title,
		Publish:       false,
		Meta:          rec.Meta,
		LastFetchedAt: time.Now().UTC(),
	}
	if assignedID, ok := o.ledger.Lookup(rec.SourceID); ok {
		doc.AssignedID = assignedID
	}
	if cached, found := o.cache.Get(rec.SourceID); found {
		doc.Blocks = cached.Blocks
	}
	return o.cache.Put(doc)
}

// diffPublished computes the newly/still/newly-unpublished sets against
// the previous index and replaces the index with the current set.
func (o *Orchestrator) diffPublished(result *CycleResult) error {
	previous, err := o.cache.LoadPublishedIndex()
	if err != nil {
		return err
	}
	before := make(map[string]struct{}, len(previous))
	for _, entry := range previous {
		before[entry.AssignedID] = struct{}{}
	}

	index := make([]cache.IndexEntry, 0, len(result.Published))
	current := make(map[string]struct{}, len(result.Published))
	for _, doc := range result.Published {
		current[doc.AssignedID] = struct{}{}
		index = append(index, cache.IndexEntry{
			AssignedID: doc.AssignedID,
			SourceID:   doc.SourceID,
			Title:      doc.Title,
			Meta:       doc.Meta,
		})
		if _, existed := before[doc.AssignedID]; existed {
			result.StillPublished = append(result.StillPublished, doc.AssignedID)
		} else {
			result.NewlyPublished = append(result.NewlyPublished, doc.AssignedID)
		}
	}
	for _, entry := range previous {
		if _, stays := current[entry.AssignedID]; !stays {
			result.NewlyUnpublished = append(result.NewlyUnpublished, entry.AssignedID)
		}
	}

	return o.cache.SavePublishedIndex(index)
}

// stage runs fn with duration and result metrics under the stage name.
// The context handed to fn carries the stage for log correlation.
func (o *Orchestrator) stage(ctx context.Context, log *slog.Logger, name string, fn func(context.Context) error) error {
	started := time.Now()
	err := fn(observability.WithStage(ctx, name))
	d := time.Since(started)
	o.recorder.ObserveStageDuration(name, d)

	switch {
	case err == nil:
		o.recorder.IncStageResult(name, metrics.ResultSuccess)
	case ctx.Err() != nil:
		o.recorder.IncStageResult(name, metrics.ResultCanceled)
	default:
		o.recorder.IncStageResult(name, metrics.ResultFatal)
		log.Error("Cycle stage failed", logfields.Stage(name),
			logfields.DurationMS(d), logfields.Error(err))
	}
	if err == nil {
		log.Debug("Cycle stage complete", logfields.Stage(name), logfields.DurationMS(d))
	}
	return err
}

func (o *Orchestrator) finish(log *slog.Logger, result *CycleResult, started time.Time, outcome string) {
	result.Duration = time.Since(started)
	o.recorder.ObserveCycleDuration(result.Duration)
	o.recorder.IncCycleOutcome(outcome)
	log.Info("Sync cycle finished",
		slog.String("outcome", outcome),
		slog.Int("published", len(result.Published)),
		slog.Int("newly_published", len(result.NewlyPublished)),
		slog.Int("newly_unpublished", len(result.NewlyUnpublished)),
		slog.Int("writeback_failures", result.WriteBackFailures),
		logfields.DurationMS(result.Duration))
}
