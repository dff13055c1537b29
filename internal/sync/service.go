package sync

import (
	"context"

	"git.home.luguber.info/inful/intrahub/internal/allocator"
	"git.home.luguber.info/inful/intrahub/internal/backup"
	"git.home.luguber.info/inful/intrahub/internal/cache"
	"git.home.luguber.info/inful/intrahub/internal/config"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
	"git.home.luguber.info/inful/intrahub/internal/metrics"
	"git.home.luguber.info/inful/intrahub/internal/site"
	"git.home.luguber.info/inful/intrahub/internal/source"
	"git.home.luguber.info/inful/intrahub/internal/stats"

	"log/slog"
)

// RunSummary reports one full pipeline run: the sync cycle plus the
// site generation that followed it.
type RunSummary struct {
	Cycle *CycleResult
	Site  *site.Result
}

// Service runs the complete pipeline for one configuration: optional
// backup, sync cycle, site generation.
type Service struct {
	cfg      *config.Config
	recorder metrics.Recorder
}

// NewService builds a pipeline service. A nil recorder disables metrics.
func NewService(cfg *config.Config, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{cfg: cfg, recorder: recorder}
}

// Run executes one full pipeline run. State stores are opened fresh per
// run so a daemon picks up external state changes between cycles.
func (s *Service) Run(ctx context.Context) (*RunSummary, error) {
	lock, err := acquireRunLock(s.cfg.Data.Dir)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	if s.cfg.Backup.Enabled {
		if _, err := backup.Create(s.cfg.Backup.Dir, s.cfg.Backup.Keep, s.cfg.Data.Dir, s.cfg.Site.OutputDir); err != nil {
			slog.Warn("Pre-sync backup failed, continuing", logfields.Error(err))
		}
	}

	ledger, err := allocator.Open(s.cfg.Data.Dir)
	if err != nil {
		return nil, err
	}
	contentCache, err := cache.Open(s.cfg.Data.Dir)
	if err != nil {
		return nil, err
	}
	counters, err := stats.Open(s.cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	src := source.NewNotionSource(s.cfg.Source)
	orch := NewOrchestrator(src, ledger, contentCache, s.recorder)
	result, err := orch.RunCycle(ctx)
	if err != nil {
		return nil, err
	}

	gen, err := site.NewGenerator(s.cfg.Site, counters)
	if err != nil {
		return nil, err
	}
	siteResult, err := gen.Generate(result.Published)
	if err != nil {
		return nil, err
	}
	s.recorder.IncRenderFailures(siteResult.RenderFailures)

	return &RunSummary{Cycle: result, Site: siteResult}, nil
}
