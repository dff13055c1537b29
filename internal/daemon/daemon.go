// Package daemon runs the sync pipeline on a schedule, with config hot
// reload and an optional metrics endpoint.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/intrahub/internal/config"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
	"git.home.luguber.info/inful/intrahub/internal/metrics"
	pipeline "git.home.luguber.info/inful/intrahub/internal/sync"
)

// Daemon schedules periodic pipeline runs. Runs never overlap: a cycle
// still in flight when the next tick fires causes the tick to be
// rescheduled.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string

	scheduler gocron.Scheduler
	jobID     uuid.UUID
	recorder  metrics.Recorder
	registry  *prom.Registry
	metricsrv *http.Server
	watcher   *ConfigWatcher

	startTime time.Time
	lastRun   runTracker
}

// New builds a daemon for the given configuration.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		scheduler:  scheduler,
		recorder:   metrics.NoopRecorder{},
		startTime:  time.Now(),
	}
	if cfg.Daemon.MetricsAddr != "" {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}
	return d, nil
}

// Run starts the daemon and blocks until ctx is canceled. The first
// pipeline run happens immediately; subsequent runs follow the
// configured interval.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.GetConfig()

	job, err := d.scheduler.NewJob(
		gocron.DurationJob(cfg.Daemon.Interval()),
		gocron.NewTask(d.runPipeline, ctx),
		gocron.WithName("sync-pipeline"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	d.jobID = job.ID()

	if d.registry != nil {
		d.startMetricsServer(cfg.Daemon.MetricsAddr)
	}

	watcher, err := NewConfigWatcher(d.configPath, d)
	if err != nil {
		slog.Warn("Config watcher unavailable, hot reload disabled", logfields.Error(err))
	} else {
		d.watcher = watcher
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("Config watcher failed to start, hot reload disabled", logfields.Error(err))
			d.watcher = nil
		}
	}

	slog.Info("Daemon started",
		slog.Duration("interval", cfg.Daemon.Interval()),
		slog.String("job_id", d.jobID.String()))
	d.scheduler.Start()

	<-ctx.Done()
	return d.shutdown()
}

func (d *Daemon) runPipeline(ctx context.Context) {
	svc := pipeline.NewService(d.GetConfig(), d.recorder)
	if _, err := svc.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		d.lastRun.record("failed")
		slog.Error("Scheduled pipeline run failed", logfields.Error(err))
		return
	}
	d.lastRun.record("success")
}

// GetConfig returns the current configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig applies a new configuration. The sync interval takes
// effect by rescheduling the job; a metrics address change requires a
// restart.
func (d *Daemon) ReloadConfig(ctx context.Context, newCfg *config.Config) error {
	if err := newCfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	old := d.cfg
	d.cfg = newCfg
	d.mu.Unlock()

	if newCfg.Daemon.MetricsAddr != old.Daemon.MetricsAddr {
		slog.Warn("Metrics address change requires daemon restart")
	}
	if newCfg.Daemon.Interval() != old.Daemon.Interval() {
		_, err := d.scheduler.Update(
			d.jobID,
			gocron.DurationJob(newCfg.Daemon.Interval()),
			gocron.NewTask(d.runPipeline, ctx),
			gocron.WithName("sync-pipeline"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to reschedule sync job: %w", err)
		}
		slog.Info("Sync interval updated", slog.Duration("interval", newCfg.Daemon.Interval()))
	}
	return nil
}

func (d *Daemon) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/healthz", d.HealthHandler)
	d.metricsrv = &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("Metrics endpoint listening", slog.String("addr", addr))
		if err := d.metricsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
}

func (d *Daemon) shutdown() error {
	slog.Info("Daemon shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.watcher != nil {
		if err := d.watcher.Stop(shutdownCtx); err != nil {
			slog.Error("Error stopping config watcher", logfields.Error(err))
		}
	}
	if d.metricsrv != nil {
		if err := d.metricsrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error stopping metrics server", logfields.Error(err))
		}
	}
	if err := d.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	slog.Info("Daemon stopped")
	return nil
}
