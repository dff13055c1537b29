package daemon

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/intrahub/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Source.Token = "secret"
	cfg.Source.DatabaseID = "db-1"
	cfg.Site.SortOrder = "newest"
	cfg.Daemon.IntervalMinutes = 60
	return cfg
}

func TestNewWithoutMetricsAddrUsesNoopRecorder(t *testing.T) {
	d, err := New(testConfig(), "config.yaml")
	require.NoError(t, err)
	assert.Nil(t, d.registry)
}

func TestNewWithMetricsAddrBuildsRegistry(t *testing.T) {
	cfg := testConfig()
	cfg.Daemon.MetricsAddr = ":0"

	d, err := New(cfg, "config.yaml")
	require.NoError(t, err)
	assert.NotNil(t, d.registry)
}

func TestHealthHandler(t *testing.T) {
	d, err := New(testConfig(), "config.yaml")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.HealthHandler(rec, httptest.NewRequest("GET", "/healthz", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthStatusHealthy, resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.Nil(t, resp.LastRunAt)

	// A failed pipeline run degrades the reported status.
	d.lastRun.record("failed")
	rec = httptest.NewRecorder()
	d.HealthHandler(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthStatusDegraded, resp.Status)
	assert.NotNil(t, resp.LastRunAt)
	assert.Equal(t, "failed", resp.LastOutcome)
}

func TestReloadConfigRejectsInvalid(t *testing.T) {
	d, err := New(testConfig(), "config.yaml")
	require.NoError(t, err)

	bad := testConfig()
	bad.Source.Token = ""
	assert.Error(t, d.ReloadConfig(context.Background(), bad))

	// The old configuration stays in effect.
	assert.Equal(t, "secret", d.GetConfig().Source.Token)
}

func TestReloadConfigSwapsWithoutIntervalChange(t *testing.T) {
	d, err := New(testConfig(), "config.yaml")
	require.NoError(t, err)

	next := testConfig()
	next.Site.Title = "Renamed"
	require.NoError(t, d.ReloadConfig(context.Background(), next))
	assert.Equal(t, "Renamed", d.GetConfig().Site.Title)
}
