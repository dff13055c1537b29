package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccumulatesFields(t *testing.T) {
	ctx := context.Background()
	ctx = WithCycleID(ctx, "cycle-1")
	ctx = WithStage(ctx, "fetch")
	ctx = WithSourceID(ctx, "src-a")

	lc := GetContext(ctx)
	assert.Equal(t, "cycle-1", lc.CycleID)
	assert.Equal(t, "fetch", lc.Stage)
	assert.Equal(t, "src-a", lc.SourceID)
}

func TestWithStageDoesNotMutateParent(t *testing.T) {
	parent := WithCycleID(context.Background(), "cycle-1")
	child := WithStage(parent, "allocate")

	assert.Empty(t, GetContext(parent).Stage)
	assert.Equal(t, "allocate", GetContext(child).Stage)
	assert.Equal(t, "cycle-1", GetContext(child).CycleID)
}

func TestLogLinesCarryContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ctx := WithStage(WithCycleID(context.Background(), "cycle-1"), "writeback")
	InfoContext(ctx, "test message", slog.String("extra", "value"))

	out := buf.String()
	assert.Contains(t, out, "cycle.id=cycle-1")
	assert.Contains(t, out, "stage=writeback")
	assert.Contains(t, out, "extra=value")
	assert.Contains(t, out, "test message")
}

func TestEmptyContextEmitsNoCorrelationAttrs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	WarnContext(context.Background(), "plain warning")

	out := buf.String()
	assert.Contains(t, out, "plain warning")
	assert.NotContains(t, out, "cycle.id")
	assert.NotContains(t, out, "stage=")
}
