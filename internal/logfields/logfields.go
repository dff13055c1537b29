package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCycleID    = "cycle_id"
	KeyStage      = "stage"
	KeySourceID   = "source_id"
	KeyDocID      = "doc_id"
	KeyBlockType  = "block_type"
	KeyBlockID    = "block_id"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyPage       = "page"
	KeyPath       = "path"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func CycleID(id string) slog.Attr  { return slog.String(KeyCycleID, id) }
func Stage(name string) slog.Attr  { return slog.String(KeyStage, name) }
func SourceID(id string) slog.Attr { return slog.String(KeySourceID, id) }
func DocID(id string) slog.Attr    { return slog.String(KeyDocID, id) }
func BlockType(t string) slog.Attr { return slog.String(KeyBlockType, t) }
func BlockID(id string) slog.Attr  { return slog.String(KeyBlockID, id) }
func Count(n int) slog.Attr        { return slog.Int(KeyCount, n) }
func Page(n int) slog.Attr         { return slog.Int(KeyPage, n) }
func Path(p string) slog.Attr      { return slog.String(KeyPath, p) }

func DurationMS(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d)/float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
