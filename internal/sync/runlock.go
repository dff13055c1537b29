package sync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
)

const (
	lockFile   = "intrahub.lock"
	staleAfter = 6 * time.Hour
)

type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// runLock is a file lock over the data directory so a manual sync and a
// daemon cycle never mutate the ledger or cache concurrently.
type runLock struct {
	path string
}

// acquireRunLock takes the data-dir lock. A lock whose owning process is
// gone, or which is older than staleAfter, is taken over.
func acquireRunLock(dataDir string) (*runLock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to create data directory")
	}
	path := filepath.Join(dataDir, lockFile)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			info := lockInfo{PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
			data, _ := json.Marshal(info)
			if _, werr := f.Write(data); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, huberr.Wrap(werr, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to write run lock")
			}
			f.Close()
			return &runLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to create run lock")
		}
		if !takeoverStaleLock(path) {
			return nil, huberr.New(huberr.CategoryDaemon, huberr.SeverityFatal,
				fmt.Sprintf("another sync holds the run lock (%s)", path))
		}
	}
	return nil, huberr.New(huberr.CategoryDaemon, huberr.SeverityFatal, "failed to acquire run lock after stale takeover")
}

// takeoverStaleLock removes the lock file when its holder is provably
// gone. Returns true if the lock was removed.
func takeoverStaleLock(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		// Racing holder released it already.
		return os.IsNotExist(err)
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		slog.Warn("Run lock unreadable, taking over", logfields.Path(path))
		return os.Remove(path) == nil
	}
	if processAlive(info.PID) && time.Since(info.AcquiredAt) < staleAfter {
		return false
	}
	slog.Warn("Taking over stale run lock",
		slog.Int("pid", info.PID), slog.Time("acquired_at", info.AcquiredAt))
	return os.Remove(path) == nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (l *runLock) release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to release run lock", logfields.Path(l.path), logfields.Error(err))
	}
}
