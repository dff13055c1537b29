// Package allocator issues permanent document identifiers.
//
// The ledger is the single authoritative source for ID assignment: a
// local, durable, append-only mapping from source record to assigned ID.
// The external database only ever receives copies via write-back and is
// never trusted for permanence.
package allocator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
)

const (
	// IDPrefix and IDWidth define the assigned ID token format, e.g. DOC-0042.
	IDPrefix = "DOC-"
	IDWidth  = 4

	ledgerFile = "allocations.json"
)

// FormatID renders a sequence number as an assigned ID token.
func FormatID(n int) string {
	return fmt.Sprintf("%s%0*d", IDPrefix, IDWidth, n)
}

// ledgerState is the persisted ledger format.
type ledgerState struct {
	Counter   int               `json:"counter"`
	Entries   map[string]string `json:"entries"` // source_id -> assigned_id
	UpdatedAt time.Time         `json:"updated_at"`
}

// Ledger is the durable allocation record. Entries are append-only: once
// a source ID is mapped, the mapping is never changed or removed, even
// when the document is unpublished.
type Ledger struct {
	path  string
	mu    sync.Mutex
	state ledgerState
	fresh map[string]string // allocations created since load, pending write-back
}

// Open loads the ledger from dataDir, creating an empty one when the
// file does not exist. A corrupt ledger is a fatal integrity failure:
// unlike the content cache it cannot be rebuilt from the source.
func Open(dataDir string) (*Ledger, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to create data directory")
	}

	l := &Ledger{
		path:  filepath.Join(dataDir, ledgerFile),
		state: ledgerState{Entries: make(map[string]string)},
		fresh: make(map[string]string),
	}

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryAllocation, huberr.SeverityFatal, "failed to read allocation ledger")
	}
	if err := json.Unmarshal(data, &l.state); err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryAllocation, huberr.SeverityFatal, "allocation ledger is corrupt; manual intervention required").
			WithContext("path", l.path)
	}
	if l.state.Entries == nil {
		l.state.Entries = make(map[string]string)
	}
	if err := l.verifyIntegrity(); err != nil {
		return nil, err
	}
	return l, nil
}

// verifyIntegrity rejects a ledger where two source records share an
// assigned ID. This must never happen; it is not silently resolved.
func (l *Ledger) verifyIntegrity() error {
	seen := make(map[string]string, len(l.state.Entries))
	for sourceID, assigned := range l.state.Entries {
		if other, dup := seen[assigned]; dup {
			return huberr.AllocationConflict("duplicate assigned ID in ledger").
				WithContext("assigned_id", assigned).
				WithContext("source_ids", []string{other, sourceID})
		}
		seen[assigned] = sourceID
	}
	return nil
}

// AllocateOrGet returns the permanent ID for sourceID. An existing
// mapping is returned unchanged; otherwise the next ID in the global
// sequence is issued and recorded durably before returning. fresh
// reports whether this call created the mapping (and therefore needs a
// write-back to the source).
func (l *Ledger) AllocateOrGet(sourceID string) (assignedID string, fresh bool, err error) {
	if sourceID == "" {
		return "", false, huberr.ValidationError("source ID must not be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.state.Entries[sourceID]; ok {
		return existing, false, nil
	}

	l.state.Counter++
	assignedID = FormatID(l.state.Counter)
	l.state.Entries[sourceID] = assignedID

	if err := l.persistLocked(); err != nil {
		// Roll back the in-memory entry: an unpersisted allocation must
		// not be handed out, or a crash would reissue the same number.
		delete(l.state.Entries, sourceID)
		l.state.Counter--
		return "", false, err
	}

	l.fresh[sourceID] = assignedID
	return assignedID, true, nil
}

// Lookup returns the assigned ID for sourceID, if any.
func (l *Ledger) Lookup(sourceID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.state.Entries[sourceID]
	return id, ok
}

// Reconcile compares the ID field carried by the source record against
// the ledger. It returns needsWriteBack=true when the source is missing
// or lagging the authoritative value. Any disagreement is a fatal
// AllocationConflict: the ledger is never silently overruled.
func (l *Ledger) Reconcile(sourceID, sourceAssignedID string) (needsWriteBack bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledgerID, ok := l.state.Entries[sourceID]
	if !ok {
		if sourceAssignedID != "" {
			return false, huberr.AllocationConflict("source record carries an assigned ID unknown to the ledger").
				WithContext("source_id", sourceID).
				WithContext("source_assigned_id", sourceAssignedID)
		}
		return false, nil
	}
	if sourceAssignedID == "" {
		return true, nil
	}
	if sourceAssignedID != ledgerID {
		return false, huberr.AllocationConflict("source record assigned ID disagrees with ledger").
			WithContext("source_id", sourceID).
			WithContext("ledger_id", ledgerID).
			WithContext("source_assigned_id", sourceAssignedID)
	}
	return false, nil
}

// FreshAllocations drains the allocations created since the last drain
// (or since Open), for the write-back stage of the current cycle. A
// write-back that then fails is not lost: the source record still
// carries an empty ID field, so Reconcile queues it again next cycle.
func (l *Ledger) FreshAllocations() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.fresh
	l.fresh = make(map[string]string)
	return out
}

// Count returns the number of issued IDs.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Entries)
}

// persistLocked writes the ledger atomically (temp file + rename).
// Callers must hold l.mu.
func (l *Ledger) persistLocked() error {
	l.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(l.state, "", "  ")
	if err != nil {
		return huberr.Wrap(err, huberr.CategoryAllocation, huberr.SeverityFatal, "failed to marshal ledger")
	}

	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to write ledger temp file")
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to replace ledger file")
	}
	return nil
}
