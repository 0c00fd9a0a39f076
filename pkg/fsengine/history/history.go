// Package history keeps the undo log: completed mutating operations recorded
// with enough information to reverse them.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// ErrNotInvertible is returned for entries that have no inverse.
var ErrNotInvertible = errors.New("operation cannot be undone")

// ErrEmpty is returned when popping an empty log.
var ErrEmpty = errors.New("undo log is empty")

// DefaultLimit caps the number of retained entries.
const DefaultLimit = 256

// UndoLog is an append-only stack of history entries. When a path is set the
// log is rewritten atomically after every change so it survives restarts.
//
// UndoLog is safe for concurrent use.
type UndoLog struct {
	mu      sync.Mutex
	entries []*core.HistoryEntry
	path    string
	limit   int
}

// New creates an in-memory log.
func New() *UndoLog {
	return &UndoLog{limit: DefaultLimit}
}

// Open loads a persisted log from path, starting empty if the file does
// not exist yet.
func Open(path string, limit int) (*UndoLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	log := &UndoLog{path: path, limit: limit}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return log, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read undo log: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return log, nil
	}
	if err := json.Unmarshal(data, &log.entries); err != nil {
		return nil, fmt.Errorf("decode undo log: %w", err)
	}
	log.trim()
	return log, nil
}

// Append records an entry. A nil entry is ignored.
func (l *UndoLog) Append(entry *core.HistoryEntry) error {
	if entry == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	l.trim()
	return l.persist()
}

// Pop removes and returns the newest entry.
func (l *UndoLog) Pop() (*core.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil, ErrEmpty
	}
	last := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	return last, l.persist()
}

// Last returns the newest entry without removing it.
func (l *UndoLog) Last() (*core.HistoryEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil, false
	}
	return l.entries[len(l.entries)-1], true
}

// Discard removes entry if it is still in the log. Entries appended after it
// stay.
func (l *UndoLog) Discard(entry *core.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i] == entry {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return l.persist()
		}
	}
	return nil
}

// Entries returns a snapshot, oldest first.
func (l *UndoLog) Entries() []*core.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*core.HistoryEntry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *UndoLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *UndoLog) trim() {
	limit := l.limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if over := len(l.entries) - limit; over > 0 {
		l.entries = append([]*core.HistoryEntry(nil), l.entries[over:]...)
	}
}

func (l *UndoLog) persist() error {
	if l.path == "" {
		return nil
	}
	entries := l.entries
	if entries == nil {
		entries = []*core.HistoryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode undo log: %w", err)
	}
	if err := atomic.WriteFile(l.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write undo log: %w", err)
	}
	return nil
}

// Inverse describes the operation that reverses entry.
//
//	CreateNew, CreateLink -> Delete of the created items
//	Copy                  -> Delete of the copies
//	Move, Rename          -> the same operation with paths swapped
//	Recycle               -> Restore from the trash paths to the originals
//	Restore               -> Recycle of the restored items
//	Delete                -> none
//
// Inverse deletes are permanent: the product of a copy or create has no
// earlier state to recover.
func Inverse(entry *core.HistoryEntry) (*core.HistoryEntry, error) {
	if !entry.Invertible() {
		if entry == nil {
			return nil, ErrNotInvertible
		}
		return nil, fmt.Errorf("%s: %w", entry.OperationType, ErrNotInvertible)
	}
	switch entry.OperationType {
	case core.OpCreateNew, core.OpCreateLink:
		return core.NewHistoryEntry(core.OpDelete, entry.Source, nil), nil
	case core.OpCopy:
		return core.NewHistoryEntry(core.OpDelete, entry.Destination, nil), nil
	case core.OpMove, core.OpRename:
		return core.NewHistoryEntry(entry.OperationType, entry.Destination, entry.Source), nil
	case core.OpRecycle:
		return core.NewHistoryEntry(core.OpRestore, entry.Destination, entry.Source), nil
	case core.OpRestore:
		return core.NewHistoryEntry(core.OpRecycle, entry.Destination, nil), nil
	default:
		return nil, fmt.Errorf("%s: %w", entry.OperationType, ErrNotInvertible)
	}
}
