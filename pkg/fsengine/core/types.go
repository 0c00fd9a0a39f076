package core

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ItemType represents the kind of a filesystem object described by a PathWithType.
type ItemType int

const (
	// ItemFile represents a regular file
	ItemFile ItemType = iota
	// ItemDirectory represents a directory
	ItemDirectory
	// ItemSymlink represents a symbolic link
	ItemSymlink
)

// String returns the string representation of the ItemType
func (t ItemType) String() string {
	switch t {
	case ItemFile:
		return "file"
	case ItemDirectory:
		return "directory"
	case ItemSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// ParseItemType is the inverse of ItemType.String.
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(s) {
	case "file":
		return ItemFile, nil
	case "directory", "dir":
		return ItemDirectory, nil
	case "symlink", "link":
		return ItemSymlink, nil
	default:
		return ItemFile, fmt.Errorf("unknown item type %q", s)
	}
}

// MarshalJSON encodes the item type by name.
func (t ItemType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an item type written by MarshalJSON.
func (t *ItemType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseItemType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PathWithType describes an item by path and kind without holding a live handle,
// so operations can be described and queued before the item is touched or exists.
type PathWithType struct {
	Path     string   `json:"path"`
	ItemType ItemType `json:"type"`
}

// NewPath creates a descriptor.
func NewPath(path string, itemType ItemType) PathWithType {
	return PathWithType{Path: path, ItemType: itemType}
}

// File is shorthand for a file descriptor.
func File(path string) PathWithType { return NewPath(path, ItemFile) }

// Directory is shorthand for a directory descriptor.
func Directory(path string) PathWithType { return NewPath(path, ItemDirectory) }

// Name returns the last path element.
func (p PathWithType) Name() string {
	return filepath.Base(p.Path)
}

// WithPath returns a copy of p pointing at a different path.
func (p PathWithType) WithPath(path string) PathWithType {
	return PathWithType{Path: path, ItemType: p.ItemType}
}

// IsDir reports whether the descriptor is a directory.
func (p PathWithType) IsDir() bool {
	return p.ItemType == ItemDirectory
}

func (p PathWithType) String() string {
	return fmt.Sprintf("%s (%s)", p.Path, p.ItemType)
}

// Paths extracts the path strings of a descriptor list.
func Paths(items []PathWithType) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Path
	}
	return out
}

// OperationType identifies what a HistoryEntry records.
type OperationType int

const (
	OpCreateNew OperationType = iota
	OpCreateLink
	OpCopy
	OpMove
	OpDelete
	OpRename
	OpRecycle
	OpRestore
)

var operationTypeNames = map[OperationType]string{
	OpCreateNew:  "create",
	OpCreateLink: "create-link",
	OpCopy:       "copy",
	OpMove:       "move",
	OpDelete:     "delete",
	OpRename:     "rename",
	OpRecycle:    "recycle",
	OpRestore:    "restore",
}

func (t OperationType) String() string {
	if name, ok := operationTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the operation type by name.
func (t OperationType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an operation type written by MarshalJSON.
func (t *OperationType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range operationTypeNames {
		if v == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown operation type %q", s)
}

// HistoryEntry records a completed mutating operation with enough information to
// reverse it. Source and Destination are positionally paired when both are set.
// Destination is nil for a permanent delete, which cannot be reversed.
//
// Entries are never mutated after creation.
type HistoryEntry struct {
	OperationType OperationType  `json:"op"`
	Source        []PathWithType `json:"src"`
	Destination   []PathWithType `json:"dst,omitempty"`
	Time          time.Time      `json:"ts"`
}

// NewHistoryEntry builds an entry, copying the slices it is given.
func NewHistoryEntry(opType OperationType, source, destination []PathWithType) *HistoryEntry {
	entry := &HistoryEntry{
		OperationType: opType,
		Source:        append([]PathWithType(nil), source...),
		Time:          time.Now().UTC(),
	}
	if destination != nil {
		entry.Destination = append([]PathWithType(nil), destination...)
	}
	return entry
}

// Invertible reports whether an inverse operation exists for the entry.
func (h *HistoryEntry) Invertible() bool {
	if h == nil || len(h.Source) == 0 {
		return false
	}
	switch h.OperationType {
	case OpDelete:
		return false
	case OpCreateNew, OpCreateLink:
		// the inverse deletes what was produced
		return true
	case OpCopy:
		return len(h.Destination) > 0
	default:
		return len(h.Destination) == len(h.Source)
	}
}

// RecycleBinRecord describes one item held in the trash store.
type RecycleBinRecord struct {
	RecyclePath  string    `json:"recycle_path"`
	OriginalPath string    `json:"original_path"`
	DateRecycled time.Time `json:"date_recycled"`
	Size         int64     `json:"size"`
	ItemType     ItemType  `json:"type"`
}

// Descriptor returns the trash content path as a descriptor.
func (r RecycleBinRecord) Descriptor() PathWithType {
	return NewPath(r.RecyclePath, r.ItemType)
}

// RecycleBinStats summarises the trash store.
type RecycleBinStats struct {
	NumItems int64 `json:"num_items"`
	BinSize  int64 `json:"bin_size"`
}
