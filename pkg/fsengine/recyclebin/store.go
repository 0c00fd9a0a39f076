// Package recyclebin implements the trash store and the adapter the engine
// consults for paths inside it.
//
// Every trashed item occupies two siblings in the trash root: the content,
// named $R<ID><ext>, and a JSON metadata file named $I<ID><ext> recording
// where the item came from. A half without its partner is an orphan; it is
// skipped when listing.
package recyclebin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
)

const (
	contentPrefix  = "$R"
	metadataPrefix = "$I"
)

// ErrNotTrashItem is returned for paths that are not trash content.
var ErrNotTrashItem = errors.New("path is not a trash item")

// MetadataPath derives the metadata sibling of a content path by replacing
// the R of the $R prefix with I. Paths that are not content are returned
// unchanged.
func MetadataPath(content string) string {
	dir, name := splitLast(content)
	if !strings.HasPrefix(name, contentPrefix) {
		return content
	}
	return dir + metadataPrefix + name[len(contentPrefix):]
}

// IsContentName reports whether name is a trash content file name.
func IsContentName(name string) bool {
	return strings.HasPrefix(name, contentPrefix) && len(name) > len(contentPrefix)
}

func splitLast(p string) (dir, name string) {
	i := strings.LastIndexAny(p, `/\`)
	return p[:i+1], p[i+1:]
}

// Store is a trash directory on a backend that supports rename into it.
type Store struct {
	root   string
	fsys   filesystem.FileSystem
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore opens the trash store at root, creating it if needed.
func NewStore(root string, fsys filesystem.FileSystem, logger zerolog.Logger) (*Store, error) {
	if err := fsys.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create trash root: %w", err)
	}
	return &Store{
		root:   root,
		fsys:   fsys,
		logger: logger.With().Str("component", "recyclebin").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  newID,
	}, nil
}

func newID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Root returns the trash root.
func (s *Store) Root() string { return s.root }

// FileSystem returns the backend holding the store.
func (s *Store) FileSystem() filesystem.FileSystem { return s.fsys }

// Contains reports whether p is the trash root or inside it.
func (s *Store) Contains(p string) bool {
	return within(s.root, p)
}

func within(root, p string) bool {
	root = strings.TrimRight(root, `/\`)
	if p == root {
		return true
	}
	if !strings.HasPrefix(p, root) {
		return false
	}
	next := p[len(root)]
	return next == '/' || next == '\\'
}

// Put moves the item at path into the trash and returns its record. The
// metadata is written first so an interrupted Put leaves no unlabelled
// content behind.
func (s *Store) Put(ctx context.Context, path string) (core.RecycleBinRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.RecycleBinRecord{}, err
	}
	info, err := s.fsys.Lstat(path)
	if err != nil {
		return core.RecycleBinRecord{}, err
	}

	record := core.RecycleBinRecord{
		OriginalPath: path,
		DateRecycled: s.now(),
		ItemType:     itemTypeOf(info),
	}
	ext := ""
	if record.ItemType != core.ItemDirectory {
		_, ext = splitExt(s.fsys.Base(path))
	}
	id := s.newID()
	record.RecyclePath = s.fsys.Join(s.root, contentPrefix+id+ext)
	if size, err := filesystem.Size(s.fsys, path); err == nil {
		record.Size = size
	}

	metaPath := MetadataPath(record.RecyclePath)
	if err := s.writeMetadata(metaPath, record); err != nil {
		return core.RecycleBinRecord{}, err
	}
	if err := s.fsys.Rename(path, record.RecyclePath); err != nil {
		if !filesystem.IsCrossDevice(err) {
			_ = s.fsys.Remove(metaPath)
			return core.RecycleBinRecord{}, err
		}
		if err := s.transfer(path, record); err != nil {
			return core.RecycleBinRecord{}, err
		}
	}

	s.logger.Debug().
		Str("path", path).
		Str("recycle_path", record.RecyclePath).
		Msg("item moved to trash")
	return record, nil
}

// transfer copies an item from another mount into the trash and then removes
// the origin. A directory whose origin is only partly removed stays in the
// trash so nothing is lost.
func (s *Store) transfer(path string, record core.RecycleBinRecord) error {
	metaPath := MetadataPath(record.RecyclePath)
	s.logger.Debug().Str("path", path).Msg("trash is on another mount, copying")
	if err := filesystem.CopyTree(s.fsys, path, s.fsys, record.RecyclePath); err != nil {
		_ = s.fsys.RemoveAll(record.RecyclePath)
		_ = s.fsys.Remove(metaPath)
		return fmt.Errorf("copy %s to trash: %w", path, err)
	}
	if err := s.fsys.RemoveAll(path); err != nil {
		if record.ItemType != core.ItemDirectory {
			_ = s.fsys.Remove(record.RecyclePath)
			_ = s.fsys.Remove(metaPath)
		} else {
			s.logger.Warn().Err(err).Str("path", path).Msg("trashed folder left partly at its origin")
		}
		return err
	}
	return nil
}

func splitExt(name string) (base, ext string) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name, ""
	}
	return name[:dot], name[dot:]
}

func itemTypeOf(info fs.FileInfo) core.ItemType {
	switch {
	case info.IsDir():
		return core.ItemDirectory
	case info.Mode()&fs.ModeSymlink != 0:
		return core.ItemSymlink
	default:
		return core.ItemFile
	}
}

func (s *Store) writeMetadata(metaPath string, record core.RecycleBinRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode trash metadata: %w", err)
	}
	if _, ok := s.fsys.(*filesystem.OSFileSystem); ok {
		if err := atomic.WriteFile(metaPath, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("write trash metadata: %w", err)
		}
		return nil
	}
	w, err := s.fsys.Create(metaPath, 0o600)
	if err != nil {
		return fmt.Errorf("write trash metadata: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write trash metadata: %w", err)
	}
	return w.Close()
}

// Lookup reads the record of a content path.
func (s *Store) Lookup(recyclePath string) (core.RecycleBinRecord, error) {
	if !s.Contains(recyclePath) || !IsContentName(s.fsys.Base(recyclePath)) {
		return core.RecycleBinRecord{}, fmt.Errorf("%s: %w", recyclePath, ErrNotTrashItem)
	}
	f, err := s.fsys.Open(MetadataPath(recyclePath))
	if err != nil {
		return core.RecycleBinRecord{}, err
	}
	defer func() { _ = f.Close() }()

	var record core.RecycleBinRecord
	if err := json.NewDecoder(f).Decode(&record); err != nil {
		return core.RecycleBinRecord{}, fmt.Errorf("decode trash metadata: %w", err)
	}
	record.RecyclePath = recyclePath
	if _, err := s.fsys.Lstat(recyclePath); err != nil {
		return core.RecycleBinRecord{}, err
	}
	return record, nil
}

// List returns every complete record, oldest first. Orphans are skipped.
func (s *Store) List(ctx context.Context) ([]core.RecycleBinRecord, error) {
	entries, err := s.fsys.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var records []core.RecycleBinRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if !IsContentName(entry.Name()) {
			continue
		}
		content := s.fsys.Join(s.root, entry.Name())
		record, err := s.Lookup(content)
		if err != nil {
			s.logger.Debug().Str("path", content).Err(err).Msg("skipping orphaned trash entry")
			continue
		}
		records = append(records, record)
	}
	SortOldestFirst(records)
	return records, nil
}

// Remove permanently deletes a trash item and its metadata. A missing
// metadata sibling is tolerated.
func (s *Store) Remove(recyclePath string) error {
	if err := s.fsys.RemoveAll(recyclePath); err != nil {
		return err
	}
	return s.RemoveMetadata(recyclePath)
}

// RemoveMetadata deletes the metadata sibling of recyclePath if present.
func (s *Store) RemoveMetadata(recyclePath string) error {
	meta := MetadataPath(recyclePath)
	if meta == recyclePath {
		return nil
	}
	if err := s.fsys.Remove(meta); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Restore moves a trash item to destination. The destination's parent must
// exist and destination itself must not; on failure the item stays in the
// trash untouched.
func (s *Store) Restore(recyclePath, destination string) error {
	if _, err := s.fsys.Stat(s.fsys.Dir(destination)); err != nil {
		return err
	}
	if filesystem.Exists(s.fsys, destination) {
		return &fs.PathError{Op: "restore", Path: destination, Err: fs.ErrExist}
	}
	if err := s.fsys.Rename(recyclePath, destination); err != nil {
		if !filesystem.IsCrossDevice(err) {
			return err
		}
		if err := filesystem.CopyTree(s.fsys, recyclePath, s.fsys, destination); err != nil {
			_ = s.fsys.RemoveAll(destination)
			return fmt.Errorf("copy %s out of trash: %w", recyclePath, err)
		}
		if err := s.fsys.RemoveAll(recyclePath); err != nil {
			s.logger.Warn().Err(err).Str("recycle_path", recyclePath).Msg("restored item left in trash")
			return nil
		}
	}
	return s.RemoveMetadata(recyclePath)
}

// Query summarises the store.
func (s *Store) Query(ctx context.Context) (core.RecycleBinStats, error) {
	records, err := s.List(ctx)
	if err != nil {
		return core.RecycleBinStats{}, err
	}
	stats := core.RecycleBinStats{NumItems: int64(len(records))}
	for _, r := range records {
		stats.BinSize += r.Size
	}
	return stats, nil
}

// Empty permanently deletes everything in the store, orphans included, and
// returns the number of complete records removed.
func (s *Store) Empty(ctx context.Context) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	entries, err := s.fsys.ReadDir(s.root)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := s.fsys.RemoveAll(s.fsys.Join(s.root, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
	}
	s.logger.Info().Int("items", len(records)).Msg("trash emptied")
	return len(records), nil
}

// SortOldestFirst orders records by recycle time, keeping the relative order
// of equal timestamps.
func SortOldestFirst(records []core.RecycleBinRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DateRecycled.Before(records[j].DateRecycled)
	})
}
