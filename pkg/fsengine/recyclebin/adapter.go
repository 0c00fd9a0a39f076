package recyclebin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// Adapter answers trash questions for the engine. Enumeration goes through
// the privileged channel when one is connected, the local store otherwise.
type Adapter struct {
	store   *Store
	channel channel.Privileged
	logger  zerolog.Logger
}

// NewAdapter creates an adapter over store. priv may be nil.
func NewAdapter(store *Store, priv channel.Privileged, logger zerolog.Logger) *Adapter {
	return &Adapter{
		store:   store,
		channel: priv,
		logger:  logger.With().Str("component", "recyclebin").Logger(),
	}
}

// Store returns the local store.
func (a *Adapter) Store() *Store { return a.store }

// Root returns the trash root.
func (a *Adapter) Root() string { return a.store.Root() }

// IsTrashItem reports whether path lives inside the trash root.
func (a *Adapter) IsTrashItem(path string) bool {
	return a.store.Contains(path)
}

// MetadataPath returns the metadata sibling of a trash content path.
func (a *Adapter) MetadataPath(content string) string {
	return MetadataPath(content)
}

// Enumerate lists every trash record, oldest first.
func (a *Adapter) Enumerate(ctx context.Context) ([]core.RecycleBinRecord, error) {
	if channel.IsAvailable(a.channel) {
		resp, err := a.channel.RecycleBin(ctx, channel.RecycleRequest{Action: channel.RecycleEnumerate})
		if err == nil && resp.Success {
			records := resp.Records
			SortOldestFirst(records)
			return records, nil
		}
		a.logger.Warn().Err(err).Str("error", resp.Error).Msg("helper enumeration failed, reading local store")
	}
	return a.store.List(ctx)
}

// Query returns item count and total size.
func (a *Adapter) Query(ctx context.Context) (core.RecycleBinStats, error) {
	if channel.IsAvailable(a.channel) {
		resp, err := a.channel.RecycleBin(ctx, channel.RecycleRequest{Action: channel.RecycleQuery})
		if err == nil && resp.Success {
			return resp.Stats, nil
		}
		a.logger.Warn().Err(err).Str("error", resp.Error).Msg("helper query failed, reading local store")
	}
	return a.store.Query(ctx)
}

// Empty permanently deletes the trash contents. Emptying through the helper
// is terminal: a failed request is not retried locally.
func (a *Adapter) Empty(ctx context.Context) error {
	if channel.IsAvailable(a.channel) {
		resp, err := a.channel.RecycleBin(ctx, channel.RecycleRequest{Action: channel.RecycleEmpty})
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("empty trash: %s", resp.Error)
		}
		return nil
	}
	_, err := a.store.Empty(ctx)
	return err
}

// FindNewest returns the most recently recycled record for originalPath.
// Shortcut files (.lnk, .url) match on the path without extension.
func FindNewest(records []core.RecycleBinRecord, originalPath string) (core.RecycleBinRecord, bool) {
	key := matchKey(originalPath)
	var matches []core.RecycleBinRecord
	for _, r := range records {
		if matchKey(r.OriginalPath) == key {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return core.RecycleBinRecord{}, false
	}
	SortOldestFirst(matches)
	return matches[len(matches)-1], true
}

func matchKey(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if ext == ".lnk" || ext == ".url" {
		return p[:len(p)-len(ext)]
	}
	return p
}
