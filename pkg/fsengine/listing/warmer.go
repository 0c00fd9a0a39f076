package listing

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

// DefaultParallelism bounds concurrent directory reads.
const DefaultParallelism = 5

// Warmer pre-reads directories into a Cache.
type Warmer struct {
	resolver *resolver.Resolver
	cache    *Cache
	limit    int
	logger   zerolog.Logger
}

// NewWarmer creates a warmer. A limit below 1 uses DefaultParallelism.
func NewWarmer(r *resolver.Resolver, cache *Cache, limit int, logger zerolog.Logger) *Warmer {
	if limit < 1 {
		limit = DefaultParallelism
	}
	return &Warmer{
		resolver: r,
		cache:    cache,
		limit:    limit,
		logger:   logger.With().Str("component", "listing").Logger(),
	}
}

// Warm reads every directory in dirs, at most limit at a time. Every
// directory is attempted; the first failure is returned.
func (w *Warmer) Warm(ctx context.Context, dirs []string) error {
	var g errgroup.Group
	g.SetLimit(w.limit)
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := w.read(ctx, dir)
			if err != nil {
				w.logger.Debug().Str("path", dir).Err(err).Msg("listing not warmed")
				return err
			}
			w.cache.Put(dir, entries)
			return nil
		})
	}
	return g.Wait()
}

func (w *Warmer) read(ctx context.Context, dir string) ([]core.PathWithType, error) {
	resolved := w.resolver.Resolve(ctx, dir)
	loc, ok := resolved.Value()
	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", dir, resolved.Err())
	}
	dirEntries, err := loc.FS.ReadDir(loc.Native)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	entries := make([]core.PathWithType, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, loc.Child(de.Name()).Descriptor(itemType(de.Type())))
	}
	return entries, nil
}

func itemType(mode fs.FileMode) core.ItemType {
	switch {
	case mode&fs.ModeSymlink != 0:
		return core.ItemSymlink
	case mode.IsDir():
		return core.ItemDirectory
	default:
		return core.ItemFile
	}
}
