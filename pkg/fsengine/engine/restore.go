package engine

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
	"github.com/arthur-debert/fsengine/pkg/fsengine/recyclebin"
)

// RestoreFromTrash moves the trash item back to destination.
func (e *Engine) RestoreFromTrash(ctx context.Context, item core.PathWithType, destination string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.RestoreItems(ctx, []core.PathWithType{item}, []string{destination}, opts...)
}

// RestoreItems restores trash items to the given destinations. The
// destination's parent must exist and the destination itself must not;
// otherwise the item stays in the trash untouched.
func (e *Engine) RestoreItems(ctx context.Context, items []core.PathWithType, destinations []string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.run(ctx, core.OpRestore, items, opts, func(c *call) core.Result[*core.HistoryEntry] {
		if e.trash == nil {
			return core.Fail[*core.HistoryEntry](core.Generic, fmt.Errorf("restore: %w", recyclebin.ErrNotTrashItem))
		}
		batch, err := pairItems(items, destinations)
		if err != nil {
			return core.Fail[*core.HistoryEntry](core.Generic, err)
		}
		for i, it := range batch {
			if !c.cancelled(it) {
				c.restoreItem(it)
			}
			c.progress.Step(i+1, len(batch)+1)
		}
		c.delegateRestores(batch)

		entry := transferEntry(core.OpRestore, batch, stateDone)
		c.announce(products(batch), nil, true)
		return c.conclude(batch, entry)
	})
}

func (c *call) restoreItem(it *item) {
	store := c.e.trash.Store()
	if !c.e.isTrash(it.source.Path) {
		it.reject(core.Generic, fmt.Errorf("%s: %w", it.source.Path, recyclebin.ErrNotTrashItem))
		return
	}
	res := c.e.resolver.Resolve(c.ctx, it.source.Path)
	src, ok := res.Value()
	if !ok {
		it.reject(res.Code(), res.Err())
		return
	}
	it.src = src

	located := c.e.resolver.Locate(c.ctx, it.target)
	dst, ok := located.Value()
	if !ok {
		it.reject(located.Code(), located.Err())
		return
	}
	it.dst = dst
	if c.e.isTrash(dst.Original) {
		it.reject(core.Unauthorized, &fs.PathError{Op: "restore", Path: dst.Original, Err: ErrTrashReadOnly})
		return
	}

	parent := dst.Parent()
	if _, err := parent.FS.Stat(parent.Native); err != nil {
		it.fail(err)
		it.final = !core.Classify(err).Has(core.Unauthorized)
		return
	}
	if filesystem.Exists(dst.FS, dst.Native) {
		it.reject(core.AlreadyExists, &fs.PathError{Op: "restore", Path: dst.Original, Err: fs.ErrExist})
		return
	}

	product := dst.Descriptor(it.source.ItemType)
	if dst.FS.Name() == store.FileSystem().Name() {
		if err := store.Restore(src.Native, dst.Native); err != nil {
			it.fail(err)
			return
		}
		it.succeed(product)
		return
	}

	// another backend: copy out, then drop the trash copy
	if err := c.copyAny(it); err != nil {
		it.fail(err)
		return
	}
	if err := store.Remove(src.Native); err != nil {
		c.logger.Warn().Err(err).Str("path", src.Original).Msg("restored item left in trash")
		it.partial(product, err)
		return
	}
	it.succeed(product)
}

func (c *call) delegateRestores(items []*item) {
	var group []*item
	for _, it := range items {
		if it.denied() && it.dst.FS != nil && c.canDelegate(it.src, it.dst) {
			group = append(group, it)
		}
	}
	if len(group) == 0 {
		return
	}
	req := channel.FileOpRequest{Op: channel.OpMoveItem}
	for _, it := range group {
		req.Sources = append(req.Sources, it.src.Original)
		req.Destinations = append(req.Destinations, it.dst.Original)
	}
	pairs, err := c.delegate(req)
	for _, it := range group {
		if err != nil {
			it.fail(err)
			continue
		}
		produced, ok := pairs[it.src.Original]
		if !ok {
			it.failCode(core.Generic, fmt.Errorf("helper reported no result for %s", it.src.Original))
			continue
		}
		c.dropMetadata(it.src)
		it.succeed(core.NewPath(produced, it.source.ItemType))
	}
}
