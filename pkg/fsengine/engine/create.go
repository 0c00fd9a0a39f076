package engine

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

// Create makes an empty file or directory at item.Path.
func (e *Engine) Create(ctx context.Context, item core.PathWithType, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.CreateItems(ctx, []core.PathWithType{item}, opts...)
}

// CreateItems creates several items. Directories are created before the
// items inside them. Existing items are never overwritten.
func (e *Engine) CreateItems(ctx context.Context, items []core.PathWithType, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.run(ctx, core.OpCreateNew, items, opts, func(c *call) core.Result[*core.HistoryEntry] {
		order, err := containersFirst(items)
		if err != nil {
			return core.Fail[*core.HistoryEntry](core.Generic, err)
		}
		batch := newItems(items)
		for step, idx := range order {
			it := batch[idx]
			if !c.cancelled(it) {
				c.createItem(it)
			}
			c.progress.Step(step+1, len(order)+1)
		}

		var created []core.PathWithType
		for _, idx := range order {
			if batch[idx].completed() {
				created = append(created, batch[idx].product)
			}
		}
		var entry *core.HistoryEntry
		if len(created) > 0 {
			entry = core.NewHistoryEntry(core.OpCreateNew, created, nil)
		}
		c.announce(created, nil, true)
		return c.conclude(batch, entry)
	})
}

func (c *call) createItem(it *item) {
	if err := ValidateName(logicalBase(it.source.Path)); err != nil {
		it.reject(core.InvalidName, err)
		return
	}
	located := c.e.resolver.Locate(c.ctx, it.source.Path)
	loc, ok := located.Value()
	if !ok {
		it.reject(located.Code(), located.Err())
		return
	}
	if c.e.isTrash(loc.Original) {
		it.reject(core.Unauthorized, &fs.PathError{Op: "create", Path: loc.Original, Err: ErrTrashReadOnly})
		return
	}

	switch it.source.ItemType {
	case core.ItemDirectory:
		if err := loc.FS.Mkdir(loc.Native, 0o755); err != nil {
			it.fail(err)
			return
		}
	case core.ItemFile:
		w, err := loc.FS.Create(loc.Native, 0o644)
		if err != nil {
			it.fail(err)
			return
		}
		if err := w.Close(); err != nil {
			it.fail(err)
			return
		}
	default:
		it.reject(core.Generic, fmt.Errorf("%s: links are created with CreateLink", loc.Original))
		return
	}
	c.logger.Debug().Str("path", loc.Original).Str("type", it.source.ItemType.String()).Msg("created")
	it.succeed(loc.Descriptor(it.source.ItemType))
}

// CreateLink creates a symbolic link at link pointing to target. A denied
// link is handed to the helper with the call's LinkOptions.
func (e *Engine) CreateLink(ctx context.Context, link, target string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	linkItem := core.NewPath(link, core.ItemSymlink)
	return e.run(ctx, core.OpCreateLink, []core.PathWithType{linkItem}, opts, func(c *call) core.Result[*core.HistoryEntry] {
		if err := ValidateName(logicalBase(link)); err != nil {
			return core.Fail[*core.HistoryEntry](core.InvalidName, err)
		}
		located := e.resolver.Locate(ctx, link)
		loc, ok := located.Value()
		if !ok {
			return core.Convert[resolver.Location, *core.HistoryEntry](located)
		}
		if e.isTrash(loc.Original) {
			return core.Fail[*core.HistoryEntry](core.Unauthorized, &fs.PathError{Op: "create-link", Path: loc.Original, Err: ErrTrashReadOnly})
		}

		product := loc.Descriptor(core.ItemSymlink)
		err := loc.FS.Symlink(target, loc.Native)
		if err != nil {
			if !core.Classify(err).Has(core.Unauthorized) || !c.canDelegate(loc) {
				return core.Fail[*core.HistoryEntry](core.Classify(err), err)
			}
			lo := c.cfg.linkOptions
			pairs, derr := c.delegate(channel.FileOpRequest{
				Op:         channel.OpCreateLink,
				Sources:    []string{loc.Original},
				TargetPath: target,
				Arguments:  lo.Arguments,
				WorkingDir: lo.WorkingDir,
				RunAsAdmin: lo.RunAsAdmin,
			})
			if derr != nil {
				return core.Fail[*core.HistoryEntry](core.Classify(derr), derr)
			}
			if produced, ok := pairs[loc.Original]; ok {
				product = core.NewPath(produced, core.ItemSymlink)
			}
		}

		entry := core.NewHistoryEntry(core.OpCreateLink, []core.PathWithType{product}, nil)
		c.keep(entry)
		c.announce([]core.PathWithType{product}, nil, true)
		return core.Ok(entry)
	})
}
