package engine

import (
	"context"
	"fmt"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

// Delete removes item, to the trash unless permanently is set.
func (e *Engine) Delete(ctx context.Context, item core.PathWithType, permanently bool, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.DeleteItems(ctx, []core.PathWithType{item}, permanently, opts...)
}

// DeleteItems removes items, contents before their containers. Items in
// the trash, and items on backends without a trash, are always deleted
// permanently.
func (e *Engine) DeleteItems(ctx context.Context, items []core.PathWithType, permanently bool, opts ...CallOption) core.Result[*core.HistoryEntry] {
	opType := core.OpRecycle
	if permanently {
		opType = core.OpDelete
	}
	return e.run(ctx, opType, items, opts, func(c *call) core.Result[*core.HistoryEntry] {
		order, err := contentsFirst(items)
		if err != nil {
			return core.Fail[*core.HistoryEntry](core.Generic, err)
		}
		batch := newItems(items)
		for step, idx := range order {
			it := batch[idx]
			if !c.cancelled(it) {
				c.deleteItem(it, permanently)
			}
			c.progress.Step(step+1, len(order)+1)
		}
		c.delegateDeletes(batch)

		var recycled *core.HistoryEntry
		if e.trash != nil {
			recycled = c.recycleEntry(batch)
		}
		deleted := deleteEntry(batch)
		entry := recycled
		switch {
		case permanently || recycled == nil:
			entry = deleted
			c.keep(recycled)
		default:
			c.keep(deleted)
		}

		var removed []string
		for _, it := range batch {
			if it.completed() {
				removed = append(removed, it.src.Original)
			}
		}
		c.announce(nil, removed, false)
		return c.conclude(batch, entry)
	})
}

func (c *call) deleteItem(it *item, permanently bool) {
	res := c.e.resolver.Resolve(c.ctx, it.source.Path)
	loc, ok := res.Value()
	if !ok {
		it.failCode(res.Code(), res.Err())
		it.final = true
		if res.Code().Has(core.NotFound) {
			c.vanished(it.source.Path)
		}
		return
	}
	it.src = loc
	inTrash := c.e.isTrash(loc.Original)
	it.soft = !permanently && !inTrash && c.e.hasTrashTier(loc)

	if it.soft {
		record, err := c.e.trash.Store().Put(c.ctx, loc.Native)
		if err != nil {
			it.fail(err)
			return
		}
		it.record = &record
		c.logger.Debug().Str("path", loc.Original).Str("dest", record.RecyclePath).Msg("recycled")
		it.succeed(loc.Descriptor(it.source.ItemType))
		return
	}

	if err := c.removeTree(loc); err != nil {
		it.fail(err)
		return
	}
	if inTrash {
		c.dropMetadata(loc)
	}
	c.logger.Debug().Str("path", loc.Original).Msg("deleted")
	it.succeed(loc.Descriptor(it.source.ItemType))
}

func (c *call) dropMetadata(loc resolver.Location) {
	if err := c.e.trash.Store().RemoveMetadata(loc.Native); err != nil {
		c.logger.Warn().Err(err).Str("path", loc.Original).Msg("failed to remove trash metadata")
	}
}

// delegateDeletes hands denied deletes to the helper, soft and permanent
// deletes in separate requests.
func (c *call) delegateDeletes(items []*item) {
	groups := map[bool][]*item{}
	for _, it := range items {
		if it.denied() {
			groups[it.soft] = append(groups[it.soft], it)
		}
	}
	for _, soft := range []bool{true, false} {
		group := groups[soft]
		if len(group) == 0 {
			continue
		}
		locs := make([]resolver.Location, len(group))
		req := channel.FileOpRequest{Op: channel.OpDeleteItem, Permanently: !soft}
		for i, it := range group {
			locs[i] = it.src
			req.Sources = append(req.Sources, it.src.Original)
		}
		if !c.canDelegate(locs...) {
			continue
		}
		pairs, err := c.delegate(req)
		for _, it := range group {
			if err != nil {
				it.fail(err)
				continue
			}
			if _, ok := pairs[it.src.Original]; !ok {
				it.failCode(core.Generic, fmt.Errorf("helper reported no result for %s", it.src.Original))
				continue
			}
			if !soft && c.e.isTrash(it.src.Original) {
				c.dropMetadata(it.src)
			}
			it.succeed(it.src.Descriptor(it.source.ItemType))
		}
	}
}

func deleteEntry(items []*item) *core.HistoryEntry {
	var src []core.PathWithType
	for _, it := range items {
		if it.completed() && !it.soft {
			src = append(src, it.src.Descriptor(it.source.ItemType))
		}
	}
	if len(src) == 0 {
		return nil
	}
	return core.NewHistoryEntry(core.OpDelete, src, nil)
}
