package engine

import (
	"context"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// Move moves source to the full path destination.
func (e *Engine) Move(ctx context.Context, source core.PathWithType, destination string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.MoveItems(ctx, []core.PathWithType{source}, []string{destination}, opts...)
}

// MoveInto moves every source into dir under its own name.
func (e *Engine) MoveInto(ctx context.Context, sources []core.PathWithType, dir string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	destinations, err := e.intoDir(ctx, sources, dir)
	if err != nil {
		return core.Fail[*core.HistoryEntry](core.Classify(err), err)
	}
	return e.MoveItems(ctx, sources, destinations, opts...)
}

// MoveItems moves sources[i] to destinations[i]. Items on the same backend
// are renamed; others are copied and the source deleted. Sources without a
// native path are copied only, and the result carries InProgress.
func (e *Engine) MoveItems(ctx context.Context, sources []core.PathWithType, destinations []string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.run(ctx, core.OpMove, sources, opts, func(c *call) core.Result[*core.HistoryEntry] {
		items, err := pairItems(sources, destinations)
		if err != nil {
			return core.Fail[*core.HistoryEntry](core.Generic, err)
		}
		c.prepareTransfer(items)
		c.settleDestinations(items)

		for i, it := range items {
			if it.pending() && !c.cancelled(it) {
				c.moveItem(it)
			}
			c.progress.Step(i+1, len(items)+1)
		}
		c.delegateTransfers(items, channel.OpMoveItem)

		// Copy-only items are undone by deleting the copy, so they get an
		// entry of their own.
		moved := transferEntry(core.OpMove, items, stateDone)
		copied := transferEntry(core.OpCopy, items, statePartial)
		entry := moved
		if moved == nil {
			entry = copied
		} else {
			c.keep(copied)
		}

		var removed []string
		for _, it := range items {
			if it.state == stateDone {
				removed = append(removed, it.src.Original)
			}
		}
		c.announce(products(items), removed, true)
		return c.conclude(items, entry)
	})
}

func (c *call) moveItem(it *item) {
	product := it.dst.Descriptor(it.source.ItemType)
	var leftover error
	err := c.replacing(it.dst, it.replace, func() error {
		var err error
		leftover, err = c.transfer(it)
		return err
	})
	switch {
	case err != nil:
		it.fail(err)
	case it.src.PathLess():
		it.partial(product, ErrPathLess)
	case leftover != nil:
		it.partial(product, leftover)
	default:
		it.succeed(product)
	}
}

// transfer moves it.src to it.dst. leftover is the error that kept the
// origin from being deleted after its copy landed.
func (c *call) transfer(it *item) (leftover, err error) {
	if it.src.PathLess() {
		c.fallback(core.FallbackCopyOnly, it.src.Original)
		return nil, c.copyAny(it)
	}

	if it.src.FS.Name() == it.dst.FS.Name() {
		err := it.src.FS.Rename(it.src.Native, it.dst.Native)
		if err == nil {
			c.logger.Debug().Str("path", it.src.Original).Str("dest", it.dst.Original).Msg("renamed")
			return nil, nil
		}
		if !core.Classify(err).Has(core.Generic) {
			return nil, err
		}
		// e.g. a cross-device rename: fall through to copy and delete
		c.logger.Debug().Err(err).Str("path", it.src.Original).Msg("rename failed, copying")
	}

	if err := c.copyAny(it); err != nil {
		return nil, err
	}
	if err := c.removeTree(it.src); err != nil {
		c.logger.Warn().Err(err).Str("path", it.src.Original).Msg("moved item left at its origin")
		return err, nil
	}
	return nil, nil
}

func (c *call) copyAny(it *item) error {
	if it.source.IsDir() {
		return c.copyTree(it.src, it.dst)
	}
	return c.copyLeaf(it.src, it.dst, it.source.ItemType)
}
