package engine

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

// Copy copies source to the full path destination.
func (e *Engine) Copy(ctx context.Context, source core.PathWithType, destination string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.CopyItems(ctx, []core.PathWithType{source}, []string{destination}, opts...)
}

// CopyInto copies every source into dir under its own name.
func (e *Engine) CopyInto(ctx context.Context, sources []core.PathWithType, dir string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	destinations, err := e.intoDir(ctx, sources, dir)
	if err != nil {
		return core.Fail[*core.HistoryEntry](core.Classify(err), err)
	}
	return e.CopyItems(ctx, sources, destinations, opts...)
}

func (e *Engine) intoDir(ctx context.Context, sources []core.PathWithType, dir string) ([]string, error) {
	located := e.resolver.Locate(ctx, dir)
	loc, ok := located.Value()
	if !ok {
		return nil, core.WithCode(located.Code(), located.Err())
	}
	destinations := make([]string, len(sources))
	for i, src := range sources {
		destinations[i] = loc.Child(logicalBase(src.Path)).Original
	}
	return destinations, nil
}

// CopyItems copies sources[i] to destinations[i]. Collisions go through the
// call's collision option or conflict policy. Denied items escalate from
// the backend's bypass copy to the privileged helper.
func (e *Engine) CopyItems(ctx context.Context, sources []core.PathWithType, destinations []string, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.run(ctx, core.OpCopy, sources, opts, func(c *call) core.Result[*core.HistoryEntry] {
		items, err := pairItems(sources, destinations)
		if err != nil {
			return core.Fail[*core.HistoryEntry](core.Generic, err)
		}
		c.prepareTransfer(items)
		c.settleDestinations(items)

		for i, it := range items {
			if it.pending() && !c.cancelled(it) {
				c.copyItem(it)
			}
			c.progress.Step(i+1, len(items)+1)
		}
		c.delegateTransfers(items, channel.OpCopyItem)

		entry := transferEntry(core.OpCopy, items, stateDone)
		c.announce(products(items), nil, true)
		return c.conclude(items, entry)
	})
}

func (c *call) copyItem(it *item) {
	if err := c.replacing(it.dst, it.replace, func() error { return c.copyAny(it) }); err != nil {
		it.fail(err)
		return
	}
	c.logger.Debug().Str("path", it.src.Original).Str("dest", it.dst.Original).Msg("copied")
	it.succeed(it.dst.Descriptor(it.source.ItemType))
}

type dirPair struct {
	src, dst resolver.Location
}

// copyTree copies a directory with an explicit worklist. The top directory
// is created fail-if-exists; files inside get unique names, which only
// matters when the backend already had something there.
func (c *call) copyTree(src, dst resolver.Location) error {
	stack := []dirPair{{src: src, dst: dst}}
	for len(stack) > 0 {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		pair := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		perm := fs.FileMode(0o755)
		if info, err := pair.src.FS.Stat(pair.src.Native); err == nil {
			perm = info.Mode().Perm() | 0o700
		}
		if err := pair.dst.FS.Mkdir(pair.dst.Native, perm); err != nil {
			return err
		}
		entries, err := pair.src.FS.ReadDir(pair.src.Native)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := c.ctx.Err(); err != nil {
				return err
			}
			from := pair.src.Child(entry.Name())
			to := pair.dst.Child(entry.Name())
			if entry.IsDir() {
				stack = append(stack, dirPair{src: from, dst: to})
				continue
			}
			itemType := core.ItemFile
			if entry.Type()&fs.ModeSymlink != 0 {
				itemType = core.ItemSymlink
			}
			native, err := uniqueIn(to, itemType)
			if err != nil {
				return err
			}
			if err := c.copyLeaf(from, to.WithNative(native), itemType); err != nil {
				return err
			}
		}
	}
	return nil
}

func uniqueIn(loc resolver.Location, itemType core.ItemType) (string, error) {
	if !filesystem.Exists(loc.FS, loc.Native) {
		return loc.Native, nil
	}
	return uniqueName(loc, itemType)
}

// copyLeaf copies a file or link. A denied or failed managed copy is retried
// through the backend's bypass path when source and destination share it.
func (c *call) copyLeaf(src, dst resolver.Location, itemType core.ItemType) error {
	if itemType == core.ItemSymlink {
		return filesystem.CopySymlink(src.FS, src.Native, dst.FS, dst.Native)
	}
	err := filesystem.CopyFile(src.FS, src.Native, dst.FS, dst.Native)
	if err == nil {
		return nil
	}
	code := core.Classify(err)
	if !code.Has(core.Unauthorized) && !code.Has(core.Generic) {
		return err
	}
	bypass, ok := dst.FS.(filesystem.BypassFS)
	if !ok || src.FS.Name() != dst.FS.Name() {
		return err
	}
	c.fallback(core.FallbackBypass, src.Original)
	if berr := bypass.CopyFileBypass(src.Native, dst.Native); berr != nil {
		c.logger.Debug().Err(berr).Str("path", src.Original).Msg("bypass copy failed")
		if core.Classify(berr).Has(core.Unauthorized) {
			return berr
		}
		return err
	}
	return nil
}

// removeTree permanently deletes loc, retrying through the backend's bypass
// path when the ordinary delete was denied or failed. InUse is final.
func (c *call) removeTree(loc resolver.Location) error {
	err := loc.FS.RemoveAll(loc.Native)
	if err == nil {
		return nil
	}
	code := core.Classify(err)
	if !code.Has(core.Unauthorized) && !code.Has(core.Generic) {
		return err
	}
	bypass, ok := loc.FS.(filesystem.BypassFS)
	if !ok {
		return err
	}
	c.fallback(core.FallbackBypass, loc.Original)
	if berr := bypass.RemoveBypass(loc.Native); berr != nil {
		c.logger.Debug().Err(berr).Str("path", loc.Original).Msg("bypass delete failed")
		if core.Classify(berr).Has(core.Unauthorized) {
			return berr
		}
		return err
	}
	return nil
}

// delegateTransfers hands denied copy or move items to the helper. Items
// that replace their destination travel in a separate request because
// overwrite is per request.
func (c *call) delegateTransfers(items []*item, op channel.FileOp) {
	groups := map[bool][]*item{}
	for _, it := range items {
		if it.denied() {
			groups[it.replace] = append(groups[it.replace], it)
		}
	}
	for _, overwrite := range []bool{false, true} {
		group := groups[overwrite]
		if len(group) == 0 {
			continue
		}
		locs := make([]resolver.Location, 0, 2*len(group))
		for _, it := range group {
			locs = append(locs, it.src, it.dst)
		}
		if !c.canDelegate(locs...) {
			continue
		}

		req := channel.FileOpRequest{Op: op, Overwrite: overwrite}
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
			it.succeed(core.NewPath(produced, it.source.ItemType))
		}
	}
}

func uniqueName(loc resolver.Location, itemType core.ItemType) (string, error) {
	return conflict.UniqueName(loc.FS, loc.FS.Dir(loc.Native), loc.FS.Base(loc.Native), itemType == core.ItemDirectory)
}
