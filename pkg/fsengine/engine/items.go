package engine

import (
	"context"
	"errors"
	"io/fs"
	"strconv"

	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
	"github.com/arthur-debert/fsengine/pkg/fsengine/recyclebin"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

type itemState int

const (
	statePending itemState = iota
	stateDone
	statePartial
	stateSkipped
	stateFailed
)

// item tracks one element of a batch from validation to its outcome.
type item struct {
	index  int
	source core.PathWithType
	target string

	src resolver.Location
	dst resolver.Location

	// replace removes an existing destination before writing
	replace bool
	// final failures are never handed to the helper
	final bool
	// soft deletes go to the trash
	soft   bool
	record *core.RecycleBinRecord

	state   itemState
	product core.PathWithType
	code    core.ErrorCode
	err     error
}

func (it *item) id() string { return strconv.Itoa(it.index) }

func (it *item) succeed(product core.PathWithType) {
	it.state = stateDone
	it.product = product
	it.code = core.Success
	it.err = nil
}

func (it *item) partial(product core.PathWithType, cause error) {
	it.state = statePartial
	it.product = product
	it.code = core.Success | core.InProgress
	it.err = cause
}

func (it *item) skip() {
	it.state = stateSkipped
	it.code = core.Success
}

func (it *item) fail(err error) {
	it.failCode(core.Classify(err), err)
}

func (it *item) failCode(code core.ErrorCode, err error) {
	it.state = stateFailed
	it.code = code
	it.err = err
}

// reject fails the item for a reason no fallback can fix.
func (it *item) reject(code core.ErrorCode, err error) {
	it.failCode(code, err)
	it.final = true
}

func (it *item) pending() bool { return it.state == statePending }

// denied reports whether the helper might succeed where direct I/O failed.
func (it *item) denied() bool {
	return it.state == stateFailed && !it.final && it.code.Has(core.Unauthorized)
}

func (it *item) completed() bool {
	return it.state == stateDone || it.state == statePartial
}

func newItems(sources []core.PathWithType) []*item {
	items := make([]*item, len(sources))
	for i, src := range sources {
		items[i] = &item{index: i, source: src}
	}
	return items
}

func pairItems(sources []core.PathWithType, destinations []string) ([]*item, error) {
	if len(sources) != len(destinations) {
		return nil, ErrCountMismatch
	}
	items := newItems(sources)
	for i, it := range items {
		it.target = destinations[i]
	}
	return items, nil
}

// cancelled fails it when the call's context is done.
func (c *call) cancelled(it *item) bool {
	if err := c.ctx.Err(); err != nil {
		it.reject(core.Cancelled, err)
		return true
	}
	return false
}

// conclude turns item outcomes into the call's result. entry is recorded
// even when some items failed, since it describes work that did happen.
func (c *call) conclude(items []*item, entry *core.HistoryEntry) core.Result[*core.HistoryEntry] {
	c.keep(entry)
	batch := &core.BatchError{}
	var partialCause error
	for _, it := range items {
		switch it.state {
		case statePending:
			err := c.ctx.Err()
			if err == nil {
				err = errors.New("item was not processed")
			}
			it.failCode(core.Classify(err), err)
			batch.Failed = append(batch.Failed, &core.ItemError{Item: it.source, Code: it.code, Err: it.err})
		case stateFailed:
			batch.Failed = append(batch.Failed, &core.ItemError{Item: it.source, Code: it.code, Err: it.err})
		case statePartial:
			batch.Succeeded++
			partialCause = it.err
		default:
			batch.Succeeded++
		}
	}
	switch {
	case len(batch.Failed) > 0:
		return core.Fail[*core.HistoryEntry](batch.Code(), batch)
	case partialCause != nil:
		return core.Partial(entry, partialCause)
	default:
		return core.Ok(entry)
	}
}

// transferEntry records the completed items of a copy, move or restore.
// States other than want are left out.
func transferEntry(opType core.OperationType, items []*item, want itemState) *core.HistoryEntry {
	var src, dst []core.PathWithType
	for _, it := range items {
		if it.state != want {
			continue
		}
		src = append(src, it.src.Descriptor(it.source.ItemType))
		dst = append(dst, it.product)
	}
	if len(src) == 0 {
		return nil
	}
	return core.NewHistoryEntry(opType, src, dst)
}

func products(items []*item) []core.PathWithType {
	var out []core.PathWithType
	for _, it := range items {
		if it.completed() {
			out = append(out, it.product)
		}
	}
	return out
}

// settleDestinations detects collisions among pending items and applies the
// call's collision option or conflict policy. Items keep their destination
// when it is free.
func (c *call) settleDestinations(items []*item) {
	var conflicts []conflict.Conflict
	byID := make(map[string]*item)
	for _, it := range items {
		if !it.pending() || !filesystem.Exists(it.dst.FS, it.dst.Native) {
			continue
		}
		if c.cfg.collision != nil {
			c.applyCollision(it, *c.cfg.collision)
			continue
		}
		conflicts = append(conflicts, conflict.Conflict{
			ItemID:      it.id(),
			Source:      it.source,
			Destination: it.dst.Original,
		})
		byID[it.id()] = it
	}
	if len(conflicts) == 0 {
		return
	}

	decided, err := c.cfg.policy.Decide(c.ctx, conflicts)
	if err != nil {
		for _, it := range byID {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				it.reject(core.Cancelled, err)
			} else {
				it.reject(core.Generic, err)
			}
		}
		return
	}
	for id, it := range byID {
		switch decided[id] {
		case conflict.Skip:
			it.skip()
			c.logger.Debug().Str("path", it.source.Path).Msg("skipping conflicting item")
		case conflict.Replace:
			c.applyCollision(it, conflict.ReplaceExisting)
		default:
			c.applyCollision(it, conflict.GenerateUniqueName)
		}
	}
}

func (c *call) applyCollision(it *item, opt conflict.Option) {
	same := it.src.FS != nil && it.src.FS.Name() == it.dst.FS.Name() && it.src.Native == it.dst.Native
	switch {
	case opt == conflict.FailIfExists:
		it.reject(core.AlreadyExists, &fs.PathError{Op: c.opType.String(), Path: it.dst.Original, Err: fs.ErrExist})
	case opt == conflict.ReplaceExisting && same && c.opType == core.OpMove:
		it.skip()
	case opt == conflict.ReplaceExisting && !same:
		it.replace = true
	default:
		native, err := conflict.UniqueName(it.dst.FS, it.dst.FS.Dir(it.dst.Native), it.dst.FS.Base(it.dst.Native), it.source.IsDir())
		if err != nil {
			it.reject(core.Generic, err)
			return
		}
		it.dst = it.dst.WithNative(native)
	}
}

// prepareTransfer resolves the sources and destinations of a copy or move
// and rejects destinations no fallback could make valid.
func (c *call) prepareTransfer(items []*item) {
	for _, it := range items {
		if c.cancelled(it) {
			continue
		}
		res := c.e.resolver.Resolve(c.ctx, it.source.Path)
		src, ok := res.Value()
		if !ok {
			it.reject(res.Code(), res.Err())
			continue
		}
		it.src = src

		located := c.e.resolver.Locate(c.ctx, it.target)
		dst, ok := located.Value()
		if !ok {
			it.reject(located.Code(), located.Err())
			continue
		}
		it.dst = dst
		if c.e.isTrash(dst.Original) {
			it.reject(core.Unauthorized, &fs.PathError{Op: c.opType.String(), Path: dst.Original, Err: ErrTrashReadOnly})
			continue
		}
		if it.source.IsDir() && contains(src, dst.Parent()) {
			it.reject(core.Generic, &fs.PathError{Op: c.opType.String(), Path: dst.Original, Err: ErrCopyIntoSelf})
		}
	}
}

// contains reports whether inner is outer or lies below it.
func contains(outer, inner resolver.Location) bool {
	if outer.FS == nil || inner.FS == nil || outer.FS.Name() != inner.FS.Name() {
		return false
	}
	if outer.Native == inner.Native {
		return true
	}
	prefix := outer.FS.Join(outer.Native, "x")
	prefix = prefix[:len(prefix)-1]
	return len(inner.Native) > len(prefix) && inner.Native[:len(prefix)] == prefix
}

// recycleEntry pairs soft-deleted items with the newest trash record for
// their original path.
func (c *call) recycleEntry(items []*item) *core.HistoryEntry {
	var soft []*item
	for _, it := range items {
		if it.completed() && it.soft {
			soft = append(soft, it)
		}
	}
	if len(soft) == 0 {
		return nil
	}
	records, err := c.e.trash.Enumerate(c.ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("could not enumerate trash for history")
	}
	var src, dst []core.PathWithType
	for _, it := range soft {
		record, ok := recyclebin.FindNewest(records, it.src.Native)
		if !ok && it.record != nil {
			record, ok = *it.record, true
		}
		if !ok {
			c.logger.Warn().Str("path", it.src.Original).Msg("no trash record found for recycled item")
			continue
		}
		src = append(src, it.src.Descriptor(it.source.ItemType))
		dst = append(dst, core.NewPath(record.RecyclePath, it.source.ItemType))
	}
	if len(src) == 0 {
		return nil
	}
	return core.NewHistoryEntry(core.OpRecycle, src, dst)
}
