package engine

import (
	"context"
	"io/fs"
	"strings"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

// Rename gives item a new name in its current directory. collision decides
// what happens when newName is taken.
func (e *Engine) Rename(ctx context.Context, item core.PathWithType, newName string, collision conflict.Option, opts ...CallOption) core.Result[*core.HistoryEntry] {
	return e.run(ctx, core.OpRename, []core.PathWithType{item}, opts, func(c *call) core.Result[*core.HistoryEntry] {
		oldName := logicalBase(item.Path)
		if newName == oldName {
			if collision == conflict.FailIfExists {
				return core.Fail[*core.HistoryEntry](core.AlreadyExists, &fs.PathError{Op: "rename", Path: item.Path, Err: fs.ErrExist})
			}
			return core.Ok[*core.HistoryEntry](nil)
		}
		if err := ValidateName(newName); err != nil {
			return core.Fail[*core.HistoryEntry](core.InvalidName, err)
		}
		if e.isTrash(item.Path) {
			return core.Fail[*core.HistoryEntry](core.Unauthorized, &fs.PathError{Op: "rename", Path: item.Path, Err: ErrTrashReadOnly})
		}

		resolved := e.resolver.Resolve(ctx, item.Path)
		src, ok := resolved.Value()
		if !ok {
			if resolved.Code().Has(core.NotFound) {
				c.vanished(item.Path)
			}
			return core.Convert[resolver.Location, *core.HistoryEntry](resolved)
		}
		dst := src.Parent().Child(newName)

		taken := filesystem.Exists(dst.FS, dst.Native)
		if taken && strings.EqualFold(newName, oldName) {
			// on case-insensitive backends the new spelling finds the item itself
			taken = hasEntry(dst.FS, dst.FS.Dir(dst.Native), dst.FS.Base(dst.Native))
		}
		replace := false
		if taken {
			switch collision {
			case conflict.FailIfExists:
				return core.Fail[*core.HistoryEntry](core.AlreadyExists, &fs.PathError{Op: "rename", Path: dst.Original, Err: fs.ErrExist})
			case conflict.ReplaceExisting:
				replace = true
			default:
				native, err := uniqueName(dst, item.ItemType)
				if err != nil {
					return core.Fail[*core.HistoryEntry](core.Generic, err)
				}
				dst = dst.WithNative(native)
			}
		}

		product := dst.Descriptor(item.ItemType)
		err := c.replacing(dst, replace, func() error {
			return src.FS.Rename(src.Native, dst.Native)
		})
		if err != nil {
			if !core.Classify(err).Has(core.Unauthorized) || !c.canDelegate(src) {
				return core.Fail[*core.HistoryEntry](core.Classify(err), err)
			}
			pairs, derr := c.delegate(channel.FileOpRequest{
				Op:        channel.OpRenameItem,
				Sources:   []string{src.Original},
				NewName:   logicalBase(dst.Original),
				Overwrite: replace,
			})
			if derr != nil {
				return core.Fail[*core.HistoryEntry](core.Classify(derr), derr)
			}
			if produced, ok := pairs[src.Original]; ok {
				product = core.NewPath(produced, item.ItemType)
			}
		}
		c.logger.Debug().Str("path", src.Original).Str("dest", product.Path).Msg("renamed")

		entry := core.NewHistoryEntry(core.OpRename,
			[]core.PathWithType{src.Descriptor(item.ItemType)},
			[]core.PathWithType{product})
		c.keep(entry)
		c.announce([]core.PathWithType{product}, []string{src.Original}, false)
		return core.Ok(entry)
	})
}

// hasEntry reports whether dir lists an entry spelled exactly name. An
// unreadable dir counts as a match.
func hasEntry(fsys filesystem.FileSystem, dir, name string) bool {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return true
	}
	for _, entry := range entries {
		if entry.Name() == name {
			return true
		}
	}
	return false
}
