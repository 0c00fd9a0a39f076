package engine

import (
	"context"
	"fmt"

	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/history"
)

// Undo applies the inverse of the newest history entry. The entry leaves the
// log once the inverse succeeded, or straight away when it cannot be
// inverted; a failed inverse keeps it for another attempt. The inverse
// itself is not recorded.
func (e *Engine) Undo(ctx context.Context, opts ...CallOption) core.Result[*core.HistoryEntry] {
	entry, ok := e.undo.Last()
	if !ok {
		return core.Fail[*core.HistoryEntry](core.NotFound, history.ErrEmpty)
	}
	inverse, err := history.Inverse(entry)
	if err != nil {
		e.logger.Warn().Err(err).Str("op_type", entry.OperationType.String()).Msg("cannot undo")
		e.discard(entry)
		return core.Fail[*core.HistoryEntry](core.Generic, err)
	}
	e.logger.Info().
		Str("op_type", entry.OperationType.String()).
		Str("inverse", inverse.OperationType.String()).
		Int("items", len(inverse.Source)).
		Msg("undoing")

	result := e.applyInverse(ctx, inverse, append(opts, WithoutHistory()))
	if result.Succeeded() {
		e.discard(entry)
	}
	return result
}

func (e *Engine) applyInverse(ctx context.Context, inverse *core.HistoryEntry, opts []CallOption) core.Result[*core.HistoryEntry] {
	switch inverse.OperationType {
	case core.OpDelete:
		return e.DeleteItems(ctx, inverse.Source, true, opts...)
	case core.OpRecycle:
		return e.DeleteItems(ctx, inverse.Source, false, opts...)
	case core.OpMove:
		return e.MoveItems(ctx, inverse.Source, core.Paths(inverse.Destination), append(opts, WithCollision(conflict.FailIfExists))...)
	case core.OpRestore:
		return e.RestoreItems(ctx, inverse.Source, core.Paths(inverse.Destination), opts...)
	case core.OpRename:
		return e.undoRename(ctx, inverse, opts)
	default:
		return core.Fail[*core.HistoryEntry](core.Generic, fmt.Errorf("%s: %w", inverse.OperationType, history.ErrNotInvertible))
	}
}

func (e *Engine) discard(entry *core.HistoryEntry) {
	if err := e.undo.Discard(entry); err != nil {
		e.logger.Error().Err(err).Msg("failed to update history")
	}
}

func (e *Engine) undoRename(ctx context.Context, inverse *core.HistoryEntry, opts []CallOption) core.Result[*core.HistoryEntry] {
	var last core.Result[*core.HistoryEntry]
	for i, item := range inverse.Source {
		last = e.Rename(ctx, item, logicalBase(inverse.Destination[i].Path), conflict.FailIfExists, opts...)
		if !last.Succeeded() {
			return last
		}
	}
	return last
}
