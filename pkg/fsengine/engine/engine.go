// Package engine performs filesystem operations on behalf of a view. Each
// call validates its input, resolves paths to backends, executes with
// escalating fallbacks, reports an ErrorCode result and records what it did
// in the undo log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/history"
	"github.com/arthur-debert/fsengine/pkg/fsengine/recyclebin"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

var (
	// ErrCopyIntoSelf is returned when a directory would be copied or moved
	// into itself or one of its descendants.
	ErrCopyIntoSelf = errors.New("destination is inside the source folder")
	// ErrTrashReadOnly is returned for writes targeting the trash root.
	ErrTrashReadOnly = errors.New("the trash is not a valid destination")
	// ErrInvalidName is returned for names the backends cannot store.
	ErrInvalidName = errors.New("invalid name")
	// ErrPathLess marks items left at their origin because their backend
	// exposes no native path.
	ErrPathLess = errors.New("item has no native path; origin left in place")
	// ErrCountMismatch is returned when sources and destinations differ in length.
	ErrCountMismatch = errors.New("sources and destinations differ in length")
)

// Engine runs operations for one session.
type Engine struct {
	session       Session
	resolver      *resolver.Resolver
	trash         *recyclebin.Adapter
	undo          *history.UndoLog
	listings      ListingInvalidator
	dispatcher    *Dispatcher
	ownDispatcher bool
	logger        zerolog.Logger
}

// New creates an engine bound to session.
func New(session Session, res *resolver.Resolver, opts ...Option) *Engine {
	e := &Engine{
		session:  session,
		resolver: res,
		logger:   session.Logger.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.undo == nil {
		e.undo = history.New()
	}
	if e.dispatcher == nil {
		e.dispatcher = NewDispatcher()
		e.ownDispatcher = true
	}
	return e
}

// Close stops the engine's dispatcher unless it was shared.
func (e *Engine) Close() {
	if e.ownDispatcher {
		e.dispatcher.Close()
	}
}

// UndoLog returns the engine's history.
func (e *Engine) UndoLog() *history.UndoLog { return e.undo }

// Trash returns the trash adapter, nil when soft deletes are disabled.
func (e *Engine) Trash() *recyclebin.Adapter { return e.trash }

// Resolver returns the engine's path resolver.
func (e *Engine) Resolver() *resolver.Resolver { return e.resolver }

func (e *Engine) isTrash(path string) bool {
	return e.trash != nil && e.trash.IsTrashItem(path)
}

// hasTrashTier reports whether soft deletes are possible for loc. Devices
// and shares delete permanently.
func (e *Engine) hasTrashTier(loc resolver.Location) bool {
	return e.trash != nil &&
		loc.Kind == resolver.KindLocal &&
		loc.FS.Name() == e.trash.Store().FileSystem().Name()
}

// call carries the state of one engine call.
type call struct {
	e        *Engine
	ctx      context.Context
	id       string
	opType   core.OperationType
	cfg      callConfig
	progress *core.ProgressTracker
	logger   zerolog.Logger
	data     core.OperationEventData
	entries  []*core.HistoryEntry
}

type callFunc func(c *call) core.Result[*core.HistoryEntry]

// run wraps fn with the parts every call shares: events, logging, panic
// recovery, the final 100% progress report and history recording.
func (e *Engine) run(ctx context.Context, opType core.OperationType, items []core.PathWithType, opts []CallOption, fn callFunc) (result core.Result[*core.HistoryEntry]) {
	cfg := newCallConfig(opts)
	id := uuid.NewString()
	c := &call{
		e:        e,
		ctx:      ctx,
		id:       id,
		opType:   opType,
		cfg:      cfg,
		progress: core.NewProgressTracker(cfg.progress),
		logger: e.logger.With().
			Str("op_id", id).
			Str("op_type", opType.String()).
			Logger(),
		data: core.OperationEventData{
			OperationID:   id,
			OperationType: opType,
			Items:         len(items),
		},
	}
	if len(items) > 0 {
		c.data.Path = items[0].Path
	}

	start := time.Now()
	c.publish(core.NewOperationStartedEvent(c.data))
	c.logger.Debug().Int("items", len(items)).Str("path", c.data.Path).Msg("operation started")

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("operation panicked")
			result = core.Fail[*core.HistoryEntry](core.Generic, fmt.Errorf("panic during %s: %v", opType, r))
		}
		c.progress.Finish()
		c.recordHistory()

		duration := time.Since(start)
		if result.Succeeded() {
			c.logger.Info().
				Str("code", result.Code().String()).
				Dur("duration", duration).
				Msg("operation completed")
			c.publish(core.NewOperationCompletedEvent(c.data, result.Code(), duration))
			return
		}
		c.logger.Warn().
			Err(result.Err()).
			Str("code", result.Code().String()).
			Dur("duration", duration).
			Msg("operation failed")
		c.publish(core.NewOperationFailedEvent(c.data, result.Code(), result.Err(), duration))
	}()

	if err := ctx.Err(); err != nil {
		return core.Fail[*core.HistoryEntry](core.Cancelled, err)
	}
	return fn(c)
}

func (c *call) publish(event core.Event) {
	bus := c.e.session.Events
	if bus == nil {
		return
	}
	if err := bus.Publish(context.WithoutCancel(c.ctx), event); err != nil {
		c.logger.Debug().Err(err).Str("event", event.Type()).Msg("event handler failed")
	}
}

// fallback announces that the call escalated to a slower path.
func (c *call) fallback(kind, path string) {
	c.logger.Debug().Str("fallback", kind).Str("path", path).Msg("escalating")
	data := c.data
	data.Path = path
	c.publish(core.NewOperationFallbackEvent(data, kind))
}

// keep schedules entry for the undo log. Entries are recorded in order when
// the call returns, whatever its result.
func (c *call) keep(entry *core.HistoryEntry) {
	if entry != nil {
		c.entries = append(c.entries, entry)
	}
}

func (c *call) recordHistory() {
	if c.cfg.noHistory {
		return
	}
	for _, entry := range c.entries {
		if err := c.e.undo.Append(entry); err != nil {
			c.logger.Error().Err(err).Msg("failed to record history")
		}
	}
}

// canDelegate reports whether the helper can take over locs.
func (c *call) canDelegate(locs ...resolver.Location) bool {
	if !channel.IsAvailable(c.e.session.Channel) {
		return false
	}
	for _, loc := range locs {
		if loc.PathLess() {
			return false
		}
	}
	return true
}

// delegate hands req to the helper and pairs each source with the path the
// helper produced for it. Helper failures are terminal.
func (c *call) delegate(req channel.FileOpRequest) (map[string]string, error) {
	c.fallback(core.FallbackPrivileged, strings.Join(req.Sources, "|"))
	resp, err := c.e.session.Channel.FileOperation(c.ctx, req, c.progress)
	if err != nil {
		if ctxErr := c.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, core.WithCode(core.Generic, fmt.Errorf("helper %s: %w", req.Op, err))
	}
	if !resp.Success {
		return nil, core.WithCode(core.Generic, fmt.Errorf("helper %s: %s", req.Op, resp.Error))
	}
	return channel.Correlate(req.Sources, resp.Items, logicalBase), nil
}

// announce pushes listing changes to the session. Only items directly inside
// the displayed directory reach it. Every touched parent, and the trees of
// the touched items, are invalidated in the listing cache.
func (c *call) announce(added []core.PathWithType, removed []string, selectAdded bool) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	if c.e.listings != nil {
		touched := make(map[string]bool)
		for _, item := range added {
			touched[logicalDir(item.Path)] = true
		}
		for _, p := range removed {
			touched[logicalDir(p)] = true
		}
		for dir := range touched {
			c.e.listings.Invalidate(dir)
		}
		for _, item := range added {
			c.e.listings.InvalidateTree(item.Path)
		}
		for _, p := range removed {
			c.e.listings.InvalidateTree(p)
		}
	}

	wd := c.e.session.WorkingDirectory
	if wd == nil {
		return
	}
	cwd := wd.Path()
	var visibleAdded []core.PathWithType
	var visibleRemoved []string
	for _, item := range added {
		if samePath(logicalDir(item.Path), cwd) {
			visibleAdded = append(visibleAdded, item)
		}
	}
	for _, p := range removed {
		if samePath(logicalDir(p), cwd) {
			visibleRemoved = append(visibleRemoved, p)
		}
	}
	if len(visibleAdded) == 0 && len(visibleRemoved) == 0 {
		return
	}
	selection := c.e.session.Selection
	c.e.dispatcher.Do(func() {
		if len(visibleRemoved) > 0 {
			wd.RemoveItems(visibleRemoved)
		}
		if len(visibleAdded) > 0 {
			wd.AddItems(visibleAdded)
			if selectAdded && selection != nil {
				selection.Select(core.Paths(visibleAdded))
			}
		}
	})
}

// vanished handles an item found missing: it leaves the live listing, which
// is then refreshed.
func (c *call) vanished(path string) {
	c.announce(nil, []string{path}, false)
	if wd := c.e.session.WorkingDirectory; wd != nil {
		c.e.dispatcher.Do(wd.Refresh)
	}
}

func isLogical(p string) bool {
	return strings.HasPrefix(p, `\\`)
}

// logicalBase returns the last element of a local or logical path.
func logicalBase(p string) string {
	if isLogical(p) {
		p = strings.TrimRight(p, `\`)
		return p[strings.LastIndex(p, `\`)+1:]
	}
	return filepath.Base(p)
}

// logicalDir returns the parent of a local or logical path.
func logicalDir(p string) string {
	if isLogical(p) {
		p = strings.TrimRight(p, `\`)
		if i := strings.LastIndex(p, `\`); i > 1 {
			return p[:i]
		}
		return p
	}
	return filepath.Dir(p)
}

func samePath(a, b string) bool {
	if isLogical(a) || isLogical(b) {
		return strings.EqualFold(strings.TrimRight(a, `\`), strings.TrimRight(b, `\`))
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
