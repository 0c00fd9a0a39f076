package helper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/engine"
)

var errNoTrash = errors.New("helper has no trash configured")

func errorMessage(err error) channel.Message {
	return channel.Message{
		channel.KeySuccess: false,
		channel.KeyError:   err.Error(),
	}
}

// dispatch answers one request message.
func (s *Server) dispatch(ctx context.Context, c *conn, msg channel.Message) channel.Message {
	switch msg.String(channel.KeyArguments) {
	case channel.ArgFileOperation:
		req, operationID, err := channel.DecodeFileOp(msg)
		if err != nil {
			return errorMessage(err)
		}
		resp := s.fileOperation(ctx, c, req, operationID)
		reply, err := channel.EncodeFileOpResponse(req, resp)
		if err != nil {
			return errorMessage(err)
		}
		return reply

	case channel.ArgRecycleBin:
		req, err := channel.DecodeRecycle(msg)
		if err != nil {
			return errorMessage(err)
		}
		reply, err := channel.EncodeRecycleResponse(req, s.recycleBin(ctx, req))
		if err != nil {
			return errorMessage(err)
		}
		return reply

	default:
		return errorMessage(fmt.Errorf("unknown request %q", msg.String(channel.KeyArguments)))
	}
}

// fileOperation runs req on the helper's engine and pushes its progress to
// the client under operationID.
func (s *Server) fileOperation(ctx context.Context, c *conn, req channel.FileOpRequest, operationID string) channel.FileOpResponse {
	logger := s.logger.With().
		Str("op_id", operationID).
		Str("fileop", string(req.Op)).
		Int("items", len(req.Sources)).
		Logger()
	logger.Info().Msg("running privileged operation")

	opts := []engine.CallOption{
		engine.WithoutHistory(),
		engine.WithProgress(core.ProgressFunc(func(percent float64) {
			_ = c.send(channel.ProgressMessage(operationID, percent))
		})),
	}

	var (
		r        core.Result[*core.HistoryEntry]
		produced func(*core.HistoryEntry) []string
	)
	switch req.Op {
	case channel.OpCopyItem:
		opts = append(opts, engine.WithCollision(transferCollision(req.Overwrite)))
		r = s.engine.CopyItems(ctx, s.describe(ctx, req.Sources), req.Destinations, opts...)
		produced = destinationPaths

	case channel.OpMoveItem:
		opts = append(opts, engine.WithCollision(transferCollision(req.Overwrite)))
		r = s.engine.MoveItems(ctx, s.describe(ctx, req.Sources), req.Destinations, opts...)
		produced = destinationPaths

	case channel.OpDeleteItem:
		r = s.engine.DeleteItems(ctx, s.describe(ctx, req.Sources), req.Permanently, opts...)
		produced = func(*core.HistoryEntry) []string { return req.Sources }

	case channel.OpRenameItem:
		if len(req.Sources) != 1 {
			return channel.FileOpResponse{Error: fmt.Sprintf("rename takes one item, got %d", len(req.Sources))}
		}
		collision := conflict.FailIfExists
		if req.Overwrite {
			collision = conflict.ReplaceExisting
		}
		r = s.engine.Rename(ctx, s.describe(ctx, req.Sources)[0], req.NewName, collision, opts...)
		produced = destinationPaths

	case channel.OpCreateLink:
		if len(req.Sources) != 1 {
			return channel.FileOpResponse{Error: fmt.Sprintf("create link takes one item, got %d", len(req.Sources))}
		}
		opts = append(opts, engine.WithLinkOptions(engine.LinkOptions{
			Arguments:  req.Arguments,
			WorkingDir: req.WorkingDir,
			RunAsAdmin: req.RunAsAdmin,
		}))
		r = s.engine.CreateLink(ctx, req.Sources[0], req.TargetPath, opts...)
		produced = sourcePaths

	default:
		return channel.FileOpResponse{Error: fmt.Sprintf("unsupported fileop %q", req.Op)}
	}

	if !r.Succeeded() {
		logger.Warn().Str("code", r.Code().String()).Err(r.Err()).Msg("privileged operation failed")
		return channel.FileOpResponse{Error: r.String()}
	}
	entry := r.MustValue()
	var items []string
	if entry != nil {
		items = produced(entry)
	}
	logger.Info().Str("code", r.Code().String()).Int("produced", len(items)).Msg("privileged operation finished")
	return channel.FileOpResponse{Success: true, Items: items}
}

// transferCollision maps the wire overwrite flag. Destinations arrive
// already settled, so without overwrite a late collision gets a fresh name.
func transferCollision(overwrite bool) conflict.Option {
	if overwrite {
		return conflict.ReplaceExisting
	}
	return conflict.GenerateUniqueName
}

func sourcePaths(entry *core.HistoryEntry) []string {
	return core.Paths(entry.Source)
}

func destinationPaths(entry *core.HistoryEntry) []string {
	return core.Paths(entry.Destination)
}

// describe looks up the kind of every path. Paths that cannot be read are
// described as files; the engine reports them when it resolves them.
func (s *Server) describe(ctx context.Context, paths []string) []core.PathWithType {
	items := make([]core.PathWithType, len(paths))
	for i, p := range paths {
		itemType := core.ItemFile
		if loc, ok := s.engine.Resolver().Resolve(ctx, p).Value(); ok {
			if info, err := loc.FS.Lstat(loc.Native); err == nil {
				itemType = typeOf(info.Mode())
			}
		}
		items[i] = core.NewPath(p, itemType)
	}
	return items
}

func typeOf(mode fs.FileMode) core.ItemType {
	switch {
	case mode&fs.ModeSymlink != 0:
		return core.ItemSymlink
	case mode.IsDir():
		return core.ItemDirectory
	default:
		return core.ItemFile
	}
}

func (s *Server) recycleBin(ctx context.Context, req channel.RecycleRequest) channel.RecycleResponse {
	trash := s.engine.Trash()
	if trash == nil {
		return channel.RecycleResponse{Error: errNoTrash.Error()}
	}
	switch req.Action {
	case channel.RecycleEnumerate:
		records, err := trash.Enumerate(ctx)
		if err != nil {
			return channel.RecycleResponse{Error: err.Error()}
		}
		return channel.RecycleResponse{Success: true, Records: records}
	case channel.RecycleQuery:
		stats, err := trash.Query(ctx)
		if err != nil {
			return channel.RecycleResponse{Error: err.Error()}
		}
		return channel.RecycleResponse{Success: true, Stats: stats}
	case channel.RecycleEmpty:
		if err := trash.Empty(ctx); err != nil {
			return channel.RecycleResponse{Error: err.Error()}
		}
		s.logger.Info().Msg("trash emptied")
		return channel.RecycleResponse{Success: true}
	default:
		return channel.RecycleResponse{Error: fmt.Sprintf("unknown recycle bin action %q", req.Action)}
	}
}
