// Package fsengine assembles the operation engine and its collaborators from
// a configuration.
package fsengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/config"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/engine"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
	"github.com/arthur-debert/fsengine/pkg/fsengine/history"
	"github.com/arthur-debert/fsengine/pkg/fsengine/listing"
	"github.com/arthur-debert/fsengine/pkg/fsengine/metrics"
	"github.com/arthur-debert/fsengine/pkg/fsengine/recyclebin"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logger    *zerolog.Logger
	view      engine.WorkingDirectory
	selection engine.SelectionProvider
	noHelper  bool
}

// WithLogger replaces the logger built from the configured level.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithView binds the engine to a working directory and selection.
func WithView(wd engine.WorkingDirectory, selection engine.SelectionProvider) Option {
	return func(o *options) {
		o.view = wd
		o.selection = selection
	}
}

// WithoutHelper never dials the privileged helper. The helper itself runs
// with this option.
func WithoutHelper() Option {
	return func(o *options) { o.noHelper = true }
}

// Runtime is an engine together with everything it was built from.
type Runtime struct {
	Config   config.Config
	Logger   zerolog.Logger
	Resolver *resolver.Resolver
	Trash    *recyclebin.Adapter
	Events   *core.MemoryEventBus
	Metrics  *metrics.Collector
	Listings *listing.Cache
	Warmer   *listing.Warmer
	Engine   *engine.Engine

	// Channel is nil when no helper is configured or it could not be reached.
	Channel *channel.Client
}

// Open builds a runtime from cfg. An unreachable helper is not an error:
// the engine then reports denied operations as Unauthorized.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger := DefaultLogger()
	if o.logger != nil {
		logger = *o.logger
	} else if l, err := LoggerFor(defaultWriter, cfg.LogLevel); err == nil {
		logger = l
	}

	local := filesystem.NewOSFileSystem("")
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Resolver: resolver.New(local, resolverOptions(cfg, logger)...),
		Events:   core.NewMemoryEventBus(logger),
		Metrics:  metrics.New(),
		Listings: listing.NewCache(),
	}
	rt.Metrics.Subscribe(rt.Events)
	rt.Warmer = listing.NewWarmer(rt.Resolver, rt.Listings, cfg.WarmParallelism, logger)

	if cfg.HelperURL != "" && !o.noHelper {
		ch, err := channel.Dial(ctx, cfg.HelperURL, logger)
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.HelperURL).Msg("privileged helper not reachable")
		} else {
			rt.Channel = ch
		}
	}
	var priv channel.Privileged
	if rt.Channel != nil {
		priv = rt.Channel
	}

	store, err := recyclebin.NewStore(cfg.TrashRoot, local, logger)
	if err != nil {
		_ = rt.closeChannel()
		return nil, fmt.Errorf("open trash: %w", err)
	}
	rt.Trash = recyclebin.NewAdapter(store, priv, logger)

	undo := history.New()
	if cfg.UndoLog != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.UndoLog), 0o755); err != nil {
			_ = rt.closeChannel()
			return nil, fmt.Errorf("create undo log directory: %w", err)
		}
		undo, err = history.Open(cfg.UndoLog, 0)
		if err != nil {
			_ = rt.closeChannel()
			return nil, err
		}
	}

	rt.Engine = engine.New(engine.Session{
		WorkingDirectory: o.view,
		Selection:        o.selection,
		Channel:          priv,
		Events:           rt.Events,
		Logger:           logger,
	}, rt.Resolver,
		engine.WithTrash(rt.Trash),
		engine.WithUndoLog(undo),
		engine.WithListingCache(rt.Listings),
	)

	logger.Debug().
		Str("trash_root", cfg.TrashRoot).
		Bool("helper", rt.Channel != nil).
		Int("devices", len(cfg.Devices)).
		Int("shares", len(cfg.Shares)).
		Msg("engine ready")
	return rt, nil
}

func resolverOptions(cfg config.Config, logger zerolog.Logger) []resolver.Option {
	opts := []resolver.Option{resolver.WithLogger(logger)}
	if len(cfg.Devices) > 0 {
		devices := make(resolver.StaticDevices, len(cfg.Devices))
		for i, d := range cfg.Devices {
			devices[i] = resolver.Device{Name: d.Name, Mount: d.Mount, ReadOnly: d.ReadOnly}
		}
		opts = append(opts, resolver.WithDevices(devices))
	}
	shares := make([]resolver.Share, len(cfg.Shares))
	for i, s := range cfg.Shares {
		shares[i] = resolver.Share{
			Host:  s.Host,
			Share: s.Share,
			Addr:  s.Addr,
			Root:  s.Root,
			Auth: filesystem.ShareAuth{
				User:            s.User,
				Password:        s.Password,
				KeyFile:         s.KeyFile,
				KnownHosts:      s.KnownHosts,
				InsecureHostKey: s.InsecureHostKey,
			},
		}
	}
	if len(shares) > 0 {
		opts = append(opts, resolver.WithShares(shares...))
	}
	return opts
}

func (rt *Runtime) closeChannel() error {
	if rt.Channel == nil {
		return nil
	}
	return rt.Channel.Close()
}

// Close stops the engine and releases the helper connection and any open
// share connections.
func (rt *Runtime) Close() error {
	if rt.Engine != nil {
		rt.Engine.Close()
	}
	rt.Metrics.Unsubscribe()
	return errors.Join(rt.closeChannel(), rt.Resolver.Close())
}
