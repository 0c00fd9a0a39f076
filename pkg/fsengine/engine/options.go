package engine

import (
	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/history"
	"github.com/arthur-debert/fsengine/pkg/fsengine/recyclebin"
)

// ListingInvalidator drops cached listings of a directory whose contents
// changed, or of a whole tree that moved or disappeared.
type ListingInvalidator interface {
	Invalidate(dir string)
	InvalidateTree(dir string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTrash enables soft deletes through the given trash adapter.
func WithTrash(trash *recyclebin.Adapter) Option {
	return func(e *Engine) { e.trash = trash }
}

// WithUndoLog replaces the in-memory undo log.
func WithUndoLog(log *history.UndoLog) Option {
	return func(e *Engine) { e.undo = log }
}

// WithListingCache registers a cache to invalidate after mutations.
func WithListingCache(cache ListingInvalidator) Option {
	return func(e *Engine) { e.listings = cache }
}

// WithDispatcher shares a dispatcher between engines of the same view.
func WithDispatcher(d *Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// CallOption configures a single engine call.
type CallOption func(*callConfig)

type callConfig struct {
	progress    core.ProgressReporter
	policy      conflict.Policy
	collision   *conflict.Option
	noHistory   bool
	linkOptions LinkOptions
}

// WithProgress receives percentages in [0, 100]. The last value reported
// for every call is 100.
func WithProgress(reporter core.ProgressReporter) CallOption {
	return func(c *callConfig) { c.progress = reporter }
}

// WithConflictDefault applies r to every collision without prompting.
func WithConflictDefault(r conflict.Resolution) CallOption {
	return func(c *callConfig) { c.policy = conflict.WithDefault(r) }
}

// WithPrompter asks p about collisions that have no default.
func WithPrompter(p conflict.Prompter) CallOption {
	return func(c *callConfig) { c.policy.Prompter = p }
}

// WithCollision bypasses the conflict policy and applies opt directly.
func WithCollision(opt conflict.Option) CallOption {
	return func(c *callConfig) { c.collision = &opt }
}

// WithoutHistory keeps the call out of the undo log. Undo uses it for the
// inverse operations it runs.
func WithoutHistory() CallOption {
	return func(c *callConfig) { c.noHistory = true }
}

// WithLinkOptions sets the shortcut fields forwarded to the helper when a
// link has to be created with elevated rights.
func WithLinkOptions(opts LinkOptions) CallOption {
	return func(c *callConfig) { c.linkOptions = opts }
}

// LinkOptions are the shortcut-specific fields of CreateLink.
type LinkOptions struct {
	Arguments  string
	WorkingDir string
	RunAsAdmin bool
}

func newCallConfig(opts []CallOption) callConfig {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
