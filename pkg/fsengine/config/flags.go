package config

import (
	"github.com/spf13/pflag"
)

// Flag names bound by BindFlags.
const (
	FlagTrashRoot       = "trash-root"
	FlagHelperURL       = "helper-url"
	FlagListen          = "listen"
	FlagLogLevel        = "log-level"
	FlagWarmParallelism = "warm-parallelism"
	FlagUndoLog         = "undo-log"
)

// Overrides holds values set on the command line. Only flags the user
// actually set take effect.
type Overrides struct {
	TrashRoot       string
	HelperURL       string
	Listen          string
	LogLevel        string
	WarmParallelism int
	UndoLog         string

	flags *pflag.FlagSet
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet, o *Overrides) {
	o.flags = fs
	fs.StringVar(&o.TrashRoot, FlagTrashRoot, "", "trash root directory")
	fs.StringVar(&o.HelperURL, FlagHelperURL, "", "privileged helper websocket URL (ws://host:port/ws)")
	fs.StringVar(&o.Listen, FlagListen, "", "helper listen address")
	fs.StringVar(&o.LogLevel, FlagLogLevel, "", "log level (trace, debug, info, warn, error)")
	fs.IntVar(&o.WarmParallelism, FlagWarmParallelism, 0, "concurrent directory reads when warming listings")
	fs.StringVar(&o.UndoLog, FlagUndoLog, "", "file persisting the undo log")
}

func (o *Overrides) changed(name string) bool {
	return o != nil && o.flags != nil && o.flags.Changed(name)
}

func (o *Overrides) apply(cfg Config) Config {
	if o.changed(FlagTrashRoot) {
		cfg.TrashRoot = o.TrashRoot
	}
	if o.changed(FlagHelperURL) {
		cfg.HelperURL = o.HelperURL
	}
	if o.changed(FlagListen) {
		cfg.HelperListen = o.Listen
	}
	if o.changed(FlagLogLevel) {
		cfg.LogLevel = o.LogLevel
	}
	if o.changed(FlagWarmParallelism) {
		cfg.WarmParallelism = o.WarmParallelism
	}
	if o.changed(FlagUndoLog) {
		cfg.UndoLog = o.UndoLog
	}
	return cfg
}
