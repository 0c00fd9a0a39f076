// Package config loads engine and helper settings from JSON files that may
// carry comments and trailing commas.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"
)

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config file")

	// ErrInvalid is returned when the merged configuration fails validation.
	ErrInvalid = errors.New("invalid configuration")
)

// Device is a removable device known by name.
type Device struct {
	Name     string `json:"name"`
	Mount    string `json:"mount"`
	ReadOnly bool   `json:"read_only,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// Share is a network share reached over SFTP.
type Share struct {
	Host            string `json:"host"`
	Share           string `json:"share"`
	Addr            string `json:"addr"`
	User            string `json:"user,omitempty"`
	Password        string `json:"password,omitempty"`
	KeyFile         string `json:"key_file,omitempty"`          //nolint:tagliatelle // snake_case for config file
	KnownHosts      string `json:"known_hosts,omitempty"`       //nolint:tagliatelle // snake_case for config file
	InsecureHostKey bool   `json:"insecure_host_key,omitempty"` //nolint:tagliatelle // snake_case for config file
	Root            string `json:"root,omitempty"`
}

// Config holds all configuration options.
type Config struct {
	TrashRoot       string   `json:"trash_root"`                 //nolint:tagliatelle // snake_case for config file
	HelperURL       string   `json:"helper_url,omitempty"`       //nolint:tagliatelle // snake_case for config file
	HelperListen    string   `json:"helper_listen,omitempty"`    //nolint:tagliatelle // snake_case for config file
	LogLevel        string   `json:"log_level,omitempty"`        //nolint:tagliatelle // snake_case for config file
	WarmParallelism int      `json:"warm_parallelism,omitempty"` //nolint:tagliatelle // snake_case for config file
	UndoLog         string   `json:"undo_log,omitempty"`         //nolint:tagliatelle // snake_case for config file
	Devices         []Device `json:"devices,omitempty"`
	Shares          []Share  `json:"shares,omitempty"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global   string // Path to global config if loaded, empty otherwise
	Explicit string // Path to the --config file if given
}

// DefaultListen is the helper's default listen address.
const DefaultListen = "127.0.0.1:7419"

// Default returns the default configuration for the given environment.
func Default(env []string) Config {
	return Config{
		TrashRoot:       defaultTrashRoot(env),
		HelperListen:    DefaultListen,
		LogLevel:        "warn",
		WarmParallelism: 5,
	}
}

func lookupEnv(env []string, key string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, key+"="); ok {
			return after
		}
	}
	return os.Getenv(key)
}

func defaultTrashRoot(env []string) string {
	if data := lookupEnv(env, "XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "fsengine", "trash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "fsengine", "trash")
}

// GlobalPath returns the path of the global config file.
// Uses $XDG_CONFIG_HOME/fsengine/config.json if set, otherwise
// ~/.config/fsengine/config.json. Returns "" if home cannot be determined.
func GlobalPath(env []string) string {
	if xdg := lookupEnv(env, "XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fsengine", "config.json")
	}
	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "fsengine", "config.json")
	}
	return ""
}

// Load builds the configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config
// 3. Explicit config file via configPath (if non-empty)
// 4. Flag overrides.
func Load(configPath string, overrides *Overrides, env []string) (Config, Sources, error) {
	cfg := Default(env)
	var sources Sources

	if global := GlobalPath(env); global != "" {
		globalCfg, loaded, err := loadFile(global, false)
		if err != nil {
			return Config{}, Sources{}, err
		}
		if loaded {
			sources.Global = global
			cfg = merge(cfg, globalCfg)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return Config{}, Sources{}, fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
		explicitCfg, _, err := loadFile(configPath, true)
		if err != nil {
			return Config{}, Sources{}, err
		}
		sources.Explicit = configPath
		cfg = merge(cfg, explicitCfg)
	}

	cfg = overrides.apply(cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}
	return cfg, sources, nil
}

// loadFile loads a config file. If mustExist is false, a missing file
// yields a zero config and loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return cfg, true, nil
}

// Parse decodes a JSON-with-comments document.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.TrashRoot != "" {
		base.TrashRoot = overlay.TrashRoot
	}
	if overlay.HelperURL != "" {
		base.HelperURL = overlay.HelperURL
	}
	if overlay.HelperListen != "" {
		base.HelperListen = overlay.HelperListen
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.WarmParallelism != 0 {
		base.WarmParallelism = overlay.WarmParallelism
	}
	if overlay.UndoLog != "" {
		base.UndoLog = overlay.UndoLog
	}
	if overlay.Devices != nil {
		base.Devices = overlay.Devices
	}
	if overlay.Shares != nil {
		base.Shares = overlay.Shares
	}
	return base
}

// Validate checks a merged configuration.
func Validate(cfg Config) error {
	var problems []string
	if cfg.TrashRoot == "" || !filepath.IsAbs(cfg.TrashRoot) {
		problems = append(problems, "trash_root must be an absolute path")
	}
	if cfg.UndoLog != "" && !filepath.IsAbs(cfg.UndoLog) {
		problems = append(problems, "undo_log must be an absolute path")
	}
	if cfg.HelperURL != "" && !strings.HasPrefix(cfg.HelperURL, "ws://") && !strings.HasPrefix(cfg.HelperURL, "wss://") {
		problems = append(problems, "helper_url must use ws:// or wss://")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		problems = append(problems, fmt.Sprintf("unknown log_level %q", cfg.LogLevel))
	}
	if cfg.WarmParallelism < 1 {
		problems = append(problems, "warm_parallelism must be at least 1")
	}
	seen := make(map[string]bool)
	for i, d := range cfg.Devices {
		switch {
		case d.Name == "":
			problems = append(problems, fmt.Sprintf("devices[%d]: name is required", i))
		case seen[strings.ToLower(d.Name)]:
			problems = append(problems, fmt.Sprintf("devices[%d]: duplicate device %q", i, d.Name))
		}
		seen[strings.ToLower(d.Name)] = true
		if !filepath.IsAbs(d.Mount) {
			problems = append(problems, fmt.Sprintf("devices[%d]: mount must be an absolute path", i))
		}
	}
	for i, s := range cfg.Shares {
		if s.Host == "" || s.Share == "" || s.Addr == "" {
			problems = append(problems, fmt.Sprintf("shares[%d]: host, share and addr are required", i))
		}
		if s.Password == "" && s.KeyFile == "" {
			problems = append(problems, fmt.Sprintf("shares[%d]: password or key_file is required", i))
		}
		if s.KnownHosts == "" && !s.InsecureHostKey {
			problems = append(problems, fmt.Sprintf("shares[%d]: known_hosts is required unless insecure_host_key is set", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Format returns the config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
