package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func testEnv(t *testing.T) (env []string, root string) {
	t.Helper()
	root = t.TempDir()
	return []string{
		"XDG_CONFIG_HOME=" + filepath.Join(root, "config"),
		"XDG_DATA_HOME=" + filepath.Join(root, "data"),
	}, root
}

func TestLoadDefaults(t *testing.T) {
	env, root := testEnv(t)

	cfg, sources, err := Load("", nil, env)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data", "fsengine", "trash"), cfg.TrashRoot)
	assert.Equal(t, DefaultListen, cfg.HelperListen)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 5, cfg.WarmParallelism)
	assert.Empty(t, sources.Global)
	assert.Empty(t, sources.Explicit)
}

func TestLoadPrecedence(t *testing.T) {
	env, root := testEnv(t)
	global := filepath.Join(root, "config", "fsengine", "config.json")
	writeFile(t, global, `{
		// comments and trailing commas are fine
		"log_level": "info",
		"warm_parallelism": 3,
		"devices": [{"name": "USB", "mount": "/media/usb"}],
	}`)
	explicit := filepath.Join(root, "custom.json")
	writeFile(t, explicit, `{"log_level": "debug", "helper_url": "ws://127.0.0.1:7419/ws"}`)

	var o Overrides
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags, &o)
	require.NoError(t, flags.Parse([]string{"--warm-parallelism", "8"}))

	cfg, sources, err := Load(explicit, &o, env)
	require.NoError(t, err)

	assert.Equal(t, global, sources.Global)
	assert.Equal(t, explicit, sources.Explicit)
	assert.Equal(t, "debug", cfg.LogLevel, "explicit file beats global")
	assert.Equal(t, 8, cfg.WarmParallelism, "flag beats files")
	assert.Equal(t, "ws://127.0.0.1:7419/ws", cfg.HelperURL)
	if diff := cmp.Diff([]Device{{Name: "USB", Mount: "/media/usb"}}, cfg.Devices); diff != "" {
		t.Errorf("devices mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsetFlagsDoNotOverride(t *testing.T) {
	env, root := testEnv(t)
	explicit := filepath.Join(root, "c.json")
	writeFile(t, explicit, `{"log_level": "error"}`)

	var o Overrides
	BindFlags(pflag.NewFlagSet("test", pflag.ContinueOnError), &o)

	cfg, _, err := Load(explicit, &o, env)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	env, root := testEnv(t)

	_, _, err := Load(filepath.Join(root, "missing.json"), nil, env)
	assert.ErrorIs(t, err, errConfigFileNotFound)

	broken := filepath.Join(root, "broken.json")
	writeFile(t, broken, `{"log_level": `)
	_, _, err = Load(broken, nil, env)
	assert.ErrorIs(t, err, errConfigInvalid)

	invalid := filepath.Join(root, "invalid.json")
	writeFile(t, invalid, `{"log_level": "loud"}`)
	_, _, err = Load(invalid, nil, env)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	base := Config{TrashRoot: "/trash", LogLevel: "warn", WarmParallelism: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"relative trash root", func(c *Config) { c.TrashRoot = "trash" }, true},
		{"relative undo log", func(c *Config) { c.UndoLog = "undo.json" }, true},
		{"http helper url", func(c *Config) { c.HelperURL = "http://localhost/ws" }, true},
		{"zero parallelism", func(c *Config) { c.WarmParallelism = 0 }, true},
		{"unnamed device", func(c *Config) { c.Devices = []Device{{Mount: "/m"}} }, true},
		{"duplicate device", func(c *Config) {
			c.Devices = []Device{{Name: "usb", Mount: "/a"}, {Name: "USB", Mount: "/b"}}
		}, true},
		{"share without credentials", func(c *Config) {
			c.Shares = []Share{{Host: "nas", Share: "media", Addr: "nas:22"}}
		}, true},
		{"share with key", func(c *Config) {
			c.Shares = []Share{{Host: "nas", Share: "media", Addr: "nas:22", KeyFile: "/k", KnownHosts: "/kh"}}
		}, false},
		{"share without host key policy", func(c *Config) {
			c.Shares = []Share{{Host: "nas", Share: "media", Addr: "nas:22", KeyFile: "/k"}}
		}, true},
		{"share with insecure host key", func(c *Config) {
			c.Shares = []Share{{Host: "nas", Share: "media", Addr: "nas:22", Password: "pw", InsecureHostKey: true}}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
