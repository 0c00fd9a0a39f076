// Package resolver maps logical path strings to a backend and a native path.
//
// Three spellings are understood:
//
//	\\?\<device>\rest      removable device, looked up by device name
//	\\<host>\<share>\rest  network share, reached over SFTP
//	/absolute/path         local filesystem
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
)

const (
	devicePrefix = `\\?\`
	sharePrefix  = `\\`
)

var (
	// ErrNotRooted is returned for relative or aliased paths.
	ErrNotRooted = errors.New("path is not rooted")
	// ErrUnknownDevice is returned when no attached device matches.
	ErrUnknownDevice = errors.New("no such device")
	// ErrUnknownShare is returned for shares missing from the configuration.
	ErrUnknownShare = errors.New("no such share")
)

// Device is an attached removable device mounted on the local system.
type Device struct {
	Name     string
	Mount    string
	ReadOnly bool
}

// DeviceProvider enumerates currently attached devices.
type DeviceProvider interface {
	Devices(ctx context.Context) ([]Device, error)
}

// StaticDevices is a DeviceProvider over a fixed list.
type StaticDevices []Device

// Devices implements DeviceProvider
func (s StaticDevices) Devices(context.Context) ([]Device, error) {
	return s, nil
}

// Share is a configured network share.
type Share struct {
	Host  string
	Share string
	Addr  string
	Root  string
	Auth  filesystem.ShareAuth
}

func (s Share) key() string {
	return strings.ToLower(s.Host + `\` + s.Share)
}

// ShareDialer opens the backend of a share.
type ShareDialer func(ctx context.Context, share Share) (filesystem.FileSystem, error)

// Option configures a Resolver.
type Option func(*Resolver)

// WithDevices sets the device provider.
func WithDevices(p DeviceProvider) Option {
	return func(r *Resolver) { r.devices = p }
}

// WithShares registers network shares.
func WithShares(shares ...Share) Option {
	return func(r *Resolver) {
		for _, s := range shares {
			r.shares[s.key()] = s
		}
	}
}

// WithShareDialer replaces the SFTP dialer.
func WithShareDialer(d ShareDialer) Option {
	return func(r *Resolver) { r.dial = d }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// Resolver resolves logical paths. It remembers devices it has matched and
// keeps share connections open for reuse.
type Resolver struct {
	local   filesystem.FileSystem
	devices DeviceProvider
	dial    ShareDialer
	logger  zerolog.Logger

	mu     sync.Mutex
	known  map[string]Device // normalized device root -> device
	shares map[string]Share
	conns  map[string]filesystem.FileSystem
	dfs    map[string]filesystem.FileSystem // device name -> backend
}

// New creates a resolver over the local backend.
func New(local filesystem.FileSystem, opts ...Option) *Resolver {
	r := &Resolver{
		local:  local,
		logger: zerolog.Nop(),
		known:  make(map[string]Device),
		shares: make(map[string]Share),
		conns:  make(map[string]filesystem.FileSystem),
		dfs:    make(map[string]filesystem.FileSystem),
	}
	r.dial = r.dialSFTP
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) dialSFTP(ctx context.Context, share Share) (filesystem.FileSystem, error) {
	return filesystem.DialSFTP(`\\`+share.Host+`\`+share.Share, share.Addr, share.Auth, r.logger)
}

// Local returns the local backend.
func (r *Resolver) Local() filesystem.FileSystem { return r.local }

// Resolve maps path to a location and checks that it can be opened. The
// result distinguishes Unauthorized (present but denied) from NotFound.
func (r *Resolver) Resolve(ctx context.Context, path string) core.Result[Location] {
	located := r.Locate(ctx, path)
	loc, ok := located.Value()
	if !ok {
		return located
	}
	if _, err := loc.FS.Lstat(loc.Native); err != nil {
		return core.Fail[Location](r.probe(loc, err), err)
	}
	return core.Ok(loc)
}

// probe asks the backend's access check why a path could not be opened.
// Some APIs report a denied item as missing.
func (r *Resolver) probe(loc Location, openErr error) core.ErrorCode {
	prober, ok := loc.FS.(filesystem.AccessProber)
	if !ok {
		return core.Classify(openErr)
	}
	err := prober.Access(loc.Native)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return core.Unauthorized
	case errors.Is(err, fs.ErrNotExist):
		return core.NotFound
	default:
		return core.Classify(openErr)
	}
}

// Locate maps path to a location without touching the item, for
// destinations that do not exist yet.
func (r *Resolver) Locate(ctx context.Context, path string) core.Result[Location] {
	switch {
	case strings.HasPrefix(path, devicePrefix):
		return r.locateDevice(ctx, path)
	case strings.HasPrefix(path, sharePrefix):
		return r.locateShare(ctx, path)
	case filepath.IsAbs(path):
		native := filepath.Clean(path)
		return core.Ok(Location{
			Original:     native,
			Native:       native,
			Kind:         KindLocal,
			FS:           r.local,
			rootOriginal: string(filepath.Separator),
			rootNative:   string(filepath.Separator),
		})
	default:
		return core.Fail[Location](core.NotFound, fmt.Errorf("%q: %w", path, ErrNotRooted))
	}
}

func splitSegments(p string) []string {
	fields := strings.FieldsFunc(p, func(r rune) bool { return r == '\\' || r == '/' })
	out := fields[:0]
	for _, f := range fields {
		if f != "." {
			out = append(out, f)
		}
	}
	return out
}

func (r *Resolver) locateDevice(ctx context.Context, path string) core.Result[Location] {
	segments := splitSegments(path[len(devicePrefix):])
	if len(segments) == 0 {
		return core.Fail[Location](core.NotFound, fmt.Errorf("%q: %w", path, ErrUnknownDevice))
	}
	for _, s := range segments {
		if s == ".." {
			return core.Fail[Location](core.InvalidName, fmt.Errorf("%q: parent references not allowed", path))
		}
	}
	root := devicePrefix + segments[0]

	dev, err := r.findDevice(ctx, root, segments[0])
	if err != nil {
		return core.Fail[Location](core.Classify(err), err)
	}

	fsys := r.deviceFS(dev)
	native := fsys.Join(append([]string{dev.Mount}, segments[1:]...)...)
	original := root
	if len(segments) > 1 {
		original += `\` + strings.Join(segments[1:], `\`)
	}
	return core.Ok(Location{
		Original:     original,
		Native:       native,
		Kind:         KindDevice,
		FS:           fsys,
		Device:       dev.Name,
		ReadOnly:     dev.ReadOnly,
		rootOriginal: root,
		rootNative:   dev.Mount,
	})
}

func (r *Resolver) findDevice(ctx context.Context, root, name string) (Device, error) {
	key := strings.ToLower(root)
	r.mu.Lock()
	dev, ok := r.known[key]
	r.mu.Unlock()
	if ok {
		return dev, nil
	}

	if r.devices == nil {
		return Device{}, fmt.Errorf("%s: %w", name, ErrUnknownDevice)
	}
	attached, err := r.devices.Devices(ctx)
	if err != nil {
		return Device{}, fmt.Errorf("enumerate devices: %w", err)
	}
	for _, d := range attached {
		if strings.EqualFold(d.Name, name) {
			r.mu.Lock()
			r.known[key] = d
			r.mu.Unlock()
			r.logger.Debug().Str("device", d.Name).Str("mount", d.Mount).Bool("read_only", d.ReadOnly).Msg("device matched")
			return d, nil
		}
	}
	return Device{}, &fs.PathError{Op: "resolve", Path: root, Err: fmt.Errorf("%w: %w", fs.ErrNotExist, ErrUnknownDevice)}
}

func (r *Resolver) deviceFS(dev Device) filesystem.FileSystem {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fsys, ok := r.dfs[dev.Name]; ok {
		return fsys
	}
	fsys := filesystem.FileSystem(filesystem.NewOSFileSystem("device:" + dev.Name))
	r.dfs[dev.Name] = fsys
	return fsys
}

func (r *Resolver) locateShare(ctx context.Context, path string) core.Result[Location] {
	segments := splitSegments(path[len(sharePrefix):])
	if len(segments) < 2 {
		return core.Fail[Location](core.NotFound, fmt.Errorf("%q: %w", path, ErrUnknownShare))
	}
	for _, s := range segments {
		if s == ".." {
			return core.Fail[Location](core.InvalidName, fmt.Errorf("%q: parent references not allowed", path))
		}
	}

	r.mu.Lock()
	share, ok := r.shares[strings.ToLower(segments[0]+`\`+segments[1])]
	r.mu.Unlock()
	if !ok {
		err := &fs.PathError{Op: "resolve", Path: path, Err: fmt.Errorf("%w: %w", fs.ErrNotExist, ErrUnknownShare)}
		return core.Fail[Location](core.NotFound, err)
	}

	fsys, err := r.shareFS(ctx, share)
	if err != nil {
		return core.Fail[Location](core.Classify(err), err)
	}
	root := sharePrefix + share.Host + `\` + share.Share
	rest := segments[2:]
	original := root
	if len(rest) > 0 {
		original += `\` + strings.Join(rest, `\`)
	}
	return core.Ok(Location{
		Original:     original,
		Native:       fsys.Join(append([]string{share.Root}, rest...)...),
		Kind:         KindShare,
		FS:           fsys,
		rootOriginal: root,
		rootNative:   share.Root,
	})
}

func (r *Resolver) shareFS(ctx context.Context, share Share) (filesystem.FileSystem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fsys, ok := r.conns[share.key()]; ok {
		return fsys, nil
	}
	fsys, err := r.dial(ctx, share)
	if err != nil {
		return nil, fmt.Errorf("connect share %s\\%s: %w", share.Host, share.Share, err)
	}
	r.conns[share.key()] = fsys
	return fsys, nil
}

// Close releases share connections.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, fsys := range r.conns {
		if c, ok := fsys.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
		delete(r.conns, key)
	}
	return errors.Join(errs...)
}
