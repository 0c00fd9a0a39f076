package testutil

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
)

// Operation names recorded and matched by FaultFS.
const (
	OpOpen         = "open"
	OpCreate       = "create"
	OpStat         = "stat"
	OpLstat        = "lstat"
	OpReadDir      = "readdir"
	OpMkdir        = "mkdir"
	OpMkdirAll     = "mkdirall"
	OpRemove       = "remove"
	OpRemoveAll    = "removeall"
	OpRename       = "rename"
	OpSymlink      = "symlink"
	OpReadlink     = "readlink"
	OpAccess       = "access"
	OpCopyBypass   = "copy-bypass"
	OpRemoveBypass = "remove-bypass"
)

var mutatingOps = map[string]bool{
	OpCreate: true, OpMkdir: true, OpMkdirAll: true, OpRemove: true, OpRemoveAll: true,
	OpRename: true, OpSymlink: true, OpCopyBypass: true, OpRemoveBypass: true,
}

// Fault makes matching calls fail with Err. An empty Path matches every
// path; otherwise the path and everything below it match. Times limits how
// often the fault fires; zero means always.
type Fault struct {
	Op    string
	Path  string
	Err   error
	Times int
	fired int
}

func (f *Fault) matches(op, path string) bool {
	if f.Op != op {
		return false
	}
	if f.Times > 0 && f.fired >= f.Times {
		return false
	}
	if f.Path == "" || path == f.Path {
		return true
	}
	return strings.HasPrefix(path, strings.TrimRight(f.Path, "/")+"/")
}

// FaultFS wraps a backend, counting every call and injecting configured
// errors. It always exposes the bypass and access-probe extensions,
// forwarding them when the wrapped backend has them.
type FaultFS struct {
	inner filesystem.FileSystem

	mu     sync.Mutex
	faults []*Fault
	calls  map[string]int
}

// NewFaultFS wraps inner.
func NewFaultFS(inner filesystem.FileSystem) *FaultFS {
	return &FaultFS{inner: inner, calls: make(map[string]int)}
}

// Fail injects err for op on path (and below) on every call.
func (f *FaultFS) Fail(op, path string, err error) *FaultFS {
	return f.FailN(op, path, err, 0)
}

// FailN injects err for the next n matching calls.
func (f *FaultFS) FailN(op, path string, err error, n int) *FaultFS {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, &Fault{Op: op, Path: path, Err: err, Times: n})
	return f
}

// Clear removes every fault.
func (f *FaultFS) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// Calls returns how often op was invoked.
func (f *FaultFS) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls of any kind.
func (f *FaultFS) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// MutatingCalls returns the number of calls that may change the tree.
func (f *FaultFS) MutatingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for op, n := range f.calls {
		if mutatingOps[op] {
			total += n
		}
	}
	return total
}

// ResetCalls zeroes the counters.
func (f *FaultFS) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}

func (f *FaultFS) check(op string, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	for _, fault := range f.faults {
		for _, p := range paths {
			if fault.matches(op, p) {
				fault.fired++
				return &fs.PathError{Op: op, Path: p, Err: fault.Err}
			}
		}
	}
	return nil
}

func (f *FaultFS) Name() string { return f.inner.Name() }

func (f *FaultFS) Open(name string) (fs.File, error) {
	if err := f.check(OpOpen, name); err != nil {
		return nil, err
	}
	return f.inner.Open(name)
}

func (f *FaultFS) Create(name string, perm fs.FileMode) (io.WriteCloser, error) {
	if err := f.check(OpCreate, name); err != nil {
		return nil, err
	}
	return f.inner.Create(name, perm)
}

func (f *FaultFS) Stat(name string) (fs.FileInfo, error) {
	if err := f.check(OpStat, name); err != nil {
		return nil, err
	}
	return f.inner.Stat(name)
}

func (f *FaultFS) Lstat(name string) (fs.FileInfo, error) {
	if err := f.check(OpLstat, name); err != nil {
		return nil, err
	}
	return f.inner.Lstat(name)
}

func (f *FaultFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if err := f.check(OpReadDir, name); err != nil {
		return nil, err
	}
	return f.inner.ReadDir(name)
}

func (f *FaultFS) Mkdir(name string, perm fs.FileMode) error {
	if err := f.check(OpMkdir, name); err != nil {
		return err
	}
	return f.inner.Mkdir(name, perm)
}

func (f *FaultFS) MkdirAll(path string, perm fs.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}
	return f.inner.MkdirAll(path, perm)
}

func (f *FaultFS) Remove(name string) error {
	if err := f.check(OpRemove, name); err != nil {
		return err
	}
	return f.inner.Remove(name)
}

func (f *FaultFS) RemoveAll(name string) error {
	if err := f.check(OpRemoveAll, name); err != nil {
		return err
	}
	return f.inner.RemoveAll(name)
}

func (f *FaultFS) Rename(oldpath, newpath string) error {
	if err := f.check(OpRename, oldpath, newpath); err != nil {
		return err
	}
	return f.inner.Rename(oldpath, newpath)
}

func (f *FaultFS) Symlink(oldname, newname string) error {
	if err := f.check(OpSymlink, newname); err != nil {
		return err
	}
	return f.inner.Symlink(oldname, newname)
}

func (f *FaultFS) Readlink(name string) (string, error) {
	if err := f.check(OpReadlink, name); err != nil {
		return "", err
	}
	return f.inner.Readlink(name)
}

func (f *FaultFS) Join(elem ...string) string { return f.inner.Join(elem...) }
func (f *FaultFS) Dir(name string) string     { return f.inner.Dir(name) }
func (f *FaultFS) Base(name string) string    { return f.inner.Base(name) }

// Access implements filesystem.AccessProber
func (f *FaultFS) Access(name string) error {
	if err := f.check(OpAccess, name); err != nil {
		return err
	}
	if p, ok := f.inner.(filesystem.AccessProber); ok {
		return p.Access(name)
	}
	_, err := f.inner.Lstat(name)
	return err
}

// CopyFileBypass implements filesystem.BypassFS
func (f *FaultFS) CopyFileBypass(src, dst string) error {
	if err := f.check(OpCopyBypass, src, dst); err != nil {
		return err
	}
	if b, ok := f.inner.(filesystem.BypassFS); ok {
		return b.CopyFileBypass(src, dst)
	}
	return errors.ErrUnsupported
}

// RemoveBypass implements filesystem.BypassFS
func (f *FaultFS) RemoveBypass(name string) error {
	if err := f.check(OpRemoveBypass, name); err != nil {
		return err
	}
	if b, ok := f.inner.(filesystem.BypassFS); ok {
		return b.RemoveBypass(name)
	}
	return errors.ErrUnsupported
}
