package filesystem

import (
	"io"
	"io/fs"
)

// FileSystem is the storage surface the engine performs I/O against. Paths
// are native to the backend: absolute OS paths for the local backend, remote
// absolute paths for network shares.
type FileSystem interface {
	// Name identifies the backend instance. Two locations share a backend
	// (and may use Rename between each other) when their names match.
	Name() string

	Open(name string) (fs.File, error)
	// Create creates a new file and fails with fs.ErrExist if it exists.
	Create(name string, perm fs.FileMode) (io.WriteCloser, error)
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)

	// Mkdir fails with fs.ErrExist if name exists.
	Mkdir(name string, perm fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	Remove(name string) error
	RemoveAll(name string) error
	Rename(oldpath, newpath string) error
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)

	Join(elem ...string) string
	Dir(name string) string
	Base(name string) string
}

// BypassFS is implemented by backends with a lower-level copy and delete
// path that can succeed where the ordinary calls were denied.
type BypassFS interface {
	CopyFileBypass(src, dst string) error
	RemoveBypass(name string) error
}

// AccessProber distinguishes "exists but denied" from "does not exist" for
// paths the ordinary calls fail on. The returned error wraps fs.ErrPermission
// or fs.ErrNotExist; nil means the path is accessible.
type AccessProber interface {
	Access(name string) error
}

// Exists reports whether name is present, without following a final symlink.
func Exists(fsys FileSystem, name string) bool {
	_, err := fsys.Lstat(name)
	return err == nil
}
