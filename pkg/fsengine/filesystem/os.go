package filesystem

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements FileSystem using the local OS filesystem.
type OSFileSystem struct {
	name string
}

// NewOSFileSystem creates the local backend. name distinguishes separate
// mounts; the empty name means the root filesystem.
func NewOSFileSystem(name string) *OSFileSystem {
	if name == "" {
		name = "local"
	}
	return &OSFileSystem{name: name}
}

func (osfs *OSFileSystem) Name() string { return osfs.name }

func (osfs *OSFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}

func (osfs *OSFileSystem) Create(name string, perm fs.FileMode) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
}

func (osfs *OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (osfs *OSFileSystem) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

func (osfs *OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (osfs *OSFileSystem) Mkdir(name string, perm fs.FileMode) error {
	return os.Mkdir(name, perm)
}

func (osfs *OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (osfs *OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

func (osfs *OSFileSystem) RemoveAll(name string) error {
	// os.RemoveAll succeeds on a missing path; callers rely on NotFound.
	if _, err := os.Lstat(name); err != nil {
		return err
	}
	return os.RemoveAll(name)
}

func (osfs *OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (osfs *OSFileSystem) Symlink(oldname, newname string) error {
	return os.Symlink(oldname, newname)
}

func (osfs *OSFileSystem) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

func (osfs *OSFileSystem) Join(elem ...string) string { return filepath.Join(elem...) }
func (osfs *OSFileSystem) Dir(name string) string     { return filepath.Dir(name) }
func (osfs *OSFileSystem) Base(name string) string    { return filepath.Base(name) }
