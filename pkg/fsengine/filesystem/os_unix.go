//go:build unix

package filesystem

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// Access implements AccessProber with access(2), which answers for the real
// credentials and is not confused by open-time policies.
func (osfs *OSFileSystem) Access(name string) error {
	if err := unix.Access(name, unix.F_OK); err != nil {
		var st unix.Stat_t
		if lerr := unix.Lstat(name, &st); lerr == nil {
			// present but the parent chain is not searchable
			return &fs.PathError{Op: "access", Path: name, Err: fs.ErrPermission}
		}
		return &fs.PathError{Op: "access", Path: name, Err: err}
	}
	if err := unix.Access(name, unix.R_OK); err != nil {
		return &fs.PathError{Op: "access", Path: name, Err: err}
	}
	return nil
}

// CopyFileBypass copies a file the caller owns but cannot read by granting
// owner read for the duration of the copy. Data moves with copy_file_range
// when the kernel supports it.
func (osfs *OSFileSystem) CopyFileBypass(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode&0o400 == 0 {
		if err := unix.Chmod(src, uint32(mode|0o400)); err != nil {
			return &fs.PathError{Op: "chmod", Path: src, Err: err}
		}
		defer func() { _ = unix.Chmod(src, uint32(mode)) }()
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode|0o600)
	if err != nil {
		return err
	}

	if err := copyRange(in, out, info.Size()); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, mode)
}

// RemoveBypass removes name from a parent directory the caller owns but
// cannot write, restoring the parent's mode afterwards.
func (osfs *OSFileSystem) RemoveBypass(name string) error {
	parent := osfs.Dir(name)
	info, err := os.Stat(parent)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode&0o300 != 0o300 {
		if err := unix.Chmod(parent, uint32(mode|0o300)); err != nil {
			return &fs.PathError{Op: "chmod", Path: parent, Err: err}
		}
		defer func() { _ = unix.Chmod(parent, uint32(mode)) }()
	}
	return osfs.RemoveAll(name)
}

// IsCrossDevice reports whether err is a rename refused because source and
// target live on different mounts.
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
