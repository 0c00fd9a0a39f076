//go:build !unix

package filesystem

import (
	"errors"
	"os"
)

func (osfs *OSFileSystem) Access(name string) error {
	_, err := os.Lstat(name)
	return err
}

func (osfs *OSFileSystem) CopyFileBypass(src, dst string) error {
	return errors.ErrUnsupported
}

func (osfs *OSFileSystem) RemoveBypass(name string) error {
	return errors.ErrUnsupported
}

// IsCrossDevice is not detected on this platform.
func IsCrossDevice(err error) bool {
	return false
}
