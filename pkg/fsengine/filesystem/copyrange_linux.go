package filesystem

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

func copyRange(in, out *os.File, size int64) error {
	remaining := size
	for remaining > 0 {
		n, err := unix.CopyFileRange(int(in.Fd()), nil, int(out.Fd()), nil, int(remaining), 0)
		if err != nil {
			if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EXDEV) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP) {
				if _, serr := in.Seek(size-remaining, io.SeekStart); serr != nil {
					return serr
				}
				_, cerr := io.Copy(out, in)
				return cerr
			}
			return err
		}
		if n == 0 {
			break
		}
		remaining -= int64(n)
	}
	return nil
}
