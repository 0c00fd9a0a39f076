//go:build unix && !linux

package filesystem

import (
	"io"
	"os"
)

func copyRange(in, out *os.File, _ int64) error {
	_, err := io.Copy(out, in)
	return err
}
