package engine

import (
	"errors"
	"io/fs"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
)

// replacing runs write, which creates dst. With replace set, the existing
// dst is first renamed to a hidden sibling. It is put back when write fails
// and deleted once write succeeded, so a failed replacement leaves the old
// item where it was.
func (c *call) replacing(dst resolver.Location, replace bool, write func() error) error {
	if !replace {
		return write()
	}
	aside := dst.WithNative(dst.FS.Join(dst.FS.Dir(dst.Native), "."+dst.FS.Base(dst.Native)+".replaced-"+c.id[:8]))
	if err := dst.FS.Rename(dst.Native, aside.Native); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return write()
		}
		return err
	}

	if err := write(); err != nil {
		// an AlreadyExists failure means someone else now owns dst
		if !core.Classify(err).Has(core.AlreadyExists) {
			if rerr := dst.FS.RemoveAll(dst.Native); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
				c.logger.Warn().Err(rerr).Str("path", dst.Original).Msg("partial replacement left behind")
			}
		}
		if rerr := dst.FS.Rename(aside.Native, dst.Native); rerr != nil {
			c.logger.Error().Err(rerr).
				Str("path", dst.Original).
				Str("aside", aside.Native).
				Msg("replaced item could not be put back")
		}
		return err
	}

	if err := c.removeTree(aside); err != nil {
		c.logger.Warn().Err(err).Str("aside", aside.Native).Msg("replaced item left beside its replacement")
	}
	return nil
}
