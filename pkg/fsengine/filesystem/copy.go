package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// CopyFile streams src on srcFS into a new file dst on dstFS. dst must not
// exist. A partially written destination is removed on failure.
func CopyFile(srcFS FileSystem, src string, dstFS FileSystem, dst string) error {
	in, err := srcFS.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	perm := fs.FileMode(0o644)
	if info, err := in.Stat(); err == nil {
		if info.IsDir() {
			return &fs.PathError{Op: "copy", Path: src, Err: errors.New("is a directory")}
		}
		perm = info.Mode().Perm()
	}

	out, err := dstFS.Create(dst, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = dstFS.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// CopySymlink recreates the link src as dst without following it.
func CopySymlink(srcFS FileSystem, src string, dstFS FileSystem, dst string) error {
	target, err := srcFS.Readlink(src)
	if err != nil {
		return err
	}
	return dstFS.Symlink(target, dst)
}

// Size returns the total size of the regular files under name.
func Size(fsys FileSystem, name string) (int64, error) {
	info, err := fsys.Lstat(name)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	stack := []string{name}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return total, err
		}
		for _, entry := range entries {
			child := fsys.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, child)
				continue
			}
			if info, err := entry.Info(); err == nil && info.Mode().IsRegular() {
				total += info.Size()
			}
		}
	}
	return total, nil
}

// CopyTree copies the file, link or directory src on srcFS to dst on dstFS.
// dst must not exist. Directories are walked with an explicit worklist.
func CopyTree(srcFS FileSystem, src string, dstFS FileSystem, dst string) error {
	info, err := srcFS.Lstat(src)
	if err != nil {
		return err
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return CopySymlink(srcFS, src, dstFS, dst)
	case !info.IsDir():
		return CopyFile(srcFS, src, dstFS, dst)
	}

	type pair struct{ src, dst string }
	stack := []pair{{src, dst}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		perm := fs.FileMode(0o755)
		if info, err := srcFS.Stat(p.src); err == nil {
			perm = info.Mode().Perm() | 0o700
		}
		if err := dstFS.Mkdir(p.dst, perm); err != nil {
			return err
		}
		entries, err := srcFS.ReadDir(p.src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			from := srcFS.Join(p.src, entry.Name())
			to := dstFS.Join(p.dst, entry.Name())
			switch {
			case entry.IsDir():
				stack = append(stack, pair{from, to})
			case entry.Type()&fs.ModeSymlink != 0:
				if err := CopySymlink(srcFS, from, dstFS, to); err != nil {
					return err
				}
			default:
				if err := CopyFile(srcFS, from, dstFS, to); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
