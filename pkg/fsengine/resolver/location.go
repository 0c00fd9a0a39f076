package resolver

import (
	"path/filepath"
	"strings"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
)

// Kind tells which backend family a location belongs to.
type Kind int

const (
	KindLocal Kind = iota
	KindDevice
	KindShare
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindDevice:
		return "device"
	case KindShare:
		return "share"
	default:
		return "unknown"
	}
}

// Location is a resolved path: the caller's logical spelling, the native
// path on the backend that holds it, and the backend itself.
type Location struct {
	Original string
	Native   string
	Kind     Kind
	FS       filesystem.FileSystem
	Device   string
	// ReadOnly marks items on devices exposing read-only handles. They can be
	// read but not removed at their origin, and have no native path the
	// privileged helper could use.
	ReadOnly bool

	rootOriginal string
	rootNative   string
}

// PathLess reports whether the item lacks a path usable outside its backend.
func (l Location) PathLess() bool {
	return l.ReadOnly
}

// Name returns the last element of the path.
func (l Location) Name() string {
	if l.Kind == KindLocal {
		return filepath.Base(l.Original)
	}
	_, name := splitLogical(l.Original)
	return name
}

// Child returns the location of name inside l.
func (l Location) Child(name string) Location {
	child := l
	if l.Kind == KindLocal {
		child.Original = filepath.Join(l.Original, name)
	} else {
		child.Original = strings.TrimRight(l.Original, `\`) + `\` + name
	}
	child.Native = l.FS.Join(l.Native, name)
	return child
}

// Parent returns the containing location. The root of a device or share is
// its own parent.
func (l Location) Parent() Location {
	parent := l
	if l.Kind == KindLocal {
		parent.Original = filepath.Dir(l.Original)
		parent.Native = l.FS.Dir(l.Native)
		return parent
	}
	if strings.EqualFold(strings.TrimRight(l.Original, `\`), l.rootOriginal) {
		return l
	}
	dir, _ := splitLogical(l.Original)
	parent.Original = dir
	parent.Native = l.FS.Dir(l.Native)
	return parent
}

// Descriptor returns l as a descriptor of the given kind.
func (l Location) Descriptor(itemType core.ItemType) core.PathWithType {
	return core.NewPath(l.Original, itemType)
}

// WithNative returns the location of another native path on the same
// backend, translating it back to the logical spelling.
func (l Location) WithNative(native string) Location {
	other := l
	other.Native = native
	if l.Kind == KindLocal {
		other.Original = native
		return other
	}
	rel := strings.TrimPrefix(native, l.rootNative)
	rel = strings.Trim(strings.ReplaceAll(rel, "/", `\`), `\`)
	if rel == "" {
		other.Original = l.rootOriginal
	} else {
		other.Original = l.rootOriginal + `\` + rel
	}
	return other
}

func splitLogical(p string) (dir, name string) {
	p = strings.TrimRight(p, `\`)
	i := strings.LastIndex(p, `\`)
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
