// Package conflict decides what happens when an operation's destination name
// is already taken.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
)

// Option is the collision behaviour of a single primitive call.
type Option int

const (
	GenerateUniqueName Option = iota
	ReplaceExisting
	FailIfExists
)

func (o Option) String() string {
	switch o {
	case GenerateUniqueName:
		return "generate-unique-name"
	case ReplaceExisting:
		return "replace-existing"
	case FailIfExists:
		return "fail-if-exists"
	default:
		return "unknown"
	}
}

// Resolution is the per-item decision for a detected collision.
type Resolution int

const (
	GenerateNewName Resolution = iota
	Skip
	Replace
)

func (r Resolution) String() string {
	switch r {
	case GenerateNewName:
		return "generate-new-name"
	case Skip:
		return "skip"
	case Replace:
		return "replace-existing"
	default:
		return "unknown"
	}
}

// Option converts a resolution into the primitive option that carries it out.
// Skip has no primitive counterpart; skipped items never reach I/O.
func (r Resolution) Option() Option {
	if r == Replace {
		return ReplaceExisting
	}
	return GenerateUniqueName
}

// ParseResolution accepts the names produced by Resolution.String.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(s) {
	case "generate-new-name", "rename", "":
		return GenerateNewName, nil
	case "skip":
		return Skip, nil
	case "replace-existing", "replace", "overwrite":
		return Replace, nil
	default:
		return GenerateNewName, fmt.Errorf("unknown conflict resolution %q", s)
	}
}

// Conflict describes one item whose destination already exists.
type Conflict struct {
	ItemID      string
	Source      core.PathWithType
	Destination string
}

// Decision is a resolution chosen for one conflicting item.
type Decision struct {
	ItemID     string
	Resolution Resolution
}

// Prompter collects decisions interactively, typically a conflict dialog.
type Prompter interface {
	Resolve(ctx context.Context, conflicts []Conflict) ([]Decision, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, conflicts []Conflict) ([]Decision, error)

// Resolve implements Prompter
func (f PrompterFunc) Resolve(ctx context.Context, conflicts []Conflict) ([]Decision, error) {
	return f(ctx, conflicts)
}

// Policy turns detected conflicts into decisions. An explicit Default wins;
// otherwise the Prompter is asked; items left undecided get GenerateNewName.
type Policy struct {
	Default  *Resolution
	Prompter Prompter
}

// WithDefault returns a policy applying r to every conflict.
func WithDefault(r Resolution) Policy {
	return Policy{Default: &r}
}

// Decide returns a resolution for every conflict keyed by ItemID.
func (p Policy) Decide(ctx context.Context, conflicts []Conflict) (map[string]Resolution, error) {
	decided := make(map[string]Resolution, len(conflicts))
	if len(conflicts) == 0 {
		return decided, nil
	}
	if p.Default != nil {
		for _, c := range conflicts {
			decided[c.ItemID] = *p.Default
		}
		return decided, nil
	}
	if p.Prompter != nil {
		decisions, err := p.Prompter.Resolve(ctx, conflicts)
		if err != nil {
			return nil, fmt.Errorf("conflict prompt: %w", err)
		}
		for _, d := range decisions {
			decided[d.ItemID] = d.Resolution
		}
	}
	for _, c := range conflicts {
		if _, ok := decided[c.ItemID]; !ok {
			decided[c.ItemID] = GenerateNewName
		}
	}
	return decided, nil
}

// MaxUniqueAttempts bounds the search for a free name.
const MaxUniqueAttempts = 10000

// ErrNoUniqueName is returned when every candidate name is taken.
var ErrNoUniqueName = errors.New("no free name found")

// SplitName separates a file name from its extension. Directories and dot
// files keep their full name as base.
func SplitName(name string, isDir bool) (base, ext string) {
	if isDir {
		return name, ""
	}
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name, ""
	}
	return name[:dot], name[dot:]
}

// CandidateName is the nth alternative for name: "report (1).txt".
func CandidateName(name string, isDir bool, n int) string {
	if n == 0 {
		return name
	}
	base, ext := SplitName(name, isDir)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// UniqueName returns a path in dir for name that does not exist on fsys.
// The name itself is returned when it is free.
func UniqueName(fsys filesystem.FileSystem, dir, name string, isDir bool) (string, error) {
	for n := 0; n < MaxUniqueAttempts; n++ {
		candidate := fsys.Join(dir, CandidateName(name, isDir, n))
		if !filesystem.Exists(fsys, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", fsys.Join(dir, name), ErrNoUniqueName)
}
