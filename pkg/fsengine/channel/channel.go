// Package channel talks to the privileged helper: an out-of-process peer
// with elevated rights that repeats file operations the engine was denied.
package channel

import (
	"context"
	"errors"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// ErrUnavailable is returned when no helper is connected.
var ErrUnavailable = errors.New("privileged channel unavailable")

// FileOp is the operation tag of a file operation request.
type FileOp string

const (
	OpCreateLink FileOp = "CreateLink"
	OpCopyItem   FileOp = "CopyItem"
	OpMoveItem   FileOp = "MoveItem"
	OpDeleteItem FileOp = "DeleteItem"
	OpRenameItem FileOp = "RenameItem"
)

// FileOpRequest is one logical operation delegated to the helper.
type FileOpRequest struct {
	Op           FileOp
	Sources      []string
	Destinations []string
	Overwrite    bool

	// RenameItem
	NewName string
	// DeleteItem; false moves the items to the bin
	Permanently bool

	// CreateLink
	TargetPath string
	Arguments  string
	WorkingDir string
	RunAsAdmin bool
}

// FileOpResponse reports the outcome. Items lists the paths actually
// produced, which may be fewer than requested.
type FileOpResponse struct {
	Success bool
	Items   []string
	Error   string
}

// RecycleAction selects a recycle-bin request.
type RecycleAction string

const (
	RecycleEnumerate RecycleAction = "Enumerate"
	RecycleQuery     RecycleAction = "Query"
	RecycleEmpty     RecycleAction = "Empty"
)

// RecycleRequest asks the helper about the trash store.
type RecycleRequest struct {
	Action RecycleAction
}

// RecycleResponse carries records for Enumerate and stats for Query.
type RecycleResponse struct {
	Success bool
	Records []core.RecycleBinRecord
	Stats   core.RecycleBinStats
	Error   string
}

// Privileged is the engine's view of the helper.
type Privileged interface {
	// Available reports whether a helper is connected.
	Available() bool
	// FileOperation runs req, forwarding pushed progress to progress for the
	// duration of the call.
	FileOperation(ctx context.Context, req FileOpRequest, progress core.ProgressReporter) (FileOpResponse, error)
	RecycleBin(ctx context.Context, req RecycleRequest) (RecycleResponse, error)
}

// IsAvailable reports whether p is non-nil and connected.
func IsAvailable(p Privileged) bool {
	return p != nil && p.Available()
}

// Correlate pairs requested sources with the produced paths of a response.
// Same-length lists are zipped by position; otherwise a produced path is
// paired with the source whose base name it carries. Sources without a
// produced path are omitted.
func Correlate(sources, produced []string, base func(string) string) map[string]string {
	pairs := make(map[string]string, len(produced))
	if len(sources) == len(produced) {
		for i := range sources {
			pairs[sources[i]] = produced[i]
		}
		return pairs
	}
	used := make(map[int]bool, len(produced))
	for _, src := range sources {
		name := base(src)
		for i, p := range produced {
			if used[i] {
				continue
			}
			if p == src || base(p) == name {
				pairs[src] = p
				used[i] = true
				break
			}
		}
	}
	return pairs
}
