package engine

import (
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// WorkingDirectory is the live listing the user is looking at. The engine
// tells it about items it created or removed in that directory.
type WorkingDirectory interface {
	Path() string
	AddItems(items []core.PathWithType)
	RemoveItems(paths []string)
	Refresh()
}

// SelectionProvider is implemented by every view surface that can hold a
// selection.
type SelectionProvider interface {
	Selected() []core.PathWithType
	Select(paths []string)
}

// Session bundles the collaborators of one view. An engine only ever talks
// to the session it was built with, so a background operation reports to
// the view that started it.
type Session struct {
	WorkingDirectory WorkingDirectory
	Selection        SelectionProvider
	Channel          channel.Privileged
	Events           core.EventBus
	Logger           zerolog.Logger
}
