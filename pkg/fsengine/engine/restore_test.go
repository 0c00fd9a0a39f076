package engine

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/recyclebin"
)

func recycle(t *testing.T, f *fixture, path string) core.PathWithType {
	t.Helper()
	entry := requireOk(t, f.engine.Delete(context.Background(), core.File(path), false))
	require.Len(t, entry.Destination, 1)
	return entry.Destination[0]
}

func TestRestoreIntoMissingParentKeepsTrash(t *testing.T) {
	f := newFixture(t, nil)
	original := f.h.WriteFile("work/Doc/file.txt", "data")
	content := recycle(t, f, original)
	require.NoError(t, os.RemoveAll(f.h.Path("work", "Doc")))

	r := f.engine.RestoreFromTrash(context.Background(), content, original)
	assert.Equal(t, core.NotFound, r.Code())
	assert.FileExists(t, content.Path)
	assert.FileExists(t, recyclebin.MetadataPath(content.Path))
	assert.Len(t, f.records(), 1)
}

func TestRestoreOntoExistingItemFails(t *testing.T) {
	f := newFixture(t, nil)
	original := f.h.WriteFile("work/a.txt", "old")
	content := recycle(t, f, original)
	f.h.WriteFile("work/a.txt", "replacement")

	r := f.engine.RestoreFromTrash(context.Background(), content, original)
	assert.Equal(t, core.AlreadyExists, r.Code())
	assert.Equal(t, "replacement", f.h.ReadFile(original))
	assert.FileExists(t, content.Path)
}

func TestRestoreMovesItemBack(t *testing.T) {
	f := newFixture(t, nil)
	original := f.h.WriteFile("work/a.txt", "data")
	content := recycle(t, f, original)

	entry := requireOk(t, f.engine.RestoreFromTrash(context.Background(), content, original))
	assert.Equal(t, "data", f.h.ReadFile(original))
	assert.NoFileExists(t, content.Path)
	assert.NoFileExists(t, recyclebin.MetadataPath(content.Path))
	assert.Empty(t, f.records())

	assert.Equal(t, core.OpRestore, entry.OperationType)
	assert.Equal(t, []core.PathWithType{content}, entry.Source)
	assert.Equal(t, []core.PathWithType{core.File(original)}, entry.Destination)
	assert.Contains(t, f.view.Added(), original)
}

func TestRestoreRejectsItemsOutsideTrash(t *testing.T) {
	f := newFixture(t, nil)
	file := f.h.WriteFile("work/a.txt", "a")

	r := f.engine.RestoreFromTrash(context.Background(), core.File(file), f.h.Path("work", "b.txt"))
	assert.Equal(t, core.Generic, r.Code())
	assert.ErrorIs(t, r.Err(), recyclebin.ErrNotTrashItem)
}
