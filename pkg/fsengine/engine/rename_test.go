package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
	"github.com/arthur-debert/fsengine/pkg/fsengine/testutil"
)

func resolverFor(h *testutil.RealFSTestHelper) *resolver.Resolver {
	return resolver.New(h.FileSystem())
}

func TestRenameToSameNameFailsWithoutIO(t *testing.T) {
	f := newFixture(t, nil)
	file := f.h.WriteFile("work/A.txt", "a")
	f.fsys.ResetCalls()

	r := f.engine.Rename(context.Background(), core.File(file), "A.txt", conflict.FailIfExists)
	assert.Equal(t, core.AlreadyExists, r.Code())
	assert.Zero(t, f.fsys.TotalCalls())
}

func TestRenameRejectsInvalidNamesWithoutIO(t *testing.T) {
	f := newFixture(t, nil)
	file := f.h.WriteFile("work/a.txt", "a")

	names := []string{
		`a\b`, "a/b", "a:b", "a*b", "a?b", `a"b`, "a<b", "a>b", "a|b",
		"CON", "con", "Con.txt", "PRN", "aux.log", "NUL", "COM1", "com9.tar.gz", "LPT1", "lpt9.doc",
		"", "..",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			f.fsys.ResetCalls()
			r := f.engine.Rename(context.Background(), core.File(file), name, conflict.GenerateUniqueName)
			assert.Equal(t, core.InvalidName, r.Code())
			assert.ErrorIs(t, r.Err(), ErrInvalidName)
			assert.Zero(t, f.fsys.TotalCalls())
		})
	}
	f.h.AssertExists(file)
}

func TestRenameCollisions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.h.WriteFile("work/a.txt", "a")
	b := f.h.WriteFile("work/b.txt", "b")
	c := f.h.WriteFile("work/c.txt", "c")

	r := f.engine.Rename(ctx, core.File(a), "b.txt", conflict.FailIfExists)
	assert.Equal(t, core.AlreadyExists, r.Code())
	f.h.AssertExists(a)

	entry := requireOk(t, f.engine.Rename(ctx, core.File(a), "b.txt", conflict.GenerateUniqueName))
	unique := f.h.Path("work", "b (1).txt")
	assert.Equal(t, []core.PathWithType{core.File(unique)}, entry.Destination)
	assert.Equal(t, "a", f.h.ReadFile(unique))

	requireOk(t, f.engine.Rename(ctx, core.File(c), "b.txt", conflict.ReplaceExisting))
	assert.Equal(t, "c", f.h.ReadFile(b))
	f.h.AssertNotExists(c)

	assert.Contains(t, f.view.Removed(), a)
	assert.Contains(t, f.view.Added(), unique)
}

func TestRenameCaseOnlyKeepsDistinctItem(t *testing.T) {
	f := newFixture(t, nil)
	lower := f.h.WriteFile("work/a.txt", "lower")
	if _, err := os.Stat(f.h.Path("work", "A.txt")); err == nil {
		t.Skip("case-insensitive filesystem")
	}
	upper := f.h.WriteFile("work/A.txt", "upper")

	r := f.engine.Rename(context.Background(), core.File(lower), "A.txt", conflict.FailIfExists)
	assert.Equal(t, core.AlreadyExists, r.Code())
	assert.Equal(t, "upper", f.h.ReadFile(upper))
	assert.Equal(t, "lower", f.h.ReadFile(lower))

	entry := requireOk(t, f.engine.Rename(context.Background(), core.File(lower), "A.txt", conflict.GenerateUniqueName))
	assert.Equal(t, f.h.Path("work", "A (1).txt"), entry.Destination[0].Path)
	assert.Equal(t, "upper", f.h.ReadFile(upper))
}

func TestRenameReplaceKeepsDestinationOnFailure(t *testing.T) {
	f := newFixture(t, nil)
	x := f.h.WriteFile("work/x.txt", "new")
	y := f.h.WriteFile("work/y.txt", "old")
	f.fsys.Fail(testutil.OpRename, x, fs.ErrPermission)

	r := f.engine.Rename(context.Background(), core.File(x), "y.txt", conflict.ReplaceExisting)
	assert.Equal(t, core.Unauthorized, r.Code())
	assert.Equal(t, "old", f.h.ReadFile(y))
	assert.Equal(t, "new", f.h.ReadFile(x))
	assert.ElementsMatch(t, []string{"x.txt", "y.txt"}, dirNames(t, f.h.Path("work")))

	f.fsys.Clear()
	requireOk(t, f.engine.Rename(context.Background(), core.File(x), "y.txt", conflict.ReplaceExisting))
	assert.Equal(t, "new", f.h.ReadFile(y))
	assert.Equal(t, []string{"y.txt"}, dirNames(t, f.h.Path("work")))
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestRenameInsideTrashIsUnauthorized(t *testing.T) {
	f := newFixture(t, nil)
	file := f.h.WriteFile("work/a.txt", "a")
	recycled := requireOk(t, f.engine.Delete(context.Background(), core.File(file), false))

	r := f.engine.Rename(context.Background(), recycled.Destination[0], "b.txt", conflict.GenerateUniqueName)
	assert.Equal(t, core.Unauthorized, r.Code())
	assert.ErrorIs(t, r.Err(), ErrTrashReadOnly)
}

func TestRenameDelegatesWhenDenied(t *testing.T) {
	helper := &fakeHelper{handle: func(req channel.FileOpRequest) channel.FileOpResponse {
		target := filepath.Join(filepath.Dir(req.Sources[0]), req.NewName)
		if err := os.Rename(req.Sources[0], target); err != nil {
			return channel.FileOpResponse{Error: err.Error()}
		}
		return channel.FileOpResponse{Success: true, Items: []string{target}}
	}}
	f := newFixture(t, helper)
	file := f.h.WriteFile("work/a.txt", "a")
	f.fsys.Fail(testutil.OpRename, file, fs.ErrPermission)

	entry := requireOk(t, f.engine.Rename(context.Background(), core.File(file), "b.txt", conflict.FailIfExists))
	reqs := helper.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, channel.OpRenameItem, reqs[0].Op)
	assert.Equal(t, "b.txt", reqs[0].NewName)
	assert.Equal(t, core.OpRename, entry.OperationType)
	assert.Equal(t, f.h.Path("work", "b.txt"), entry.Destination[0].Path)
	f.h.AssertExists(f.h.Path("work", "b.txt"))
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"report.txt", "CONSOLE.txt", "com10", "LPT", ".hidden", "a b"} {
		assert.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"con", " nul.txt", "tab\there", "x|y"} {
		assert.ErrorIs(t, ValidateName(bad), ErrInvalidName, bad)
	}
}
