package resolver

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
	"github.com/arthur-debert/fsengine/pkg/fsengine/testutil"
)

func TestResolveLocal(t *testing.T) {
	h := testutil.NewRealFSTestHelper(t)
	file := h.WriteFile("docs/a.txt", "a")
	r := New(h.FileSystem())
	ctx := context.Background()

	res := r.Resolve(ctx, file)
	require.True(t, res.Succeeded(), res.String())
	loc := res.MustValue()
	assert.Equal(t, KindLocal, loc.Kind)
	assert.Equal(t, file, loc.Native)
	assert.Equal(t, "a.txt", loc.Name())
	assert.Equal(t, h.Path("docs"), loc.Parent().Original)
	assert.False(t, loc.PathLess())

	res = r.Resolve(ctx, h.Path("docs", "missing.txt"))
	assert.Equal(t, core.NotFound, res.Code())

	res = r.Resolve(ctx, "relative/path")
	assert.Equal(t, core.NotFound, res.Code())
	assert.ErrorIs(t, res.Err(), ErrNotRooted)

	located := r.Locate(ctx, h.Path("docs", "missing.txt"))
	assert.True(t, located.Succeeded(), "locate does not probe")
}

func TestResolveProbeDistinguishesDenied(t *testing.T) {
	h := testutil.NewRealFSTestHelper(t)
	secret := h.WriteFile("secret/plan.txt", "x")

	faulty := testutil.NewFaultFS(h.FileSystem()).
		Fail(testutil.OpLstat, h.Path("secret"), fs.ErrNotExist).
		Fail(testutil.OpAccess, h.Path("secret"), fs.ErrPermission)
	r := New(faulty)

	res := r.Resolve(context.Background(), secret)
	assert.Equal(t, core.Unauthorized, res.Code(), "denied item is not reported missing")
	assert.Equal(t, 1, faulty.Calls(testutil.OpAccess))

	res = r.Resolve(context.Background(), h.Path("nothing-here"))
	assert.Equal(t, core.NotFound, res.Code())
}

func TestResolveDevice(t *testing.T) {
	h := testutil.NewRealFSTestHelper(t)
	mount := h.Mkdir("media/usb0")
	h.WriteFile("media/usb0/DCIM/img.jpg", "jpg")
	ro := h.Mkdir("media/phone")

	provider := &countingProvider{devices: []Device{
		{Name: "USB0", Mount: mount},
		{Name: "phone", Mount: ro, ReadOnly: true},
	}}
	r := New(h.FileSystem(), WithDevices(provider))
	ctx := context.Background()

	res := r.Resolve(ctx, `\\?\usb0\DCIM\img.jpg`)
	require.True(t, res.Succeeded(), res.String())
	loc := res.MustValue()
	assert.Equal(t, KindDevice, loc.Kind)
	assert.Equal(t, filepath.Join(mount, "DCIM", "img.jpg"), loc.Native)
	assert.Equal(t, `\\?\usb0\DCIM\img.jpg`, loc.Original)
	assert.Equal(t, "img.jpg", loc.Name())
	assert.Equal(t, `\\?\usb0\DCIM`, loc.Parent().Original)
	assert.Equal(t, "device:USB0", loc.FS.Name())

	// second lookup hits the known-device cache
	res = r.Resolve(ctx, `\\?\USB0\DCIM`)
	require.True(t, res.Succeeded())
	assert.Equal(t, 1, provider.calls)

	root := r.Locate(ctx, `\\?\usb0`).MustValue()
	assert.Equal(t, root.Original, root.Parent().Original, "device root is its own parent")
	child := root.Child("new.txt")
	assert.Equal(t, `\\?\usb0\new.txt`, child.Original)
	assert.Equal(t, filepath.Join(mount, "new.txt"), child.Native)
	assert.Equal(t, `\\?\usb0\DCIM\x`, root.WithNative(filepath.Join(mount, "DCIM", "x")).Original)

	phone := r.Resolve(ctx, `\\?\phone`)
	require.True(t, phone.Succeeded())
	assert.True(t, phone.MustValue().PathLess())

	missing := r.Resolve(ctx, `\\?\sdcard\x`)
	assert.Equal(t, core.NotFound, missing.Code())
	assert.ErrorIs(t, missing.Err(), ErrUnknownDevice)

	traversal := r.Locate(ctx, `\\?\usb0\..\..\etc`)
	assert.Equal(t, core.InvalidName, traversal.Code())
}

type countingProvider struct {
	devices []Device
	calls   int
}

func (p *countingProvider) Devices(context.Context) ([]Device, error) {
	p.calls++
	return p.devices, nil
}

func TestResolveShare(t *testing.T) {
	h := testutil.NewRealFSTestHelper(t)
	exported := h.Mkdir("export/projects")
	h.WriteFile("export/projects/readme.md", "hi")

	dials := 0
	dialer := func(ctx context.Context, share Share) (filesystem.FileSystem, error) {
		dials++
		return filesystem.NewOSFileSystem(`\\` + share.Host + `\` + share.Share), nil
	}
	r := New(h.FileSystem(),
		WithShares(Share{Host: "nas", Share: "projects", Root: exported}),
		WithShareDialer(dialer))
	ctx := context.Background()

	res := r.Resolve(ctx, `\\NAS\Projects\readme.md`)
	require.True(t, res.Succeeded(), res.String())
	loc := res.MustValue()
	assert.Equal(t, KindShare, loc.Kind)
	assert.Equal(t, filepath.Join(exported, "readme.md"), loc.Native)
	assert.Equal(t, `\\nas\projects\readme.md`, loc.Original)

	res = r.Resolve(ctx, `\\nas\projects`)
	require.True(t, res.Succeeded())
	assert.Equal(t, 1, dials, "share connection reused")

	unknown := r.Resolve(ctx, `\\nas\private\x`)
	assert.Equal(t, core.NotFound, unknown.Code())
	assert.ErrorIs(t, unknown.Err(), ErrUnknownShare)

	require.NoError(t, r.Close())
}

func TestResolveShareDialFailure(t *testing.T) {
	r := New(filesystem.NewOSFileSystem(""),
		WithShares(Share{Host: "nas", Share: "x", Root: "/"}),
		WithShareDialer(func(ctx context.Context, share Share) (filesystem.FileSystem, error) {
			return nil, errors.New("connection refused")
		}))
	res := r.Resolve(context.Background(), `\\nas\x\file`)
	assert.Equal(t, core.Generic, res.Code())
}
