package helper

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/conflict"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
	"github.com/arthur-debert/fsengine/pkg/fsengine/engine"
	"github.com/arthur-debert/fsengine/pkg/fsengine/metrics"
	"github.com/arthur-debert/fsengine/pkg/fsengine/recyclebin"
	"github.com/arthur-debert/fsengine/pkg/fsengine/resolver"
	"github.com/arthur-debert/fsengine/pkg/fsengine/testutil"
)

// rig connects an unprivileged engine to an in-process helper over a real
// websocket. Both sides share one temp directory and trash root; only the
// client's view of the disk injects faults.
type rig struct {
	h       *testutil.RealFSTestHelper
	fsys    *testutil.FaultFS
	server  *Server
	http    *httptest.Server
	channel *channel.Client
	client  *engine.Engine
	trash   *recyclebin.Adapter
}

func newRig(t *testing.T) *rig {
	t.Helper()
	h := testutil.NewRealFSTestHelper(t)
	trashRoot := h.Path(".trash")

	helperStore, err := recyclebin.NewStore(trashRoot, h.FileSystem(), zerolog.Nop())
	require.NoError(t, err)
	bus := core.NewMemoryEventBus(zerolog.Nop())
	collector := metrics.New()
	collector.Subscribe(bus)
	privileged := engine.New(engine.Session{Events: bus, Logger: zerolog.Nop()},
		resolver.New(h.FileSystem()),
		engine.WithTrash(recyclebin.NewAdapter(helperStore, nil, zerolog.Nop())))
	t.Cleanup(privileged.Close)

	server := New(privileged, collector, zerolog.Nop())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(server.Close)

	ch, err := channel.Dial(context.Background(), wsURL(srv), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	fsys := testutil.NewFaultFS(h.FileSystem())
	clientStore, err := recyclebin.NewStore(trashRoot, fsys, zerolog.Nop())
	require.NoError(t, err)
	trash := recyclebin.NewAdapter(clientStore, ch, zerolog.Nop())
	client := engine.New(engine.Session{Channel: ch, Logger: zerolog.Nop()},
		resolver.New(fsys), engine.WithTrash(trash))
	t.Cleanup(client.Close)

	return &rig{h: h, fsys: fsys, server: server, http: srv, channel: ch, client: client, trash: trash}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestDeniedSoftDeleteRecycledByHelper(t *testing.T) {
	r := newRig(t)
	file := r.h.WriteFile("work/a.txt", "hello")
	r.fsys.Fail(testutil.OpRename, file, fs.ErrPermission)

	res := r.client.Delete(context.Background(), core.File(file), false)
	require.True(t, res.Succeeded(), res.String())
	assert.Equal(t, core.Success, res.Code(), "the direct failure does not leak into the result")
	r.h.AssertNotExists(file)

	records, err := r.trash.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, file, records[0].OriginalPath)

	entry := res.MustValue()
	assert.Equal(t, core.OpRecycle, entry.OperationType)
	assert.Equal(t, records[0].RecyclePath, entry.Destination[0].Path)
	assert.Equal(t, 1, r.client.UndoLog().Len())

	stats, err := r.trash.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.NumItems)

	require.NoError(t, r.trash.Empty(context.Background()))
	records, err = r.trash.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeniedCopyRunsInHelperWithProgress(t *testing.T) {
	r := newRig(t)
	src := r.h.WriteFile("work/a.txt", "payload")
	dst := r.h.Path("work", "b.txt")
	r.fsys.Fail(testutil.OpOpen, src, fs.ErrPermission)
	r.fsys.Fail(testutil.OpCopyBypass, src, fs.ErrPermission)

	var mu sync.Mutex
	var seen []float64
	progress := core.ProgressFunc(func(p float64) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	res := r.client.Copy(context.Background(), core.File(src), dst, engine.WithProgress(progress))
	require.True(t, res.Succeeded(), res.String())
	assert.Equal(t, "payload", r.h.ReadFile(dst))
	assert.Equal(t, []core.PathWithType{core.File(dst)}, res.MustValue().Destination)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, 100.0, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1], "progress is strictly increasing")
	}
}

func TestDeniedRenameRunsInHelper(t *testing.T) {
	r := newRig(t)
	src := r.h.WriteFile("work/old.txt", "x")
	r.fsys.Fail(testutil.OpRename, src, fs.ErrPermission)

	res := r.client.Rename(context.Background(), core.File(src), "new.txt", conflict.FailIfExists)
	require.True(t, res.Succeeded(), res.String())
	want := r.h.Path("work", "new.txt")
	assert.Equal(t, want, res.MustValue().Destination[0].Path)
	r.h.AssertExists(want)
	r.h.AssertNotExists(src)
}

func TestHelperReportsFailure(t *testing.T) {
	r := newRig(t)
	resp, err := r.channel.FileOperation(context.Background(), channel.FileOpRequest{
		Op:          channel.OpDeleteItem,
		Sources:     []string{r.h.Path("missing.txt")},
		Permanently: true,
	}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not-found")
}

func TestRenameRequiresOneItem(t *testing.T) {
	r := newRig(t)
	resp, err := r.channel.FileOperation(context.Background(), channel.FileOpRequest{
		Op:      channel.OpRenameItem,
		Sources: []string{r.h.Path("a"), r.h.Path("b")},
		NewName: "c",
	}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestUnknownRequest(t *testing.T) {
	r := newRig(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(r.http), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(channel.Message{
		channel.KeyRequestID: "req-1",
		channel.KeyArguments: "Shutdown",
	}))
	var reply channel.Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "req-1", reply.String(channel.KeyRequestID))
	assert.False(t, reply.Bool(channel.KeySuccess))
	assert.Contains(t, reply.String(channel.KeyError), "Shutdown")
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRig(t)
	file := r.h.WriteFile("gone.txt", "x")
	resp, err := r.channel.FileOperation(context.Background(), channel.FileOpRequest{
		Op:          channel.OpDeleteItem,
		Sources:     []string{file},
		Permanently: true,
	}, nil)
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, []string{file}, resp.Items)

	rec := httptest.NewRecorder()
	r.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fsengine_operations_total{operation="delete",result="success"} 1`)
}
