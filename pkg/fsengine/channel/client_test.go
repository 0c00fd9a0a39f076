package channel

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// scriptedHelper answers every file operation by pushing two progress
// values and echoing the sources as produced items.
func scriptedHelper(t *testing.T, handle func(conn *websocket.Conn, msg Message)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			handle(conn, msg)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echoHandler(conn *websocket.Conn, msg Message) {
	req, opID, err := DecodeFileOp(msg)
	if err != nil {
		_ = conn.WriteJSON(Message{KeyRequestID: msg.String(KeyRequestID), KeySuccess: false, KeyError: err.Error()})
		return
	}
	_ = conn.WriteJSON(ProgressMessage(opID, 50))
	_ = conn.WriteJSON(ProgressMessage(opID, 100))
	reply, _ := EncodeFileOpResponse(req, FileOpResponse{Success: true, Items: req.Sources})
	reply[KeyRequestID] = msg.String(KeyRequestID)
	_ = conn.WriteJSON(reply)
}

func TestClientFileOperation(t *testing.T) {
	srv := scriptedHelper(t, echoHandler)
	client, err := Dial(context.Background(), wsURL(srv), zerolog.New(io.Discard))
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.Available())

	var mu sync.Mutex
	var seen []float64
	progress := core.ProgressFunc(func(v float64) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	resp, err := client.FileOperation(context.Background(), FileOpRequest{
		Op:      OpDeleteItem,
		Sources: []string{"/x/a", "/x/b"},
	}, progress)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"/x/a", "/x/b"}, resp.Items)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{50, 100}, seen)

	client.mu.Lock()
	assert.Empty(t, client.progress, "progress handler removed after the call")
	client.mu.Unlock()
}

func TestClientConcurrentCalls(t *testing.T) {
	srv := scriptedHelper(t, echoHandler)
	client, err := Dial(context.Background(), wsURL(srv), zerolog.New(io.Discard))
	require.NoError(t, err)
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := "/item/" + string(rune('a'+i))
			var last float64
			resp, err := client.FileOperation(context.Background(), FileOpRequest{
				Op:           OpCopyItem,
				Sources:      []string{src},
				Destinations: []string{"/dst"},
			}, core.ProgressFunc(func(v float64) { last = v }))
			assert.NoError(t, err)
			assert.Equal(t, []string{src}, resp.Items)
			assert.Equal(t, 100.0, last)
		}(i)
	}
	wg.Wait()
}

func TestClientRecycleBin(t *testing.T) {
	srv := scriptedHelper(t, func(conn *websocket.Conn, msg Message) {
		req, err := DecodeRecycle(msg)
		assert.NoError(t, err)
		reply, _ := EncodeRecycleResponse(req, RecycleResponse{Success: true, Stats: core.RecycleBinStats{NumItems: 2, BinSize: 10}})
		reply[KeyRequestID] = msg.String(KeyRequestID)
		_ = conn.WriteJSON(reply)
	})
	client, err := Dial(context.Background(), wsURL(srv), zerolog.New(io.Discard))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.RecycleBin(context.Background(), RecycleRequest{Action: RecycleQuery})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Stats.NumItems)
}

func TestClientUnavailableAfterDisconnect(t *testing.T) {
	srv := scriptedHelper(t, func(conn *websocket.Conn, msg Message) {
		_ = conn.Close()
	})
	client, err := Dial(context.Background(), wsURL(srv), zerolog.New(io.Discard))
	require.NoError(t, err)

	_, err = client.FileOperation(context.Background(), FileOpRequest{Op: OpMoveItem, Sources: []string{"/a"}}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.Eventually(t, func() bool { return !client.Available() }, time.Second, 10*time.Millisecond)
	_, err = client.RecycleBin(context.Background(), RecycleRequest{Action: RecycleEnumerate})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsAvailable(client))
	assert.False(t, IsAvailable(nil))
}

func TestClientContextCancel(t *testing.T) {
	srv := scriptedHelper(t, func(conn *websocket.Conn, msg Message) {})
	client, err := Dial(context.Background(), wsURL(srv), zerolog.New(io.Discard))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.FileOperation(ctx, FileOpRequest{Op: OpMoveItem, Sources: []string{"/a"}}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", zerolog.New(io.Discard))
	assert.ErrorIs(t, err, ErrUnavailable)
}
