package channel

import (
	"encoding/json"
	"path"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// wire round-trips a message through JSON the way the websocket does.
func wire(t *testing.T, msg Message) Message {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var out Message
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestEncodeFileOp(t *testing.T) {
	req := FileOpRequest{
		Op:           OpDeleteItem,
		Sources:      []string{"/a/one.txt", "/a/two.txt"},
		Destinations: nil,
		Permanently:  false,
	}
	msg := wire(t, EncodeFileOp(req, "op-123"))

	assert.Equal(t, "FileOperation", msg.String(KeyArguments))
	assert.Equal(t, "DeleteItem", msg.String(KeyFileOp))
	assert.Equal(t, "op-123", msg.String(KeyOperationID))
	assert.Equal(t, "/a/one.txt|/a/two.txt", msg.String(KeyFilePath))
	assert.Equal(t, false, msg[KeyPermanently])

	decoded, opID, err := DecodeFileOp(msg)
	require.NoError(t, err)
	assert.Equal(t, "op-123", opID)
	if diff := cmp.Diff(req, decoded); diff != "" {
		t.Errorf("decoded request mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeCreateLink(t *testing.T) {
	req := FileOpRequest{
		Op:         OpCreateLink,
		Sources:    []string{"/home/u/link"},
		TargetPath: "/opt/app/run",
		Arguments:  "--fast",
		WorkingDir: "/opt/app",
		RunAsAdmin: true,
	}
	msg := wire(t, EncodeFileOp(req, "x"))
	assert.Equal(t, "/opt/app/run", msg.String(KeyTargetPath))
	assert.True(t, msg.Bool(KeyRunAsAdmin))

	decoded, _, err := DecodeFileOp(msg)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestDecodeFileOpRejectsUnknown(t *testing.T) {
	_, _, err := DecodeFileOp(Message{KeyArguments: ArgFileOperation, KeyFileOp: "FormatDisk"})
	assert.Error(t, err)
	_, _, err = DecodeFileOp(Message{KeyArguments: ArgRecycleBin})
	assert.Error(t, err)
}

func TestFileOpResponseItemsKey(t *testing.T) {
	tests := []struct {
		op          FileOp
		permanently bool
		key         string
	}{
		{OpCopyItem, false, "CopiedItems"},
		{OpMoveItem, false, "MovedItems"},
		{OpDeleteItem, true, "DeletedItems"},
		{OpDeleteItem, false, "RecycledItems"},
		{OpRenameItem, false, "RenamedItems"},
		{OpCreateLink, false, "CreatedItems"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			req := FileOpRequest{Op: tt.op, Permanently: tt.permanently}
			msg, err := EncodeFileOpResponse(req, FileOpResponse{Success: true, Items: []string{"/x"}})
			require.NoError(t, err)
			msg = wire(t, msg)

			raw := msg.String(tt.key)
			assert.Equal(t, `["/x"]`, raw)

			resp, err := DecodeFileOpResponse(req, msg)
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, []string{"/x"}, resp.Items)
		})
	}
}

func TestRecycleMessages(t *testing.T) {
	records := []core.RecycleBinRecord{{
		RecyclePath:  "/trash/$RAB12.txt",
		OriginalPath: "/home/u/a.txt",
		DateRecycled: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Size:         12,
		ItemType:     core.ItemFile,
	}}

	req, err := DecodeRecycle(wire(t, EncodeRecycle(RecycleRequest{Action: RecycleEnumerate})))
	require.NoError(t, err)
	assert.Equal(t, RecycleEnumerate, req.Action)

	msg, err := EncodeRecycleResponse(req, RecycleResponse{Success: true, Records: records})
	require.NoError(t, err)
	resp, err := DecodeRecycleResponse(req, wire(t, msg))
	require.NoError(t, err)
	if diff := cmp.Diff(records, resp.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	query := RecycleRequest{Action: RecycleQuery}
	msg, err = EncodeRecycleResponse(query, RecycleResponse{Success: true, Stats: core.RecycleBinStats{NumItems: 3, BinSize: 4096}})
	require.NoError(t, err)
	resp, err = DecodeRecycleResponse(query, wire(t, msg))
	require.NoError(t, err)
	assert.Equal(t, core.RecycleBinStats{NumItems: 3, BinSize: 4096}, resp.Stats)

	_, err = DecodeRecycle(Message{KeyArguments: ArgRecycleBin, KeyAction: "Shred"})
	assert.Error(t, err)
}

func TestParseProgress(t *testing.T) {
	opID, pct, ok := ParseProgress(wire(t, ProgressMessage("op-1", 42)))
	require.True(t, ok)
	assert.Equal(t, "op-1", opID)
	assert.Equal(t, 42.0, pct)

	_, _, ok = ParseProgress(Message{KeyRequestID: "r", KeyPushOperationID: "op-1", KeyProgress: 1.0})
	assert.False(t, ok)
}

func TestCorrelate(t *testing.T) {
	t.Run("same length zips", func(t *testing.T) {
		got := Correlate([]string{"/a/x", "/a/y"}, []string{"/b/x (1)", "/b/y"}, path.Base)
		assert.Equal(t, map[string]string{"/a/x": "/b/x (1)", "/a/y": "/b/y"}, got)
	})

	t.Run("fewer produced matches by name", func(t *testing.T) {
		got := Correlate([]string{"/a/x", "/a/y", "/a/z"}, []string{"/b/z", "/b/x"}, path.Base)
		assert.Equal(t, map[string]string{"/a/x": "/b/x", "/a/z": "/b/z"}, got)
	})
}

func TestSplitPaths(t *testing.T) {
	assert.Nil(t, SplitPaths(""))
	assert.Equal(t, []string{"a", "b"}, SplitPaths(JoinPaths([]string{"a", "b"})))
}
