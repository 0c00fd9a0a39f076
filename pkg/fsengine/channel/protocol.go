package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// Message is one key-value object on the wire. Values decode from JSON as
// string, bool and float64.
type Message map[string]any

// Request keys
const (
	KeyRequestID   = "RequestID"
	KeyArguments   = "Arguments"
	KeyFileOp      = "fileop"
	KeyOperationID = "operationID"
	KeyFilePath    = "filepath"
	KeyDestPath    = "destpath"
	KeyOverwrite   = "overwrite"
	KeyNewName     = "newName"
	KeyPermanently = "permanently"
	KeyTargetPath  = "targetpath"
	KeyLinkArgs    = "arguments"
	KeyWorkingDir  = "workingdir"
	KeyRunAsAdmin  = "runasadmin"
	KeyAction      = "action"
)

// Response and push keys
const (
	KeySuccess         = "Success"
	KeyError           = "Error"
	KeyEnumerate       = "Enumerate"
	KeyNumItems        = "NumItems"
	KeyBinSize         = "BinSize"
	KeyPushOperationID = "OperationID"
	KeyProgress        = "Progress"
)

// Arguments values
const (
	ArgFileOperation = "FileOperation"
	ArgRecycleBin    = "RecycleBin"
)

const pathSeparator = "|"

// String returns the string at key or "".
func (m Message) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns the bool at key. The strings "true" and "1" also count.
func (m Message) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}

// Float returns the number at key.
func (m Message) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// JoinPaths encodes a path list for the filepath and destpath keys.
func JoinPaths(paths []string) string {
	return strings.Join(paths, pathSeparator)
}

// SplitPaths is the inverse of JoinPaths.
func SplitPaths(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, pathSeparator)
}

// ItemsKey names the response key listing produced items for op.
func ItemsKey(op FileOp, permanently bool) string {
	switch op {
	case OpCopyItem:
		return "CopiedItems"
	case OpMoveItem:
		return "MovedItems"
	case OpDeleteItem:
		if permanently {
			return "DeletedItems"
		}
		return "RecycledItems"
	case OpRenameItem:
		return "RenamedItems"
	case OpCreateLink:
		return "CreatedItems"
	default:
		return "Items"
	}
}

// EncodeFileOp builds the request message for req.
func EncodeFileOp(req FileOpRequest, operationID string) Message {
	msg := Message{
		KeyArguments:   ArgFileOperation,
		KeyFileOp:      string(req.Op),
		KeyOperationID: operationID,
		KeyFilePath:    JoinPaths(req.Sources),
		KeyDestPath:    JoinPaths(req.Destinations),
		KeyOverwrite:   req.Overwrite,
	}
	switch req.Op {
	case OpRenameItem:
		msg[KeyNewName] = req.NewName
	case OpDeleteItem:
		msg[KeyPermanently] = req.Permanently
	case OpCreateLink:
		msg[KeyTargetPath] = req.TargetPath
		msg[KeyLinkArgs] = req.Arguments
		msg[KeyWorkingDir] = req.WorkingDir
		msg[KeyRunAsAdmin] = req.RunAsAdmin
	}
	return msg
}

// DecodeFileOp parses a request built by EncodeFileOp.
func DecodeFileOp(msg Message) (FileOpRequest, string, error) {
	if msg.String(KeyArguments) != ArgFileOperation {
		return FileOpRequest{}, "", fmt.Errorf("not a file operation: %q", msg.String(KeyArguments))
	}
	req := FileOpRequest{
		Op:           FileOp(msg.String(KeyFileOp)),
		Sources:      SplitPaths(msg.String(KeyFilePath)),
		Destinations: SplitPaths(msg.String(KeyDestPath)),
		Overwrite:    msg.Bool(KeyOverwrite),
		NewName:      msg.String(KeyNewName),
		Permanently:  msg.Bool(KeyPermanently),
		TargetPath:   msg.String(KeyTargetPath),
		Arguments:    msg.String(KeyLinkArgs),
		WorkingDir:   msg.String(KeyWorkingDir),
		RunAsAdmin:   msg.Bool(KeyRunAsAdmin),
	}
	switch req.Op {
	case OpCreateLink, OpCopyItem, OpMoveItem, OpDeleteItem, OpRenameItem:
	default:
		return FileOpRequest{}, "", fmt.Errorf("unknown fileop %q", req.Op)
	}
	return req, msg.String(KeyOperationID), nil
}

// EncodeFileOpResponse builds the response message for req.
func EncodeFileOpResponse(req FileOpRequest, resp FileOpResponse) (Message, error) {
	msg := Message{KeySuccess: resp.Success}
	items := resp.Items
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	msg[ItemsKey(req.Op, req.Permanently)] = string(data)
	if resp.Error != "" {
		msg[KeyError] = resp.Error
	}
	return msg, nil
}

// DecodeFileOpResponse parses a response to req.
func DecodeFileOpResponse(req FileOpRequest, msg Message) (FileOpResponse, error) {
	resp := FileOpResponse{
		Success: msg.Bool(KeySuccess),
		Error:   msg.String(KeyError),
	}
	if raw := msg.String(ItemsKey(req.Op, req.Permanently)); raw != "" {
		if err := json.Unmarshal([]byte(raw), &resp.Items); err != nil {
			return resp, fmt.Errorf("decode %s: %w", ItemsKey(req.Op, req.Permanently), err)
		}
	}
	return resp, nil
}

// EncodeRecycle builds a recycle-bin request.
func EncodeRecycle(req RecycleRequest) Message {
	return Message{
		KeyArguments: ArgRecycleBin,
		KeyAction:    string(req.Action),
	}
}

// DecodeRecycle parses a request built by EncodeRecycle.
func DecodeRecycle(msg Message) (RecycleRequest, error) {
	if msg.String(KeyArguments) != ArgRecycleBin {
		return RecycleRequest{}, fmt.Errorf("not a recycle bin request: %q", msg.String(KeyArguments))
	}
	req := RecycleRequest{Action: RecycleAction(msg.String(KeyAction))}
	switch req.Action {
	case RecycleEnumerate, RecycleQuery, RecycleEmpty:
		return req, nil
	default:
		return RecycleRequest{}, fmt.Errorf("unknown recycle bin action %q", req.Action)
	}
}

// EncodeRecycleResponse builds the response to req.
func EncodeRecycleResponse(req RecycleRequest, resp RecycleResponse) (Message, error) {
	msg := Message{KeySuccess: resp.Success}
	if resp.Error != "" {
		msg[KeyError] = resp.Error
	}
	switch req.Action {
	case RecycleEnumerate:
		records := resp.Records
		if records == nil {
			records = []core.RecycleBinRecord{}
		}
		data, err := json.Marshal(records)
		if err != nil {
			return nil, err
		}
		msg[KeyEnumerate] = string(data)
	case RecycleQuery:
		msg[KeyNumItems] = resp.Stats.NumItems
		msg[KeyBinSize] = resp.Stats.BinSize
	}
	return msg, nil
}

// DecodeRecycleResponse parses a response to req.
func DecodeRecycleResponse(req RecycleRequest, msg Message) (RecycleResponse, error) {
	resp := RecycleResponse{
		Success: msg.Bool(KeySuccess),
		Error:   msg.String(KeyError),
	}
	switch req.Action {
	case RecycleEnumerate:
		if raw := msg.String(KeyEnumerate); raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &resp.Records); err != nil {
				return resp, fmt.Errorf("decode %s: %w", KeyEnumerate, err)
			}
		}
	case RecycleQuery:
		n, _ := msg.Float(KeyNumItems)
		size, _ := msg.Float(KeyBinSize)
		resp.Stats = core.RecycleBinStats{NumItems: int64(n), BinSize: int64(size)}
	}
	return resp, nil
}

// ProgressMessage builds a progress push.
func ProgressMessage(operationID string, percent float64) Message {
	return Message{
		KeyPushOperationID: operationID,
		KeyProgress:        percent,
	}
}

// ParseProgress recognises a progress push.
func ParseProgress(msg Message) (operationID string, percent float64, ok bool) {
	if _, isResponse := msg[KeyRequestID]; isResponse {
		return "", 0, false
	}
	operationID = msg.String(KeyPushOperationID)
	percent, hasProgress := msg.Float(KeyProgress)
	return operationID, percent, operationID != "" && hasProgress
}
