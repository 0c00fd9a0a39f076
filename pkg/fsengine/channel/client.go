package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// Client is a websocket connection to the helper. Requests may be issued
// concurrently; responses are matched by RequestID and progress pushes by
// OperationID.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  zerolog.Logger

	mu       sync.Mutex
	pending  map[string]chan Message
	progress map[string]core.ProgressReporter
	closed   bool
	readErr  error
	done     chan struct{}
}

// Dial connects to the helper at url (ws://host/ws).
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c := &Client{
		conn:     conn,
		logger:   logger.With().Str("component", "channel").Logger(),
		pending:  make(map[string]chan Message),
		progress: make(map[string]core.ProgressReporter),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	c.logger.Debug().Str("url", url).Msg("connected to privileged helper")
	return c, nil
}

// Available reports whether the connection is still open.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close shuts the connection. Pending calls fail with ErrUnavailable.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

// FileOperation implements Privileged.
func (c *Client) FileOperation(ctx context.Context, req FileOpRequest, progress core.ProgressReporter) (FileOpResponse, error) {
	operationID := uuid.NewString()
	if progress != nil {
		c.subscribe(operationID, progress)
		defer c.unsubscribe(operationID)
	}

	c.logger.Debug().
		Str("op_id", operationID).
		Str("fileop", string(req.Op)).
		Int("items", len(req.Sources)).
		Msg("delegating to privileged helper")

	reply, err := c.roundTrip(ctx, EncodeFileOp(req, operationID))
	if err != nil {
		return FileOpResponse{}, err
	}
	return DecodeFileOpResponse(req, reply)
}

// RecycleBin implements Privileged.
func (c *Client) RecycleBin(ctx context.Context, req RecycleRequest) (RecycleResponse, error) {
	reply, err := c.roundTrip(ctx, EncodeRecycle(req))
	if err != nil {
		return RecycleResponse{}, err
	}
	return DecodeRecycleResponse(req, reply)
}

func (c *Client) subscribe(operationID string, progress core.ProgressReporter) {
	c.mu.Lock()
	c.progress[operationID] = progress
	c.mu.Unlock()
}

func (c *Client) unsubscribe(operationID string) {
	c.mu.Lock()
	delete(c.progress, operationID)
	c.mu.Unlock()
}

func (c *Client) roundTrip(ctx context.Context, msg Message) (Message, error) {
	requestID := uuid.NewString()
	msg[KeyRequestID] = requestID
	reply := make(chan Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrUnavailable
	}
	c.pending[requestID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp, ok := <-reply:
		if !ok {
			return nil, c.closeError()
		}
		return resp, nil
	}
}

func (c *Client) closeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, c.readErr)
	}
	return ErrUnavailable
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown(err)
			return
		}

		if operationID, percent, ok := ParseProgress(msg); ok {
			c.mu.Lock()
			reporter := c.progress[operationID]
			c.mu.Unlock()
			if reporter != nil {
				reporter.Report(percent)
			}
			continue
		}

		requestID := msg.String(KeyRequestID)
		c.mu.Lock()
		reply, ok := c.pending[requestID]
		if ok {
			delete(c.pending, requestID)
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Warn().Str("request_id", requestID).Msg("response for unknown request")
			continue
		}
		reply <- msg
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
		c.readErr = err
		c.logger.Debug().Err(err).Msg("privileged helper connection closed")
	}
	for id, reply := range c.pending {
		close(reply)
		delete(c.pending, id)
	}
}
