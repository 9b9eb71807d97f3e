// Package cdp drives a Chrome instance over the DevTools protocol. It
// implements the browser interfaces directly on the wire protocol: element
// operations run as page script, downloads are captured through browser
// download events. The driver talks to an already running Chrome started
// with --remote-debugging-port.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	callTimeout  = 30 * time.Second
	writeWait    = 10 * time.Second
	wsBufferSize = 1 << 20
)

// message is one frame of the protocol, request or event.
type message struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *protocolError  `json:"error,omitempty"`
}

type protocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// EventHandler receives one protocol event's parameters.
type EventHandler func(params json.RawMessage)

// Client is one DevTools websocket connection. A single client multiplexes
// the browser session and any number of attached page sessions.
type Client struct {
	logger *slog.Logger
	conn   *websocket.Conn

	mu       sync.Mutex
	nextID   int64
	pending  map[int64]chan *message
	handlers map[string][]EventHandler
	closed   bool

	done chan struct{}
}

// Connect resolves the browser's websocket endpoint from the debugging port
// (host is "host:port") and opens the connection.
func Connect(ctx context.Context, logger *slog.Logger, host string) (*Client, error) {
	endpoint, err := browserEndpoint(ctx, host)
	if err != nil {
		return nil, err
	}

	return ConnectURL(ctx, logger, endpoint)
}

// ConnectURL opens a connection to an explicit ws:// debugger URL.
func ConnectURL(ctx context.Context, logger *slog.Logger, wsURL string) (*Client, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", wsURL, err)
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	client := &Client{
		logger:   logger.With("module", "cdp"),
		conn:     conn,
		pending:  make(map[int64]chan *message),
		handlers: make(map[string][]EventHandler),
		done:     make(chan struct{}),
	}

	go client.readLoop()

	return client, nil
}

// browserEndpoint asks the debugging port for the browser target URL.
func browserEndpoint(ctx context.Context, host string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+host+"/json/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach debugging port %s: %w", host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("failed to parse version response: %w", err)
	}

	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("debugging port %s returned no websocket URL", host)
	}

	return version.WebSocketDebuggerURL, nil
}

// Call sends one command and waits for its response. sessionID is empty for
// browser-level commands.
func (c *Client) Call(ctx context.Context, sessionID, method string, params any, result any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params for %s: %w", method, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return fmt.Errorf("connection closed")
	}

	c.nextID++
	id := c.nextID
	reply := make(chan *message, 1)
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	frame := message{ID: id, SessionID: sessionID, Method: method, Params: payload}

	c.mu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteJSON(frame)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	timeout := callTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("connection closed during %s", method)
	case <-timer.C:
		return fmt.Errorf("timed out waiting for %s response", method)
	case response := <-reply:
		if response.Error != nil {
			return fmt.Errorf("%s failed: %w", method, response.Error)
		}

		if result != nil && len(response.Result) > 0 {
			if err := json.Unmarshal(response.Result, result); err != nil {
				return fmt.Errorf("failed to parse %s result: %w", method, err)
			}
		}

		return nil
	}
}

// On registers a handler for a protocol event on one session. An empty
// sessionID subscribes to browser-level events. Handlers run on the read
// goroutine and must not block.
func (c *Client) On(sessionID, method string, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sessionID + " " + method
	c.handlers[key] = append(c.handlers[key], handler)
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var frame message
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			alreadyClosed := c.closed
			c.closed = true
			c.mu.Unlock()

			if !alreadyClosed {
				c.logger.Warn("Connection read failed", "error", err)
			}

			return
		}

		if frame.ID != 0 {
			c.mu.Lock()
			reply, ok := c.pending[frame.ID]
			c.mu.Unlock()

			if ok {
				reply <- &frame
			}

			continue
		}

		c.mu.Lock()
		handlers := append([]EventHandler(nil), c.handlers[frame.SessionID+" "+frame.Method]...)
		c.mu.Unlock()

		for _, handler := range handlers {
			handler(frame.Params)
		}
	}
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}
