// Package remoteui mirrors plugin-to-UI ring traffic over a WebSocket
// to a detached UI process. This is supplemental: the console frontend
// never requires it, and a
// host with no --remote-ui flag never constructs a Client. Grounded on
// a standard dial/reconnect loop,
// ping loop, and mutex-guarded *websocket.Conn, generalized from a
// fixed request/response JSON protocol to relaying typed ring
// messages.
package remoteui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jalv-go/jalv/internal/applog"
	"github.com/jalv-go/jalv/internal/ringproto"
)

// Frame is the JSON-framed mirror of one ring message, sent in both
// directions: host->UI carries plugin state, UI->host carries control
// changes the user made in the remote UI.
type Frame struct {
	Kind     ringproto.Kind `json:"kind"`
	Port     uint32         `json:"port,omitempty"`
	Value    float32        `json:"value,omitempty"`
	AtomType uint32         `json:"atomType,omitempty"`
	AtomBody string         `json:"atomBody,omitempty"` // base64
	Frames   uint32         `json:"frames,omitempty"`
	RunState uint32         `json:"runState,omitempty"`
}

// Settings configures the remote UI transport.
type Settings struct {
	URL            string
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
}

// Inbound is implemented by the host, applying frames received from
// the remote UI (i.e. user-initiated control changes) the same way a
// local console command would.
type Inbound interface {
	ApplyRemoteFrame(f Frame) error
}

// Client connects to a remote UI process and relays Frames in both
// directions until Stop is called.
type Client struct {
	settings Settings
	handler  Inbound
	log      *applog.Logger

	mu   sync.RWMutex
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a disconnected Client.
func New(parentCtx context.Context, settings Settings, handler Inbound, log *applog.Logger) *Client {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Client{settings: settings, handler: handler, log: log, ctx: ctx, cancel: cancel}
}

// Start launches the connect loop in the background.
func (c *Client) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.connectLoop()
	}()
}

// Stop cancels the client and waits for its goroutines to exit.
func (c *Client) Stop() {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Send relays one outbound Frame, silently doing nothing if not
// currently connected (remote UI traffic is best-effort, never on the
// RT path).
func (c *Client) Send(f Frame) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("remoteui: encode frame: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout)); err != nil {
		return fmt.Errorf("remoteui: set write deadline: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) connectLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if err := c.connect(); err != nil {
			if c.log != nil {
				c.log.Warning(fmt.Sprintf("remote UI connect failed: %v (retrying in %s)", err, c.settings.ReconnectDelay))
			}
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.settings.ReconnectDelay):
				continue
			}
		}
		c.messageLoop()
	}
}

func (c *Client) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = c.settings.WriteTimeout

	conn, _, err := dialer.Dial(c.settings.URL, nil)
	if err != nil {
		return err
	}
	if err := conn.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("remoteui: set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) messageLoop() {
	defer func() {
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	go c.pingLoop()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.log != nil {
				c.log.Warning(fmt.Sprintf("remote UI read error: %v", err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(message, &f); err != nil {
			if c.log != nil {
				c.log.Warning(fmt.Sprintf("remote UI malformed frame: %v", err))
			}
			continue
		}
		if c.handler != nil {
			if err := c.handler.ApplyRemoteFrame(f); err != nil && c.log != nil {
				c.log.Warning(fmt.Sprintf("remote UI apply failed: %v", err))
			}
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// EncodeAtomBody base64-encodes an atom body for JSON framing.
func EncodeAtomBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(body)
}

// DecodeAtomBody reverses EncodeAtomBody.
func DecodeAtomBody(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
