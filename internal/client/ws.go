package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
	readLimit          = 32 << 20
)

// WSClient manages an observer connection to the relay.
type WSClient struct {
	url    string
	dialer *websocket.Dialer

	mu       sync.Mutex
	writeMu  sync.Mutex // serialises all conn writes
	conn     *websocket.Conn
	attempts int
	pingStop context.CancelFunc
}

func NewWSClient(url string) *WSClient {
	return &WSClient{url: url, dialer: websocket.DefaultDialer}
}

// --- Bubble Tea messages ---

type ConnectedMsg struct{ URL string }

type DisconnectedMsg struct{ Err error }

type MetadataMsg struct{ Frame protocol.Metadata }

type PointMsg struct {
	Frame protocol.Point
	ID    string
}

type PhotoMsg struct{ Frame protocol.Photo }

type EndMsg struct{ Frame protocol.End }

// RelayErrorMsg is an error frame sent back by the relay.
type RelayErrorMsg struct{ Message string }

// FrameMsg reports any other frame by type and size.
type FrameMsg struct {
	Type protocol.MessageType
	Size int
}

// Listen returns a command that connects, retrying with exponential
// backoff until it succeeds or ctx is cancelled.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
			if err == nil {
				conn.SetReadLimit(readLimit)
				c.mu.Lock()
				if c.pingStop != nil {
					c.pingStop()
				}
				pingCtx, pingStop := context.WithCancel(ctx)
				c.conn = conn
				c.attempts = 0
				c.pingStop = pingStop
				c.mu.Unlock()

				go c.pingLoop(pingCtx, conn)
				return ConnectedMsg{URL: c.url}
			}

			c.mu.Lock()
			c.attempts++
			c.mu.Unlock()

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
		}
	}
}

// Attempts is the number of failed dials since the last connection.
func (c *WSClient) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ReadLoop returns a command that reads until the next frame worth
// reporting. It should be re-issued after every message it produces.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return DisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.drop(conn)
				if ctx.Err() != nil {
					return nil
				}
				return DisconnectedMsg{Err: err}
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

			if msg := Dispatch(data); msg != nil {
				return msg
			}
		}
	}
}

// Close drops the current connection, if any.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.drop(conn)
	}
}

func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.pingStop != nil {
			c.pingStop()
			c.pingStop = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Dispatch turns one relay frame into a Bubble Tea message. Frames that are
// not JSON objects with a type yield nil.
func Dispatch(data []byte) tea.Msg {
	var head struct {
		Type protocol.MessageType `json:"type"`
	}
	if json.Unmarshal(data, &head) != nil || head.Type == "" {
		return nil
	}

	switch head.Type {
	case protocol.MsgMetadata:
		var f protocol.Metadata
		if json.Unmarshal(data, &f) == nil {
			return MetadataMsg{Frame: f}
		}
	case protocol.MsgPoint:
		var f protocol.Point
		if json.Unmarshal(data, &f) == nil {
			return PointMsg{Frame: f, ID: PointID(f.Point)}
		}
	case protocol.MsgPhoto:
		var f protocol.Photo
		if json.Unmarshal(data, &f) == nil {
			return PhotoMsg{Frame: f}
		}
	case protocol.MsgEnd:
		var f protocol.End
		if json.Unmarshal(data, &f) == nil {
			return EndMsg{Frame: f}
		}
	case protocol.MsgError:
		var f protocol.Error
		if json.Unmarshal(data, &f) == nil {
			return RelayErrorMsg{Message: f.Message}
		}
	}
	return FrameMsg{Type: head.Type, Size: len(data)}
}
