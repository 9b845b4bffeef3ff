package ws

import (
	"context"
	"sync"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/config"
	"github.com/Artemis1799/Ody-stras-sub001/internal/relay"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tunes every socket the server accepts.
type Options struct {
	// SendBuffer is the initial capacity of a client's send queue. The
	// queue grows past it as needed.
	SendBuffer      int
	MaxMessageBytes int64
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	AllowedOrigins  []string
}

func OptionsFromConfig(c config.RelayConfig) Options {
	return Options{
		SendBuffer:      c.SendBuffer,
		MaxMessageBytes: c.MaxMessageBytes,
		WriteTimeout:    c.WriteTimeout,
		PingInterval:    c.PingInterval,
		PongTimeout:     c.PongTimeout,
		AllowedOrigins:  c.AllowedOrigins,
	}
}

func (o Options) withDefaults() Options {
	d := config.Default().Relay
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = d.MaxMessageBytes
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongTimeout <= o.PingInterval {
		o.PongTimeout = 2 * o.PingInterval
	}
	return o
}

// client is one accepted socket. It satisfies relay.Conn.
//
// Outbound frames queue without bound: a single hub step may fan out a
// whole bulk transfer, and every frame of it must reach the peer. Only a
// failed or timed-out write drops the connection.
type client struct {
	id   string
	conn *websocket.Conn
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	pending [][]byte
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

var _ relay.Conn = (*client)(nil)

func newClient(conn *websocket.Conn, opts Options, log *zap.Logger) *client {
	id := uuid.NewString()
	return &client{
		id:      id,
		conn:    conn,
		opts:    opts,
		log:     log.With(zap.String("conn", id)),
		pending: make([][]byte, 0, opts.SendBuffer),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send queues data for the write pump. It never blocks and only refuses
// once the client is closed.
func (c *client) Send(data []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.pending = append(c.pending, data)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// queued reports how many frames wait for the write pump.
func (c *client) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// take hands the queued frames to the caller and resets the queue.
func (c *client) take() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.pending
	c.pending = make([][]byte, 0, c.opts.SendBuffer)
	return batch
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// writePump drains the send queue and pings the peer. It owns every write
// on the socket and closes it on exit. Frames queued before close are
// still written.
func (c *client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.wake:
			if err := c.flush(); err != nil {
				c.log.Info("ws write failed, disconnecting", zap.Error(err), zap.Int("queued", c.queued()))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			if err := c.flush(); err != nil {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes every queued frame, each under its own write deadline.
func (c *client) flush() error {
	for _, msg := range c.take() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

// readPump hands every inbound message to the hub until the socket fails
// or the hub stops.
func (c *client) readPump(ctx context.Context, hub *relay.Hub) {
	defer func() {
		hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Info("ws read failed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		if err := hub.Deliver(ctx, c, data); err != nil {
			return
		}
	}
}
