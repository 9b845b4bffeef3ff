// Package relay pairs web and phone clients, assembles streamed transfers
// and fans frames out to connections.
//
// A Hub owns all relay state. Connection goroutines hand it frames through
// channels and it processes them one at a time, so handlers never run
// concurrently and the session store has a single writer.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/Artemis1799/Ody-stras-sub001/internal/metrics"
	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	"github.com/Artemis1799/Ody-stras-sub001/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrTooManyConnections = errors.New("too many connections")
	ErrHubStopped         = errors.New("hub stopped")
)

const tracerName = "github.com/Artemis1799/Ody-stras-sub001/internal/relay"

type inbound struct {
	conn Conn
	data []byte
}

type registration struct {
	conn   Conn
	result chan error
}

// Options configures a Hub.
type Options struct {
	// MaxConnections caps open connections; 0 means unlimited.
	MaxConnections int
	// QueueSize buffers inbound frames waiting for the hub loop.
	QueueSize int
	// TracerProvider receives the per-frame dispatch spans. Nil uses the
	// global provider.
	TracerProvider trace.TracerProvider
}

type Hub struct {
	registry  *Registry
	store     *session.Store
	fanout    *Fanout
	assembler *Assembler
	pairer    *Pairer
	exporter  *Exporter
	metrics   *metrics.Metrics
	log       *zap.Logger
	tracer    trace.Tracer
	maxConns  int

	inbound    chan inbound
	register   chan registration
	unregister chan Conn
	control    chan func()
	done       chan struct{}
}

func NewHub(opts Options, store *session.Store, m *metrics.Metrics, log *zap.Logger) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	registry := NewRegistry()
	fanout := NewFanout(registry, m, log.Named("fanout"))
	return &Hub{
		registry:   registry,
		store:      store,
		fanout:     fanout,
		assembler:  NewAssembler(store, fanout, m, log.Named("assembler")),
		pairer:     NewPairer(registry, fanout, log.Named("pairing")),
		exporter:   NewExporter(registry, fanout, log.Named("export")),
		metrics:    m,
		log:        log,
		tracer:     opts.TracerProvider.Tracer(tracerName),
		maxConns:   opts.MaxConnections,
		inbound:    make(chan inbound, opts.QueueSize),
		register:   make(chan registration),
		unregister: make(chan Conn, 64),
		control:    make(chan func()),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }
func (h *Hub) Store() *session.Store { return h.store }

// Run processes registrations, frames and control requests until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-h.register:
			r.result <- h.add(r.conn)
		case c := <-h.unregister:
			h.remove(c)
		case in := <-h.inbound:
			h.dispatch(ctx, in.conn, in.data)
		case fn := <-h.control:
			fn()
		}
	}
}

// Register adds a connection. It fails with ErrTooManyConnections when the
// limit is reached.
func (h *Hub) Register(ctx context.Context, c Conn) error {
	r := registration{conn: c, result: make(chan error, 1)}
	select {
	case h.register <- r:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
	return <-r.result
}

// Unregister removes a connection. It never blocks once the hub has stopped.
func (h *Hub) Unregister(c Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Deliver queues one inbound frame from c.
func (h *Hub) Deliver(ctx context.Context, c Conn, data []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.inbound <- inbound{conn: c, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

// Flush discards the in-flight transfer and returns what was dropped.
func (h *Hub) Flush(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	err := h.do(ctx, func() {
		snap = h.store.Flush()
		h.metrics.SetSession(0, 0)
		h.log.Info("session flushed",
			zap.String("event", snap.EventUUID),
			zap.Int("points", snap.Points),
			zap.Int("photos", snap.Photos))
	})
	return snap, err
}

// do runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case h.control <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
	<-finished
	return nil
}

func (h *Hub) add(c Conn) error {
	if h.maxConns > 0 && h.registry.Count() >= h.maxConns {
		return ErrTooManyConnections
	}
	if err := h.registry.Register(c); err != nil {
		return err
	}
	h.metrics.SetConnections(h.registry.RoleCounts())
	h.log.Debug("connection registered", zap.String("conn", c.ID()), zap.Int("open", h.registry.Count()))
	return nil
}

// remove deregisters c. The session is left as is, even when c was the
// sender of an unfinished transfer.
func (h *Hub) remove(c Conn) {
	if !h.registry.Deregister(c.ID()) {
		return
	}
	h.metrics.SetConnections(h.registry.RoleCounts())
	h.log.Debug("connection deregistered", zap.String("conn", c.ID()), zap.Int("open", h.registry.Count()))
}

// dispatch decodes one frame and runs its handler to completion. Faults
// are answered to the sender only.
func (h *Hub) dispatch(ctx context.Context, c Conn, data []byte) {
	_, span := h.tracer.Start(ctx, "relay.dispatch",
		trace.WithAttributes(attribute.String("relay.conn", c.ID()), attribute.Int("relay.frame.bytes", len(data))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("handler panic: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			h.log.Error("frame handler panicked", zap.String("conn", c.ID()), zap.Any("panic", r), zap.Stack("stack"))
			h.fanout.SendTo(c, protocol.MsgError, protocol.NewError("internal error"))
		}
	}()

	frame, err := protocol.Decode(data)
	if err != nil {
		var de *protocol.DecodeError
		kind := string(protocol.KindInvalidJSON)
		if errors.As(err, &de) {
			kind = string(de.Kind)
		}
		h.metrics.DecodeError(kind)
		span.SetAttributes(attribute.String("relay.decode.kind", kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		h.log.Warn("rejected frame", zap.String("conn", c.ID()), zap.String("kind", kind), zap.Error(err))
		h.fanout.SendTo(c, protocol.MsgError, protocol.NewError(err.Error()))
		return
	}

	span.SetAttributes(attribute.String("relay.frame.type", string(frame.Kind())))
	h.metrics.FrameReceived(string(frame.Kind()))

	switch f := frame.(type) {
	case protocol.WebWaiting:
		h.pairer.OnWebWaiting(f, c)
		h.metrics.SetConnections(h.registry.RoleCounts())
	case protocol.WebWaitingPlanning:
		h.pairer.OnWebWaitingPlanning(f, c)
		h.metrics.SetConnections(h.registry.RoleCounts())
	case protocol.ImportRequest:
		h.pairer.OnImportRequest(f, c)
		h.metrics.SetConnections(h.registry.RoleCounts())
	case protocol.EventExport:
		h.exporter.OnEventExport(f, c)
		h.metrics.SetConnections(h.registry.RoleCounts())
	case protocol.PlanningData:
		h.exporter.OnPlanningData(f, c)
	case protocol.Metadata:
		h.assembler.OnMetadata(f)
	case protocol.Point:
		h.assembler.OnPoint(f)
	case protocol.Photo:
		h.assembler.OnPhoto(f)
	case protocol.End:
		h.assembler.OnEnd(f)
	case protocol.Bulk:
		h.assembler.OnBulk(f)
	}
}
