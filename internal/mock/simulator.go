package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures a simulated phone.
type Options struct {
	EventUUID      string
	Points         int
	PhotosPerPoint int
	Seed           int64

	// Bulk sends the event as one legacy frame instead of a stream.
	Bulk bool
	// Import sends import_request before the transfer and waits up to
	// ImportTimeout for event_data or no_data.
	Import        bool
	ImportTimeout time.Duration
	// Delay is the pause between streamed frames.
	Delay time.Duration
	// AckTimeout bounds the wait for the relay's end frame.
	AckTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ImportTimeout <= 0 {
		o.ImportTimeout = 30 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 30 * time.Second
	}
	return o
}

// Result is what the relay told the simulated phone.
type Result struct {
	EventUUID string
	Sent      int

	// ImportReply is the type of the frame answering import_request, empty
	// when no import was requested.
	ImportReply protocol.MessageType
	ImportTitle string

	Message string
	Summary protocol.TransferSummary
	Errors  []string
}

// Simulator plays one phone against a relay.
type Simulator struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	log    *zap.Logger
	now    func() time.Time
}

func NewSimulator(url string, opts Options, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		url:  url,
		opts: opts.withDefaults(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		log: log.Named("simulator"),
		now: time.Now,
	}
}

type inbound struct {
	frame map[string]json.RawMessage
	err   error
}

// Run connects, optionally asks for an import, sends the generated event and
// waits for the relay's end frame.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	frames := make(chan inbound, 64)
	go readFrames(ctx, conn, frames)

	ev := Generate(s.opts.EventUUID, s.opts.Points, s.opts.PhotosPerPoint, s.opts.Seed)
	res := &Result{EventUUID: ev.UUID}

	if s.opts.Import {
		if err := s.requestImport(ctx, conn, frames, res); err != nil {
			return res, err
		}
	}

	var out [][]byte
	if s.opts.Bulk {
		frame, err := BulkFrame(ev)
		if err != nil {
			return res, fmt.Errorf("encode bulk frame: %w", err)
		}
		out = [][]byte{frame}
	} else {
		out, err = StreamFrames(ev, s.now())
		if err != nil {
			return res, fmt.Errorf("encode stream: %w", err)
		}
	}

	s.log.Info("sending event",
		zap.String("event", ev.UUID),
		zap.Int("points", len(ev.Points)),
		zap.Int("photos", ev.PhotoCount()),
		zap.Bool("bulk", s.opts.Bulk),
	)
	for i, data := range out {
		if i > 0 && s.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(s.opts.Delay):
			}
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return res, fmt.Errorf("write frame %d: %w", i, err)
		}
		res.Sent++
	}

	return res, s.awaitEnd(ctx, frames, res)
}

func (s *Simulator) requestImport(ctx context.Context, conn *websocket.Conn, frames <-chan inbound, res *Result) error {
	data, err := protocol.Encode(protocol.ImportRequest{Type: protocol.MsgImportRequest})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write import_request: %w", err)
	}

	timeout := time.NewTimer(s.opts.ImportTimeout)
	defer timeout.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.New("no reply to import_request")
		case in := <-frames:
			if in.err != nil {
				return in.err
			}
			switch t := frameType(in.frame); t {
			case protocol.MsgNoData:
				res.ImportReply = t
				s.log.Info("no web client waiting")
				return nil
			case protocol.MsgEventData:
				res.ImportReply = t
				res.ImportTitle = eventTitle(in.frame)
				s.log.Info("received event data", zap.String("title", res.ImportTitle))
				return nil
			case protocol.MsgError:
				res.Errors = append(res.Errors, errorMessage(in.frame))
			}
		}
	}
}

func (s *Simulator) awaitEnd(ctx context.Context, frames <-chan inbound, res *Result) error {
	timeout := time.NewTimer(s.opts.AckTimeout)
	defer timeout.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.New("relay did not acknowledge the transfer")
		case in := <-frames:
			if in.err != nil {
				return in.err
			}
			switch frameType(in.frame) {
			case protocol.MsgError:
				msg := errorMessage(in.frame)
				res.Errors = append(res.Errors, msg)
				s.log.Warn("relay error", zap.String("message", msg))
			case protocol.MsgEnd:
				var end protocol.End
				raw, _ := json.Marshal(in.frame)
				if err := json.Unmarshal(raw, &end); err != nil {
					return fmt.Errorf("decode end frame: %w", err)
				}
				res.Message = end.Message
				if end.Summary != nil {
					res.Summary = *end.Summary
				}
				s.log.Info("transfer acknowledged",
					zap.String("message", end.Message),
					zap.Int("points", res.Summary.TotalPoints),
					zap.Int("photos", res.Summary.TotalPhotos),
				)
				return nil
			}
		}
	}
}

// echoed frames are the relay re-broadcasting our own transfer.
var echoed = map[protocol.MessageType]bool{
	protocol.MsgMetadata: true,
	protocol.MsgPoint:    true,
	protocol.MsgPhoto:    true,
}

func readFrames(ctx context.Context, conn *websocket.Conn, out chan<- inbound) {
	for {
		var in inbound
		_, data, err := conn.ReadMessage()
		if err != nil {
			in.err = fmt.Errorf("read: %w", err)
		} else if err := json.Unmarshal(data, &in.frame); err != nil || echoed[frameType(in.frame)] {
			continue
		}
		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
		if in.err != nil {
			return
		}
	}
}

func frameType(frame map[string]json.RawMessage) protocol.MessageType {
	var t protocol.MessageType
	_ = json.Unmarshal(frame["type"], &t)
	return t
}

func errorMessage(frame map[string]json.RawMessage) string {
	var msg string
	_ = json.Unmarshal(frame["message"], &msg)
	return msg
}

func eventTitle(frame map[string]json.RawMessage) string {
	var event struct {
		Title string `json:"title"`
	}
	_ = json.Unmarshal(frame["event"], &event)
	return event.Title
}
