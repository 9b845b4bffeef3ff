package relay

import (
	"github.com/Artemis1799/Ody-stras-sub001/internal/metrics"
	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	"go.uber.org/zap"
)

// Fanout delivers frames to registered connections. Every delivery is
// fire-and-forget: a connection that refuses the write is counted as a
// failure and skipped.
type Fanout struct {
	registry *Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewFanout(registry *Registry, m *metrics.Metrics, log *zap.Logger) *Fanout {
	return &Fanout{registry: registry, metrics: m, log: log}
}

// Broadcast sends the frame to every open connection, sender included, and
// returns how many accepted it.
func (f *Fanout) Broadcast(t protocol.MessageType, frame interface{}) int {
	return f.BroadcastTo(nil, t, frame)
}

// BroadcastTo sends the frame to every connection matching pred.
func (f *Fanout) BroadcastTo(pred func(ConnectionState) bool, t protocol.MessageType, frame interface{}) int {
	data, err := protocol.Encode(frame)
	if err != nil {
		f.log.Error("marshal frame", zap.String("type", string(t)), zap.Error(err))
		return 0
	}
	return f.BroadcastRaw(pred, t, data)
}

// BroadcastRaw sends already encoded bytes to every connection matching pred.
func (f *Fanout) BroadcastRaw(pred func(ConnectionState) bool, t protocol.MessageType, data []byte) int {
	sent := 0
	for _, c := range f.registry.Select(pred) {
		if c.Send(data) {
			sent++
			continue
		}
		f.metrics.SendFailed()
		f.log.Debug("send refused", zap.String("conn", c.ID()), zap.String("type", string(t)))
	}
	f.metrics.FramesSent(string(t), sent)
	return sent
}

// SendTo sends the frame to a single connection.
func (f *Fanout) SendTo(c Conn, t protocol.MessageType, frame interface{}) bool {
	data, err := protocol.Encode(frame)
	if err != nil {
		f.log.Error("marshal frame", zap.String("type", string(t)), zap.Error(err))
		return false
	}
	if !c.Send(data) {
		f.metrics.SendFailed()
		return false
	}
	f.metrics.FramesSent(string(t), 1)
	return true
}
