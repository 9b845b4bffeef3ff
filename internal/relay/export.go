package relay

import (
	"fmt"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	"go.uber.org/zap"
)

// Exporter pushes web-side data to phone connections and acknowledges
// every push to its sender with the number of phones written to.
type Exporter struct {
	registry *Registry
	fanout   *Fanout
	log      *zap.Logger
	now      func() time.Time
}

func NewExporter(registry *Registry, fanout *Fanout, log *zap.Logger) *Exporter {
	return &Exporter{registry: registry, fanout: fanout, log: log, now: time.Now}
}

// OnEventExport reshapes the export into an event_data envelope for every
// phone except the sender. The sender is marked as a web client.
func (e *Exporter) OnEventExport(f protocol.EventExport, sender Conn) int {
	if st, ok := e.registry.State(sender.ID()); ok {
		_ = e.registry.SetRole(sender.ID(), RoleWeb, st.CorrelationKey, st.Waiting)
	}

	env := f.Envelope(e.now())
	n := e.fanout.BroadcastTo(hasRoleExcept(RolePhone, sender.ID()), protocol.MsgEventData, env)

	e.log.Info("event export relayed",
		zap.String("conn", sender.ID()),
		zap.ByteString("event", env.Event.UUID),
		zap.Int("areas", len(f.Areas)),
		zap.Int("paths", len(f.Paths)),
		zap.Int("equipments", len(f.Equipments)),
		zap.Int("recipients", n))

	e.fanout.SendTo(sender, protocol.MsgExportConfirmed, protocol.ExportConfirmed{
		Type:    protocol.MsgExportConfirmed,
		Message: fmt.Sprintf("Data sent to %d phone(s)", n),
		Summary: f.Summary(n),
	})
	return n
}

// OnPlanningData forwards the planning frame byte-for-byte.
func (e *Exporter) OnPlanningData(f protocol.PlanningData, sender Conn) int {
	n := e.fanout.BroadcastRaw(hasRoleExcept(RolePhone, sender.ID()), protocol.MsgPlanningData, f.Raw)

	summary := f.Summary(n)
	e.log.Info("planning relayed",
		zap.String("conn", sender.ID()),
		zap.String("team", summary.TeamName),
		zap.Int("members", summary.Members),
		zap.Int("installations", summary.Installations),
		zap.Int("removals", summary.Removals),
		zap.Int("recipients", n))

	e.fanout.SendTo(sender, protocol.MsgExportConfirmed, protocol.ExportConfirmed{
		Type:    protocol.MsgExportConfirmed,
		Message: fmt.Sprintf("Planning sent to %d phone(s)", n),
		Summary: summary,
	})
	return n
}
