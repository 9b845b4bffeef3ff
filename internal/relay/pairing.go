package relay

import (
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	"go.uber.org/zap"
)

const (
	phoneRequestingMessage = "A phone is requesting the data"
	noDataMessage          = "No computer is waiting to export"
)

// Pairer matches phones asking for data with web clients ready to supply
// it. Correlation keys are recorded but never used to narrow the match.
type Pairer struct {
	registry *Registry
	fanout   *Fanout
	log      *zap.Logger
	now      func() time.Time
}

func NewPairer(registry *Registry, fanout *Fanout, log *zap.Logger) *Pairer {
	return &Pairer{registry: registry, fanout: fanout, log: log, now: time.Now}
}

func (p *Pairer) OnWebWaiting(f protocol.WebWaiting, c Conn) {
	p.setRole(c, RoleWeb, f.EventUUID, WaitingImport)
	p.log.Info("web client waiting", zap.String("conn", c.ID()), zap.String("event", f.EventUUID))
}

func (p *Pairer) OnWebWaitingPlanning(f protocol.WebWaitingPlanning, c Conn) {
	p.setRole(c, RoleWeb, f.TeamUUID, WaitingPlanning)
	p.log.Info("web client waiting for planning", zap.String("conn", c.ID()), zap.String("team", f.TeamUUID))
}

// OnImportRequest marks c as a phone and notifies the first other web
// connection that accepts the write, in registration order. When none is
// registered, or every one refuses, c gets no_data. It returns the
// notified connection, if any.
func (p *Pairer) OnImportRequest(_ protocol.ImportRequest, c Conn) (Conn, bool) {
	p.setRole(c, RolePhone, "", WaitingNone)

	candidates := p.registry.Select(hasRoleExcept(RoleWeb, c.ID()))
	for _, web := range candidates {
		if !p.fanout.SendTo(web, protocol.MsgPhoneRequesting, protocol.PhoneRequesting{
			Type:    protocol.MsgPhoneRequesting,
			Message: phoneRequestingMessage,
		}) {
			p.log.Warn("waiting web client refused notification", zap.String("web", web.ID()))
			continue
		}
		st, _ := p.registry.State(web.ID())
		p.log.Info("phone paired with web client",
			zap.String("phone", c.ID()),
			zap.String("web", web.ID()),
			zap.String("waiting", st.Waiting.String()),
			zap.String("key", st.CorrelationKey))
		return web, true
	}

	if len(candidates) == 0 {
		p.log.Info("no web client waiting", zap.String("phone", c.ID()))
	}
	p.fanout.SendTo(c, protocol.MsgNoData, protocol.NoData{
		Type:      protocol.MsgNoData,
		Message:   noDataMessage,
		Timestamp: p.now().UTC().Format(time.RFC3339Nano),
	})
	return nil, false
}

func (p *Pairer) setRole(c Conn, role Role, key string, waiting WaitingKind) {
	if err := p.registry.SetRole(c.ID(), role, key, waiting); err != nil {
		p.log.Warn("set role", zap.String("conn", c.ID()), zap.Error(err))
	}
}
