package relay

import (
	"encoding/json"
	"fmt"

	"github.com/Artemis1799/Ody-stras-sub001/internal/metrics"
	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	"github.com/Artemis1799/Ody-stras-sub001/internal/session"
	"go.uber.org/zap"
)

// previewLimit bounds how much of a consolidated transfer reaches the log.
const previewLimit = 200

// Assembler turns point and photo fragments into a consolidated transfer
// and re-broadcasts every fragment to all connections.
type Assembler struct {
	store   *session.Store
	fanout  *Fanout
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewAssembler(store *session.Store, fanout *Fanout, m *metrics.Metrics, log *zap.Logger) *Assembler {
	return &Assembler{store: store, fanout: fanout, metrics: m, log: log}
}

func (a *Assembler) OnMetadata(f protocol.Metadata) {
	started := a.store.Begin(session.Metadata{
		EventUUID:   f.EventUUID,
		Timestamp:   f.Timestamp,
		TotalPoints: f.TotalPoints,
		TotalPhotos: f.TotalPhotos,
	})
	a.log.Info("metadata received",
		zap.String("event", f.EventUUID),
		zap.Int("declaredPoints", f.TotalPoints),
		zap.Int("declaredPhotos", f.TotalPhotos),
		zap.Bool("sessionStarted", started))

	out := protocol.Metadata{
		Type:        protocol.MsgMetadata,
		EventUUID:   f.EventUUID,
		Timestamp:   f.Timestamp,
		TotalPoints: f.TotalPoints,
		TotalPhotos: f.TotalPhotos,
	}
	n := a.fanout.Broadcast(protocol.MsgMetadata, out)
	a.log.Debug("metadata broadcast", zap.Int("recipients", n))
}

func (a *Assembler) OnPoint(f protocol.Point) {
	a.store.UpsertPoint(session.PointRecord{ID: f.PointID, Payload: f.Point})
	a.log.Debug("point received",
		zap.String("point", f.PointID),
		zap.Int("index", f.PointIndex+1),
		zap.Int("total", f.TotalPoints))
	a.syncGauges()

	a.fanout.Broadcast(protocol.MsgPoint, protocol.Point{
		Type:        protocol.MsgPoint,
		Point:       f.Point,
		PointIndex:  f.PointIndex,
		TotalPoints: f.TotalPoints,
	})
}

// OnPhoto stores the photo when its point is known. The photo is
// broadcast either way.
func (a *Assembler) OnPhoto(f protocol.Photo) {
	rec := photoRecord(f.Photo, f.PointUUID)
	if a.store.AppendPhoto(rec) {
		a.syncGauges()
	} else {
		a.metrics.OrphanPhoto()
		a.log.Warn("photo for unknown point not stored",
			zap.String("photo", rec.ID),
			zap.String("point", f.PointUUID))
	}
	a.log.Debug("photo received",
		zap.String("point", f.PointUUID),
		zap.Int("index", f.PhotoIndex+1),
		zap.Int("total", f.TotalPhotos))

	a.fanout.Broadcast(protocol.MsgPhoto, protocol.Photo{
		Type:        protocol.MsgPhoto,
		Photo:       f.Photo,
		PointUUID:   f.PointUUID,
		PhotoIndex:  f.PhotoIndex,
		TotalPhotos: f.TotalPhotos,
	})
}

// OnEnd closes the transfer, broadcasts its summary and resets the store.
// The consolidated transfer is returned but never sent as a frame. An end
// with nothing collected still gets its zero summary but is not counted.
func (a *Assembler) OnEnd(protocol.End) *session.Transfer {
	collecting := a.store.State() == session.Collecting
	t := a.store.Complete()
	if collecting {
		a.metrics.TransferCompleted()
	}
	a.syncGauges()

	a.log.Info("transfer complete",
		zap.String("event", t.EventUUID),
		zap.Int("points", t.TotalPoints),
		zap.Int("photos", t.TotalPhotos),
		zap.String("preview", preview(t)))

	a.fanout.Broadcast(protocol.MsgEnd, protocol.End{
		Type:    protocol.MsgEnd,
		Message: fmt.Sprintf("Transfer complete: %d points and %d photos received", t.TotalPoints, t.TotalPhotos),
		Summary: &protocol.TransferSummary{TotalPoints: t.TotalPoints, TotalPhotos: t.TotalPhotos},
	})
	return t
}

// OnBulk replays a single-shot transfer as point, photo and end broadcasts.
// The session store is left untouched.
func (a *Assembler) OnBulk(f protocol.Bulk) {
	total := len(f.Points)
	photos := 0
	a.log.Info("bulk transfer received", zap.Int("points", total))

	for i, p := range f.Points {
		a.fanout.Broadcast(protocol.MsgPoint, protocol.Point{
			Type:        protocol.MsgPoint,
			Point:       p.Raw,
			PointIndex:  i,
			TotalPoints: total,
		})
		for j, ph := range p.Photos {
			a.fanout.Broadcast(protocol.MsgPhoto, protocol.BulkPhoto{
				Type:        protocol.MsgPhoto,
				Photo:       ph,
				PointUUID:   p.ID,
				PhotoIndex:  j,
				TotalPhotos: len(p.Photos),
			})
		}
		photos += len(p.Photos)
	}

	a.fanout.Broadcast(protocol.MsgEnd, protocol.End{
		Type:    protocol.MsgEnd,
		Message: fmt.Sprintf("Transfer complete: %d points received", total),
		Summary: &protocol.TransferSummary{TotalPoints: total, TotalPhotos: photos},
	})
}

func (a *Assembler) syncGauges() {
	snap := a.store.Snapshot()
	a.metrics.SetSession(snap.Points, snap.Photos)
}

// photoRecord extracts the stored fields of a photo object. Missing or
// mistyped fields are left empty.
func photoRecord(raw json.RawMessage, pointID string) session.PhotoRecord {
	var fields struct {
		UUID    string          `json:"UUID"`
		Name    string          `json:"Picture_name"`
		Picture json.RawMessage `json:"Picture"`
	}
	_ = json.Unmarshal(raw, &fields)
	return session.PhotoRecord{
		ID:      fields.UUID,
		Name:    fields.Name,
		Picture: fields.Picture,
		PointID: pointID,
	}
}

func preview(t *session.Transfer) string {
	data, err := json.Marshal(t)
	if err != nil {
		return "[unserializable transfer]"
	}
	if len(data) > previewLimit {
		return string(data[:previewLimit]) + "... [truncated]"
	}
	return string(data)
}
