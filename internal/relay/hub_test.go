package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/metrics"
	"github.com/Artemis1799/Ody-stras-sub001/internal/session"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// fakeConn records every frame sent to it.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return true
}

func (c *fakeConn) received() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		_ = json.Unmarshal(f, &m)
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) types() []string {
	var out []string
	for _, m := range c.received() {
		out = append(out, fmt.Sprint(m["type"]))
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(Options{}, session.NewStore(), nil, zap.NewNop())
}

func connect(t *testing.T, h *Hub, id string) *fakeConn {
	t.Helper()
	c := &fakeConn{id: id}
	if err := h.add(c); err != nil {
		t.Fatalf("add(%s): %v", id, err)
	}
	return c
}

func send(h *Hub, c Conn, frame string) {
	h.dispatch(context.Background(), c, []byte(frame))
}

func TestPairing_WebReceivesPhoneRequesting(t *testing.T) {
	h := newTestHub(t)
	web := connect(t, h, "web")
	bystander := connect(t, h, "other")
	phone := connect(t, h, "phone")

	send(h, web, `{"type":"web_waiting","eventUuid":"E1"}`)
	send(h, phone, `{"type":"import_request"}`)

	if diff := cmp.Diff([]string{"phone_requesting"}, web.types()); diff != "" {
		t.Errorf("web frames mismatch (-want +got):\n%s", diff)
	}
	if got := bystander.types(); len(got) != 0 {
		t.Errorf("bystander received %v, want nothing", got)
	}
	if got := phone.types(); len(got) != 0 {
		t.Errorf("phone received %v, want nothing", got)
	}

	st, _ := h.registry.State("phone")
	if st.Role != RolePhone {
		t.Errorf("requester role = %v, want phone", st.Role)
	}
}

func TestPairing_NoWebYieldsNoData(t *testing.T) {
	h := newTestHub(t)
	other := connect(t, h, "other")
	phone := connect(t, h, "phone")

	send(h, phone, `{"type":"import_request"}`)

	frames := phone.received()
	if len(frames) != 1 || frames[0]["type"] != "no_data" {
		t.Fatalf("phone frames = %v, want one no_data", frames)
	}
	ts, _ := frames[0]["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Errorf("no_data timestamp %q: %v", ts, err)
	}
	if got := other.types(); len(got) != 0 {
		t.Errorf("other received %v, want nothing", got)
	}
}

func TestPairing_OnlyFirstWebIsNotified(t *testing.T) {
	h := newTestHub(t)
	web1 := connect(t, h, "web1")
	web2 := connect(t, h, "web2")
	phone := connect(t, h, "phone")

	send(h, web2, `{"type":"web_waiting_planning","teamUuid":"T1"}`)
	send(h, web1, `{"type":"web_waiting","eventUuid":"E1"}`)
	send(h, phone, `{"type":"import_request"}`)

	if got := len(web1.types()) + len(web2.types()); got != 1 {
		t.Fatalf("notified %d web clients, want exactly 1", got)
	}
	// Registration order decides, not the order of web_waiting frames.
	if len(web1.types()) != 1 {
		t.Error("expected the earliest registered web client to be notified")
	}
}

func TestPairing_SkipsWebThatRefuses(t *testing.T) {
	h := newTestHub(t)
	web1 := connect(t, h, "web1")
	web2 := connect(t, h, "web2")
	phone := connect(t, h, "phone")

	send(h, web1, `{"type":"web_waiting","eventUuid":"E1"}`)
	send(h, web2, `{"type":"web_waiting","eventUuid":"E2"}`)
	web1.mu.Lock()
	web1.closed = true
	web1.mu.Unlock()

	send(h, phone, `{"type":"import_request"}`)

	if got := web2.types(); len(got) != 1 || got[0] != "phone_requesting" {
		t.Errorf("web2 frames = %v, want phone_requesting", got)
	}
	if got := phone.types(); len(got) != 0 {
		t.Errorf("phone frames = %v, want nothing once a web accepted", got)
	}
}

func TestPairing_AllWebsRefuseYieldsNoData(t *testing.T) {
	h := newTestHub(t)
	web := connect(t, h, "web")
	phone := connect(t, h, "phone")

	send(h, web, `{"type":"web_waiting","eventUuid":"E1"}`)
	web.mu.Lock()
	web.closed = true
	web.mu.Unlock()

	send(h, phone, `{"type":"import_request"}`)

	if got := phone.types(); len(got) != 1 || got[0] != "no_data" {
		t.Errorf("phone frames = %v, want a single no_data", got)
	}
}

func TestPairing_IgnoresCorrelationKeys(t *testing.T) {
	h := newTestHub(t)
	web := connect(t, h, "web")
	phone := connect(t, h, "phone")

	send(h, web, `{"type":"web_waiting","eventUuid":"event-A"}`)
	send(h, phone, `{"type":"import_request","eventUuid":"event-B"}`)

	if got := web.types(); len(got) != 1 || got[0] != "phone_requesting" {
		t.Errorf("web frames = %v, want phone_requesting regardless of keys", got)
	}
}

func TestPairing_PhoneIsNotItsOwnMatch(t *testing.T) {
	h := newTestHub(t)
	c := connect(t, h, "both")

	send(h, c, `{"type":"web_waiting","eventUuid":"E1"}`)
	send(h, c, `{"type":"import_request"}`)

	if got := c.types(); len(got) != 1 || got[0] != "no_data" {
		t.Errorf("frames = %v, want a single no_data", got)
	}
}

func TestRoleDeclarationLastWriteWins(t *testing.T) {
	h := newTestHub(t)
	c := connect(t, h, "c")

	send(h, c, `{"type":"web_waiting","eventUuid":"E1"}`)
	send(h, c, `{"type":"web_waiting_planning","teamUuid":"T7"}`)

	st, _ := h.registry.State("c")
	if st.Role != RoleWeb || st.CorrelationKey != "T7" || st.Waiting != WaitingPlanning {
		t.Errorf("state = %+v, want web/T7/planning", st)
	}
}

func TestStreamedTransfer_EndToEnd(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	send(h, a, `{"type":"metadata","eventUUID":"E1","totalPoints":1,"totalPhotos":1,"extra":"dropped"}`)

	for _, c := range []*fakeConn{a, b} {
		frames := c.received()
		if len(frames) != 1 {
			t.Fatalf("%s: got %d frames after metadata, want 1", c.id, len(frames))
		}
		if frames[0]["type"] != "metadata" || frames[0]["eventUUID"] != "E1" {
			t.Errorf("%s: metadata broadcast = %v", c.id, frames[0])
		}
		if _, ok := frames[0]["extra"]; ok {
			t.Errorf("%s: metadata broadcast should be normalized", c.id)
		}
	}
	if h.store.State() != session.Collecting {
		t.Fatalf("store state = %v, want collecting", h.store.State())
	}

	send(h, a, `{"type":"point","point":{"UUID":"P1"},"pointIndex":0,"totalPoints":1}`)
	send(h, a, `{"type":"photo","photo":{"UUID":"PH1"},"pointUUID":"P1","photoIndex":0,"totalPhotos":1}`)
	send(h, a, `{"type":"end"}`)

	if diff := cmp.Diff([]string{"metadata", "point", "photo", "end"}, b.types()); diff != "" {
		t.Errorf("observer frames mismatch (-want +got):\n%s", diff)
	}

	frames := a.received()
	end := frames[len(frames)-1]
	summary, ok := end["summary"].(map[string]any)
	if !ok {
		t.Fatalf("end frame without summary: %v", end)
	}
	if summary["totalPoints"] != float64(1) || summary["totalPhotos"] != float64(1) {
		t.Errorf("summary = %v, want 1 point and 1 photo", summary)
	}

	snap := h.store.Snapshot()
	if snap.State != session.Idle || snap.Points != 0 || snap.Photos != 0 {
		t.Errorf("session not empty after end: %+v", snap)
	}
}

func TestStreamedTransfer_PointIdempotence(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a")

	send(h, a, `{"type":"point","point":{"UUID":"P1","v":1},"pointIndex":0,"totalPoints":1}`)
	send(h, a, `{"type":"photo","photo":{"UUID":"PH1"},"pointUUID":"P1"}`)
	send(h, a, `{"type":"point","point":{"UUID":"P1","v":2},"pointIndex":0,"totalPoints":1}`)

	p, photos, ok := h.store.Point("P1")
	if !ok {
		t.Fatal("P1 not stored")
	}
	if string(p.Payload) != `{"UUID":"P1","v":2}` {
		t.Errorf("payload = %s, want last write", p.Payload)
	}
	if len(photos) != 1 {
		t.Errorf("photos = %d, want 1", len(photos))
	}

	a.reset()
	send(h, a, `{"type":"end"}`)
	summary := a.received()[0]["summary"].(map[string]any)
	if summary["totalPoints"] != float64(1) || summary["totalPhotos"] != float64(1) {
		t.Errorf("summary = %v", summary)
	}
}

func TestStreamedTransfer_TotalPointsCountsDistinctIDs(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a")

	for _, id := range []string{"P3", "P1", "P2", "P1", "P3"} {
		send(h, a, fmt.Sprintf(`{"type":"point","point":{"UUID":%q}}`, id))
	}
	a.reset()
	send(h, a, `{"type":"end"}`)

	summary := a.received()[0]["summary"].(map[string]any)
	if summary["totalPoints"] != float64(3) {
		t.Errorf("totalPoints = %v, want 3", summary["totalPoints"])
	}
}

func TestOrphanPhotoIsBroadcastButNotStored(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	send(h, a, `{"type":"photo","photo":{"UUID":"PH1"},"pointUUID":"ghost","photoIndex":0,"totalPhotos":1}`)

	if got := b.types(); len(got) != 1 || got[0] != "photo" {
		t.Errorf("observer frames = %v, want the photo broadcast", got)
	}
	if got := a.types(); len(got) != 1 || got[0] != "photo" {
		t.Errorf("sender frames = %v, want the photo broadcast and no error", got)
	}
	if snap := h.store.Snapshot(); snap.Photos != 0 {
		t.Errorf("stored photos = %d, want 0", snap.Photos)
	}
}

func TestEndOnIdleSessionIsNotRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.Config{Namespace: "test", Registry: reg})
	h := NewHub(Options{}, session.NewStore(), m, zap.NewNop())
	watcher := connect(t, h, "watcher")

	send(h, watcher, `{"type":"end"}`)

	frames := watcher.received()
	if len(frames) != 1 || frames[0]["type"] != "end" {
		t.Fatalf("frames = %v, want a single end", frames)
	}
	summary := frames[0]["summary"].(map[string]any)
	if summary["totalPoints"] != float64(0) || summary["totalPhotos"] != float64(0) {
		t.Errorf("summary = %v, want zero totals", summary)
	}
	if last, ok := h.store.LastCompleted(); ok {
		t.Errorf("LastCompleted() = %+v, want none", last)
	}
	if got := counterValue(t, reg, "test_transfers_completed_total"); got != 0 {
		t.Errorf("transfers_completed_total = %v, want 0", got)
	}

	send(h, watcher, `{"type":"point","point":{"UUID":"P1"}}`)
	send(h, watcher, `{"type":"end"}`)
	if _, ok := h.store.LastCompleted(); !ok {
		t.Error("a collecting session should be recorded on end")
	}
	if got := counterValue(t, reg, "test_transfers_completed_total"); got != 1 {
		t.Errorf("transfers_completed_total = %v, want 1", got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestDisconnectDoesNotClearSession(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a")
	send(h, a, `{"type":"metadata","eventUUID":"E1","totalPoints":1}`)
	send(h, a, `{"type":"point","point":{"UUID":"P1"}}`)

	h.remove(a)

	if snap := h.store.Snapshot(); snap.State != session.Collecting || snap.Points != 1 {
		t.Errorf("session after disconnect = %+v, want collecting with 1 point", snap)
	}
}

func TestBulkTransfer_Ordering(t *testing.T) {
	h := newTestHub(t)
	sender := connect(t, h, "sender")
	watcher := connect(t, h, "watcher")

	send(h, sender, `{"points":[
		{"UUID":"P1","photos":[{"UUID":"a"},{"UUID":"b"}]},
		{"uuid":"P2"},
		{"UUID":"P3","Pictures":[{"UUID":"c"}]}
	]}`)

	want := []string{"point", "photo", "photo", "point", "point", "photo", "end"}
	for _, c := range []*fakeConn{sender, watcher} {
		if diff := cmp.Diff(want, c.types()); diff != "" {
			t.Errorf("%s frames mismatch (-want +got):\n%s", c.id, diff)
		}
	}

	frames := watcher.received()
	if frames[1]["pointUUID"] != "P1" || frames[5]["pointUUID"] != "P3" {
		t.Errorf("photo frames should carry their point id: %v / %v", frames[1], frames[5])
	}
	summary := frames[6]["summary"].(map[string]any)
	if summary["totalPoints"] != float64(3) || summary["totalPhotos"] != float64(3) {
		t.Errorf("bulk summary = %v", summary)
	}
	if !strings.Contains(frames[6]["message"].(string), "3 points") {
		t.Errorf("end message = %v", frames[6]["message"])
	}

	if snap := h.store.Snapshot(); snap.State != session.Idle || snap.Points != 0 {
		t.Errorf("bulk must not touch the session store: %+v", snap)
	}
}

func TestBulkTransfer_PhotoOfUnidentifiedPointOmitsPointUUID(t *testing.T) {
	h := newTestHub(t)
	watcher := connect(t, h, "watcher")

	send(h, watcher, `{"points":[{"Comment":"no id","photos":[{"UUID":"a"}]}]}`)

	frames := watcher.received()
	if len(frames) != 3 || frames[1]["type"] != "photo" {
		t.Fatalf("frames = %v, want point, photo, end", frames)
	}
	if v, ok := frames[1]["pointUUID"]; ok {
		t.Errorf("pointUUID = %v, want the key left out", v)
	}
}

func TestBulkTransfer_LeavesStreamingSessionAlone(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a")

	send(h, a, `{"type":"point","point":{"UUID":"S1"}}`)
	send(h, a, `{"points":[{"UUID":"B1"}]}`)

	if _, _, ok := h.store.Point("B1"); ok {
		t.Error("bulk point should not be stored")
	}
	if snap := h.store.Snapshot(); snap.State != session.Collecting || snap.Points != 1 {
		t.Errorf("streaming session changed by bulk: %+v", snap)
	}
}

func TestEventExport_NoPhones(t *testing.T) {
	h := newTestHub(t)
	web := connect(t, h, "web")
	other := connect(t, h, "other")

	send(h, web, `{"type":"event_export","event":{"uuid":"E1","title":"Race"},"areas":[{}],"paths":[],"equipments":[{},{}]}`)

	frames := web.received()
	if len(frames) != 1 || frames[0]["type"] != "export_confirmed" {
		t.Fatalf("sender frames = %v, want one export_confirmed", frames)
	}
	summary := frames[0]["summary"].(map[string]any)
	want := map[string]any{"recipients": float64(0), "areas": float64(1), "paths": float64(0), "equipments": float64(2)}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if got := other.types(); len(got) != 0 {
		t.Errorf("other received %v, want nothing", got)
	}

	st, _ := h.registry.State("web")
	if st.Role != RoleWeb {
		t.Errorf("exporter role = %v, want web", st.Role)
	}
}

func TestEventExport_DeliversOnlyToPhones(t *testing.T) {
	h := newTestHub(t)
	web := connect(t, h, "web")
	phone1 := connect(t, h, "phone1")
	phone2 := connect(t, h, "phone2")
	idle := connect(t, h, "idle")

	send(h, phone1, `{"type":"import_request"}`)
	send(h, phone2, `{"type":"import_request"}`)
	phone1.reset()
	phone2.reset()

	send(h, web, `{"type":"event_export","event":{"uuid":"E1","name":"Fallback"},"areas":[],"paths":[],"equipments":[]}`)

	for _, p := range []*fakeConn{phone1, phone2} {
		frames := p.received()
		if len(frames) != 1 || frames[0]["type"] != "event_data" {
			t.Fatalf("%s frames = %v, want one event_data", p.id, frames)
		}
		ev := frames[0]["event"].(map[string]any)
		if ev["title"] != "Fallback" {
			t.Errorf("%s title = %v", p.id, ev["title"])
		}
	}
	if got := idle.types(); len(got) != 0 {
		t.Errorf("unassigned connection received %v", got)
	}
	ack := web.received()[0]
	if ack["summary"].(map[string]any)["recipients"] != float64(2) {
		t.Errorf("ack = %v, want 2 recipients", ack)
	}
}

func TestPlanningData_RelayedVerbatim(t *testing.T) {
	h := newTestHub(t)
	web := connect(t, h, "web")
	phone := connect(t, h, "phone")
	send(h, phone, `{"type":"import_request"}`)
	phone.reset()

	frame := `{"type":"planning_data","team":{"name":"Blue"},"members":[{"id":1}],"installations":[],"removals":[{},{}],"custom":{"keep":true}}`
	send(h, web, frame)

	phone.mu.Lock()
	got := string(phone.frames[0])
	phone.mu.Unlock()
	if got != frame {
		t.Errorf("phone got %s, want input verbatim", got)
	}

	ack := web.received()[0]
	summary := ack["summary"].(map[string]any)
	want := map[string]any{
		"recipients":    float64(1),
		"teamName":      "Blue",
		"members":       float64(1),
		"installations": float64(0),
		"removals":      float64(2),
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedFramesAnsweredToSenderOnly(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantMsg string
	}{
		{"invalid json", `{"type":"point",`, "invalid JSON"},
		{"unknown type", `{"type":"selfie"}`, "unknown type: selfie"},
		{"unrecognized", `{"hello":"world"}`, "unrecognized message format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub(t)
			sender := connect(t, h, "sender")
			other := connect(t, h, "other")
			send(h, sender, `{"type":"point","point":{"UUID":"P1"}}`)
			sender.reset()
			other.reset()

			send(h, sender, tt.frame)

			frames := sender.received()
			if len(frames) != 1 || frames[0]["type"] != "error" || frames[0]["message"] != tt.wantMsg {
				t.Errorf("sender frames = %v, want error %q", frames, tt.wantMsg)
			}
			if got := other.types(); len(got) != 0 {
				t.Errorf("other received %v", got)
			}
			if snap := h.store.Snapshot(); snap.Points != 1 {
				t.Errorf("session changed by bad frame: %+v", snap)
			}
		})
	}
}

func TestClosedConnectionsAreSkipped(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a")
	dead := connect(t, h, "dead")
	dead.closed = true

	n := h.fanout.Broadcast("metadata", map[string]string{"type": "metadata"})
	if n != 1 {
		t.Errorf("Broadcast() = %d, want 1", n)
	}
	if len(a.types()) != 1 {
		t.Error("open connection should still receive the frame")
	}
}

func TestMaxConnections(t *testing.T) {
	h := NewHub(Options{MaxConnections: 1}, session.NewStore(), nil, zap.NewNop())
	if err := h.add(&fakeConn{id: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := h.add(&fakeConn{id: "b"}); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("expected ErrTooManyConnections, got %v", err)
	}
	h.remove(&fakeConn{id: "a"})
	if err := h.add(&fakeConn{id: "b"}); err != nil {
		t.Fatalf("add after remove: %v", err)
	}
}

func TestRunLoop(t *testing.T) {
	h := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := &fakeConn{id: "a"}
	if err := h.Register(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := h.Register(ctx, &fakeConn{id: "a"}); !errors.Is(err, ErrDuplicateConn) {
		t.Errorf("duplicate Register: got %v", err)
	}

	for _, f := range []string{
		`{"type":"metadata","eventUUID":"E2","totalPoints":1}`,
		`{"type":"point","point":{"UUID":"P1"}}`,
		`{"type":"photo","photo":{"UUID":"x"},"pointUUID":"P1"}`,
	} {
		if err := h.Deliver(ctx, a, []byte(f)); err != nil {
			t.Fatal(err)
		}
	}

	// Flush runs on the hub goroutine after the queued frames.
	dropped, err := h.Flush(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dropped.EventUUID != "E2" || dropped.Points != 1 || dropped.Photos != 1 {
		t.Errorf("Flush() = %+v", dropped)
	}
	if h.store.State() != session.Idle {
		t.Error("store should be idle after flush")
	}

	h.Unregister(a)
	cancel()
	<-h.done

	if err := h.Deliver(context.Background(), a, []byte(`{}`)); !errors.Is(err, ErrHubStopped) {
		t.Errorf("Deliver after stop: got %v", err)
	}
	h.Unregister(a) // must not block
}

func TestDispatchRecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	h := NewHub(Options{TracerProvider: tp}, session.NewStore(), nil, zap.NewNop())
	phone := connect(t, h, "phone")

	send(h, phone, `{"type":"import_request"}`)
	send(h, phone, `{"type":"selfie"}`)

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}

	attrs := func(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
		m := map[attribute.Key]attribute.Value{}
		for _, kv := range s.Attributes() {
			m[kv.Key] = kv.Value
		}
		return m
	}

	ok := spans[0]
	if ok.Name() != "relay.dispatch" {
		t.Errorf("span name = %q", ok.Name())
	}
	if got := attrs(ok)["relay.frame.type"].AsString(); got != "import_request" {
		t.Errorf("relay.frame.type = %q, want import_request", got)
	}
	if ok.Status().Code != codes.Unset {
		t.Errorf("status = %v, want unset", ok.Status())
	}

	bad := spans[1]
	if bad.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", bad.Status())
	}
	if got := attrs(bad)["relay.decode.kind"].AsString(); got != "unknown_type" {
		t.Errorf("relay.decode.kind = %q, want unknown_type", got)
	}
	if _, found := attrs(bad)["relay.frame.type"]; found {
		t.Error("rejected frame should carry no frame type")
	}
	if len(bad.Events()) == 0 || bad.Events()[0].Name != "exception" {
		t.Error("decode error should be recorded on the span")
	}
}
