// Package protocol defines the JSON frames exchanged over relay connections
// and decodes inbound frames into a closed set of variants.
package protocol

import (
	"encoding/json"
)

type MessageType string

// Inbound frame types.
const (
	MsgWebWaiting         MessageType = "web_waiting"
	MsgWebWaitingPlanning MessageType = "web_waiting_planning"
	MsgImportRequest      MessageType = "import_request"
	MsgEventExport        MessageType = "event_export"
	MsgPlanningData       MessageType = "planning_data"
	MsgMetadata           MessageType = "metadata"
	MsgPoint              MessageType = "point"
	MsgPhoto              MessageType = "photo"
	MsgEnd                MessageType = "end"

	// MsgBulk never appears on the wire; it labels the legacy
	// {"points": [...]} shape that carries no type.
	MsgBulk MessageType = "bulk"
)

// Outbound-only frame types.
const (
	MsgPhoneRequesting MessageType = "phone_requesting"
	MsgNoData          MessageType = "no_data"
	MsgExportConfirmed MessageType = "export_confirmed"
	MsgEventData       MessageType = "event_data"
	MsgError           MessageType = "error"
)

// Frame is implemented by every decoded inbound variant.
type Frame interface {
	Kind() MessageType
}

type WebWaiting struct {
	Type      MessageType `json:"type"`
	EventUUID string      `json:"eventUuid,omitempty"`
}

type WebWaitingPlanning struct {
	Type     MessageType `json:"type"`
	TeamUUID string      `json:"teamUuid,omitempty"`
}

type ImportRequest struct {
	Type MessageType `json:"type"`
}

// Metadata announces a streamed transfer. The same struct is used for the
// normalized re-broadcast, which drops any extra client fields.
type Metadata struct {
	Type        MessageType `json:"type"`
	EventUUID   string      `json:"eventUUID"`
	Timestamp   string      `json:"timestamp,omitempty"`
	TotalPoints int         `json:"totalPoints"`
	TotalPhotos int         `json:"totalPhotos"`
}

// Point carries one point of a transfer. Point is kept verbatim; PointID is
// extracted from its "UUID" (or "uuid") key during decoding.
type Point struct {
	Type        MessageType     `json:"type"`
	Point       json.RawMessage `json:"point"`
	PointIndex  int             `json:"pointIndex"`
	TotalPoints int             `json:"totalPoints"`

	PointID string `json:"-"`
}

// Photo carries one photo attached to PointUUID. Photo is kept verbatim.
type Photo struct {
	Type        MessageType     `json:"type"`
	Photo       json.RawMessage `json:"photo"`
	PointUUID   string          `json:"pointUUID"`
	PhotoIndex  int             `json:"photoIndex"`
	TotalPhotos int             `json:"totalPhotos"`
}

// TransferSummary reports what a completed transfer contained.
type TransferSummary struct {
	TotalPoints int `json:"totalPoints"`
	TotalPhotos int `json:"totalPhotos"`
}

// End closes a transfer. Inbound frames carry only the type; the relay
// fills Message and Summary when it re-broadcasts.
type End struct {
	Type    MessageType      `json:"type"`
	Message string           `json:"message,omitempty"`
	Summary *TransferSummary `json:"summary,omitempty"`
}

// Bulk is the single-shot legacy transfer: every point, photos embedded.
type Bulk struct {
	Points []BulkPoint
}

// BulkPoint is one entry of a bulk frame. Photos holds the array found under
// the first accepted photo key, or nil.
type BulkPoint struct {
	ID     string
	Raw    json.RawMessage
	Photos []json.RawMessage
}

// PlanningData is relayed byte-for-byte; only the fields needed for the
// acknowledgement summary are decoded.
type PlanningData struct {
	Type          MessageType       `json:"type"`
	Team          *PlanningTeam     `json:"team,omitempty"`
	Members       []json.RawMessage `json:"members,omitempty"`
	Installations []json.RawMessage `json:"installations,omitempty"`
	Removals      []json.RawMessage `json:"removals,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type PlanningTeam struct {
	Name string `json:"name"`
}

func (WebWaiting) Kind() MessageType         { return MsgWebWaiting }
func (WebWaitingPlanning) Kind() MessageType { return MsgWebWaitingPlanning }
func (ImportRequest) Kind() MessageType      { return MsgImportRequest }
func (EventExport) Kind() MessageType        { return MsgEventExport }
func (PlanningData) Kind() MessageType       { return MsgPlanningData }
func (Metadata) Kind() MessageType           { return MsgMetadata }
func (Point) Kind() MessageType              { return MsgPoint }
func (Photo) Kind() MessageType              { return MsgPhoto }
func (End) Kind() MessageType                { return MsgEnd }
func (Bulk) Kind() MessageType               { return MsgBulk }

// --- outbound-only frames ---

// BulkPhoto is a photo replayed from a bulk frame. PointUUID is left out
// when the owning point carried no identifier.
type BulkPhoto struct {
	Type        MessageType     `json:"type"`
	Photo       json.RawMessage `json:"photo"`
	PointUUID   string          `json:"pointUUID,omitempty"`
	PhotoIndex  int             `json:"photoIndex"`
	TotalPhotos int             `json:"totalPhotos"`
}

type PhoneRequesting struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type NoData struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
}

// ExportConfirmed acknowledges an export to its sender. Summary is an
// ExportSummary or a PlanningSummary.
type ExportConfirmed struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	Summary interface{} `json:"summary"`
}

type ExportSummary struct {
	Recipients int `json:"recipients"`
	Areas      int `json:"areas"`
	Paths      int `json:"paths"`
	Equipments int `json:"equipments"`
}

type PlanningSummary struct {
	Recipients    int    `json:"recipients"`
	TeamName      string `json:"teamName"`
	Members       int    `json:"members"`
	Installations int    `json:"installations"`
	Removals      int    `json:"removals"`
}

type Error struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewError builds an error frame.
func NewError(msg string) Error {
	return Error{Type: MsgError, Message: msg}
}

// Encode marshals a frame. Frames are plain structs, so the only failure
// is an invalid json.RawMessage, which decoding never produces.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
