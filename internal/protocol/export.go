package protocol

import (
	"bytes"
	"encoding/json"
	"time"
)

// ExportEnvelopeVersion is stamped into every event_data envelope.
const ExportEnvelopeVersion = "1.0"

// EventExport is sent by a web client to push one event to phones. Field
// values stay opaque; only their presence matters to the relay.
type EventExport struct {
	Type       MessageType  `json:"type"`
	Event      *ExportEvent `json:"event"`
	Areas      []Shape      `json:"areas"`
	Paths      []Shape      `json:"paths"`
	Equipments []Equipment  `json:"equipments"`
}

type ExportEvent struct {
	UUID        json.RawMessage `json:"uuid,omitempty"`
	Title       json.RawMessage `json:"title,omitempty"`
	Name        json.RawMessage `json:"name,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	StartDate   json.RawMessage `json:"startDate,omitempty"`
	EndDate     json.RawMessage `json:"endDate,omitempty"`
	Status      json.RawMessage `json:"status,omitempty"`
	Responsable json.RawMessage `json:"responsable,omitempty"`
}

// Shape is an area or a path drawn on the event map.
type Shape struct {
	UUID    json.RawMessage `json:"uuid,omitempty"`
	EventID json.RawMessage `json:"eventId,omitempty"`
	GeoJSON json.RawMessage `json:"geoJson,omitempty"`
	Name    json.RawMessage `json:"name,omitempty"`
	Color   json.RawMessage `json:"color,omitempty"`
}

type Equipment struct {
	UUID        json.RawMessage `json:"uuid,omitempty"`
	Type        json.RawMessage `json:"type,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	Length      json.RawMessage `json:"length,omitempty"`
	StorageType json.RawMessage `json:"storageType,omitempty"`
}

// EventData is the fixed envelope phones receive for an event export.
type EventData struct {
	Type       MessageType    `json:"type"`
	Event      EventCore      `json:"event"`
	Areas      []Shape        `json:"areas"`
	Paths      []Shape        `json:"paths"`
	Equipments []Equipment    `json:"equipments"`
	Metadata   ExportMetadata `json:"metadata"`
}

type EventCore struct {
	UUID        json.RawMessage `json:"uuid,omitempty"`
	Title       json.RawMessage `json:"title,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	StartDate   json.RawMessage `json:"startDate,omitempty"`
	EndDate     json.RawMessage `json:"endDate"`
	Status      json.RawMessage `json:"status,omitempty"`
	Responsable json.RawMessage `json:"responsable"`
}

type ExportMetadata struct {
	ExportDate string `json:"exportDate"`
	Version    string `json:"version"`
}

var (
	jsonNull        = json.RawMessage("null")
	jsonEmptyString = json.RawMessage(`""`)
)

// Envelope reshapes the export into the event_data frame sent to phones.
// The title falls back to the event name; a missing end date becomes null
// and a missing responsable becomes "".
func (e EventExport) Envelope(now time.Time) EventData {
	var ev ExportEvent
	if e.Event != nil {
		ev = *e.Event
	}

	core := EventCore{
		UUID:        ev.UUID,
		Title:       firstTruthy(ev.Title, ev.Name),
		Description: ev.Description,
		StartDate:   ev.StartDate,
		EndDate:     orDefault(ev.EndDate, jsonNull),
		Status:      ev.Status,
		Responsable: orDefault(ev.Responsable, jsonEmptyString),
	}

	return EventData{
		Type:       MsgEventData,
		Event:      core,
		Areas:      nonNil(e.Areas),
		Paths:      nonNil(e.Paths),
		Equipments: nonNil(e.Equipments),
		Metadata: ExportMetadata{
			ExportDate: now.UTC().Format(time.RFC3339Nano),
			Version:    ExportEnvelopeVersion,
		},
	}
}

// Summary counts the collections carried by the export.
func (e EventExport) Summary(recipients int) ExportSummary {
	return ExportSummary{
		Recipients: recipients,
		Areas:      len(e.Areas),
		Paths:      len(e.Paths),
		Equipments: len(e.Equipments),
	}
}

// Summary counts the collections carried by the planning frame.
func (p PlanningData) Summary(recipients int) PlanningSummary {
	s := PlanningSummary{
		Recipients:    recipients,
		Members:       len(p.Members),
		Installations: len(p.Installations),
		Removals:      len(p.Removals),
	}
	if p.Team != nil {
		s.TeamName = p.Team.Name
	}
	return s
}

// truthy reports whether a raw JSON value would count as set for a client
// that treats null, false, 0 and "" as missing.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func firstTruthy(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if truthy(v) {
			return v
		}
	}
	return nil
}

func orDefault(v, def json.RawMessage) json.RawMessage {
	if truthy(v) {
		return v
	}
	return def
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
