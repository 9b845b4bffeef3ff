package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeErrorKind classifies why an inbound frame was rejected.
type DecodeErrorKind string

const (
	KindInvalidJSON  DecodeErrorKind = "invalid_json"
	KindUnknownType  DecodeErrorKind = "unknown_type"
	KindUnrecognized DecodeErrorKind = "unrecognized"
	KindInvalidFrame DecodeErrorKind = "invalid_frame"
)

// DecodeError is returned by Decode for every rejected frame.
type DecodeError struct {
	Kind DecodeErrorKind
	Type MessageType // set for unknown_type and invalid_frame
	Err  error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindInvalidJSON:
		return "invalid JSON"
	case KindUnknownType:
		return fmt.Sprintf("unknown type: %s", e.Type)
	case KindUnrecognized:
		return "unrecognized message format"
	default:
		if e.Err != nil {
			return fmt.Sprintf("invalid %s frame: %v", e.Type, e.Err)
		}
		return fmt.Sprintf("invalid %s frame", e.Type)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BulkPhotoKeys are the keys searched, in order, for the photo array
// embedded in a bulk point. The first key present with a non-null value
// wins, even when its value is an empty array.
var BulkPhotoKeys = []string{"photos", "Photos", "pictures", "Pictures"}

var (
	errMissingPoint = errors.New("point object with UUID required")
	errMissingPhoto = errors.New("photo object required")
	errMissingEvent = errors.New("event object required")
	errNotObject    = errors.New("not a JSON object")
)

// Decode parses one inbound frame. A top-level "type" key selects the
// variant; without it, a top-level "points" array selects the bulk shape.
// Keys are matched exactly.
func Decode(data []byte) (Frame, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		if json.Valid(data) {
			return nil, &DecodeError{Kind: KindUnrecognized, Err: errNotObject}
		}
		return nil, &DecodeError{Kind: KindInvalidJSON, Err: err}
	}
	if top == nil {
		return nil, &DecodeError{Kind: KindUnrecognized, Err: errNotObject}
	}

	rawType, hasType := top["type"]
	if !hasType || isNull(rawType) {
		if pts, ok := top["points"]; ok && isArray(pts) {
			return decodeBulk(pts)
		}
		return nil, &DecodeError{Kind: KindUnrecognized}
	}

	var t MessageType
	if err := json.Unmarshal(rawType, &t); err != nil {
		return nil, &DecodeError{Kind: KindUnrecognized, Err: err}
	}

	switch t {
	case MsgWebWaiting:
		return decodeAs[WebWaiting](t, data)
	case MsgWebWaitingPlanning:
		return decodeAs[WebWaitingPlanning](t, data)
	case MsgImportRequest:
		return ImportRequest{Type: t}, nil
	case MsgEventExport:
		return decodeEventExport(data)
	case MsgPlanningData:
		return decodePlanning(data)
	case MsgMetadata:
		return decodeAs[Metadata](t, data)
	case MsgPoint:
		return decodePoint(data)
	case MsgPhoto:
		return decodePhoto(data)
	case MsgEnd:
		return End{Type: t}, nil
	default:
		return nil, &DecodeError{Kind: KindUnknownType, Type: t}
	}
}

// typed is satisfied by the simple variants that only need their type set
// after a plain unmarshal.
type typed interface {
	WebWaiting | WebWaitingPlanning | Metadata
}

func decodeAs[T typed](t MessageType, data []byte) (Frame, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: t, Err: err}
	}
	switch f := any(&v).(type) {
	case *WebWaiting:
		f.Type = t
	case *WebWaitingPlanning:
		f.Type = t
	case *Metadata:
		f.Type = t
	}
	return any(v).(Frame), nil
}

func decodePoint(data []byte) (Frame, error) {
	var p Point
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgPoint, Err: err}
	}
	id, err := objectID(p.Point)
	if err != nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgPoint, Err: err}
	}
	p.Type = MsgPoint
	p.PointID = id
	return p, nil
}

func decodePhoto(data []byte) (Frame, error) {
	var p Photo
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgPhoto, Err: err}
	}
	if !isObject(p.Photo) {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgPhoto, Err: errMissingPhoto}
	}
	p.Type = MsgPhoto
	return p, nil
}

func decodeEventExport(data []byte) (Frame, error) {
	var e EventExport
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgEventExport, Err: err}
	}
	if e.Event == nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgEventExport, Err: errMissingEvent}
	}
	e.Type = MsgEventExport
	return e, nil
}

func decodePlanning(data []byte) (Frame, error) {
	var p PlanningData
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgPlanningData, Err: err}
	}
	p.Type = MsgPlanningData
	p.Raw = append(json.RawMessage(nil), data...)
	return p, nil
}

func decodeBulk(raw json.RawMessage) (Frame, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgBulk, Err: err}
	}

	bulk := Bulk{Points: make([]BulkPoint, 0, len(items))}
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, &DecodeError{Kind: KindInvalidFrame, Type: MsgBulk, Err: fmt.Errorf("point %d: %w", i, errNotObject)}
		}
		bp := BulkPoint{Raw: item, ID: stringField(fields, "UUID", "uuid")}
		for _, key := range BulkPhotoKeys {
			v, ok := fields[key]
			if !ok || isNull(v) {
				continue
			}
			// A non-array value under the winning key means no photos.
			var photos []json.RawMessage
			if isArray(v) && json.Unmarshal(v, &photos) == nil {
				bp.Photos = photos
			}
			break
		}
		bulk.Points = append(bulk.Points, bp)
	}
	return bulk, nil
}

// objectID returns the "UUID" (or lowercase "uuid") string of a JSON object.
func objectID(raw json.RawMessage) (string, error) {
	if !isObject(raw) {
		return "", errMissingPoint
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}
	id := stringField(fields, "UUID", "uuid")
	if id == "" {
		return "", errMissingPoint
	}
	return id, nil
}

func stringField(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func isArray(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && v[0] == '['
}

func isObject(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && v[0] == '{'
}
