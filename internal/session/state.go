package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the assembler phase of the process-wide transfer.
type State int

const (
	Idle State = iota
	Collecting
)

var stateNames = map[State]string{
	Idle:       "idle",
	Collecting: "collecting",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st, n := range stateNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", name)
}

// Metadata holds the totals a sender declared for its transfer.
type Metadata struct {
	EventUUID   string `json:"eventUUID"`
	Timestamp   string `json:"timestamp,omitempty"`
	TotalPoints int    `json:"totalPoints"`
	TotalPhotos int    `json:"totalPhotos"`
}

// PointRecord is one accepted point. Payload is the point object as sent.
type PointRecord struct {
	ID      string
	Payload json.RawMessage
}

// PhotoRecord is one photo attached to PointID. Picture is the
// text-encoded image, kept as raw JSON.
type PhotoRecord struct {
	ID      string          `json:"UUID"`
	Name    string          `json:"Picture_name"`
	Picture json.RawMessage `json:"Picture"`
	PointID string          `json:"-"`
}

// Snapshot is a read-only view of the session for status reporting.
type Snapshot struct {
	State     State      `json:"state"`
	EventUUID string     `json:"eventUUID,omitempty"`
	Declared  *Metadata  `json:"declared,omitempty"`
	Points    int        `json:"points"`
	Photos    int        `json:"photos"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Transfer is the consolidated result synthesized when a transfer ends.
type Transfer struct {
	EventUUID   string              `json:"event_uuid"`
	Timestamp   time.Time           `json:"timestamp"`
	TotalPoints int                 `json:"total_points"`
	TotalPhotos int                 `json:"-"`
	Points      []ConsolidatedPoint `json:"points"`
}

// Summary is the count-only view of a completed transfer.
type Summary struct {
	EventUUID   string    `json:"eventUUID,omitempty"`
	TotalPoints int       `json:"totalPoints"`
	TotalPhotos int       `json:"totalPhotos"`
	CompletedAt time.Time `json:"completedAt"`
}

func (t *Transfer) Summary() Summary {
	return Summary{
		EventUUID:   t.EventUUID,
		TotalPoints: t.TotalPoints,
		TotalPhotos: t.TotalPhotos,
		CompletedAt: t.Timestamp,
	}
}

// ConsolidatedPoint marshals as the original point object with an added
// "photos" array.
type ConsolidatedPoint struct {
	Point  PointRecord
	Photos []PhotoRecord
}

func (c ConsolidatedPoint) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if len(c.Point.Payload) > 0 {
		if err := json.Unmarshal(c.Point.Payload, &fields); err != nil {
			return nil, err
		}
	}
	photos := c.Photos
	if photos == nil {
		photos = []PhotoRecord{}
	}
	raw, err := json.Marshal(photos)
	if err != nil {
		return nil, err
	}
	fields["photos"] = raw
	return json.Marshal(fields)
}
