// Package mock plays the phone side of a transfer against a running relay.
package mock

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/protocol"
	"github.com/google/uuid"
)

// pixel is a 1x1 PNG, base64 encoded the way the mobile app stores photos.
const pixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

var comments = []string{
	"Barrier installed",
	"Signage checked",
	"Crossing point",
	"Water station",
	"Marshal post",
	"",
}

type Event struct {
	UUID   string
	Points []Point
}

type Point struct {
	ID      string
	Payload map[string]interface{}
	Photos  []Photo
}

type Photo struct {
	UUID    string `json:"UUID"`
	Picture string `json:"Picture"`
	Name    string `json:"Picture_name"`
}

func (e Event) PhotoCount() int {
	n := 0
	for _, p := range e.Points {
		n += len(p.Photos)
	}
	return n
}

// Generate builds a synthetic event around a start coordinate. The same
// seed always yields the same coordinates and comments; identifiers are
// random.
func Generate(eventUUID string, points, photosPerPoint int, seed int64) Event {
	rng := rand.New(rand.NewSource(seed))
	if eventUUID == "" {
		eventUUID = uuid.NewString()
	}

	lat, lon := 48.5734, 7.7521
	ev := Event{UUID: eventUUID, Points: make([]Point, 0, points)}
	for i := 0; i < points; i++ {
		lat += (rng.Float64() - 0.5) * 0.002
		lon += (rng.Float64() - 0.5) * 0.002

		id := uuid.NewString()
		p := Point{
			ID: id,
			Payload: map[string]interface{}{
				"UUID":          id,
				"Event_ID":      eventUUID,
				"Latitude":      lat,
				"Longitude":     lon,
				"Comment":       comments[rng.Intn(len(comments))],
				"Equipement_ID": nil,
				"Ordre":         i,
			},
		}
		for j := 0; j < photosPerPoint; j++ {
			p.Photos = append(p.Photos, Photo{
				UUID:    uuid.NewString(),
				Picture: pixel,
				Name:    fmt.Sprintf("point_%d_photo_%d.png", i+1, j+1),
			})
		}
		ev.Points = append(ev.Points, p)
	}
	return ev
}

// StreamFrames renders ev as the mobile exporter sends it: metadata, each
// point followed by its photos, then end.
func StreamFrames(ev Event, now time.Time) ([][]byte, error) {
	var frames [][]byte
	add := func(v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		frames = append(frames, data)
		return nil
	}

	if err := add(map[string]interface{}{
		"type":        protocol.MsgMetadata,
		"eventUUID":   ev.UUID,
		"timestamp":   now.UTC().Format(time.RFC3339Nano),
		"totalPoints": len(ev.Points),
		"totalPhotos": ev.PhotoCount(),
	}); err != nil {
		return nil, err
	}

	for i, p := range ev.Points {
		payload := make(map[string]interface{}, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["photoCount"] = len(p.Photos)

		if err := add(map[string]interface{}{
			"type":        protocol.MsgPoint,
			"eventUUID":   ev.UUID,
			"pointIndex":  i,
			"totalPoints": len(ev.Points),
			"point":       payload,
		}); err != nil {
			return nil, err
		}

		for j, ph := range p.Photos {
			if err := add(map[string]interface{}{
				"type":        protocol.MsgPhoto,
				"eventUUID":   ev.UUID,
				"pointUUID":   p.ID,
				"pointIndex":  i,
				"photoIndex":  j,
				"totalPhotos": len(p.Photos),
				"photo":       ph,
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := add(map[string]interface{}{
		"type":          protocol.MsgEnd,
		"eventUUID":     ev.UUID,
		"totalMessages": len(frames) + 1,
	}); err != nil {
		return nil, err
	}
	return frames, nil
}

// BulkFrame renders ev as a single legacy frame with photos embedded in
// each point.
func BulkFrame(ev Event) ([]byte, error) {
	points := make([]map[string]interface{}, 0, len(ev.Points))
	for _, p := range ev.Points {
		out := make(map[string]interface{}, len(p.Payload)+1)
		for k, v := range p.Payload {
			out[k] = v
		}
		photos := p.Photos
		if photos == nil {
			photos = []Photo{}
		}
		out["photos"] = photos
		points = append(points, out)
	}
	return json.Marshal(map[string]interface{}{"points": points})
}
