// Package client connects to a running relay as an observer: a WebSocket
// client feeding Bubble Tea and an HTTP client for the control endpoint.
// Control types mirror the JSON bodies rather than the server structs.
package client

import (
	"encoding/json"
	"time"
)

// Status mirrors the body of GET /status.
type Status struct {
	Status       string           `json:"status"`
	WSPort       int              `json:"wsPort"`
	Clients      int              `json:"clients"`
	Roles        map[string]int   `json:"roles"`
	Session      SessionSnapshot  `json:"session"`
	LastTransfer *TransferSummary `json:"lastTransfer,omitempty"`
	Process      *ProcessStats    `json:"process,omitempty"`
}

type SessionSnapshot struct {
	State     string     `json:"state"`
	EventUUID string     `json:"eventUUID,omitempty"`
	Points    int        `json:"points"`
	Photos    int        `json:"photos"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

type TransferSummary struct {
	EventUUID   string    `json:"eventUUID,omitempty"`
	TotalPoints int       `json:"totalPoints"`
	TotalPhotos int       `json:"totalPhotos"`
	CompletedAt time.Time `json:"completedAt"`
}

type ProcessStats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
	Uptime     string  `json:"uptime"`
}

// ClientConfig mirrors the body of GET /config.
type ClientConfig struct {
	WSHost string `json:"wsHost"`
	WSPort int    `json:"wsPort"`
	WSURL  string `json:"wsUrl"`
}

type FlushResult struct {
	Flushed SessionSnapshot `json:"flushed"`
}

// PointID extracts the identifier of a point payload, or "" when it has
// none.
func PointID(raw json.RawMessage) string {
	var ids struct {
		Upper string `json:"UUID"`
		Lower string `json:"uuid"`
	}
	if json.Unmarshal(raw, &ids) != nil {
		return ""
	}
	if ids.Upper != "" {
		return ids.Upper
	}
	return ids.Lower
}
