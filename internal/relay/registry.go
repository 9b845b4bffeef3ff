package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrDuplicateConn     = errors.New("connection already registered")
)

// Conn is one open client connection as seen by the relay.
type Conn interface {
	ID() string
	// Send queues data for delivery. It returns false when the connection
	// is closed or cannot accept more data.
	Send(data []byte) bool
}

// Role classifies a connection and decides which broadcasts reach it.
type Role int

const (
	RoleUnassigned Role = iota
	RoleWeb
	RolePhone
)

var roleNames = map[Role]string{
	RoleUnassigned: "unassigned",
	RoleWeb:        "web",
	RolePhone:      "phone",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "unknown"
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// WaitingKind records what a web connection is waiting to supply.
type WaitingKind int

const (
	WaitingNone WaitingKind = iota
	WaitingImport
	WaitingPlanning
)

var waitingNames = map[WaitingKind]string{
	WaitingNone:     "none",
	WaitingImport:   "import",
	WaitingPlanning: "planning",
}

func (w WaitingKind) String() string {
	if n, ok := waitingNames[w]; ok {
		return n
	}
	return "unknown"
}

func (w WaitingKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// ConnectionState is everything the relay knows about a connection.
type ConnectionState struct {
	ID             string      `json:"id"`
	Role           Role        `json:"role"`
	CorrelationKey string      `json:"correlationKey,omitempty"`
	Waiting        WaitingKind `json:"waiting"`
	ConnectedAt    time.Time   `json:"connectedAt"`
}

type entry struct {
	conn  Conn
	state ConnectionState
}

// Registry tracks open connections in registration order. Connection state
// is only changed through its methods.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*entry),
		now:  time.Now,
	}
}

// Register adds c with the unassigned role.
func (r *Registry) Register(c Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID()]; ok {
		return ErrDuplicateConn
	}
	e := &entry{
		conn: c,
		state: ConnectionState{
			ID:          c.ID(),
			Role:        RoleUnassigned,
			ConnectedAt: r.now(),
		},
	}
	r.entries = append(r.entries, e)
	r.byID[e.state.ID] = e
	return nil
}

// SetRole replaces the role, correlation key and waiting kind of a
// connection. The last call wins.
func (r *Registry) SetRole(id string, role Role, key string, waiting WaitingKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return ErrUnknownConnection
	}
	e.state.Role = role
	e.state.CorrelationKey = key
	e.state.Waiting = waiting
	return nil
}

// Deregister removes a connection. It reports whether it was registered.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, e := range r.entries {
		if e.state.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) State(id string) (ConnectionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return ConnectionState{}, false
	}
	return e.state, true
}

// Find returns the first connection, in registration order, whose state
// matches pred.
func (r *Registry) Find(pred func(ConnectionState) bool) (Conn, ConnectionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if pred(e.state) {
			return e.conn, e.state, true
		}
	}
	return nil, ConnectionState{}, false
}

// Select returns every connection whose state matches pred, in
// registration order. A nil pred selects all.
func (r *Registry) Select(pred func(ConnectionState) bool) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.entries))
	for _, e := range r.entries {
		if pred == nil || pred(e.state) {
			out = append(out, e.conn)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// RoleCounts returns the number of connections per role name. Every role
// is present, zero or not.
func (r *Registry) RoleCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[string]int{
		RoleUnassigned.String(): 0,
		RoleWeb.String():        0,
		RolePhone.String():      0,
	}
	for _, e := range r.entries {
		counts[e.state.Role.String()]++
	}
	return counts
}

// States returns a copy of every connection state in registration order.
func (r *Registry) States() []ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionState, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.state
	}
	return out
}

// Predicates used by the relay handlers.

func hasRoleExcept(role Role, exceptID string) func(ConnectionState) bool {
	return func(s ConnectionState) bool { return s.Role == role && s.ID != exceptID }
}
