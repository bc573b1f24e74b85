// Package hub is the process-wide broadcast registry for chat channels: a
// table of group id -> the set of live connections, with atomic
// registration, deregistration and fan-out, plus optional relays for
// multi-process deployments.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is one live chat connection attached to a group.
//
// Deliver queues a payload for the connection and reports false when the
// connection can no longer accept frames (dead peer or full buffer). Close
// tears the transport down; it must be idempotent.
type Conn interface {
	Deliver(payload []byte) bool
	Close()
}

type member struct {
	userID int64
}

// Hub maps group ids to their registered connections. It is the only shared
// mutable state in the chat core; all mutation goes through Register,
// Deregister and Broadcast.
type Hub struct {
	mu     sync.RWMutex
	groups map[int64]map[Conn]member

	relay    Relay
	presence *Presence

	// origin tags relayed publications so this process skips its own.
	origin string
}

func New() *Hub {
	return &Hub{
		groups: make(map[int64]map[Conn]member),
		origin: uuid.NewString(),
	}
}

// WithRelay attaches a cross-process fan-out backend. Call before Run.
func (h *Hub) WithRelay(r Relay) *Hub {
	h.relay = r
	return h
}

// WithPresence attaches a presence tracker. Presence failures are logged and
// never affect registration.
func (h *Hub) WithPresence(p *Presence) *Hub {
	h.presence = p
	return h
}

// Register adds a connection to a group's set, lazily creating the set.
// Registering the same connection twice is a no-op, so a handle never
// receives duplicate deliveries.
func (h *Hub) Register(groupID, userID int64, c Conn) {
	h.mu.Lock()
	set, ok := h.groups[groupID]
	if !ok {
		set = make(map[Conn]member)
		h.groups[groupID] = set
	}
	_, dup := set[c]
	set[c] = member{userID: userID}
	h.mu.Unlock()

	if dup {
		return
	}
	if h.presence != nil {
		h.presence.Join(context.Background(), groupID, userID)
	}
	log.Printf("hub: registered user %d in group %d", userID, groupID)
}

// Deregister removes a connection from a group's set. Absent connections are
// a no-op so overlapping disconnect paths can both call it safely. Empty
// group sets are pruned.
func (h *Hub) Deregister(groupID int64, c Conn) {
	h.mu.Lock()
	set, ok := h.groups[groupID]
	if !ok {
		h.mu.Unlock()
		return
	}
	m, ok := set[c]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.groups, groupID)
	}
	h.mu.Unlock()

	if h.presence != nil {
		h.presence.Leave(context.Background(), groupID, m.userID)
	}
	log.Printf("hub: deregistered user %d from group %d", m.userID, groupID)
}

// Broadcast delivers payload to every connection currently registered for the
// group, including the sender's, and forwards it to the relay when one is
// configured. A dead peer never aborts delivery to the rest; it is closed and
// deregistered after the sweep.
func (h *Hub) Broadcast(groupID int64, payload []byte) {
	h.fanout(groupID, payload)

	if h.relay != nil {
		env := envelope{Origin: h.origin, GroupID: groupID, Body: payload}
		raw, err := json.Marshal(env)
		if err != nil {
			log.Printf("hub: marshal relay envelope: %v", err)
			return
		}
		if err := h.relay.Publish(context.Background(), raw); err != nil {
			log.Printf("hub: relay publish: %v", err)
		}
	}
}

// fanout performs local delivery only.
func (h *Hub) fanout(groupID int64, payload []byte) {
	var dead []Conn

	h.mu.RLock()
	for c := range h.groups[groupID] {
		if !c.Deliver(payload) {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.Deregister(groupID, c)
		c.Close()
	}
}

// Run consumes the relay until ctx is cancelled, delivering remote
// publications to local connections. It is a no-op without a relay.
func (h *Hub) Run(ctx context.Context) {
	if h.relay == nil {
		return
	}
	h.relay.Run(ctx, func(raw []byte) {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("hub: unmarshal relay envelope: %v", err)
			return
		}
		if env.Origin == h.origin {
			return
		}
		h.fanout(env.GroupID, env.Body)
	})
}

// Registered reports whether the connection is currently in the group's set.
func (h *Hub) Registered(groupID int64, c Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[groupID][c]
	return ok
}

// GroupSize returns the number of connections registered for a group.
func (h *Hub) GroupSize(groupID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}
