package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub tracks live connections, derives room membership from announced
// identities, and routes events to the connections currently in a room.
//
// All mutations run on a single loop goroutine: every exported method funnels
// into the ops channel, so joins, leaves, disconnect cleanup and routing for a
// room can never interleave. A disconnected client is removed from every room
// in the same loop turn that drops it from the registry — there is no window
// where stale membership could receive a route.
type Hub struct {
	log  *zerolog.Logger
	ops  chan func()
	done chan struct{}

	clients map[*Client]struct{}
	rooms   map[string]*room
}

// NewHub creates a hub. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		log:     logger,
		ops:     make(chan func(), 64),
		done:    make(chan struct{}),
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]*room),
	}
}

// Run processes hub operations until the context is cancelled. Exactly one
// Run per hub.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case op := <-h.ops:
			op()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) do(op func()) {
	select {
	case h.ops <- op:
	case <-h.done:
	}
}

// RegisterClient adds a freshly connected client to the registry. The client
// belongs to no rooms until it announces an identity.
func (h *Hub) RegisterClient(c *Client) {
	h.do(func() {
		h.clients[c] = struct{}{}
		h.log.Debug().Str("conn_id", c.ID).Int("clients", len(h.clients)).Msg("client registered")
	})
}

// UnregisterClient removes the client and all of its room memberships. Safe
// to call for clients that never announced an identity, and safe to call more
// than once.
func (h *Hub) UnregisterClient(c *Client) {
	h.do(func() {
		if _, ok := h.clients[c]; !ok {
			return
		}
		h.revokeMemberships(c)
		delete(h.clients, c)
		h.log.Debug().Str("conn_id", c.ID).Int("clients", len(h.clients)).Msg("client unregistered")
	})
}

// Identify attaches or replaces the identity of a registered client and joins
// it to the rooms derived from that identity. Re-announcing the same identity
// is a no-op; announcing a different one revokes the old memberships first.
// A malformed identity is rejected and leaves prior state untouched.
func (h *Hub) Identify(c *Client, identity Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	h.do(func() {
		if _, ok := h.clients[c]; !ok {
			return
		}
		if c.identity != nil && *c.identity != identity {
			h.revokeMemberships(c)
		}
		ident := identity
		c.identity = &ident
		for _, key := range identity.Rooms() {
			h.joinRoom(c, key)
		}
		h.log.Info().
			Str("conn_id", c.ID).
			Str("user_id", identity.UserID).
			Stringer("role", identity.Role).
			Msg("identity attached")
	})
	return nil
}

// RouteToRoom delivers the event to every current member of the room.
// Best-effort: an unknown or empty room is a silent no-op, and a member with
// a full queue misses this event.
func (h *Hub) RouteToRoom(roomKey string, event *Event) {
	h.do(func() {
		r, ok := h.rooms[roomKey]
		if !ok {
			return
		}
		r.broadcast(event)
		h.log.Debug().Str("room", roomKey).Str("event", event.Name).Int("members", len(r.clients)).Msg("event routed")
	})
}

// RouteToUser delivers the event to every connection announced as userID.
func (h *Hub) RouteToUser(userID string, event *Event) {
	h.RouteToRoom(UserRoom(userID), event)
}

// RouteFromClient routes an event published by a connected client. With an
// empty room key the event goes to the sender's own role room, which requires
// the sender to have announced an identity first.
func (h *Hub) RouteFromClient(c *Client, roomKey string, event *Event) {
	h.do(func() {
		if roomKey == "" {
			if c.identity == nil {
				return
			}
			roomKey = RoleRoom(c.identity.Role)
		}
		r, ok := h.rooms[roomKey]
		if !ok {
			return
		}
		r.broadcast(event)
	})
}

// MembersOf returns a snapshot of the room's current membership. The snapshot
// is stale as soon as any later join, leave or disconnect runs.
func (h *Hub) MembersOf(roomKey string) []*Client {
	reply := make(chan []*Client, 1)
	h.do(func() {
		r, ok := h.rooms[roomKey]
		if !ok {
			reply <- nil
			return
		}
		reply <- r.snapshot()
	})
	select {
	case members := <-reply:
		return members
	case <-h.done:
		return nil
	}
}

// Stats reports the current number of connections and non-empty rooms.
func (h *Hub) Stats() (clients, rooms int) {
	type stats struct{ clients, rooms int }
	reply := make(chan stats, 1)
	h.do(func() {
		reply <- stats{clients: len(h.clients), rooms: len(h.rooms)}
	})
	select {
	case s := <-reply:
		return s.clients, s.rooms
	case <-h.done:
		return 0, 0
	}
}

// joinRoom and the helpers below run on the hub loop only.

func (h *Hub) joinRoom(c *Client, key string) {
	r, ok := h.rooms[key]
	if !ok {
		r = newRoom(key)
		h.rooms[key] = r
	}
	r.add(c)
}

func (h *Hub) leaveRoom(c *Client, key string) {
	r, ok := h.rooms[key]
	if !ok {
		return
	}
	r.remove(c)
	if r.empty() {
		delete(h.rooms, key)
	}
}

func (h *Hub) revokeMemberships(c *Client) {
	if c.identity == nil {
		return
	}
	for _, key := range c.identity.Rooms() {
		h.leaveRoom(c, key)
	}
	c.identity = nil
}
