package core

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub
}

func TestIdentifyJoinsDerivedRooms(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)

	if err := hub.Identify(c, Identity{UserID: "A1", Role: RoleAdmin}); err != nil {
		t.Fatalf("identify: %v", err)
	}

	if members := hub.MembersOf("role:admin"); !containsClient(members, c) {
		t.Fatalf("expected c in role:admin, got %d members", len(members))
	}
	if members := hub.MembersOf("user:A1"); !containsClient(members, c) {
		t.Fatalf("expected c in user:A1, got %d members", len(members))
	}
}

func TestIdentifyIdempotent(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)

	identity := Identity{UserID: "U1", Role: RoleUser}
	if err := hub.Identify(c, identity); err != nil {
		t.Fatalf("first identify: %v", err)
	}
	if err := hub.Identify(c, identity); err != nil {
		t.Fatalf("second identify: %v", err)
	}

	if members := hub.MembersOf("user:U1"); len(members) != 1 {
		t.Fatalf("expected exactly one membership, got %d", len(members))
	}
	if members := hub.MembersOf("role:user"); len(members) != 1 {
		t.Fatalf("expected exactly one role membership, got %d", len(members))
	}
}

func TestReidentifyRevokesOldMemberships(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)

	if err := hub.Identify(c, Identity{UserID: "U1", Role: RoleUser}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if err := hub.Identify(c, Identity{UserID: "D1", Role: RoleDeliveryBoy}); err != nil {
		t.Fatalf("re-identify: %v", err)
	}

	if members := hub.MembersOf("user:U1"); len(members) != 0 {
		t.Fatalf("stale user:U1 membership survived: %d members", len(members))
	}
	if members := hub.MembersOf("role:user"); len(members) != 0 {
		t.Fatalf("stale role:user membership survived: %d members", len(members))
	}
	if members := hub.MembersOf("user:D1"); !containsClient(members, c) {
		t.Fatal("expected c in user:D1")
	}
	if members := hub.MembersOf("role:deliveryBoy"); !containsClient(members, c) {
		t.Fatal("expected c in role:deliveryBoy")
	}
}

func TestMalformedIdentityRejected(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)

	if err := hub.Identify(c, Identity{UserID: "U1", Role: RoleUser}); err != nil {
		t.Fatalf("identify: %v", err)
	}

	err := hub.Identify(c, Identity{UserID: "", Role: RoleAdmin})
	if err == nil {
		t.Fatal("expected error for identity without user id")
	}
	coreErr, ok := err.(*CoreError)
	if !ok || coreErr.Code != ErrCodeBadIdentity {
		t.Fatalf("expected bad_identity error, got %v", err)
	}

	// Prior state is untouched.
	if members := hub.MembersOf("user:U1"); !containsClient(members, c) {
		t.Fatal("prior membership lost after rejected identify")
	}
	if members := hub.MembersOf("role:admin"); len(members) != 0 {
		t.Fatal("rejected identity must not grant memberships")
	}
}

func TestUnregisterCleansAllMemberships(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)
	if err := hub.Identify(c, Identity{UserID: "D1", Role: RoleDeliveryBoy}); err != nil {
		t.Fatalf("identify: %v", err)
	}

	hub.UnregisterClient(c)

	for _, key := range []string{"role:deliveryBoy", "user:D1"} {
		if members := hub.MembersOf(key); len(members) != 0 {
			t.Fatalf("room %s still has %d members after disconnect", key, len(members))
		}
	}

	// Safe to call again.
	hub.UnregisterClient(c)
}

func TestUnregisterWithoutIdentityIsSafe(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)
	hub.UnregisterClient(c)

	if clients, _ := hub.Stats(); clients != 0 {
		t.Fatalf("expected 0 clients, got %d", clients)
	}
}

func TestRouteToRoomByRole(t *testing.T) {
	hub := startHub(t)

	admin := NewClient("c1", 0)
	user := NewClient("c2", 0)
	hub.RegisterClient(admin)
	hub.RegisterClient(user)

	if err := hub.Identify(admin, Identity{UserID: "A1", Role: RoleAdmin}); err != nil {
		t.Fatalf("identify admin: %v", err)
	}
	if err := hub.Identify(user, Identity{UserID: "U1", Role: RoleUser}); err != nil {
		t.Fatalf("identify user: %v", err)
	}

	hub.RouteToRoom("role:admin", &Event{Name: "ping"})

	ev := mustEvent(t, admin.Events, "ping")
	if ev.Name != "ping" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(user.Events) != 0 {
		t.Fatal("event leaked to a client outside the room")
	}
}

func TestRouteToUserTargetsAllConnectionsOfUser(t *testing.T) {
	hub := startHub(t)

	tab1 := NewClient("c1", 0)
	tab2 := NewClient("c2", 0)
	other := NewClient("c3", 0)
	for _, c := range []*Client{tab1, tab2, other} {
		hub.RegisterClient(c)
	}

	identity := Identity{UserID: "U1", Role: RoleUser}
	if err := hub.Identify(tab1, identity); err != nil {
		t.Fatalf("identify tab1: %v", err)
	}
	if err := hub.Identify(tab2, identity); err != nil {
		t.Fatalf("identify tab2: %v", err)
	}
	if err := hub.Identify(other, Identity{UserID: "U2", Role: RoleUser}); err != nil {
		t.Fatalf("identify other: %v", err)
	}

	hub.RouteToUser("U1", &Event{Name: "orderUpdate", Payload: map[string]string{"status": "delivered"}})

	mustEvent(t, tab1.Events, "orderUpdate")
	mustEvent(t, tab2.Events, "orderUpdate")
	if len(other.Events) != 0 {
		t.Fatal("targeted event reached another user")
	}
}

func TestRouteToEmptyRoomIsNoop(t *testing.T) {
	hub := startHub(t)

	hub.RouteToRoom("role:deliveryBoy", &Event{Name: "ping"})

	if _, rooms := hub.Stats(); rooms != 0 {
		t.Fatalf("routing must not create rooms, got %d", rooms)
	}
}

func TestReconnectReannounce(t *testing.T) {
	hub := startHub(t)

	identity := Identity{UserID: "D1", Role: RoleDeliveryBoy}

	stale := NewClient("c-old", 0)
	hub.RegisterClient(stale)
	if err := hub.Identify(stale, identity); err != nil {
		t.Fatalf("identify: %v", err)
	}

	// Disconnect, then reconnect with a fresh handle and the same identity.
	hub.UnregisterClient(stale)

	fresh := NewClient("c-new", 0)
	hub.RegisterClient(fresh)
	if err := hub.Identify(fresh, identity); err != nil {
		t.Fatalf("re-identify: %v", err)
	}

	members := hub.MembersOf("user:D1")
	if len(members) != 1 || !containsClient(members, fresh) {
		t.Fatalf("expected exactly the fresh handle in user:D1, got %d members", len(members))
	}
	if containsClient(members, stale) {
		t.Fatal("stale handle survived reconnect")
	}
}

func TestRouteFromClientDefaultsToSenderRoleRoom(t *testing.T) {
	hub := startHub(t)

	sender := NewClient("c1", 0)
	peer := NewClient("c2", 0)
	hub.RegisterClient(sender)
	hub.RegisterClient(peer)

	if err := hub.Identify(sender, Identity{UserID: "D1", Role: RoleDeliveryBoy}); err != nil {
		t.Fatalf("identify sender: %v", err)
	}
	if err := hub.Identify(peer, Identity{UserID: "D2", Role: RoleDeliveryBoy}); err != nil {
		t.Fatalf("identify peer: %v", err)
	}

	hub.RouteFromClient(sender, "", &Event{Name: "note"})

	mustEvent(t, sender.Events, "note")
	mustEvent(t, peer.Events, "note")
}

func TestRouteFromUnidentifiedClientIsDropped(t *testing.T) {
	hub := startHub(t)

	sender := NewClient("c1", 0)
	listener := NewClient("c2", 0)
	hub.RegisterClient(sender)
	hub.RegisterClient(listener)
	if err := hub.Identify(listener, Identity{UserID: "U1", Role: RoleUser}); err != nil {
		t.Fatalf("identify listener: %v", err)
	}

	hub.RouteFromClient(sender, "", &Event{Name: "note"})

	// A later targeted route still works, proving the loop is healthy.
	hub.RouteToUser("U1", &Event{Name: "after"})
	mustEvent(t, listener.Events, "after")
	if len(sender.Events) != 0 {
		t.Fatal("unidentified publish must be dropped")
	}
}
