package core

// room groups the connections currently subscribed to one routing key. Rooms
// have no existence independent of their membership; the hub deletes a room
// as soon as it empties.
type room struct {
	key     string
	clients map[*Client]struct{}
}

func newRoom(key string) *room {
	return &room{
		key:     key,
		clients: make(map[*Client]struct{}),
	}
}

// add inserts a client. Returns true if newly added.
func (r *room) add(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// remove deletes a client. Returns true if removed.
func (r *room) remove(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// broadcast queues an event for every member.
func (r *room) broadcast(event *Event) {
	for client := range r.clients {
		select {
		case client.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}

func (r *room) snapshot() []*Client {
	members := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		members = append(members, client)
	}
	return members
}

func (r *room) empty() bool {
	return len(r.clients) == 0
}
