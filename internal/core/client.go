package core

// Client is a live transport connection as seen by the hub. It carries the
// outbound event queue; the identity slot is owned by the hub run loop and
// must not be touched elsewhere.
type Client struct {
	ID     string
	Events chan *Event

	identity *Identity
}

// NewClient constructs a connection handle with a buffered event queue.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, buffer),
	}
}
