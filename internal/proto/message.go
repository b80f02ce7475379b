package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin    = "join"
	InboundTypePublish = "publish"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinData announces the identity of the connected user. Sent after every
// (re)connect, since server-side membership does not survive a disconnect.
type JoinData struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
}

// PublishData carries a client-published event. Room and User select the
// routing target; with neither set the event goes to the sender's role room.
type PublishData struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Room  string          `json:"room,omitempty"`
	User  string          `json:"user,omitempty"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// JoinedData acknowledges a join and lists the rooms the connection now
// belongs to.
type JoinedData struct {
	UserID string   `json:"userId"`
	Rooms  []string `json:"rooms"`
}

// FuelPriceUpdate notifies storefronts that a fuel price changed.
type FuelPriceUpdate struct {
	FuelType  string  `json:"fuelType"`
	Price     float64 `json:"price"`
	UpdatedAt int64   `json:"updatedAt"`
}

// OrderUpdate notifies the ordering user about an order status change.
type OrderUpdate struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
	TS      int64  `json:"ts"`
}

// DeliveryAssigned notifies a delivery boy about a newly assigned order.
type DeliveryAssigned struct {
	OrderID       int64  `json:"orderId"`
	DeliveryBoyID string `json:"deliveryBoyId"`
	Address       string `json:"address"`
	TS            int64  `json:"ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
