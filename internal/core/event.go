package core

// Common event names routed through the hub. Callers may route any name;
// these are the ones the marketplace emits today.
const (
	EventJoined           = "joined"
	EventFuelPriceUpdate  = "fuelPriceUpdate"
	EventOrderPlaced      = "orderPlaced"
	EventOrderUpdate      = "orderUpdate"
	EventDeliveryAssigned = "deliveryAssigned"
)

// Event is a named notification delivered to clients. Payload must be
// JSON-serializable; the hub never inspects it.
type Event struct {
	Name    string
	Payload any
}
