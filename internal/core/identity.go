package core

import "fmt"

// Role is the category a marketplace participant acts as.
type Role int

const (
	// RoleAdmin operates the marketplace back office.
	RoleAdmin Role = iota
	// RoleFuelPump runs a fuel station storefront.
	RoleFuelPump
	// RoleDeliveryBoy fulfils assigned deliveries.
	RoleDeliveryBoy
	// RoleUser places orders through the storefront.
	RoleUser
)

// ParseRole maps a wire-level userType string to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "fuelPump":
		return RoleFuelPump, nil
	case "deliveryBoy":
		return RoleDeliveryBoy, nil
	case "user":
		return RoleUser, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleFuelPump:
		return "fuelPump"
	case RoleDeliveryBoy:
		return "deliveryBoy"
	case RoleUser:
		return "user"
	default:
		return "unknown"
	}
}

// Identity is the (user, role) pair a connection announces after connecting.
type Identity struct {
	UserID string
	Role   Role
}

// Validate reports whether the identity can be attached to a connection.
func (i Identity) Validate() error {
	if i.UserID == "" {
		return coreError(ErrCodeBadIdentity, "user id is required")
	}
	return nil
}

// Rooms derives the routing rooms for this identity. The derivation is pure:
// equal identities always yield equal room sets, so re-deriving after a
// reconnect is idempotent.
func (i Identity) Rooms() []string {
	return []string{RoleRoom(i.Role), UserRoom(i.UserID)}
}

// RoleRoom returns the shared room key for a role category.
func RoleRoom(r Role) string {
	return "role:" + r.String()
}

// UserRoom returns the per-user room key.
func UserRoom(userID string) string {
	return "user:" + userID
}
