package enums

import "fmt"

// EntityKind tags the source entity a notification points at. A tagged
// kind/id pair replaces any dynamic type introspection on the reference.
type EntityKind string

const (
	EntityKindItem       EntityKind = "item"
	EntityKindRequest    EntityKind = "request"
	EntityKindAllocation EntityKind = "allocation"
)

var validEntityKinds = []EntityKind{
	EntityKindItem,
	EntityKindRequest,
	EntityKindAllocation,
}

// IsValid reports whether the value is a known EntityKind.
func (k EntityKind) IsValid() bool {
	for _, candidate := range validEntityKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseEntityKind converts raw input into an EntityKind.
func ParseEntityKind(value string) (EntityKind, error) {
	for _, candidate := range validEntityKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity kind %q", value)
}
