package enums

import "fmt"

// ItemStatus maps to the item_status enum in Postgres.
type ItemStatus string

const (
	ItemStatusInStock    ItemStatus = "in_stock"
	ItemStatusLowStock   ItemStatus = "low_stock"
	ItemStatusOutOfStock ItemStatus = "out_of_stock"
)

var validItemStatuses = []ItemStatus{
	ItemStatusInStock,
	ItemStatusLowStock,
	ItemStatusOutOfStock,
}

// String implements fmt.Stringer.
func (s ItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ItemStatus.
func (s ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseItemStatus converts raw input into an ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}
