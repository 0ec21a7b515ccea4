package inventory

import "github.com/schoolstock/stockroom-backend/pkg/enums"

// StatusFor derives an item's status from its quantity and threshold. Status
// is never stored independently of this function's result.
func StatusFor(quantity, threshold int) enums.ItemStatus {
	switch {
	case quantity == 0:
		return enums.ItemStatusOutOfStock
	case quantity <= threshold:
		return enums.ItemStatusLowStock
	default:
		return enums.ItemStatusInStock
	}
}

// LowStockCrossed reports whether a mutation moved the quantity across the
// low-stock threshold in either direction. Mutations that stay on the same
// side of the threshold never report a crossing, so repeated deductions deep
// into low territory stay silent. Zero counts as low: 0 <= threshold for any
// valid threshold, so out-of-stock is a subset of low for alerting.
func LowStockCrossed(previousQty, newQty, threshold int) bool {
	wasLow := previousQty <= threshold
	isLow := newQty <= threshold
	return wasLow != isLow
}

// AllocationRunningLow reports whether a teacher's allocation qualifies for a
// personal low-stock alert: at or below the item's threshold but not yet
// exhausted. This check intentionally refires on every qualifying mutation
// rather than only on crossing edges; the asymmetry with the pool-level alert
// is a design property of the alerting model.
func AllocationRunningLow(allocationQty, threshold int) bool {
	return allocationQty <= threshold && allocationQty > 0
}
