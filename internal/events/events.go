// Package events defines the explicit event values the stock mutator and the
// request workflow hand to the notification dispatcher. Events are plain
// values threaded through function calls inside the owning transaction; there
// is no hidden subscription mechanism.
package events

import (
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
)

// Event is the closed set of notification-worthy state changes.
type Event interface {
	isEvent()
}

// LowStockCrossed fires when an item's quantity crosses its low-stock
// threshold in either direction. It fires once per crossing edge, never for
// mutations that stay on the same side of the threshold.
type LowStockCrossed struct {
	Item models.Item
}

// AllocationLow fires for a teacher whose allocation of the mutated item sits
// at or below the item's threshold while still above zero. Unlike
// LowStockCrossed it refires on every qualifying mutation.
type AllocationLow struct {
	Item       models.Item
	Allocation models.TeacherAllocation
}

// NewRequestCreated fires when a teacher submits a fulfillment request.
type NewRequestCreated struct {
	Request models.Request
	Item    models.Item
}

// RequestStatusChanged fires when a pending request reaches a terminal state.
type RequestStatusChanged struct {
	Request models.Request
	Item    models.Item
	Status  enums.RequestStatus
}

// AllocationAssigned fires when an item is assigned to a teacher.
type AllocationAssigned struct {
	Allocation models.TeacherAllocation
	Item       models.Item
}

func (LowStockCrossed) isEvent()      {}
func (AllocationLow) isEvent()        {}
func (NewRequestCreated) isEvent()    {}
func (RequestStatusChanged) isEvent() {}
func (AllocationAssigned) isEvent()   {}
