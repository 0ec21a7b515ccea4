package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom-backend/pkg/enums"
)

// Request is a teacher's fulfillment request against the shared pool.
// Approved and rejected are terminal; stock is deducted exactly once, at the
// pending to approved transition.
type Request struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID      uuid.UUID           `gorm:"column:item_id;type:uuid;not null"`
	RequesterID uuid.UUID           `gorm:"column:requester_id;type:uuid;not null;index:idx_requests_requester_status,priority:1"`
	Quantity    int                 `gorm:"column:quantity;not null"`
	Status      enums.RequestStatus `gorm:"column:status;type:request_status;not null;default:'pending';index:idx_requests_requester_status,priority:2"`
	DeciderID   *uuid.UUID          `gorm:"column:decider_id;type:uuid"`
	Notes       *string             `gorm:"column:notes;type:text"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
