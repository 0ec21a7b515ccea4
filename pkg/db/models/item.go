package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom-backend/pkg/enums"
)

// Item represents a supply item in the shared stock pool. Status is derived
// from quantity and threshold on every mutation and never written directly.
type Item struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string           `gorm:"column:name;not null;uniqueIndex"`
	CategoryID        *uuid.UUID       `gorm:"column:category_id;type:uuid"`
	Quantity          int              `gorm:"column:quantity;not null;default:0"`
	LowStockThreshold int              `gorm:"column:low_stock_threshold;not null;default:5"`
	Status            enums.ItemStatus `gorm:"column:status;type:item_status;not null;default:'in_stock'"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
