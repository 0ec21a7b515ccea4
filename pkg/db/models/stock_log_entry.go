package models

import (
	"time"

	"github.com/google/uuid"
)

// StockLogEntry records one immutable quantity change for an item. Entries
// are append-only; in commit order their deltas sum to the item's live
// quantity and QuantityAfter snapshots the running total.
type StockLogEntry struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID        uuid.UUID  `gorm:"column:item_id;type:uuid;not null;index:idx_stock_log_item_time,priority:1"`
	Delta         int        `gorm:"column:delta;not null"`
	QuantityAfter int        `gorm:"column:quantity_after;not null"`
	Reason        string     `gorm:"column:reason;type:text;not null"`
	ActorID       *uuid.UUID `gorm:"column:actor_id;type:uuid"`
	RequestID     *uuid.UUID `gorm:"column:request_id;type:uuid"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime;index:idx_stock_log_item_time,priority:2,sort:desc"`
}
