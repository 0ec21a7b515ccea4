package models

import (
	"time"

	"github.com/google/uuid"
)

// TeacherAllocation is a teacher-specific slice of an item's quantity,
// tracked independently of the shared pool for personalized alerting.
type TeacherAllocation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TeacherID uuid.UUID `gorm:"column:teacher_id;type:uuid;not null;uniqueIndex:idx_allocations_teacher_item,priority:1"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:idx_allocations_teacher_item,priority:2"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
