package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups items. IsCustom distinguishes user-defined categories from
// the seeded defaults.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	IsCustom  bool      `gorm:"column:is_custom;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
