package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom-backend/pkg/enums"
)

// Notification stores an in-app alert for one recipient. The EntityKind and
// EntityID pair is a tagged reference to the source record; ReadAt is the
// only field that may change after creation.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index:idx_notifications_recipient,priority:1"`
	Type        enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Message     string                 `gorm:"column:message;type:text;not null"`
	Link        *string                `gorm:"column:link;type:text"`
	EntityKind  *enums.EntityKind      `gorm:"column:entity_kind;type:entity_kind"`
	EntityID    *uuid.UUID             `gorm:"column:entity_id;type:uuid"`
	ReadAt      *time.Time             `gorm:"column:read_at;type:timestamptz;index:idx_notifications_recipient,priority:2"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime;index:idx_notifications_recipient,priority:3,sort:desc"`
}
