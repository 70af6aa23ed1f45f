package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutboxMessage is the durable form of a domain event, written in the same
// transaction as the aggregate change it describes. The dispatcher is the
// only writer after insert: processed_at on success, retry_count/last_error
// on failure. Rows are never deleted here; retention is an external concern.
type OutboxMessage struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventType   string         `gorm:"not null;index" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	OccurredAt  time.Time      `gorm:"not null;index" json:"occurred_at"`
	ProcessedAt *time.Time     `gorm:"index" json:"processed_at,omitempty"`
	RetryCount  int            `gorm:"not null;default:0" json:"retry_count"`
	LastError   *string        `json:"last_error,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (OutboxMessage) TableName() string { return "outbox_message" }
