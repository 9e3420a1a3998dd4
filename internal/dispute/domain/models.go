package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "Open"
	DisputeStatusResolved DisputeStatus = "Resolved"
)

// Dispute tracks one complaint against a parcel. At most one Open dispute may
// exist per parcel; PriorStatus is the lifecycle state restored on resolution.
type Dispute struct {
	ID          snowflake.ID        `gorm:"primaryKey" json:"id"`
	ParcelID    snowflake.ID        `gorm:"not null;index" json:"parcel_id"`
	Status      DisputeStatus       `gorm:"type:text;not null;index" json:"status"`
	Issue       string              `gorm:"type:text;not null" json:"issue"`
	Resolution  string              `gorm:"type:text" json:"resolution,omitempty"`
	PriorStatus parceldomain.Status `gorm:"type:text;not null" json:"prior_status"`
	OpenedAt    time.Time           `gorm:"not null" json:"opened_at"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt   time.Time           `gorm:"not null;index" json:"created_at"`
}

func (Dispute) TableName() string { return "disputes" }
