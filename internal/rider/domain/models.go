package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type RiderStatus string

const (
	RiderStatusAvailable  RiderStatus = "Available"
	RiderStatusOnDelivery RiderStatus = "On Delivery"
	RiderStatusSuspended  RiderStatus = "Suspended"
)

func (s RiderStatus) IsValid() bool {
	switch s {
	case RiderStatusAvailable, RiderStatusOnDelivery, RiderStatusSuspended:
		return true
	default:
		return false
	}
}

// Rider belongs to one home hub and may only be assigned parcels currently at
// that hub. ActiveParcels backs the availability counter and changes in the
// same transaction as the assignment it accounts for.
type Rider struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	HubID         snowflake.ID `gorm:"not null;index" json:"hub_id"`
	Area          string       `gorm:"type:text" json:"area,omitempty"`
	Phone         string       `gorm:"type:text" json:"phone,omitempty"`
	Status        RiderStatus  `gorm:"type:text;not null" json:"status"`
	ActiveParcels int          `gorm:"not null;default:0" json:"active_parcels"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Rider) TableName() string { return "riders" }
