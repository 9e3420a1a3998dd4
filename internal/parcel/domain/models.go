package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ServiceType string

const (
	ServiceTypeRegular ServiceType = "Regular"
	ServiceTypeExpress ServiceType = "Express"
)

func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceTypeRegular, ServiceTypeExpress:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusRequested      Status = "Requested"
	StatusPickingUp      Status = "Picking Up"
	StatusPickedUp       Status = "Picked Up"
	StatusAtAreaHub      Status = "At Area Hub"
	StatusInTransit      Status = "In Transit"
	StatusAtDistrictHub  Status = "At District Hub"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusDelivered      Status = "Delivered"
	StatusOnHold         Status = "On Hold"
	StatusDisputed       Status = "Disputed"
	StatusReturned       Status = "Returned"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusPickingUp, StatusPickedUp, StatusAtAreaHub,
		StatusInTransit, StatusAtDistrictHub, StatusOutForDelivery,
		StatusDelivered, StatusOnHold, StatusDisputed, StatusReturned:
		return true
	default:
		return false
	}
}

// Terminal reports whether a parcel in this status is immutable.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusReturned
}

// Parcel is the authoritative shipment record. All mutations go through the
// lifecycle service; the version column backs optimistic concurrency control.
type Parcel struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	MerchantID       snowflake.ID  `gorm:"not null;index" json:"merchant_id"`
	CustomerName     string        `gorm:"type:text;not null" json:"customer_name"`
	CustomerPhone    string        `gorm:"type:text;not null" json:"customer_phone"`
	OriginHubID      snowflake.ID  `gorm:"not null;index" json:"origin_hub_id"`
	DestinationHubID snowflake.ID  `gorm:"not null;index" json:"destination_hub_id"`
	DestinationArea  string        `gorm:"type:text;not null" json:"destination_area"`
	CurrentHubID     snowflake.ID  `gorm:"not null;index" json:"current_hub_id"`
	WeightKg         float64       `gorm:"not null" json:"weight_kg"`
	DistanceKm       float64       `gorm:"not null" json:"distance_km"`
	CODAmount        float64       `gorm:"not null" json:"cod_amount"`
	ServiceType      ServiceType   `gorm:"type:text;not null" json:"service_type"`
	Status           Status        `gorm:"type:text;not null;index" json:"status"`
	PrevStatus       *Status       `gorm:"type:text" json:"prev_status,omitempty"`
	AssignedRiderID  *snowflake.ID `gorm:"index" json:"assigned_rider_id,omitempty"`
	Fare             float64       `gorm:"not null" json:"fare"`
	PricingVersion   int           `gorm:"not null" json:"pricing_version"`
	Version          int64         `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time     `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`
}

func (Parcel) TableName() string { return "parcels" }

// ParcelEvent is one immutable journey entry. Seq orders events per parcel and
// the latest entry's label always equals the parcel's current status.
type ParcelEvent struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	ParcelID   snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_parcel_events_parcel_seq,priority:1" json:"parcel_id"`
	Seq        int           `gorm:"not null;uniqueIndex:ux_parcel_events_parcel_seq,priority:2" json:"seq"`
	HubID      *snowflake.ID `json:"hub_id,omitempty"`
	Label      Status        `gorm:"type:text;not null" json:"label"`
	Note       string        `gorm:"type:text" json:"note,omitempty"`
	Actor      string        `gorm:"type:text;not null" json:"actor"`
	OccurredAt time.Time     `gorm:"not null" json:"occurred_at"`
}

func (ParcelEvent) TableName() string { return "parcel_events" }
