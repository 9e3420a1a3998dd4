package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type MerchantStatus string

const (
	MerchantStatusPending   MerchantStatus = "Pending"
	MerchantStatusVerified  MerchantStatus = "Verified"
	MerchantStatusSuspended MerchantStatus = "Suspended"
)

func (s MerchantStatus) IsValid() bool {
	switch s {
	case MerchantStatusPending, MerchantStatusVerified, MerchantStatusSuspended:
		return true
	default:
		return false
	}
}

// Merchant may create parcels only while Verified.
type Merchant struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:text;not null" json:"name"`
	ShopName  string         `gorm:"type:text;not null" json:"shop_name"`
	Phone     string         `gorm:"type:text" json:"phone,omitempty"`
	Status    MerchantStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (Merchant) TableName() string { return "merchants" }
