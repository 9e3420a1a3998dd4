package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type HubType string

const (
	HubTypeDistrict HubType = "district"
	HubTypeArea     HubType = "area"
)

func (t HubType) IsValid() bool {
	return t == HubTypeDistrict || t == HubTypeArea
}

type HubStatus string

const (
	HubStatusActive   HubStatus = "Active"
	HubStatusInactive HubStatus = "Inactive"
)

// Hub is one node of the two-level district → area tree. An area hub's parent
// must be an existing district hub; a district hub has no parent.
type Hub struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	Name          string                      `gorm:"type:text;not null" json:"name"`
	Type          HubType                     `gorm:"type:text;not null" json:"type"`
	ParentHubID   *snowflake.ID               `gorm:"index" json:"parent_hub_id,omitempty"`
	Capacity      int                         `gorm:"not null" json:"capacity"`
	CoverageAreas datatypes.JSONSlice[string] `gorm:"not null" json:"coverage_areas"`
	Status        HubStatus                   `gorm:"type:text;not null" json:"status"`
	CreatedAt     time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Hub) TableName() string { return "hubs" }

// Covers reports whether area falls inside this hub's coverage.
func (h Hub) Covers(area string) bool {
	for _, covered := range h.CoverageAreas {
		if covered == area {
			return true
		}
	}
	return false
}
