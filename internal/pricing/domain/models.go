package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
)

// PricingConfig is one immutable version of the tariff. Updating pricing
// inserts a new version; parcels keep the fare snapshot computed at creation.
type PricingConfig struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	Version              int          `gorm:"not null;uniqueIndex" json:"version"`
	BaseFare             float64      `gorm:"not null" json:"base_fare"`
	PerKg                float64      `gorm:"not null" json:"per_kg"`
	PerKm                float64      `gorm:"not null" json:"per_km"`
	CODPct               float64      `gorm:"not null" json:"cod_pct"`
	ServiceAreaSurcharge float64      `gorm:"not null" json:"service_area_surcharge"`
	ExpressMultiplier    float64      `gorm:"not null" json:"express_multiplier"`
	Active               bool         `gorm:"not null;index" json:"active"`
	CreatedAt            time.Time    `gorm:"not null" json:"created_at"`
}

func (PricingConfig) TableName() string { return "pricing_configs" }

// QuoteAttributes are the fare-relevant parcel attributes.
type QuoteAttributes struct {
	WeightKg    float64
	DistanceKm  float64
	CODAmount   float64
	ServiceType parceldomain.ServiceType
}

// Quote computes the fare for attrs under cfg. Pure and deterministic; full
// precision is kept, rounding is a presentation concern.
func Quote(attrs QuoteAttributes, cfg PricingConfig) float64 {
	subtotal := cfg.BaseFare +
		attrs.WeightKg*cfg.PerKg +
		attrs.DistanceKm*cfg.PerKm +
		cfg.ServiceAreaSurcharge
	if attrs.CODAmount > 0 {
		subtotal += attrs.CODAmount * cfg.CODPct / 100
	}
	if attrs.ServiceType == parceldomain.ServiceTypeExpress {
		return subtotal * cfg.ExpressMultiplier
	}
	return subtotal
}
