package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type UpdatePricingRequest struct {
	BaseFare             float64
	PerKg                float64
	PerKm                float64
	CODPct               float64
	ServiceAreaSurcharge float64
	ExpressMultiplier    float64
}

type Service interface {
	// Current returns the active pricing version.
	Current(ctx context.Context) (PricingConfig, error)
	// CurrentTx reads the active version inside an open transaction, so fare
	// snapshots and the parcels they belong to commit together.
	CurrentTx(ctx context.Context, tx *gorm.DB) (PricingConfig, error)
	History(ctx context.Context) ([]PricingConfig, error)
	// Update inserts a new active version and deactivates the previous one.
	Update(ctx context.Context, req UpdatePricingRequest) (PricingConfig, error)
	// QuoteFare prices the given attributes against the active version.
	QuoteFare(ctx context.Context, attrs QuoteAttributes) (float64, error)
}

var (
	ErrNoActiveConfig    = errors.New("no_active_pricing_config")
	ErrInvalidAmount     = errors.New("invalid_pricing_amount")
	ErrInvalidMultiplier = errors.New("invalid_express_multiplier")
	ErrInvalidAttributes = errors.New("invalid_quote_attributes")
)
