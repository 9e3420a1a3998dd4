package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	pricingdomain "github.com/parcelflow/parcelflow/internal/pricing/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Default tariff for a fresh install.
const (
	defaultBaseFare          = 60
	defaultPerKg             = 15
	defaultPerKm             = 2
	defaultCODPct            = 1.0
	defaultSurcharge         = 20
	defaultExpressMultiplier = 1.4
)

// EnsureDefaults seeds the hub network and initial pricing so a fresh install
// can route and quote immediately.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePricing(ctx, tx, node); err != nil {
			return err
		}
		return ensureHubs(ctx, tx, node)
	})
}

func ensurePricing(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&pricingdomain.PricingConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	cfg := pricingdomain.PricingConfig{
		ID:                   node.Generate(),
		Version:              1,
		BaseFare:             defaultBaseFare,
		PerKg:                defaultPerKg,
		PerKm:                defaultPerKm,
		CODPct:               defaultCODPct,
		ServiceAreaSurcharge: defaultSurcharge,
		ExpressMultiplier:    defaultExpressMultiplier,
		Active:               true,
		CreatedAt:            time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&cfg).Error
}

func ensureHubs(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&hubdomain.Hub{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	dhaka := hubdomain.Hub{
		ID:            node.Generate(),
		Name:          "Dhaka District Hub",
		Type:          hubdomain.HubTypeDistrict,
		Capacity:      5000,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Gulshan", "Banani", "Dhanmondi", "Uttara"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&dhaka).Error; err != nil {
		return err
	}

	mirpur := hubdomain.Hub{
		ID:            node.Generate(),
		Name:          "Mirpur Area Hub",
		Type:          hubdomain.HubTypeArea,
		ParentHubID:   &dhaka.ID,
		Capacity:      1200,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Mirpur-1", "Mirpur-2", "Pallabi"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&mirpur).Error; err != nil {
		return err
	}

	chattogram := hubdomain.Hub{
		ID:            node.Generate(),
		Name:          "Chattogram District Hub",
		Type:          hubdomain.HubTypeDistrict,
		Capacity:      4000,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Pahartali", "Agrabad", "Halishahar"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return tx.WithContext(ctx).Create(&chattogram).Error
}
