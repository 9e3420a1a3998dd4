package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	"github.com/parcelflow/parcelflow/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("pricing.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Current(ctx context.Context) (domain.PricingConfig, error) {
	return s.CurrentTx(ctx, s.db)
}

func (s *Service) CurrentTx(ctx context.Context, tx *gorm.DB) (domain.PricingConfig, error) {
	var cfg domain.PricingConfig
	err := tx.WithContext(ctx).
		Where("active = ?", true).
		Order("version desc").
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PricingConfig{}, domain.ErrNoActiveConfig
		}
		return domain.PricingConfig{}, err
	}
	return cfg, nil
}

func (s *Service) History(ctx context.Context) ([]domain.PricingConfig, error) {
	var configs []domain.PricingConfig
	err := s.db.WithContext(ctx).
		Order("version desc").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePricingRequest) (domain.PricingConfig, error) {
	cfg, err := s.update(ctx, req)
	s.auditSvc.Record(ctx, "pricing.update", "pricing_config", cfg.ID.String(), err, map[string]any{
		"version": cfg.Version,
	})
	return cfg, err
}

func (s *Service) update(ctx context.Context, req domain.UpdatePricingRequest) (domain.PricingConfig, error) {
	if req.BaseFare < 0 || req.PerKg < 0 || req.PerKm < 0 || req.CODPct < 0 || req.ServiceAreaSurcharge < 0 {
		return domain.PricingConfig{}, domain.ErrInvalidAmount
	}
	if req.ExpressMultiplier < 1 {
		return domain.PricingConfig{}, domain.ErrInvalidMultiplier
	}

	var result domain.PricingConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version := 1
		current, err := s.CurrentTx(ctx, tx)
		switch {
		case err == nil:
			version = current.Version + 1
			if err := tx.Model(&domain.PricingConfig{}).
				Where("id = ?", current.ID).
				Update("active", false).Error; err != nil {
				return err
			}
		case errors.Is(err, domain.ErrNoActiveConfig):
			// First version.
		default:
			return err
		}

		result = domain.PricingConfig{
			ID:                   s.genID.Generate(),
			Version:              version,
			BaseFare:             req.BaseFare,
			PerKg:                req.PerKg,
			PerKm:                req.PerKm,
			CODPct:               req.CODPct,
			ServiceAreaSurcharge: req.ServiceAreaSurcharge,
			ExpressMultiplier:    req.ExpressMultiplier,
			Active:               true,
			CreatedAt:            s.clock.Now(),
		}
		return tx.Create(&result).Error
	})
	if err != nil {
		return domain.PricingConfig{}, err
	}
	return result, nil
}

func (s *Service) QuoteFare(ctx context.Context, attrs domain.QuoteAttributes) (float64, error) {
	if attrs.WeightKg <= 0 || attrs.DistanceKm < 0 || attrs.CODAmount < 0 {
		return 0, domain.ErrInvalidAttributes
	}
	if attrs.ServiceType == "" {
		attrs.ServiceType = parceldomain.ServiceTypeRegular
	}
	if !attrs.ServiceType.IsValid() {
		return 0, domain.ErrInvalidAttributes
	}

	cfg, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}
	return domain.Quote(attrs, cfg), nil
}
