package migration

import (
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/config"
	disputedomain "github.com/parcelflow/parcelflow/internal/dispute/domain"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	merchantdomain "github.com/parcelflow/parcelflow/internal/merchant/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	pricingdomain "github.com/parcelflow/parcelflow/internal/pricing/domain"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
	"github.com/parcelflow/parcelflow/internal/seed"
	transactiondomain "github.com/parcelflow/parcelflow/internal/transaction/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite/mysql installs rely on the model schema directly.
			if err := conn.AutoMigrate(
				&hubdomain.Hub{},
				&riderdomain.Rider{},
				&merchantdomain.Merchant{},
				&pricingdomain.PricingConfig{},
				&parceldomain.Parcel{},
				&parceldomain.ParcelEvent{},
				&disputedomain.Dispute{},
				&transactiondomain.Transaction{},
				&auditdomain.AuditLog{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDefaults {
			return seed.EnsureDefaults(conn)
		}
		return nil
	}),
)
