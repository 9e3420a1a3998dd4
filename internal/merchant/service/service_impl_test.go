package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	auditrepository "github.com/parcelflow/parcelflow/internal/audit/repository"
	auditservice "github.com/parcelflow/parcelflow/internal/audit/service"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/merchant/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupMerchantService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	require.NoError(t, db.AutoMigrate(
		&domain.Merchant{},
		&parceldomain.Parcel{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 5, 9, 30, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		AuditSvc: auditSvc,
	})
	return svc, db, node
}

func TestUpsertCreatesPendingMerchant(t *testing.T) {
	svc, _, _ := setupMerchantService(t)

	merchant, err := svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     "Shahana Akter",
		ShopName: "Shahana Fashions",
		Phone:    "01611000000",
	})
	require.NoError(t, err)
	require.Equal(t, domain.MerchantStatusPending, merchant.Status)

	got, err := svc.GetByID(context.Background(), merchant.ID.String())
	require.NoError(t, err)
	require.Equal(t, "Shahana Fashions", got.ShopName)
}

func TestUpsertMerchantValidation(t *testing.T) {
	svc, _, _ := setupMerchantService(t)

	_, err := svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     " ",
		ShopName: "Shop",
	})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     "Shahana Akter",
		ShopName: " ",
	})
	require.ErrorIs(t, err, domain.ErrInvalidShopName)

	_, err = svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     "Shahana Akter",
		ShopName: "Shop",
		Status:   "archived",
	})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestVerifyMovesPendingToVerified(t *testing.T) {
	svc, _, _ := setupMerchantService(t)

	merchant, err := svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     "Shahana Akter",
		ShopName: "Shahana Fashions",
	})
	require.NoError(t, err)

	verified, err := svc.Verify(context.Background(), merchant.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.MerchantStatusVerified, verified.Status)
}

func TestSuspendMerchantBlockedByInFlightParcel(t *testing.T) {
	svc, db, node := setupMerchantService(t)

	merchant, err := svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     "Shahana Akter",
		ShopName: "Shahana Fashions",
		Status:   domain.MerchantStatusVerified,
	})
	require.NoError(t, err)

	parcel := parceldomain.Parcel{
		ID:               node.Generate(),
		MerchantID:       merchant.ID,
		CustomerName:     "Nusrat Jahan",
		CustomerPhone:    "01711000000",
		OriginHubID:      node.Generate(),
		DestinationHubID: node.Generate(),
		DestinationArea:  "Gulshan",
		CurrentHubID:     node.Generate(),
		WeightKg:         1,
		ServiceType:      parceldomain.ServiceTypeRegular,
		Status:           parceldomain.StatusInTransit,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	require.NoError(t, db.Create(&parcel).Error)

	err = svc.Suspend(context.Background(), merchant.ID.String())
	require.ErrorIs(t, err, domain.ErrReferentialIntegrity)

	require.NoError(t, db.Model(&parceldomain.Parcel{}).
		Where("id = ?", parcel.ID).
		Update("status", parceldomain.StatusReturned).Error)

	require.NoError(t, svc.Suspend(context.Background(), merchant.ID.String()))
	got, err := svc.GetByID(context.Background(), merchant.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.MerchantStatusSuspended, got.Status)
}

func TestListMerchantsByStatus(t *testing.T) {
	svc, _, _ := setupMerchantService(t)

	_, err := svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     "Shahana Akter",
		ShopName: "Shahana Fashions",
	})
	require.NoError(t, err)
	verified, err := svc.Upsert(context.Background(), domain.UpsertMerchantRequest{
		Name:     "Tanvir Hasan",
		ShopName: "Tanvir Traders",
		Status:   domain.MerchantStatusVerified,
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), domain.ListMerchantRequest{
		Status: string(domain.MerchantStatusVerified),
	})
	require.NoError(t, err)
	require.Len(t, resp.Merchants, 1)
	require.Equal(t, verified.ID, resp.Merchants[0].ID)
}
