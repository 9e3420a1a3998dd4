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
	"github.com/parcelflow/parcelflow/internal/config"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	merchantdomain "github.com/parcelflow/parcelflow/internal/merchant/domain"
	"github.com/parcelflow/parcelflow/internal/parcel/domain"
	pricingdomain "github.com/parcelflow/parcelflow/internal/pricing/domain"
	pricingservice "github.com/parcelflow/parcelflow/internal/pricing/service"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
	transactiondomain "github.com/parcelflow/parcelflow/internal/transaction/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	merchant merchantdomain.Merchant
	origin   hubdomain.Hub
	dest     hubdomain.Hub
	rider    riderdomain.Rider
}

func setupParcelService(t *testing.T) *fixture {
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
		&hubdomain.Hub{},
		&riderdomain.Rider{},
		&merchantdomain.Merchant{},
		&pricingdomain.PricingConfig{},
		&domain.Parcel{},
		&domain.ParcelEvent{},
		&transactiondomain.Transaction{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	pricingSvc := pricingservice.New(pricingservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		AuditSvc: auditSvc,
	})
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Config:     config.Config{RiderTransitCapacity: 5},
		PricingSvc: pricingSvc,
		AuditSvc:   auditSvc,
	})

	f := &fixture{svc: svc, db: db, node: node, clock: fake}

	require.NoError(t, db.Create(&pricingdomain.PricingConfig{
		ID:                   node.Generate(),
		Version:              1,
		BaseFare:             60,
		PerKg:                15,
		PerKm:                2,
		CODPct:               1.0,
		ServiceAreaSurcharge: 20,
		ExpressMultiplier:    1.4,
		Active:               true,
		CreatedAt:            fake.Now(),
	}).Error)

	f.merchant = merchantdomain.Merchant{
		ID:        node.Generate(),
		Name:      "Rahim Traders",
		ShopName:  "Rahim Electronics",
		Status:    merchantdomain.MerchantStatusVerified,
		CreatedAt: fake.Now(),
		UpdatedAt: fake.Now(),
	}
	require.NoError(t, db.Create(&f.merchant).Error)

	f.origin = hubdomain.Hub{
		ID:            node.Generate(),
		Name:          "Dhaka District Hub",
		Type:          hubdomain.HubTypeDistrict,
		Capacity:      5000,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Gulshan", "Banani"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     fake.Now(),
		UpdatedAt:     fake.Now(),
	}
	require.NoError(t, db.Create(&f.origin).Error)

	f.dest = hubdomain.Hub{
		ID:            node.Generate(),
		Name:          "Mirpur Area Hub",
		Type:          hubdomain.HubTypeArea,
		ParentHubID:   &f.origin.ID,
		Capacity:      1200,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Mirpur-1", "Pallabi"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     fake.Now(),
		UpdatedAt:     fake.Now(),
	}
	require.NoError(t, db.Create(&f.dest).Error)

	f.rider = riderdomain.Rider{
		ID:        node.Generate(),
		Name:      "Karim",
		HubID:     f.origin.ID,
		Status:    riderdomain.RiderStatusAvailable,
		CreatedAt: fake.Now(),
		UpdatedAt: fake.Now(),
	}
	require.NoError(t, db.Create(&f.rider).Error)

	return f
}

func (f *fixture) createParcel(t *testing.T, serviceType domain.ServiceType) domain.Parcel {
	t.Helper()
	parcel, err := f.svc.Create(context.Background(), domain.CreateParcelRequest{
		MerchantID:       f.merchant.ID.String(),
		CustomerName:     "Nusrat Jahan",
		CustomerPhone:    "01711000000",
		OriginHubID:      f.origin.ID.String(),
		DestinationHubID: f.dest.ID.String(),
		DestinationArea:  "Mirpur-1",
		WeightKg:         1.2,
		DistanceKm:       260,
		CODAmount:        850,
		ServiceType:      serviceType,
	})
	require.NoError(t, err)
	return parcel
}

// assignRider attaches a rider directly, bypassing the assignment service
// which has its own tests.
func (f *fixture) assignRider(t *testing.T, parcelID snowflake.ID) {
	t.Helper()
	require.NoError(t, f.db.Model(&domain.Parcel{}).
		Where("id = ?", parcelID).
		Update("assigned_rider_id", f.rider.ID).Error)
}

func (f *fixture) advance(t *testing.T, parcelID snowflake.ID, target domain.Status) domain.ParcelEvent {
	t.Helper()
	event, err := f.svc.Advance(context.Background(), domain.AdvanceRequest{
		ParcelID:     parcelID.String(),
		TargetStatus: target,
	})
	require.NoError(t, err)
	return event
}

func (f *fixture) reload(t *testing.T, parcelID snowflake.ID) domain.Parcel {
	t.Helper()
	var parcel domain.Parcel
	require.NoError(t, f.db.Where("id = ?", parcelID).First(&parcel).Error)
	return parcel
}

func TestCreateParcelSnapshotsFare(t *testing.T) {
	f := setupParcelService(t)

	parcel := f.createParcel(t, domain.ServiceTypeRegular)
	require.InDelta(t, 626.5, parcel.Fare, 1e-9)
	require.Equal(t, 1, parcel.PricingVersion)
	require.Equal(t, domain.StatusRequested, parcel.Status)
	require.Equal(t, f.origin.ID, parcel.CurrentHubID)

	express := f.createParcel(t, domain.ServiceTypeExpress)
	require.InDelta(t, 877.1, express.Fare, 1e-9)

	var events []domain.ParcelEvent
	require.NoError(t, f.db.Where("parcel_id = ?", parcel.ID).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, domain.StatusRequested, events[0].Label)
	require.Equal(t, 1, events[0].Seq)
}

func TestCreateParcelRejectsUnverifiedMerchant(t *testing.T) {
	f := setupParcelService(t)

	pending := merchantdomain.Merchant{
		ID:        f.node.Generate(),
		Name:      "New Shop",
		ShopName:  "New Shop",
		Status:    merchantdomain.MerchantStatusPending,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&pending).Error)

	_, err := f.svc.Create(context.Background(), domain.CreateParcelRequest{
		MerchantID:       pending.ID.String(),
		CustomerName:     "Nusrat Jahan",
		CustomerPhone:    "01711000000",
		OriginHubID:      f.origin.ID.String(),
		DestinationHubID: f.dest.ID.String(),
		DestinationArea:  "Mirpur-1",
		WeightKg:         1,
	})
	require.ErrorIs(t, err, domain.ErrMerchantNotVerified)
}

func TestCreateParcelRejectsInactiveHub(t *testing.T) {
	f := setupParcelService(t)

	require.NoError(t, f.db.Model(&hubdomain.Hub{}).
		Where("id = ?", f.dest.ID).
		Update("status", hubdomain.HubStatusInactive).Error)

	_, err := f.svc.Create(context.Background(), domain.CreateParcelRequest{
		MerchantID:       f.merchant.ID.String(),
		CustomerName:     "Nusrat Jahan",
		CustomerPhone:    "01711000000",
		OriginHubID:      f.origin.ID.String(),
		DestinationHubID: f.dest.ID.String(),
		DestinationArea:  "Mirpur-1",
		WeightKg:         1,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRoute)
}

func TestAdvanceRejectsSkippedStatus(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)

	_, err := f.svc.Advance(context.Background(), domain.AdvanceRequest{
		ParcelID:     parcel.ID.String(),
		TargetStatus: domain.StatusDelivered,
	})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	require.Equal(t, domain.StatusRequested, f.reload(t, parcel.ID).Status)
}

func TestAdvanceRequiresRiderForPickup(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)

	_, err := f.svc.Advance(context.Background(), domain.AdvanceRequest{
		ParcelID:     parcel.ID.String(),
		TargetStatus: domain.StatusPickingUp,
	})
	require.ErrorIs(t, err, domain.ErrRiderRequired)

	f.assignRider(t, parcel.ID)
	f.advance(t, parcel.ID, domain.StatusPickingUp)
	require.Equal(t, domain.StatusPickingUp, f.reload(t, parcel.ID).Status)
}

func TestFullJourneyKeepsEventLogConsistent(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)
	f.assignRider(t, parcel.ID)

	path := []domain.Status{
		domain.StatusPickingUp,
		domain.StatusPickedUp,
		domain.StatusAtAreaHub,
		domain.StatusInTransit,
		domain.StatusAtDistrictHub,
		domain.StatusOutForDelivery,
		domain.StatusDelivered,
	}
	for _, target := range path {
		f.clock.Advance(5 * time.Minute)
		if target == domain.StatusInTransit || target == domain.StatusOutForDelivery {
			f.assignRider(t, parcel.ID)
		}
		event := f.advance(t, parcel.ID, target)
		require.Equal(t, target, event.Label)
	}

	var events []domain.ParcelEvent
	require.NoError(t, f.db.Where("parcel_id = ?", parcel.ID).Order("seq asc").Find(&events).Error)
	require.Len(t, events, len(path)+1)
	for i, event := range events {
		require.Equal(t, i+1, event.Seq)
		if i > 0 {
			require.False(t, event.OccurredAt.Before(events[i-1].OccurredAt))
		}
	}

	final := f.reload(t, parcel.ID)
	require.Equal(t, domain.StatusDelivered, final.Status)
	require.Equal(t, events[len(events)-1].Label, final.Status)
	require.Nil(t, final.AssignedRiderID)
}

func TestAdvanceIdempotentOnRetry(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)
	f.assignRider(t, parcel.ID)

	first := f.advance(t, parcel.ID, domain.StatusPickingUp)
	second := f.advance(t, parcel.ID, domain.StatusPickingUp)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Seq, second.Seq)

	var count int64
	require.NoError(t, f.db.Model(&domain.ParcelEvent{}).
		Where("parcel_id = ?", parcel.ID).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestDeliveredParcelIsImmutable(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)
	f.assignRider(t, parcel.ID)
	for _, target := range []domain.Status{
		domain.StatusPickingUp, domain.StatusPickedUp, domain.StatusAtAreaHub,
	} {
		f.advance(t, parcel.ID, target)
	}
	f.assignRider(t, parcel.ID)
	for _, target := range []domain.Status{
		domain.StatusInTransit, domain.StatusAtDistrictHub,
	} {
		f.advance(t, parcel.ID, target)
	}
	f.assignRider(t, parcel.ID)
	f.advance(t, parcel.ID, domain.StatusOutForDelivery)
	f.advance(t, parcel.ID, domain.StatusDelivered)

	_, err := f.svc.Advance(context.Background(), domain.AdvanceRequest{
		ParcelID:     parcel.ID.String(),
		TargetStatus: domain.StatusReturned,
	})
	require.ErrorIs(t, err, domain.ErrTerminalState)
}

func TestDeliveryRecordsCODSettlementOnce(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)
	f.assignRider(t, parcel.ID)
	for _, target := range []domain.Status{
		domain.StatusPickingUp, domain.StatusPickedUp, domain.StatusAtAreaHub,
	} {
		f.advance(t, parcel.ID, target)
	}
	f.assignRider(t, parcel.ID)
	for _, target := range []domain.Status{
		domain.StatusInTransit, domain.StatusAtDistrictHub,
	} {
		f.advance(t, parcel.ID, target)
	}
	f.assignRider(t, parcel.ID)
	f.advance(t, parcel.ID, domain.StatusOutForDelivery)
	f.advance(t, parcel.ID, domain.StatusDelivered)
	// Retried delivery must not settle twice.
	f.advance(t, parcel.ID, domain.StatusDelivered)

	var settlements []transactiondomain.Transaction
	require.NoError(t, f.db.
		Where("type = ? AND ref_id = ?", transactiondomain.TypeCODSettlement, parcel.ID.String()).
		Find(&settlements).Error)
	require.Len(t, settlements, 1)
	require.InDelta(t, 850, settlements[0].Amount, 1e-9)
	require.Equal(t, transactiondomain.DirectionCredit, settlements[0].Direction)
}

func TestHoldAndResume(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)
	f.assignRider(t, parcel.ID)
	f.advance(t, parcel.ID, domain.StatusPickingUp)
	f.advance(t, parcel.ID, domain.StatusPickedUp)

	f.advance(t, parcel.ID, domain.StatusOnHold)
	held := f.reload(t, parcel.ID)
	require.Equal(t, domain.StatusOnHold, held.Status)
	require.NotNil(t, held.PrevStatus)
	require.Equal(t, domain.StatusPickedUp, *held.PrevStatus)

	// Only the branched-from status or Returned are legal from On Hold.
	_, err := f.svc.Advance(context.Background(), domain.AdvanceRequest{
		ParcelID:     parcel.ID.String(),
		TargetStatus: domain.StatusInTransit,
	})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	f.advance(t, parcel.ID, domain.StatusPickedUp)
	resumed := f.reload(t, parcel.ID)
	require.Equal(t, domain.StatusPickedUp, resumed.Status)
	require.Nil(t, resumed.PrevStatus)
}

func TestAdvanceAuditsFailures(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)

	_, err := f.svc.Advance(context.Background(), domain.AdvanceRequest{
		ParcelID:     parcel.ID.String(),
		TargetStatus: domain.StatusDelivered,
	})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	var entry auditdomain.AuditLog
	require.NoError(t, f.db.
		Where("action = ? AND outcome = ?", "parcel.advance", auditdomain.OutcomeFailure).
		First(&entry).Error)
	require.Equal(t, domain.ErrIllegalTransition.Error(), entry.ErrorKind)
	require.Equal(t, parcel.ID.String(), entry.TargetID)
}

func TestGetByIDReturnsJourney(t *testing.T) {
	f := setupParcelService(t)
	parcel := f.createParcel(t, domain.ServiceTypeRegular)
	f.assignRider(t, parcel.ID)
	f.advance(t, parcel.ID, domain.StatusPickingUp)

	detail, err := f.svc.GetByID(context.Background(), parcel.ID.String())
	require.NoError(t, err)
	require.Len(t, detail.Journey, 2)
	require.Equal(t, detail.Status, detail.Journey[len(detail.Journey)-1].Label)

	_, err = f.svc.GetByID(context.Background(), f.node.Generate().String())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
