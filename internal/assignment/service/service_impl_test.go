package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/parcelflow/parcelflow/internal/assignment/domain"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	auditrepository "github.com/parcelflow/parcelflow/internal/audit/repository"
	auditservice "github.com/parcelflow/parcelflow/internal/audit/service"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/config"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
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
	district hubdomain.Hub
	area     hubdomain.Hub
}

func setupAssignmentService(t *testing.T) *fixture {
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
		&parceldomain.Parcel{},
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
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    fake,
		Config:   config.Config{RiderTransitCapacity: 5},
		AuditSvc: auditSvc,
	})

	f := &fixture{svc: svc, db: db, node: node, clock: fake}

	f.district = hubdomain.Hub{
		ID:            node.Generate(),
		Name:          "Dhaka District Hub",
		Type:          hubdomain.HubTypeDistrict,
		Capacity:      5000,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Gulshan", "Banani"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     fake.Now(),
		UpdatedAt:     fake.Now(),
	}
	require.NoError(t, db.Create(&f.district).Error)

	f.area = hubdomain.Hub{
		ID:            node.Generate(),
		Name:          "Mirpur Area Hub",
		Type:          hubdomain.HubTypeArea,
		ParentHubID:   &f.district.ID,
		Capacity:      1200,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Mirpur-1", "Pallabi"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     fake.Now(),
		UpdatedAt:     fake.Now(),
	}
	require.NoError(t, db.Create(&f.area).Error)

	return f
}

func (f *fixture) newRider(t *testing.T, hubID snowflake.ID, status riderdomain.RiderStatus, active int) riderdomain.Rider {
	t.Helper()
	rider := riderdomain.Rider{
		ID:            f.node.Generate(),
		Name:          "Karim",
		HubID:         hubID,
		Status:        status,
		ActiveParcels: active,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&rider).Error)
	return rider
}

func (f *fixture) newParcel(t *testing.T, currentHub snowflake.ID, status parceldomain.Status) parceldomain.Parcel {
	t.Helper()
	parcel := parceldomain.Parcel{
		ID:               f.node.Generate(),
		MerchantID:       f.node.Generate(),
		CustomerName:     "Nusrat Jahan",
		CustomerPhone:    "01711000000",
		OriginHubID:      f.district.ID,
		DestinationHubID: f.area.ID,
		DestinationArea:  "Mirpur-1",
		CurrentHubID:     currentHub,
		WeightKg:         1,
		ServiceType:      parceldomain.ServiceTypeRegular,
		Status:           status,
		Version:          1,
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&parcel).Error)
	return parcel
}

func (f *fixture) reloadParcel(t *testing.T, id snowflake.ID) parceldomain.Parcel {
	t.Helper()
	var parcel parceldomain.Parcel
	require.NoError(t, f.db.Where("id = ?", id).First(&parcel).Error)
	return parcel
}

func (f *fixture) reloadRider(t *testing.T, id snowflake.ID) riderdomain.Rider {
	t.Helper()
	var rider riderdomain.Rider
	require.NoError(t, f.db.Where("id = ?", id).First(&rider).Error)
	return rider
}

func TestAssignRiderClaimsParcel(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusRequested)

	require.NoError(t, f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  rider.ID.String(),
	}))

	got := f.reloadParcel(t, parcel.ID)
	require.NotNil(t, got.AssignedRiderID)
	require.Equal(t, rider.ID, *got.AssignedRiderID)
	require.EqualValues(t, 2, got.Version)

	gotRider := f.reloadRider(t, rider.ID)
	require.Equal(t, riderdomain.RiderStatusOnDelivery, gotRider.Status)
	require.Equal(t, 1, gotRider.ActiveParcels)
}

func TestAssignRiderHubMismatch(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.area.ID, riderdomain.RiderStatusAvailable, 0)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusRequested)

	err := f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  rider.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrHubMismatch)
	require.Nil(t, f.reloadParcel(t, parcel.ID).AssignedRiderID)
}

func TestAssignRiderExclusive(t *testing.T) {
	f := setupAssignmentService(t)
	first := f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)
	second := f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusRequested)

	require.NoError(t, f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  first.ID.String(),
	}))

	err := f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  second.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)

	// Re-assigning the winning rider is a no-op.
	require.NoError(t, f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  first.ID.String(),
	}))
	require.Equal(t, 1, f.reloadRider(t, first.ID).ActiveParcels)
}

func TestAssignRiderConcurrentSingleWinner(t *testing.T) {
	f := setupAssignmentService(t)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusRequested)

	const contenders = 4
	riders := make([]riderdomain.Rider, contenders)
	for i := range riders {
		riders[i] = f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
				ParcelID: parcel.ID.String(),
				RiderID:  riders[i].ID.String(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		if err != domain.ErrAlreadyAssigned && err != parceldomain.ErrConflict {
			t.Fatalf("unexpected assignment error: %v", err)
		}
	}
	require.Equal(t, 1, wins)

	got := f.reloadParcel(t, parcel.ID)
	require.NotNil(t, got.AssignedRiderID)

	totalActive := 0
	for _, rider := range riders {
		totalActive += f.reloadRider(t, rider.ID).ActiveParcels
	}
	require.Equal(t, 1, totalActive)
}

func TestAssignRiderCapacityHoldsAcrossParcels(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)
	parcels := []parceldomain.Parcel{
		f.newParcel(t, f.district.ID, parceldomain.StatusRequested),
		f.newParcel(t, f.district.ID, parceldomain.StatusRequested),
	}

	// Two parcels race for the same rider; pickup capacity is one, so the
	// counter must end at exactly one regardless of interleaving.
	var wg sync.WaitGroup
	errs := make([]error, len(parcels))
	for i := range parcels {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
				ParcelID: parcels[i].ID.String(),
				RiderID:  rider.ID.String(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, domain.ErrRiderUnavailable)
	}
	require.Equal(t, 1, wins)

	got := f.reloadRider(t, rider.ID)
	require.Equal(t, 1, got.ActiveParcels)
	require.Equal(t, riderdomain.RiderStatusOnDelivery, got.Status)

	assigned := 0
	for _, parcel := range parcels {
		if f.reloadParcel(t, parcel.ID).AssignedRiderID != nil {
			assigned++
		}
	}
	require.Equal(t, 1, assigned)
}

func TestBulkAssignCounterAccumulatesConcurrently(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)

	const parcels = 3
	var wg sync.WaitGroup
	errs := make([]error, parcels)
	for i := 0; i < parcels; i++ {
		parcel := f.newParcel(t, f.district.ID, parceldomain.StatusAtDistrictHub)
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
				ParcelID: id,
				RiderID:  rider.ID.String(),
				Bulk:     true,
			})
		}(i, parcel.ID.String())
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, parcels, f.reloadRider(t, rider.ID).ActiveParcels)
}

func TestAssignRiderPickupCapacityIsOne(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusOnDelivery, 1)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusRequested)

	err := f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  rider.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrRiderUnavailable)
}

func TestAssignRiderBulkTransitCapacity(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusOnDelivery, 1)

	for i := 0; i < 4; i++ {
		parcel := f.newParcel(t, f.district.ID, parceldomain.StatusAtDistrictHub)
		require.NoError(t, f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
			ParcelID: parcel.ID.String(),
			RiderID:  rider.ID.String(),
			Bulk:     true,
		}))
	}
	require.Equal(t, 5, f.reloadRider(t, rider.ID).ActiveParcels)

	over := f.newParcel(t, f.district.ID, parceldomain.StatusAtDistrictHub)
	err := f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: over.ID.String(),
		RiderID:  rider.ID.String(),
		Bulk:     true,
	})
	require.ErrorIs(t, err, domain.ErrRiderUnavailable)
}

func TestAssignRiderSuspended(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusSuspended, 0)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusRequested)

	err := f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  rider.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrRiderUnavailable)
}

func TestAssignRiderTerminalParcel(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusDelivered)

	err := f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  rider.ID.String(),
	})
	require.ErrorIs(t, err, parceldomain.ErrTerminalState)
}

func TestUnassignReleasesRider(t *testing.T) {
	f := setupAssignmentService(t)
	rider := f.newRider(t, f.district.ID, riderdomain.RiderStatusAvailable, 0)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusRequested)

	require.NoError(t, f.svc.AssignRider(context.Background(), domain.AssignRiderRequest{
		ParcelID: parcel.ID.String(),
		RiderID:  rider.ID.String(),
	}))
	require.NoError(t, f.svc.Unassign(context.Background(), parcel.ID.String()))

	require.Nil(t, f.reloadParcel(t, parcel.ID).AssignedRiderID)
	gotRider := f.reloadRider(t, rider.ID)
	require.Equal(t, riderdomain.RiderStatusAvailable, gotRider.Status)
	require.Equal(t, 0, gotRider.ActiveParcels)

	err := f.svc.Unassign(context.Background(), parcel.ID.String())
	require.ErrorIs(t, err, domain.ErrNotAssigned)
}

func TestResolveNextHopAreaToParentDistrict(t *testing.T) {
	f := setupAssignmentService(t)
	parcel := f.newParcel(t, f.area.ID, parceldomain.StatusAtAreaHub)
	parcel.DestinationArea = "Banani"
	require.NoError(t, f.db.Save(&parcel).Error)

	next, err := f.svc.ResolveNextHop(context.Background(), parcel.ID.String())
	require.NoError(t, err)
	require.Equal(t, f.district.ID, next)
}

func TestResolveNextHopCurrentHubCoversDestination(t *testing.T) {
	f := setupAssignmentService(t)
	parcel := f.newParcel(t, f.area.ID, parceldomain.StatusAtAreaHub)

	next, err := f.svc.ResolveNextHop(context.Background(), parcel.ID.String())
	require.NoError(t, err)
	require.Equal(t, f.area.ID, next)
}

func TestResolveNextHopDistrictToChildArea(t *testing.T) {
	f := setupAssignmentService(t)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusAtDistrictHub)

	next, err := f.svc.ResolveNextHop(context.Background(), parcel.ID.String())
	require.NoError(t, err)
	require.Equal(t, f.area.ID, next)
}

func TestResolveNextHopInterDistrict(t *testing.T) {
	f := setupAssignmentService(t)

	otherDistrict := hubdomain.Hub{
		ID:            f.node.Generate(),
		Name:          "Chattogram District Hub",
		Type:          hubdomain.HubTypeDistrict,
		Capacity:      4000,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Agrabad"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&otherDistrict).Error)
	otherArea := hubdomain.Hub{
		ID:            f.node.Generate(),
		Name:          "Pahartali Area Hub",
		Type:          hubdomain.HubTypeArea,
		ParentHubID:   &otherDistrict.ID,
		Capacity:      900,
		CoverageAreas: datatypes.NewJSONSlice([]string{"Pahartali"}),
		Status:        hubdomain.HubStatusActive,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&otherArea).Error)

	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusInTransit)
	parcel.DestinationArea = "Pahartali"
	require.NoError(t, f.db.Save(&parcel).Error)

	next, err := f.svc.ResolveNextHop(context.Background(), parcel.ID.String())
	require.NoError(t, err)
	require.Equal(t, otherDistrict.ID, next)
}

func TestResolveNextHopNoRoute(t *testing.T) {
	f := setupAssignmentService(t)
	parcel := f.newParcel(t, f.district.ID, parceldomain.StatusInTransit)
	parcel.DestinationArea = "Nowhere"
	require.NoError(t, f.db.Save(&parcel).Error)

	_, err := f.svc.ResolveNextHop(context.Background(), parcel.ID.String())
	require.ErrorIs(t, err, domain.ErrNoRoute)
}
