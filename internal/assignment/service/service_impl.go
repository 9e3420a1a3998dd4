package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/parcelflow/parcelflow/internal/assignment/domain"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/config"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	"github.com/parcelflow/parcelflow/internal/locker"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockTTL = 5 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	AuditSvc auditdomain.Service
	Locker   *locker.Locker `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	auditSvc auditdomain.Service
	locker   *locker.Locker
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("assignment.service"),
		clock:    p.Clock,
		cfg:      p.Config,
		auditSvc: p.AuditSvc,
		locker:   p.Locker,
	}
}

func (s *Service) AssignRider(ctx context.Context, req domain.AssignRiderRequest) error {
	err := s.assignRider(ctx, req)
	s.auditSvc.Record(ctx, "parcel.assign_rider", "parcel", strings.TrimSpace(req.ParcelID), err, map[string]any{
		"rider_id": req.RiderID,
		"bulk":     req.Bulk,
	})
	return err
}

func (s *Service) assignRider(ctx context.Context, req domain.AssignRiderRequest) error {
	parcelID, err := snowflake.ParseString(strings.TrimSpace(req.ParcelID))
	if err != nil || parcelID == 0 {
		return parceldomain.ErrInvalidID
	}
	riderID, err := snowflake.ParseString(strings.TrimSpace(req.RiderID))
	if err != nil || riderID == 0 {
		return riderdomain.ErrInvalidID
	}

	// Best-effort cross-replica serialization; the conditional update below
	// stays authoritative when the lock is unavailable or contended.
	lockKey := "parcel:assign:" + parcelID.String()
	token, lockErr := s.locker.TryLock(ctx, lockKey, lockTTL)
	if lockErr == nil && token != "" {
		defer func() {
			if err := s.locker.Release(ctx, lockKey, token); err != nil {
				s.log.Warn("failed to release assignment lock", zap.Error(err))
			}
		}()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parcel parceldomain.Parcel
		if err := tx.WithContext(ctx).Where("id = ?", parcelID).First(&parcel).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return parceldomain.ErrNotFound
			}
			return err
		}
		if parcel.Status.Terminal() {
			return parceldomain.ErrTerminalState
		}
		if parcel.AssignedRiderID != nil {
			if *parcel.AssignedRiderID == riderID {
				return nil
			}
			return domain.ErrAlreadyAssigned
		}

		var rider riderdomain.Rider
		if err := tx.WithContext(ctx).Where("id = ?", riderID).First(&rider).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return riderdomain.ErrNotFound
			}
			return err
		}

		capacity := 1
		if req.Bulk {
			capacity = s.cfg.RiderTransitCapacity
		}
		// Pre-check only; the guarded increment below is what holds the
		// capacity ceiling under concurrency.
		switch rider.Status {
		case riderdomain.RiderStatusAvailable:
			// Eligible.
		case riderdomain.RiderStatusOnDelivery:
			if rider.ActiveParcels >= capacity {
				return domain.ErrRiderUnavailable
			}
		default:
			return domain.ErrRiderUnavailable
		}
		if rider.HubID != parcel.CurrentHubID {
			return domain.ErrHubMismatch
		}

		now := s.clock.Now()

		// Exclusive claim: of two concurrent assignments exactly one row
		// update succeeds, the loser observes the parcel already taken.
		res := tx.WithContext(ctx).
			Model(&parceldomain.Parcel{}).
			Where("id = ? AND assigned_rider_id IS NULL AND version = ?", parcelID, parcel.Version).
			Updates(map[string]any{
				"assigned_rider_id": riderID,
				"version":           parcel.Version + 1,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current parceldomain.Parcel
			if err := tx.WithContext(ctx).Where("id = ?", parcelID).First(&current).Error; err != nil {
				return err
			}
			if current.AssignedRiderID != nil {
				return domain.ErrAlreadyAssigned
			}
			return parceldomain.ErrConflict
		}

		// The counter is shared across parcels, so the increment must carry
		// its own guard: a stale read of active_parcels cannot be written
		// back as an absolute value. A failed guard rolls the claim back.
		res = tx.WithContext(ctx).
			Model(&riderdomain.Rider{}).
			Where("id = ? AND status <> ? AND active_parcels < ?",
				riderID, riderdomain.RiderStatusSuspended, capacity).
			Updates(map[string]any{
				"active_parcels": gorm.Expr("active_parcels + 1"),
				"status":         riderdomain.RiderStatusOnDelivery,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrRiderUnavailable
		}
		return nil
	})
}

func (s *Service) Unassign(ctx context.Context, id string) error {
	err := s.unassign(ctx, id)
	s.auditSvc.Record(ctx, "parcel.unassign_rider", "parcel", strings.TrimSpace(id), err, nil)
	return err
}

func (s *Service) unassign(ctx context.Context, id string) error {
	parcelID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parcelID == 0 {
		return parceldomain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parcel parceldomain.Parcel
		if err := tx.WithContext(ctx).Where("id = ?", parcelID).First(&parcel).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return parceldomain.ErrNotFound
			}
			return err
		}
		if parcel.AssignedRiderID == nil {
			return domain.ErrNotAssigned
		}
		riderID := *parcel.AssignedRiderID

		now := s.clock.Now()
		res := tx.WithContext(ctx).
			Model(&parceldomain.Parcel{}).
			Where("id = ? AND version = ?", parcelID, parcel.Version).
			Updates(map[string]any{
				"assigned_rider_id": nil,
				"version":           parcel.Version + 1,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return parceldomain.ErrConflict
		}

		err := tx.WithContext(ctx).
			Model(&riderdomain.Rider{}).
			Where("id = ? AND active_parcels > 0", riderID).
			Updates(map[string]any{
				"active_parcels": gorm.Expr("active_parcels - 1"),
				"updated_at":     now,
			}).Error
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&riderdomain.Rider{}).
			Where("id = ? AND active_parcels = 0 AND status = ?",
				riderID, riderdomain.RiderStatusOnDelivery).
			Updates(map[string]any{
				"status":     riderdomain.RiderStatusAvailable,
				"updated_at": now,
			}).Error
	})
}

func (s *Service) ResolveNextHop(ctx context.Context, id string) (snowflake.ID, error) {
	parcelID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parcelID == 0 {
		return 0, parceldomain.ErrInvalidID
	}

	var parcel parceldomain.Parcel
	if err := s.db.WithContext(ctx).Where("id = ?", parcelID).First(&parcel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, parceldomain.ErrNotFound
		}
		return 0, err
	}

	var current hubdomain.Hub
	if err := s.db.WithContext(ctx).Where("id = ?", parcel.CurrentHubID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrNoRoute
		}
		return 0, err
	}

	// Already at a hub covering the destination: no further hop.
	if current.Covers(parcel.DestinationArea) {
		return current.ID, nil
	}

	if current.Type == hubdomain.HubTypeArea {
		if current.ParentHubID == nil {
			return 0, domain.ErrNoRoute
		}
		return *current.ParentHubID, nil
	}

	destArea, destDistrict, err := s.findDestinationHubs(ctx, parcel.DestinationArea)
	if err != nil {
		return 0, err
	}

	switch {
	case destArea != nil && destArea.ParentHubID != nil && *destArea.ParentHubID == current.ID:
		// Destination area hub hangs off this district.
		return destArea.ID, nil
	case destArea != nil && destArea.ParentHubID != nil:
		// Inter-district: route to the destination's district first.
		return *destArea.ParentHubID, nil
	case destDistrict != nil:
		return destDistrict.ID, nil
	default:
		return 0, domain.ErrNoRoute
	}
}

// findDestinationHubs scans active hubs for coverage of area, preferring an
// area hub over a district hub.
func (s *Service) findDestinationHubs(ctx context.Context, area string) (*hubdomain.Hub, *hubdomain.Hub, error) {
	var hubs []hubdomain.Hub
	err := s.db.WithContext(ctx).
		Where("status = ?", hubdomain.HubStatusActive).
		Find(&hubs).Error
	if err != nil {
		return nil, nil, err
	}

	var areaHub, districtHub *hubdomain.Hub
	for i := range hubs {
		if !hubs[i].Covers(area) {
			continue
		}
		switch hubs[i].Type {
		case hubdomain.HubTypeArea:
			if areaHub == nil {
				areaHub = &hubs[i]
			}
		case hubdomain.HubTypeDistrict:
			if districtHub == nil {
				districtHub = &hubs[i]
			}
		}
	}
	return areaHub, districtHub, nil
}
