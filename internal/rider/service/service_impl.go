package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	"github.com/parcelflow/parcelflow/internal/rider/domain"
	"github.com/parcelflow/parcelflow/pkg/db/option"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
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
		log:      p.Log.Named("rider.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRiderRequest) (domain.Rider, error) {
	rider, err := s.upsert(ctx, req)
	action := "rider.create"
	if strings.TrimSpace(req.ID) != "" {
		action = "rider.update"
	}
	s.auditSvc.Record(ctx, action, "rider", rider.ID.String(), err, map[string]any{
		"name":   req.Name,
		"hub_id": req.HubID,
	})
	return rider, err
}

func (s *Service) upsert(ctx context.Context, req domain.UpsertRiderRequest) (domain.Rider, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Rider{}, domain.ErrInvalidName
	}
	hubID, err := snowflake.ParseString(strings.TrimSpace(req.HubID))
	if err != nil || hubID == 0 {
		return domain.Rider{}, domain.ErrInvalidHub
	}

	status := req.Status
	if status == "" {
		status = domain.RiderStatusAvailable
	}
	if !status.IsValid() {
		return domain.Rider{}, domain.ErrInvalidStatus
	}

	var result domain.Rider
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hub hubdomain.Hub
		if err := tx.WithContext(ctx).Where("id = ?", hubID).First(&hub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrInvalidHub
			}
			return err
		}

		now := s.clock.Now()
		if strings.TrimSpace(req.ID) == "" {
			result = domain.Rider{
				ID:        s.genID.Generate(),
				Name:      name,
				HubID:     hubID,
				Area:      strings.TrimSpace(req.Area),
				Phone:     strings.TrimSpace(req.Phone),
				Status:    status,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return tx.Create(&result).Error
		}

		id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
		if err != nil || id == 0 {
			return domain.ErrInvalidID
		}
		existing, err := findRider(ctx, tx, id)
		if err != nil {
			return err
		}

		existing.Name = name
		existing.HubID = hubID
		existing.Area = strings.TrimSpace(req.Area)
		existing.Phone = strings.TrimSpace(req.Phone)
		existing.Status = status
		existing.UpdatedAt = now
		result = *existing
		return tx.Save(existing).Error
	})
	if err != nil {
		return domain.Rider{}, err
	}
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Rider, error) {
	riderID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || riderID == 0 {
		return domain.Rider{}, domain.ErrInvalidID
	}
	rider, err := findRider(ctx, s.db, riderID)
	if err != nil {
		return domain.Rider{}, err
	}
	return *rider, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRiderRequest) (domain.ListRiderResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var riders []*domain.Rider
	stmt := s.db.WithContext(ctx).Model(&domain.Rider{})
	if req.HubID != "" {
		stmt = stmt.Where("hub_id = ?", req.HubID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	stmt = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	}).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&riders).Error; err != nil {
		return domain.ListRiderResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(riders, int32(pageSize), func(rider *domain.Rider) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        rider.ID.String(),
			CreatedAt: rider.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(riders) > pageSize {
		riders = riders[:pageSize]
	}

	out := make([]domain.Rider, 0, len(riders))
	for _, rider := range riders {
		out = append(out, *rider)
	}
	resp := domain.ListRiderResponse{Riders: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Suspend(ctx context.Context, id string) error {
	err := s.suspend(ctx, id)
	s.auditSvc.Record(ctx, "rider.suspend", "rider", strings.TrimSpace(id), err, nil)
	return err
}

func (s *Service) suspend(ctx context.Context, id string) error {
	riderID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || riderID == 0 {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rider, err := findRider(ctx, tx, riderID)
		if err != nil {
			return err
		}

		var inFlight int64
		err = tx.WithContext(ctx).
			Model(&parceldomain.Parcel{}).
			Where("assigned_rider_id = ?", riderID).
			Where("status NOT IN ?", []parceldomain.Status{parceldomain.StatusDelivered, parceldomain.StatusReturned}).
			Count(&inFlight).Error
		if err != nil {
			return err
		}
		if inFlight > 0 {
			return domain.ErrReferentialIntegrity
		}

		rider.Status = domain.RiderStatusSuspended
		rider.UpdatedAt = s.clock.Now()
		return tx.Save(rider).Error
	})
}

func findRider(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Rider, error) {
	var rider domain.Rider
	err := tx.WithContext(ctx).Where("id = ?", id).First(&rider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rider, nil
}
