package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/hub/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	"github.com/parcelflow/parcelflow/pkg/db/option"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:      p.Log.Named("hub.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertHubRequest) (domain.Hub, error) {
	hub, err := s.upsert(ctx, req)
	action := "hub.create"
	if strings.TrimSpace(req.ID) != "" {
		action = "hub.update"
	}
	s.auditSvc.Record(ctx, action, "hub", hub.ID.String(), err, map[string]any{
		"name": req.Name,
		"type": string(req.Type),
	})
	return hub, err
}

func (s *Service) upsert(ctx context.Context, req domain.UpsertHubRequest) (domain.Hub, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Hub{}, domain.ErrInvalidName
	}
	if !req.Type.IsValid() {
		return domain.Hub{}, domain.ErrInvalidType
	}
	if req.Capacity <= 0 {
		return domain.Hub{}, domain.ErrInvalidCapacity
	}

	areas := make([]string, 0, len(req.CoverageAreas))
	seen := map[string]bool{}
	for _, area := range req.CoverageAreas {
		area = strings.TrimSpace(area)
		if area == "" || seen[area] {
			continue
		}
		seen[area] = true
		areas = append(areas, area)
	}
	if len(areas) == 0 {
		return domain.Hub{}, domain.ErrInvalidCoverage
	}

	status := req.Status
	if status == "" {
		status = domain.HubStatusActive
	}

	var result domain.Hub
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parentID, err := s.resolveParent(ctx, tx, req)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if strings.TrimSpace(req.ID) == "" {
			result = domain.Hub{
				ID:            s.genID.Generate(),
				Name:          name,
				Type:          req.Type,
				ParentHubID:   parentID,
				Capacity:      req.Capacity,
				CoverageAreas: datatypes.NewJSONSlice(areas),
				Status:        status,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			return tx.Create(&result).Error
		}

		id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
		if err != nil || id == 0 {
			return domain.ErrInvalidID
		}
		existing, err := findHub(ctx, tx, id)
		if err != nil {
			return err
		}

		existing.Name = name
		existing.Type = req.Type
		existing.ParentHubID = parentID
		existing.Capacity = req.Capacity
		existing.CoverageAreas = datatypes.NewJSONSlice(areas)
		existing.Status = status
		existing.UpdatedAt = now
		result = *existing
		return tx.Save(existing).Error
	})
	if err != nil {
		return domain.Hub{}, err
	}
	return result, nil
}

// resolveParent enforces the two-level tree: area hubs point at a district hub,
// district hubs have no parent.
func (s *Service) resolveParent(ctx context.Context, tx *gorm.DB, req domain.UpsertHubRequest) (*snowflake.ID, error) {
	parentRaw := strings.TrimSpace(req.ParentHubID)
	if req.Type == domain.HubTypeDistrict {
		if parentRaw != "" {
			return nil, domain.ErrInvalidParent
		}
		return nil, nil
	}

	if parentRaw == "" {
		return nil, domain.ErrInvalidParent
	}
	parentID, err := snowflake.ParseString(parentRaw)
	if err != nil || parentID == 0 {
		return nil, domain.ErrInvalidParent
	}
	parent, err := findHub(ctx, tx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidParent
		}
		return nil, err
	}
	if parent.Type != domain.HubTypeDistrict {
		return nil, domain.ErrInvalidParent
	}
	return &parentID, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Hub, error) {
	hubID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || hubID == 0 {
		return domain.Hub{}, domain.ErrInvalidID
	}
	hub, err := findHub(ctx, s.db, hubID)
	if err != nil {
		return domain.Hub{}, err
	}
	return *hub, nil
}

func (s *Service) List(ctx context.Context, req domain.ListHubRequest) (domain.ListHubResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var hubs []*domain.Hub
	stmt := s.db.WithContext(ctx).Model(&domain.Hub{})
	if req.Type != "" {
		stmt = stmt.Where("type = ?", req.Type)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.ParentHubID != "" {
		stmt = stmt.Where("parent_hub_id = ?", req.ParentHubID)
	}
	stmt = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	}).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&hubs).Error; err != nil {
		return domain.ListHubResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(hubs, int32(pageSize), func(hub *domain.Hub) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        hub.ID.String(),
			CreatedAt: hub.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(hubs) > pageSize {
		hubs = hubs[:pageSize]
	}

	out := make([]domain.Hub, 0, len(hubs))
	for _, hub := range hubs {
		out = append(out, *hub)
	}
	resp := domain.ListHubResponse{Hubs: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	err := s.deactivate(ctx, id)
	s.auditSvc.Record(ctx, "hub.deactivate", "hub", strings.TrimSpace(id), err, nil)
	return err
}

func (s *Service) deactivate(ctx context.Context, id string) error {
	hubID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || hubID == 0 {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hub, err := findHub(ctx, tx, hubID)
		if err != nil {
			return err
		}

		var inFlight int64
		err = tx.WithContext(ctx).
			Model(&parceldomain.Parcel{}).
			Where("origin_hub_id = ? OR destination_hub_id = ? OR current_hub_id = ?", hubID, hubID, hubID).
			Where("status NOT IN ?", []parceldomain.Status{parceldomain.StatusDelivered, parceldomain.StatusReturned}).
			Count(&inFlight).Error
		if err != nil {
			return err
		}
		if inFlight > 0 {
			return domain.ErrReferentialIntegrity
		}

		hub.Status = domain.HubStatusInactive
		hub.UpdatedAt = s.clock.Now()
		return tx.Save(hub).Error
	})
}

func findHub(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Hub, error) {
	var hub domain.Hub
	err := tx.WithContext(ctx).Where("id = ?", id).First(&hub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &hub, nil
}
