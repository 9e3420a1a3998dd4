package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/merchant/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
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
		log:      p.Log.Named("merchant.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertMerchantRequest) (domain.Merchant, error) {
	merchant, err := s.upsert(ctx, req)
	action := "merchant.create"
	if strings.TrimSpace(req.ID) != "" {
		action = "merchant.update"
	}
	s.auditSvc.Record(ctx, action, "merchant", merchant.ID.String(), err, map[string]any{
		"name":      req.Name,
		"shop_name": req.ShopName,
	})
	return merchant, err
}

func (s *Service) upsert(ctx context.Context, req domain.UpsertMerchantRequest) (domain.Merchant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Merchant{}, domain.ErrInvalidName
	}
	shopName := strings.TrimSpace(req.ShopName)
	if shopName == "" {
		return domain.Merchant{}, domain.ErrInvalidShopName
	}

	status := req.Status
	if status == "" {
		status = domain.MerchantStatusPending
	}
	if !status.IsValid() {
		return domain.Merchant{}, domain.ErrInvalidStatus
	}

	var result domain.Merchant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		if strings.TrimSpace(req.ID) == "" {
			result = domain.Merchant{
				ID:        s.genID.Generate(),
				Name:      name,
				ShopName:  shopName,
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
		existing, err := findMerchant(ctx, tx, id)
		if err != nil {
			return err
		}

		existing.Name = name
		existing.ShopName = shopName
		existing.Phone = strings.TrimSpace(req.Phone)
		existing.Status = status
		existing.UpdatedAt = now
		result = *existing
		return tx.Save(existing).Error
	})
	if err != nil {
		return domain.Merchant{}, err
	}
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Merchant, error) {
	merchantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || merchantID == 0 {
		return domain.Merchant{}, domain.ErrInvalidID
	}
	merchant, err := findMerchant(ctx, s.db, merchantID)
	if err != nil {
		return domain.Merchant{}, err
	}
	return *merchant, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMerchantRequest) (domain.ListMerchantResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var merchants []*domain.Merchant
	stmt := s.db.WithContext(ctx).Model(&domain.Merchant{})
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	stmt = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	}).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&merchants).Error; err != nil {
		return domain.ListMerchantResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(merchants, int32(pageSize), func(merchant *domain.Merchant) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        merchant.ID.String(),
			CreatedAt: merchant.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(merchants) > pageSize {
		merchants = merchants[:pageSize]
	}

	out := make([]domain.Merchant, 0, len(merchants))
	for _, merchant := range merchants {
		out = append(out, *merchant)
	}
	resp := domain.ListMerchantResponse{Merchants: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Verify(ctx context.Context, id string) (domain.Merchant, error) {
	merchant, err := s.setStatus(ctx, id, domain.MerchantStatusVerified, false)
	s.auditSvc.Record(ctx, "merchant.verify", "merchant", strings.TrimSpace(id), err, nil)
	return merchant, err
}

func (s *Service) Suspend(ctx context.Context, id string) error {
	_, err := s.setStatus(ctx, id, domain.MerchantStatusSuspended, true)
	s.auditSvc.Record(ctx, "merchant.suspend", "merchant", strings.TrimSpace(id), err, nil)
	return err
}

func (s *Service) setStatus(ctx context.Context, id string, status domain.MerchantStatus, checkParcels bool) (domain.Merchant, error) {
	merchantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || merchantID == 0 {
		return domain.Merchant{}, domain.ErrInvalidID
	}

	var result domain.Merchant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := findMerchant(ctx, tx, merchantID)
		if err != nil {
			return err
		}

		if checkParcels {
			var inFlight int64
			err = tx.WithContext(ctx).
				Model(&parceldomain.Parcel{}).
				Where("merchant_id = ?", merchantID).
				Where("status NOT IN ?", []parceldomain.Status{parceldomain.StatusDelivered, parceldomain.StatusReturned}).
				Count(&inFlight).Error
			if err != nil {
				return err
			}
			if inFlight > 0 {
				return domain.ErrReferentialIntegrity
			}
		}

		merchant.Status = status
		merchant.UpdatedAt = s.clock.Now()
		result = *merchant
		return tx.Save(merchant).Error
	})
	if err != nil {
		return domain.Merchant{}, err
	}
	return result, nil
}

func findMerchant(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Merchant, error) {
	var merchant domain.Merchant
	err := tx.WithContext(ctx).Where("id = ?", id).First(&merchant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &merchant, nil
}
