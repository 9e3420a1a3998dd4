package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/dispute/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	"github.com/parcelflow/parcelflow/pkg/db/option"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	ParcelSvc parceldomain.Service
	AuditSvc  auditdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	parcelSvc parceldomain.Service
	auditSvc  auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("dispute.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		parcelSvc: p.ParcelSvc,
		auditSvc:  p.AuditSvc,
	}
}

func (s *Service) Open(ctx context.Context, req domain.OpenDisputeRequest) (domain.Dispute, error) {
	dispute, err := s.open(ctx, req)
	targetID := dispute.ID.String()
	if err != nil {
		// No dispute row exists on failure; the parcel id in the metadata is
		// the useful handle.
		targetID = ""
	}
	s.auditSvc.Record(ctx, "dispute.open", "dispute", targetID, err, map[string]any{
		"parcel_id": req.ParcelID,
	})
	return dispute, err
}

func (s *Service) open(ctx context.Context, req domain.OpenDisputeRequest) (domain.Dispute, error) {
	parcelID, err := snowflake.ParseString(strings.TrimSpace(req.ParcelID))
	if err != nil || parcelID == 0 {
		return domain.Dispute{}, parceldomain.ErrInvalidID
	}
	issue := strings.TrimSpace(req.Issue)
	if issue == "" {
		return domain.Dispute{}, domain.ErrInvalidIssue
	}

	var result domain.Dispute
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.WithContext(ctx).
			Model(&domain.Dispute{}).
			Where("parcel_id = ? AND status = ?", parcelID, domain.DisputeStatusOpen).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.ErrDuplicateOpenDispute
		}

		now := s.clock.Now()
		parcel, err := s.parcelSvc.BranchTo(ctx, tx, parcelID, parceldomain.StatusDisputed, "Dispute opened: "+issue, now)
		if err != nil {
			return err
		}

		prior := parceldomain.StatusRequested
		if parcel.PrevStatus != nil {
			prior = *parcel.PrevStatus
		}
		result = domain.Dispute{
			ID:          s.genID.Generate(),
			ParcelID:    parcelID,
			Status:      domain.DisputeStatusOpen,
			Issue:       issue,
			PriorStatus: prior,
			OpenedAt:    now,
			CreatedAt:   now,
		}
		return tx.WithContext(ctx).Create(&result).Error
	})
	if err != nil {
		return domain.Dispute{}, err
	}
	return result, nil
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveDisputeRequest) error {
	err := s.resolve(ctx, req)
	s.auditSvc.Record(ctx, "dispute.resolve", "dispute", strings.TrimSpace(req.DisputeID), err, nil)
	return err
}

func (s *Service) resolve(ctx context.Context, req domain.ResolveDisputeRequest) error {
	disputeID, err := snowflake.ParseString(strings.TrimSpace(req.DisputeID))
	if err != nil || disputeID == 0 {
		return domain.ErrInvalidID
	}
	resolution := strings.TrimSpace(req.Resolution)
	if resolution == "" {
		return domain.ErrInvalidResolution
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dispute domain.Dispute
		err := tx.WithContext(ctx).Where("id = ?", disputeID).First(&dispute).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if dispute.Status == domain.DisputeStatusResolved {
			return domain.ErrAlreadyResolved
		}

		now := s.clock.Now()
		if _, err := s.parcelSvc.Restore(ctx, tx, dispute.ParcelID, "Dispute resolved: "+resolution, now); err != nil {
			return err
		}

		dispute.Status = domain.DisputeStatusResolved
		dispute.Resolution = resolution
		dispute.ResolvedAt = &now
		return tx.WithContext(ctx).Save(&dispute).Error
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Dispute, error) {
	disputeID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || disputeID == 0 {
		return domain.Dispute{}, domain.ErrInvalidID
	}

	var dispute domain.Dispute
	err = s.db.WithContext(ctx).Where("id = ?", disputeID).First(&dispute).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Dispute{}, domain.ErrNotFound
		}
		return domain.Dispute{}, err
	}
	return dispute, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDisputeRequest) (domain.ListDisputeResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var disputes []*domain.Dispute
	stmt := s.db.WithContext(ctx).Model(&domain.Dispute{})
	if req.ParcelID != "" {
		stmt = stmt.Where("parcel_id = ?", req.ParcelID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	stmt = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	}).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&disputes).Error; err != nil {
		return domain.ListDisputeResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(disputes, int32(pageSize), func(dispute *domain.Dispute) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        dispute.ID.String(),
			CreatedAt: dispute.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(disputes) > pageSize {
		disputes = disputes[:pageSize]
	}

	out := make([]domain.Dispute, 0, len(disputes))
	for _, dispute := range disputes {
		out = append(out, *dispute)
	}
	resp := domain.ListDisputeResponse{Disputes: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
