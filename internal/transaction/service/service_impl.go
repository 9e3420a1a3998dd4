package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/transaction/domain"
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
		log:      p.Log.Named("transaction.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordTransactionRequest) (domain.Transaction, error) {
	tx, err := s.record(ctx, req)
	s.auditSvc.Record(ctx, "transaction.record", "transaction", tx.ID.String(), err, map[string]any{
		"type":   string(req.Type),
		"ref_id": req.RefID,
	})
	return tx, err
}

func (s *Service) record(ctx context.Context, req domain.RecordTransactionRequest) (domain.Transaction, error) {
	if !req.Type.IsValid() {
		return domain.Transaction{}, domain.ErrInvalidType
	}
	refID := strings.TrimSpace(req.RefID)
	if refID == "" {
		return domain.Transaction{}, domain.ErrInvalidRef
	}
	if req.Amount <= 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if !req.Direction.IsValid() {
		return domain.Transaction{}, domain.ErrInvalidDirection
	}

	record := domain.Transaction{
		ID:        s.genID.Generate(),
		Type:      req.Type,
		RefID:     refID,
		Amount:    req.Amount,
		Direction: req.Direction,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return domain.Transaction{}, err
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTransactionRequest) (domain.ListTransactionResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var records []*domain.Transaction
	stmt := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if req.Type != "" {
		stmt = stmt.Where("type = ?", req.Type)
	}
	if req.RefID != "" {
		stmt = stmt.Where("ref_id = ?", req.RefID)
	}
	stmt = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	}).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&records).Error; err != nil {
		return domain.ListTransactionResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(records, int32(pageSize), func(record *domain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(records) > pageSize {
		records = records[:pageSize]
	}

	out := make([]domain.Transaction, 0, len(records))
	for _, record := range records {
		out = append(out, *record)
	}
	resp := domain.ListTransactionResponse{Transactions: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
