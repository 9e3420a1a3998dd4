package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/parcelflow/parcelflow/internal/actorcontext"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/config"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	merchantdomain "github.com/parcelflow/parcelflow/internal/merchant/domain"
	"github.com/parcelflow/parcelflow/internal/parcel/domain"
	pricingdomain "github.com/parcelflow/parcelflow/internal/pricing/domain"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
	transactiondomain "github.com/parcelflow/parcelflow/internal/transaction/domain"
	"github.com/parcelflow/parcelflow/pkg/db/option"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	PricingSvc pricingdomain.Service
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	pricingSvc pricingdomain.Service
	auditSvc   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("parcel.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Config,
		pricingSvc: p.PricingSvc,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateParcelRequest) (domain.Parcel, error) {
	parcel, err := s.create(ctx, req)
	s.auditSvc.Record(ctx, "parcel.create", "parcel", parcel.ID.String(), err, map[string]any{
		"merchant_id": req.MerchantID,
	})
	return parcel, err
}

func (s *Service) create(ctx context.Context, req domain.CreateParcelRequest) (domain.Parcel, error) {
	merchantID, err := snowflake.ParseString(strings.TrimSpace(req.MerchantID))
	if err != nil || merchantID == 0 {
		return domain.Parcel{}, merchantdomain.ErrInvalidID
	}
	customerName := strings.TrimSpace(req.CustomerName)
	customerPhone := strings.TrimSpace(req.CustomerPhone)
	if customerName == "" || customerPhone == "" {
		return domain.Parcel{}, domain.ErrInvalidCustomer
	}
	if req.WeightKg <= 0 {
		return domain.Parcel{}, domain.ErrInvalidWeight
	}
	if req.DistanceKm < 0 {
		return domain.Parcel{}, domain.ErrInvalidDistance
	}
	if req.CODAmount < 0 {
		return domain.Parcel{}, domain.ErrInvalidCOD
	}
	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = domain.ServiceTypeRegular
	}
	if !serviceType.IsValid() {
		return domain.Parcel{}, domain.ErrInvalidServiceType
	}

	originID, err := snowflake.ParseString(strings.TrimSpace(req.OriginHubID))
	if err != nil || originID == 0 {
		return domain.Parcel{}, domain.ErrInvalidRoute
	}
	destinationID, err := snowflake.ParseString(strings.TrimSpace(req.DestinationHubID))
	if err != nil || destinationID == 0 {
		return domain.Parcel{}, domain.ErrInvalidRoute
	}
	destinationArea := strings.TrimSpace(req.DestinationArea)
	if destinationArea == "" {
		return domain.Parcel{}, domain.ErrInvalidRoute
	}

	var result domain.Parcel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var merchant merchantdomain.Merchant
		if err := tx.WithContext(ctx).Where("id = ?", merchantID).First(&merchant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return merchantdomain.ErrNotFound
			}
			return err
		}
		if merchant.Status != merchantdomain.MerchantStatusVerified {
			return domain.ErrMerchantNotVerified
		}

		for _, hubID := range []snowflake.ID{originID, destinationID} {
			var hub hubdomain.Hub
			if err := tx.WithContext(ctx).Where("id = ? AND status = ?", hubID, hubdomain.HubStatusActive).First(&hub).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrInvalidRoute
				}
				return err
			}
		}

		pricing, err := s.pricingSvc.CurrentTx(ctx, tx)
		if err != nil {
			return err
		}
		fare := pricingdomain.Quote(pricingdomain.QuoteAttributes{
			WeightKg:    req.WeightKg,
			DistanceKm:  req.DistanceKm,
			CODAmount:   req.CODAmount,
			ServiceType: serviceType,
		}, pricing)

		now := s.clock.Now()
		result = domain.Parcel{
			ID:               s.genID.Generate(),
			MerchantID:       merchantID,
			CustomerName:     customerName,
			CustomerPhone:    customerPhone,
			OriginHubID:      originID,
			DestinationHubID: destinationID,
			DestinationArea:  destinationArea,
			CurrentHubID:     originID,
			WeightKg:         req.WeightKg,
			DistanceKm:       req.DistanceKm,
			CODAmount:        req.CODAmount,
			ServiceType:      serviceType,
			Status:           domain.StatusRequested,
			Fare:             fare,
			PricingVersion:   pricing.Version,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}

		_, err = s.appendEvent(ctx, tx, &result, nil, "Parcel requested by merchant", now)
		return err
	})
	if err != nil {
		return domain.Parcel{}, err
	}
	return result, nil
}

func (s *Service) Advance(ctx context.Context, req domain.AdvanceRequest) (domain.ParcelEvent, error) {
	event, err := s.advance(ctx, req)
	s.auditSvc.Record(ctx, "parcel.advance", "parcel", strings.TrimSpace(req.ParcelID), err, map[string]any{
		"target_status": string(req.TargetStatus),
	})
	return event, err
}

func (s *Service) advance(ctx context.Context, req domain.AdvanceRequest) (domain.ParcelEvent, error) {
	parcelID, err := snowflake.ParseString(strings.TrimSpace(req.ParcelID))
	if err != nil || parcelID == 0 {
		return domain.ParcelEvent{}, domain.ErrInvalidID
	}
	target := req.TargetStatus
	if !target.IsValid() {
		return domain.ParcelEvent{}, domain.ErrInvalidStatus
	}

	var eventHubID *snowflake.ID
	if raw := strings.TrimSpace(req.HubID); raw != "" {
		hubID, err := snowflake.ParseString(raw)
		if err != nil || hubID == 0 {
			return domain.ParcelEvent{}, hubdomain.ErrInvalidID
		}
		eventHubID = &hubID
	}

	var result domain.ParcelEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parcel, err := findParcel(ctx, tx, parcelID)
		if err != nil {
			return err
		}

		// At-least-once clients retry; the exact same transition is a no-op
		// returning the latest event.
		if parcel.Status == target {
			latest, err := latestEvent(ctx, tx, parcelID)
			if err != nil {
				return err
			}
			result = *latest
			return nil
		}

		if parcel.Status.Terminal() {
			return domain.ErrTerminalState
		}
		if !domain.CanTransition(parcel.Status, target, parcel.PrevStatus) {
			return domain.ErrIllegalTransition
		}
		if target == domain.StatusPickingUp && parcel.AssignedRiderID == nil {
			return domain.ErrRiderRequired
		}

		now := s.clock.Now()
		switch target {
		case domain.StatusOnHold, domain.StatusDisputed:
			prev := parcel.Status
			parcel.PrevStatus = &prev
		default:
			parcel.PrevStatus = nil
		}
		parcel.Status = target
		if eventHubID != nil {
			parcel.CurrentHubID = *eventHubID
		}

		if releasesRider(target) && parcel.AssignedRiderID != nil {
			if err := s.releaseRider(ctx, tx, *parcel.AssignedRiderID, now); err != nil {
				return err
			}
			parcel.AssignedRiderID = nil
		}

		if target == domain.StatusDelivered && parcel.CODAmount > 0 {
			if err := s.recordCODSettlement(ctx, tx, parcel, now); err != nil {
				return err
			}
		}

		if err := saveParcelVersioned(ctx, tx, parcel, now); err != nil {
			return err
		}

		hubID := eventHubID
		if hubID == nil && parcel.CurrentHubID != 0 {
			current := parcel.CurrentHubID
			hubID = &current
		}
		event, err := s.appendEvent(ctx, tx, parcel, hubID, req.Note, now)
		if err != nil {
			return err
		}
		result = *event
		return nil
	})
	if err != nil {
		return domain.ParcelEvent{}, err
	}
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.ParcelDetail, error) {
	parcelID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parcelID == 0 {
		return domain.ParcelDetail{}, domain.ErrInvalidID
	}

	parcel, err := findParcel(ctx, s.db, parcelID)
	if err != nil {
		return domain.ParcelDetail{}, err
	}

	var journey []domain.ParcelEvent
	err = s.db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("seq asc").
		Find(&journey).Error
	if err != nil {
		return domain.ParcelDetail{}, err
	}

	return domain.ParcelDetail{Parcel: *parcel, Journey: journey}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListParcelRequest) (domain.ListParcelResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var parcels []*domain.Parcel
	stmt := s.db.WithContext(ctx).Model(&domain.Parcel{})
	if req.MerchantID != "" {
		stmt = stmt.Where("merchant_id = ?", req.MerchantID)
	}
	if req.HubID != "" {
		stmt = stmt.Where("current_hub_id = ?", req.HubID)
	}
	if req.RiderID != "" {
		stmt = stmt.Where("assigned_rider_id = ?", req.RiderID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	stmt = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	}).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&parcels).Error; err != nil {
		return domain.ListParcelResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(parcels, int32(pageSize), func(parcel *domain.Parcel) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        parcel.ID.String(),
			CreatedAt: parcel.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(parcels) > pageSize {
		parcels = parcels[:pageSize]
	}

	out := make([]domain.Parcel, 0, len(parcels))
	for _, parcel := range parcels {
		out = append(out, *parcel)
	}
	resp := domain.ListParcelResponse{Parcels: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) BranchTo(ctx context.Context, tx *gorm.DB, parcelID snowflake.ID, branch domain.Status, note string, at time.Time) (domain.Parcel, error) {
	if branch != domain.StatusOnHold && branch != domain.StatusDisputed {
		return domain.Parcel{}, domain.ErrInvalidStatus
	}

	parcel, err := findParcel(ctx, tx, parcelID)
	if err != nil {
		return domain.Parcel{}, err
	}
	if parcel.Status.Terminal() {
		return domain.Parcel{}, domain.ErrTerminalState
	}
	if parcel.Status == branch {
		return *parcel, nil
	}
	if !domain.CanTransition(parcel.Status, branch, parcel.PrevStatus) {
		return domain.Parcel{}, domain.ErrIllegalTransition
	}

	prev := parcel.Status
	parcel.PrevStatus = &prev
	parcel.Status = branch
	if err := saveParcelVersioned(ctx, tx, parcel, at); err != nil {
		return domain.Parcel{}, err
	}
	if _, err := s.appendEvent(ctx, tx, parcel, nil, note, at); err != nil {
		return domain.Parcel{}, err
	}
	return *parcel, nil
}

func (s *Service) Restore(ctx context.Context, tx *gorm.DB, parcelID snowflake.ID, note string, at time.Time) (domain.Parcel, error) {
	parcel, err := findParcel(ctx, tx, parcelID)
	if err != nil {
		return domain.Parcel{}, err
	}
	if parcel.PrevStatus == nil {
		return domain.Parcel{}, domain.ErrIllegalTransition
	}

	parcel.Status = *parcel.PrevStatus
	parcel.PrevStatus = nil
	if err := saveParcelVersioned(ctx, tx, parcel, at); err != nil {
		return domain.Parcel{}, err
	}
	if _, err := s.appendEvent(ctx, tx, parcel, nil, note, at); err != nil {
		return domain.Parcel{}, err
	}
	return *parcel, nil
}

// releasesRider reports whether entering status hands the parcel off the
// assigned rider: hub arrivals and terminal states end the rider's leg.
func releasesRider(status domain.Status) bool {
	switch status {
	case domain.StatusAtAreaHub, domain.StatusAtDistrictHub, domain.StatusDelivered, domain.StatusReturned:
		return true
	default:
		return false
	}
}

func (s *Service) releaseRider(ctx context.Context, tx *gorm.DB, riderID snowflake.ID, at time.Time) error {
	// Guarded relative update: the counter is shared across parcels and must
	// never be written back from a stale read.
	err := tx.WithContext(ctx).
		Model(&riderdomain.Rider{}).
		Where("id = ? AND active_parcels > 0", riderID).
		Updates(map[string]any{
			"active_parcels": gorm.Expr("active_parcels - 1"),
			"updated_at":     at,
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
			"updated_at": at,
		}).Error
}

func (s *Service) recordCODSettlement(ctx context.Context, tx *gorm.DB, parcel *domain.Parcel, at time.Time) error {
	settlement := transactiondomain.Transaction{
		ID:        s.genID.Generate(),
		Type:      transactiondomain.TypeCODSettlement,
		RefID:     parcel.ID.String(),
		Amount:    parcel.CODAmount,
		Direction: transactiondomain.DirectionCredit,
		Note:      "COD collected on delivery",
		CreatedAt: at,
	}
	return tx.WithContext(ctx).Create(&settlement).Error
}

func (s *Service) appendEvent(ctx context.Context, tx *gorm.DB, parcel *domain.Parcel, hubID *snowflake.ID, note string, at time.Time) (*domain.ParcelEvent, error) {
	seq, err := nextSeq(ctx, tx, parcel.ID)
	if err != nil {
		return nil, err
	}

	event := domain.ParcelEvent{
		ID:         s.genID.Generate(),
		ParcelID:   parcel.ID,
		Seq:        seq,
		HubID:      hubID,
		Label:      parcel.Status,
		Note:       strings.TrimSpace(note),
		Actor:      actorcontext.ActorID(ctx),
		OccurredAt: at,
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func nextSeq(ctx context.Context, tx *gorm.DB, parcelID snowflake.ID) (int, error) {
	var maxSeq int
	err := tx.WithContext(ctx).
		Model(&domain.ParcelEvent{}).
		Where("parcel_id = ?", parcelID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

func latestEvent(ctx context.Context, tx *gorm.DB, parcelID snowflake.ID) (*domain.ParcelEvent, error) {
	var event domain.ParcelEvent
	err := tx.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("seq desc").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func findParcel(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Parcel, error) {
	var parcel domain.Parcel
	err := tx.WithContext(ctx).Where("id = ?", id).First(&parcel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &parcel, nil
}

// saveParcelVersioned writes parcel with an optimistic version check. A stale
// version means a concurrent writer won; callers surface conflict and let the
// client retry.
func saveParcelVersioned(ctx context.Context, tx *gorm.DB, parcel *domain.Parcel, at time.Time) error {
	currentVersion := parcel.Version
	parcel.Version++
	parcel.UpdatedAt = at

	res := tx.WithContext(ctx).
		Model(&domain.Parcel{}).
		Where("id = ? AND version = ?", parcel.ID, currentVersion).
		Select("*").
		Updates(parcel)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
