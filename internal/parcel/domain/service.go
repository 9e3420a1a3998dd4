package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateParcelRequest struct {
	MerchantID       string
	CustomerName     string
	CustomerPhone    string
	OriginHubID      string
	DestinationHubID string
	DestinationArea  string
	WeightKg         float64
	DistanceKm       float64
	CODAmount        float64
	ServiceType      ServiceType
}

type AdvanceRequest struct {
	ParcelID     string
	TargetStatus Status
	HubID        string
	Note         string
}

type ListParcelRequest struct {
	pagination.Pagination
	MerchantID string
	HubID      string
	RiderID    string
	Status     string
}

type ListParcelResponse struct {
	pagination.PageInfo
	Parcels []Parcel `json:"parcels"`
}

type ParcelDetail struct {
	Parcel
	Journey []ParcelEvent `json:"journey"`
}

type Service interface {
	Create(ctx context.Context, req CreateParcelRequest) (Parcel, error)
	// Advance applies one legal lifecycle transition and appends the journey
	// event it produced. Re-issuing the same transition is a no-op returning
	// the existing latest event.
	Advance(ctx context.Context, req AdvanceRequest) (ParcelEvent, error)
	GetByID(ctx context.Context, id string) (ParcelDetail, error)
	List(ctx context.Context, req ListParcelRequest) (ListParcelResponse, error)

	// BranchTo moves a parcel into a side branch (On Hold / Disputed) inside
	// tx, recording the status it branched from. Used by the dispute service.
	BranchTo(ctx context.Context, tx *gorm.DB, parcelID snowflake.ID, branch Status, note string, at time.Time) (Parcel, error)
	// Restore returns a branched parcel to its pre-branch status inside tx.
	Restore(ctx context.Context, tx *gorm.DB, parcelID snowflake.ID, note string, at time.Time) (Parcel, error)
}

var (
	ErrNotFound            = errors.New("parcel_not_found")
	ErrIllegalTransition   = errors.New("illegal_transition")
	ErrTerminalState       = errors.New("terminal_state")
	ErrRiderRequired       = errors.New("rider_required")
	ErrConflict            = errors.New("conflict")
	ErrMerchantNotVerified = errors.New("merchant_not_verified")
	ErrInvalidID           = errors.New("invalid_parcel_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidWeight       = errors.New("invalid_weight")
	ErrInvalidDistance     = errors.New("invalid_distance")
	ErrInvalidCOD          = errors.New("invalid_cod_amount")
	ErrInvalidServiceType  = errors.New("invalid_service_type")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidRoute        = errors.New("invalid_route")
)
