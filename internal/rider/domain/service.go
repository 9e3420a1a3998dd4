package domain

import (
	"context"
	"errors"

	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type UpsertRiderRequest struct {
	ID     string
	Name   string
	HubID  string
	Area   string
	Phone  string
	Status RiderStatus
}

type ListRiderRequest struct {
	pagination.Pagination
	HubID  string
	Status string
}

type ListRiderResponse struct {
	pagination.PageInfo
	Riders []Rider `json:"riders"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRiderRequest) (Rider, error)
	GetByID(ctx context.Context, id string) (Rider, error)
	List(ctx context.Context, req ListRiderRequest) (ListRiderResponse, error)
	// Suspend soft-deactivates; it fails while the rider still carries a
	// non-terminal parcel.
	Suspend(ctx context.Context, id string) error
}

var (
	ErrNotFound             = errors.New("rider_not_found")
	ErrInvalidID            = errors.New("invalid_rider_id")
	ErrInvalidName          = errors.New("invalid_rider_name")
	ErrInvalidHub           = errors.New("invalid_rider_hub")
	ErrInvalidStatus        = errors.New("invalid_rider_status")
	ErrReferentialIntegrity = errors.New("referential_integrity")
)
