package domain

import (
	"context"
	"errors"

	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type OpenDisputeRequest struct {
	ParcelID string
	Issue    string
}

type ResolveDisputeRequest struct {
	DisputeID  string
	Resolution string
}

type ListDisputeRequest struct {
	pagination.Pagination
	ParcelID string
	Status   string
}

type ListDisputeResponse struct {
	pagination.PageInfo
	Disputes []Dispute `json:"disputes"`
}

type Service interface {
	// Open files a dispute and moves the parcel to Disputed, remembering the
	// status it branched from.
	Open(ctx context.Context, req OpenDisputeRequest) (Dispute, error)
	// Resolve closes the dispute and restores the parcel's prior status.
	Resolve(ctx context.Context, req ResolveDisputeRequest) error
	GetByID(ctx context.Context, id string) (Dispute, error)
	List(ctx context.Context, req ListDisputeRequest) (ListDisputeResponse, error)
}

var (
	ErrNotFound             = errors.New("dispute_not_found")
	ErrInvalidID            = errors.New("invalid_dispute_id")
	ErrInvalidIssue         = errors.New("invalid_dispute_issue")
	ErrInvalidResolution    = errors.New("invalid_dispute_resolution")
	ErrDuplicateOpenDispute = errors.New("duplicate_open_dispute")
	ErrAlreadyResolved      = errors.New("dispute_already_resolved")
)
