package domain

import (
	"context"
	"errors"

	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type UpsertHubRequest struct {
	ID            string
	Name          string
	Type          HubType
	ParentHubID   string
	Capacity      int
	CoverageAreas []string
	Status        HubStatus
}

type ListHubRequest struct {
	pagination.Pagination
	Type        string
	Status      string
	ParentHubID string
}

type ListHubResponse struct {
	pagination.PageInfo
	Hubs []Hub `json:"hubs"`
}

type Service interface {
	// Upsert creates a hub when req.ID is empty, updates it otherwise.
	Upsert(ctx context.Context, req UpsertHubRequest) (Hub, error)
	GetByID(ctx context.Context, id string) (Hub, error)
	List(ctx context.Context, req ListHubRequest) (ListHubResponse, error)
	// Deactivate soft-deletes; it fails while a non-terminal parcel still
	// references the hub.
	Deactivate(ctx context.Context, id string) error
}

var (
	ErrNotFound             = errors.New("hub_not_found")
	ErrInvalidID            = errors.New("invalid_hub_id")
	ErrInvalidName          = errors.New("invalid_hub_name")
	ErrInvalidType          = errors.New("invalid_hub_type")
	ErrInvalidCapacity      = errors.New("invalid_hub_capacity")
	ErrInvalidParent        = errors.New("invalid_parent_hub")
	ErrInvalidCoverage      = errors.New("invalid_coverage_areas")
	ErrReferentialIntegrity = errors.New("referential_integrity")
)
