package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type AssignRiderRequest struct {
	ParcelID string
	RiderID  string
	// Bulk marks an in-transit bulk assignment, which allows a rider already
	// On Delivery up to the configured transit capacity. Pickup assignment is
	// always capacity 1.
	Bulk bool
}

type Service interface {
	// AssignRider sets the parcel's rider exclusively: of two concurrent
	// calls for the same parcel, exactly one wins.
	AssignRider(ctx context.Context, req AssignRiderRequest) error
	// Unassign detaches the rider and returns the availability it held.
	Unassign(ctx context.Context, parcelID string) error
	// ResolveNextHop computes the next hub on the parcel's route.
	ResolveNextHop(ctx context.Context, parcelID string) (snowflake.ID, error)
}

var (
	ErrRiderUnavailable = errors.New("rider_unavailable")
	ErrHubMismatch      = errors.New("hub_mismatch")
	ErrAlreadyAssigned  = errors.New("already_assigned")
	ErrNotAssigned      = errors.New("not_assigned")
	ErrNoRoute          = errors.New("no_route")
)
