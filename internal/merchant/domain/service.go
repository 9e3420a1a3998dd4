package domain

import (
	"context"
	"errors"

	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type UpsertMerchantRequest struct {
	ID       string
	Name     string
	ShopName string
	Phone    string
	Status   MerchantStatus
}

type ListMerchantRequest struct {
	pagination.Pagination
	Status string
}

type ListMerchantResponse struct {
	pagination.PageInfo
	Merchants []Merchant `json:"merchants"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertMerchantRequest) (Merchant, error)
	GetByID(ctx context.Context, id string) (Merchant, error)
	List(ctx context.Context, req ListMerchantRequest) (ListMerchantResponse, error)
	// Verify flips a pending merchant to Verified (bulk-approve workflow).
	Verify(ctx context.Context, id string) (Merchant, error)
	Suspend(ctx context.Context, id string) error
}

var (
	ErrNotFound             = errors.New("merchant_not_found")
	ErrInvalidID            = errors.New("invalid_merchant_id")
	ErrInvalidName          = errors.New("invalid_merchant_name")
	ErrInvalidShopName      = errors.New("invalid_shop_name")
	ErrInvalidStatus        = errors.New("invalid_merchant_status")
	ErrReferentialIntegrity = errors.New("referential_integrity")
)
