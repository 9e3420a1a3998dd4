package domain

import (
	"context"
	"errors"

	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type RecordTransactionRequest struct {
	Type      Type
	RefID     string
	Amount    float64
	Direction Direction
	Note      string
}

type ListTransactionRequest struct {
	pagination.Pagination
	Type  string
	RefID string
}

type ListTransactionResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	Record(ctx context.Context, req RecordTransactionRequest) (Transaction, error)
	List(ctx context.Context, req ListTransactionRequest) (ListTransactionResponse, error)
}

var (
	ErrInvalidType      = errors.New("invalid_transaction_type")
	ErrInvalidRef       = errors.New("invalid_transaction_ref")
	ErrInvalidAmount    = errors.New("invalid_transaction_amount")
	ErrInvalidDirection = errors.New("invalid_transaction_direction")
)
