package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeMerchantWallet Type = "Merchant Wallet"
	TypeCODSettlement  Type = "COD Settlement"
	TypeRiderPayment   Type = "Rider Payment"
	TypeCommission     Type = "Commission"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeMerchantWallet, TypeCODSettlement, TypeRiderPayment, TypeCommission:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Transaction is one append-only financial posting. RefID points at a
// merchant, rider or parcel depending on Type; rows are never mutated.
type Transaction struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Type      Type         `gorm:"type:text;not null;index" json:"type"`
	RefID     string       `gorm:"type:text;not null;index" json:"ref_id"`
	Amount    float64      `gorm:"not null" json:"amount"`
	Direction Direction    `gorm:"type:text;not null" json:"direction"`
	Note      string       `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time    `gorm:"not null;index" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }
