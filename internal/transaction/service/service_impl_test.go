package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	auditrepository "github.com/parcelflow/parcelflow/internal/audit/repository"
	auditservice "github.com/parcelflow/parcelflow/internal/audit/service"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/transaction/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTransactionService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	require.NoError(t, db.AutoMigrate(
		&domain.Transaction{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 8, 16, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		AuditSvc: auditSvc,
	})
	return svc, fake
}

func TestRecordTransaction(t *testing.T) {
	svc, fake := setupTransactionService(t)

	tx, err := svc.Record(context.Background(), domain.RecordTransactionRequest{
		Type:      domain.TypeRiderPayment,
		RefID:     "rider-42",
		Amount:    350,
		Direction: domain.DirectionDebit,
		Note:      "  Weekly payout  ",
	})
	require.NoError(t, err)
	require.Equal(t, "Weekly payout", tx.Note)
	require.Equal(t, fake.Now(), tx.CreatedAt)
}

func TestRecordTransactionValidation(t *testing.T) {
	svc, _ := setupTransactionService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, domain.RecordTransactionRequest{
		Type:      "Refund",
		RefID:     "m-1",
		Amount:    10,
		Direction: domain.DirectionCredit,
	})
	require.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.Record(ctx, domain.RecordTransactionRequest{
		Type:      domain.TypeCommission,
		RefID:     "  ",
		Amount:    10,
		Direction: domain.DirectionCredit,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRef)

	_, err = svc.Record(ctx, domain.RecordTransactionRequest{
		Type:      domain.TypeCommission,
		RefID:     "m-1",
		Amount:    0,
		Direction: domain.DirectionCredit,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Record(ctx, domain.RecordTransactionRequest{
		Type:      domain.TypeCommission,
		RefID:     "m-1",
		Amount:    10,
		Direction: "sideways",
	})
	require.ErrorIs(t, err, domain.ErrInvalidDirection)
}

func TestListTransactionsByTypeAndRef(t *testing.T) {
	svc, fake := setupTransactionService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, domain.RecordTransactionRequest{
		Type:      domain.TypeCODSettlement,
		RefID:     "parcel-1",
		Amount:    850,
		Direction: domain.DirectionCredit,
	})
	require.NoError(t, err)
	fake.Advance(time.Minute)
	_, err = svc.Record(ctx, domain.RecordTransactionRequest{
		Type:      domain.TypeCommission,
		RefID:     "merchant-1",
		Amount:    42.5,
		Direction: domain.DirectionDebit,
	})
	require.NoError(t, err)

	resp, err := svc.List(ctx, domain.ListTransactionRequest{Type: string(domain.TypeCODSettlement)})
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 1)
	require.Equal(t, "parcel-1", resp.Transactions[0].RefID)

	resp, err = svc.List(ctx, domain.ListTransactionRequest{RefID: "merchant-1"})
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 1)
	require.Equal(t, domain.TypeCommission, resp.Transactions[0].Type)
}
