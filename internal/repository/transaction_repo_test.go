package repository

import (
	"context"
	"testing"
	"time"

	"investwallet/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTransaction(t *testing.T, repo *TransactionRepository, walletID, txType, status string, amount decimal.Decimal) *model.Transaction {
	t.Helper()

	pspRef := "PSP-" + uuid.NewString()
	trans := &model.Transaction{
		ID:           uuid.NewString(),
		ReferenceNo:  "TXN-" + uuid.NewString(),
		UserID:       uuid.NewString(),
		WalletID:     walletID,
		Type:         txType,
		Amount:       amount,
		Currency:     "AED",
		Status:       status,
		PSPReference: &pspRef,
	}
	require.NoError(t, repo.Create(context.Background(), nil, trans))
	return trans
}

func TestTransactionUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	trans := seedTransaction(t, repo, uuid.NewString(), model.TransactionTypeDeposit, model.TransactionStatusPending, decimal.NewFromInt(100))

	applied, err := repo.UpdateStatus(ctx, nil, trans.ID, model.TransactionStatusPending, model.TransactionStatusCompleted, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	after, err := repo.GetByID(ctx, trans.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, after.Status)
	assert.NotNil(t, after.CompletedAt)
}

func TestTransactionUpdateStatusDuplicateTerminal(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	trans := seedTransaction(t, repo, uuid.NewString(), model.TransactionTypeDeposit, model.TransactionStatusPending, decimal.NewFromInt(100))

	applied, err := repo.UpdateStatus(ctx, nil, trans.ID, model.TransactionStatusPending, model.TransactionStatusCompleted, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	// 重复投递相同终态：成功的空操作，applied 必须为 false
	applied, err = repo.UpdateStatus(ctx, nil, trans.ID, model.TransactionStatusCompleted, model.TransactionStatusCompleted, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	// 基于过期读（仍以为是 pending）的重复投递同样按空操作吸收
	applied, err = repo.UpdateStatus(ctx, nil, trans.ID, model.TransactionStatusPending, model.TransactionStatusCompleted, nil)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTransactionUpdateStatusClassifiesInsideTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	trans := seedTransaction(t, repo, uuid.NewString(), model.TransactionTypeWithdrawal, model.TransactionStatusProcessing, decimal.NewFromInt(100))

	// RowsAffected == 0 的回读必须走同一个事务：
	// 事务内刚落的终态在事务外还看不见，回读错连接会误判成非法流转
	err := db.Transaction(func(tx *gorm.DB) error {
		applied, err := repo.UpdateStatus(ctx, tx, trans.ID, model.TransactionStatusProcessing, model.TransactionStatusCompleted, nil)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = repo.UpdateStatus(ctx, tx, trans.ID, model.TransactionStatusProcessing, model.TransactionStatusCompleted, nil)
		require.NoError(t, err)
		assert.False(t, applied)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionUpdateStatusIllegal(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	trans := seedTransaction(t, repo, uuid.NewString(), model.TransactionTypeDeposit, model.TransactionStatusPending, decimal.NewFromInt(100))

	applied, err := repo.UpdateStatus(ctx, nil, trans.ID, model.TransactionStatusPending, model.TransactionStatusFailed, &StatusOutcome{FailureReason: "卡被拒"})
	require.NoError(t, err)
	assert.True(t, applied)

	// 终态之间不允许翻转
	_, err = repo.UpdateStatus(ctx, nil, trans.ID, model.TransactionStatusFailed, model.TransactionStatusCompleted, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	after, err := repo.GetByID(ctx, trans.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFailed, after.Status)
	assert.Equal(t, "卡被拒", after.FailureReason)
	assert.NotNil(t, after.FailedAt)
}

func TestTransactionGetByPSPReference(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	trans := seedTransaction(t, repo, uuid.NewString(), model.TransactionTypeWithdrawal, model.TransactionStatusPending, decimal.NewFromInt(50))

	found, err := repo.GetByPSPReference(ctx, *trans.PSPReference)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, trans.ID, found.ID)

	// 未登记的引用号返回 nil，不算错误（回调可能先于落库到达）
	missing, err := repo.GetByPSPReference(ctx, "PSP-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTransactionListByWallet(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	walletID := uuid.NewString()
	seedTransaction(t, repo, walletID, model.TransactionTypeDeposit, model.TransactionStatusCompleted, decimal.NewFromInt(100))
	seedTransaction(t, repo, walletID, model.TransactionTypeWithdrawal, model.TransactionStatusPending, decimal.NewFromInt(30))
	seedTransaction(t, repo, uuid.NewString(), model.TransactionTypeDeposit, model.TransactionStatusCompleted, decimal.NewFromInt(999))

	all, total, err := repo.ListByWallet(ctx, walletID, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	deposits, total, err := repo.ListByWallet(ctx, walletID, model.TransactionTypeDeposit, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, deposits, 1)
	assert.Equal(t, model.TransactionTypeDeposit, deposits[0].Type)
}

func TestTransactionSumCompletedByWallet(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	walletID := uuid.NewString()
	// 入金 +1000，投资 -300，提现 completed -200
	seedTransaction(t, repo, walletID, model.TransactionTypeDeposit, model.TransactionStatusCompleted, decimal.NewFromInt(1000))
	seedTransaction(t, repo, walletID, model.TransactionTypeInvestment, model.TransactionStatusCompleted, decimal.NewFromInt(300))
	seedTransaction(t, repo, walletID, model.TransactionTypeWithdrawal, model.TransactionStatusCompleted, decimal.NewFromInt(200))
	// pending 的入金和 failed 的提现不计入
	seedTransaction(t, repo, walletID, model.TransactionTypeDeposit, model.TransactionStatusPending, decimal.NewFromInt(500))
	seedTransaction(t, repo, walletID, model.TransactionTypeWithdrawal, model.TransactionStatusFailed, decimal.NewFromInt(400))

	sum, err := repo.SumCompletedByWallet(ctx, walletID)
	require.NoError(t, err)
	require.True(t, sum.Valid)
	assert.True(t, sum.Decimal.Equal(decimal.NewFromInt(500)), "sum=%s", sum.Decimal)
}

func TestTransactionSumInFlightWithdrawals(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	walletID := uuid.NewString()
	seedTransaction(t, repo, walletID, model.TransactionTypeWithdrawal, model.TransactionStatusPending, decimal.NewFromInt(100))
	seedTransaction(t, repo, walletID, model.TransactionTypeWithdrawal, model.TransactionStatusProcessing, decimal.NewFromInt(60))
	seedTransaction(t, repo, walletID, model.TransactionTypeWithdrawal, model.TransactionStatusCompleted, decimal.NewFromInt(999))
	seedTransaction(t, repo, walletID, model.TransactionTypeDeposit, model.TransactionStatusPending, decimal.NewFromInt(999))

	sum, err := repo.SumInFlightWithdrawals(ctx, walletID)
	require.NoError(t, err)
	require.True(t, sum.Valid)
	assert.True(t, sum.Decimal.Equal(decimal.NewFromInt(160)), "sum=%s", sum.Decimal)
}

func TestTransactionGetStaleInFlight(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	walletID := uuid.NewString()
	stale := seedTransaction(t, repo, walletID, model.TransactionTypeDeposit, model.TransactionStatusPending, decimal.NewFromInt(100))
	seedTransaction(t, repo, walletID, model.TransactionTypeDeposit, model.TransactionStatusCompleted, decimal.NewFromInt(100))

	// 刚创建的都不算超时
	list, err := repo.GetStaleInFlight(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 把时间推到未来，pending 的那条就会被捞出来
	list, err = repo.GetStaleInFlight(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stale.ID, list[0].ID)
}
