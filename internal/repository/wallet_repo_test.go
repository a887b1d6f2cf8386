package repository

import (
	"context"
	"testing"

	"investwallet/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedWallet(t *testing.T, repo *WalletRepository, userID string, balance decimal.Decimal) *model.Wallet {
	t.Helper()

	ctx := context.Background()
	wallet, err := repo.GetOrCreate(ctx, userID, "AED")
	require.NoError(t, err)

	if !balance.IsZero() {
		require.NoError(t, repo.Credit(ctx, nil, wallet.ID, balance))
		wallet, err = repo.GetByID(ctx, wallet.ID)
		require.NoError(t, err)
	}
	return wallet
}

func TestWalletGetOrCreate(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	userID := uuid.NewString()

	// 首次创建：余额为0，托管账户待开
	wallet, err := repo.GetOrCreate(ctx, userID, "AED")
	require.NoError(t, err)
	assert.Equal(t, userID, wallet.UserID)
	assert.True(t, wallet.Balance.IsZero())
	assert.Equal(t, model.PSPAccountStatusPending, wallet.PSPAccountStatus)

	// 再次调用返回同一个钱包
	again, err := repo.GetOrCreate(ctx, userID, "AED")
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)

	var count int64
	db.Model(&model.Wallet{}).Where("user_id = ?", userID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestWalletGetByUserIDNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)

	_, err := repo.GetByUserID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletDeduct(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	wallet := seedWallet(t, repo, uuid.NewString(), decimal.NewFromInt(1000))

	// 正常扣减
	err := repo.Deduct(ctx, nil, wallet.ID, decimal.NewFromInt(300), wallet.Version)
	require.NoError(t, err)

	after, err := repo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(700)), "balance=%s", after.Balance)
	assert.Equal(t, wallet.Version+1, after.Version)
}

func TestWalletDeductInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	wallet := seedWallet(t, repo, uuid.NewString(), decimal.NewFromInt(100))

	// 余额不足：条件更新落空，余额分文未动
	err := repo.Deduct(ctx, nil, wallet.ID, decimal.NewFromInt(500), wallet.Version)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	after, err := repo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(100)))
}

func TestWalletDeductVersionConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	wallet := seedWallet(t, repo, uuid.NewString(), decimal.NewFromInt(1000))

	// 第一次扣减成功，版本号+1
	require.NoError(t, repo.Deduct(ctx, nil, wallet.ID, decimal.NewFromInt(100), wallet.Version))

	// 拿着旧版本号再扣：版本冲突（余额其实够）
	err := repo.Deduct(ctx, nil, wallet.ID, decimal.NewFromInt(100), wallet.Version)
	assert.ErrorIs(t, err, ErrVersionConflict)

	after, err := repo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(900)))
}

func TestWalletDeductClassifiesInsideTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	wallet := seedWallet(t, repo, uuid.NewString(), decimal.NewFromInt(100))

	// RowsAffected == 0 的回读必须看到事务内已生效的扣减，
	// 否则会按事务外的旧余额误判成版本冲突
	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, repo.Deduct(ctx, tx, wallet.ID, decimal.NewFromInt(80), wallet.Version))

		// 事务内余额只剩 20，再扣 50 是余额不足，不是版本冲突
		err := repo.Deduct(ctx, tx, wallet.ID, decimal.NewFromInt(50), wallet.Version+1)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		return nil
	})
	require.NoError(t, err)
}

func TestWalletCredit(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	wallet := seedWallet(t, repo, uuid.NewString(), decimal.Zero)

	require.NoError(t, repo.Credit(ctx, nil, wallet.ID, decimal.NewFromInt(250)))

	after, err := repo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, wallet.Version+1, after.Version)

	// 不存在的钱包入账报错
	err = repo.Credit(ctx, nil, uuid.NewString(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletBindPSPAccount(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	wallet := seedWallet(t, repo, uuid.NewString(), decimal.Zero)

	require.NoError(t, repo.BindPSPAccount(ctx, nil, wallet.ID, "PSPACC123", model.PSPAccountStatusActive))

	after, err := repo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, "PSPACC123", after.PSPAccountID)
	assert.Equal(t, model.PSPAccountStatusActive, after.PSPAccountStatus)
}
