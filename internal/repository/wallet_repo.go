package repository

import (
	"context"
	"errors"

	"investwallet/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound      = errors.New("钱包不存在")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrVersionConflict     = errors.New("并发冲突，请重试")
)

// WalletRepository 钱包账本的唯一入口
// 所有余额变更都必须经过 Deduct / Credit 的条件更新，禁止任何读-改-写路径
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) GetByID(ctx context.Context, walletID string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.WithContext(ctx).Where("id = ?", walletID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 懒创建钱包：首次入金/投资动作时建，之后永不删除
// user_id 唯一索引 + OnConflict DoNothing 保证并发首次请求只会建一条
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID, currency string) (*model.Wallet, error) {
	wallet, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}

	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := &model.Wallet{
		ID:               uuid.NewString(),
		UserID:           userID,
		Balance:          decimal.Zero,
		Currency:         currency,
		PSPAccountStatus: model.PSPAccountStatusPending,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet).Error

	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// Deduct 扣减余额（带乐观锁）
//
// 【关键点】余额检查和扣减在同一条 UPDATE 里完成：
// WHERE 同时带上 balance >= amount 和 version = ?，
// 两个并发扣款不可能都命中同一个版本号，余额也不可能被扣成负数。
// RowsAffected == 0 时在同一事务里回读，区分是余额不足还是版本冲突。
func (r *WalletRepository) Deduct(ctx context.Context, tx *gorm.DB, walletID string, amount decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND balance >= ? AND version = ?", walletID, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 回读必须走同一个 tx：事务内已生效的余额变更对外层连接不可见
		var wallet model.Wallet
		if err := tx.WithContext(ctx).Where("id = ?", walletID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if wallet.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		return ErrVersionConflict
	}

	return nil
}

// Credit 增加余额（入金到账、提现失败补偿、退款）
// 入账不需要余额前置条件，但同样递增版本号，保证和并发扣款串行化
func (r *WalletRepository) Credit(ctx context.Context, tx *gorm.DB, walletID string, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	return nil
}

// BindPSPAccount 绑定托管账户（开户成功后回填账户ID和状态）
func (r *WalletRepository) BindPSPAccount(ctx context.Context, tx *gorm.DB, walletID, accountID, status string) error {
	if tx == nil {
		tx = r.db
	}

	return tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"psp_account_id":     accountID,
			"psp_account_status": status,
		}).Error
}
