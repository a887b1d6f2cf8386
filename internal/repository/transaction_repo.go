package repository

import (
	"context"
	"errors"
	"time"

	"investwallet/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound    = errors.New("交易不存在")
	ErrInvalidStateTransition = errors.New("交易状态不允许该流转")
)

// StatusOutcome 状态流转附带的结果数据
type StatusOutcome struct {
	FailureReason string
	PSPData       string
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// GetByPSPReference 按服务商引用号查找，查不到返回 nil（回调场景下不算错误）
func (r *TransactionRepository) GetByPSPReference(ctx context.Context, pspReference string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("psp_reference = ?", pspReference).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// UpdateStatus 状态流转，只允许状态机定义的路径
// 返回值 applied 表示本次调用真正完成了流转；重复投递相同终态返回 (false, nil)。
// 调用方只有在 applied 为 true 时才允许施加对应的余额效果，保证同一余额效果至多应用一次。
//
// 【关键点】流转以条件更新执行：WHERE id = ? AND status = fromStatus。
// 同一条回调被并发投递两次时，只有一个 UPDATE 能命中；
// 没命中的一方回读后发现已处于目标终态，按成功的空操作处理（回调至少一次投递的要求）。
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id, fromStatus, toStatus string, outcome *StatusOutcome) (bool, error) {
	// 重复投递相同终态：成功的空操作
	if fromStatus == toStatus && model.IsTerminalStatus(toStatus) {
		return false, nil
	}

	if !model.CanTransitionTo(fromStatus, toStatus) {
		return false, ErrInvalidStateTransition
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	now := time.Now()
	switch toStatus {
	case model.TransactionStatusCompleted:
		updates["completed_at"] = &now
	case model.TransactionStatusFailed:
		updates["failed_at"] = &now
		if outcome != nil && outcome.FailureReason != "" {
			updates["failure_reason"] = outcome.FailureReason
		}
	}
	if outcome != nil && outcome.PSPData != "" {
		updates["psp_data"] = outcome.PSPData
	}

	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		// 没抢到流转：在同一事务里回读，判断是重复投递还是真正的非法流转
		var current model.Transaction
		if err := tx.WithContext(ctx).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, ErrTransactionNotFound
			}
			return false, err
		}
		if current.Status == toStatus && model.IsTerminalStatus(toStatus) {
			return false, nil
		}
		return false, ErrInvalidStateTransition
	}

	return true, nil
}

// ListByWallet 按钱包查询流水，支持类型过滤和分页
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID, txType string, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("wallet_id = ?", walletID)
	if txType != "" {
		query = query.Where("type = ?", txType)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// GetStaleInFlight 查询长时间未落终态、且已有服务商引用号的交易（轮询补偿用）
func (r *TransactionRepository) GetStaleInFlight(ctx context.Context, beforeTime time.Time, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ? AND psp_reference IS NOT NULL",
			[]string{model.TransactionStatusPending, model.TransactionStatusProcessing},
			beforeTime).
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

// SumInFlightWithdrawals 在途提现金额之和（pending/processing 的提现已扣款但未落终态）
func (r *TransactionRepository) SumInFlightWithdrawals(ctx context.Context, walletID string) (decimal.NullDecimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("SUM(amount)").
		Where("wallet_id = ? AND type = ? AND status IN ?",
			walletID, model.TransactionTypeWithdrawal,
			[]string{model.TransactionStatusPending, model.TransactionStatusProcessing}).
		Scan(&sum).Error
	return sum, err
}

// SumCompletedByWallet 对账校验：completed 流水按方向带符号求和
// （入金/分红/退款为正，提现/投资为负；提现在发起时扣减、失败后补偿，对应流水终态为 failed 不计入）
func (r *TransactionRepository) SumCompletedByWallet(ctx context.Context, walletID string) (decimal.NullDecimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("SUM(CASE WHEN type IN ('deposit','dividend','refund') THEN amount ELSE -amount END)").
		Where("wallet_id = ? AND status = ?", walletID, model.TransactionStatusCompleted).
		Scan(&sum).Error
	return sum, err
}
