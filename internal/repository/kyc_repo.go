package repository

import (
	"context"
	"errors"
	"time"

	"investwallet/internal/model"

	"gorm.io/gorm"
)

var (
	ErrKYCAlreadyInProgress = errors.New("身份核验已在进行中或已通过")
	ErrInvalidKYCTransition = errors.New("核验状态不允许该流转")
)

type KYCRepository struct {
	db *gorm.DB
}

func NewKYCRepository(db *gorm.DB) *KYCRepository {
	return &KYCRepository{db: db}
}

// GetByUserID 查不到返回 nil（用户从未发起过核验）
func (r *KYCRepository) GetByUserID(ctx context.Context, userID string) (*model.KYCRecord, error) {
	var record model.KYCRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByReference 按核验机构引用号查找，查不到返回 nil（回调场景下不算错误）
func (r *KYCRepository) GetByReference(ctx context.Context, reference string) (*model.KYCRecord, error) {
	var record model.KYCRecord
	err := r.db.WithContext(ctx).Where("provider_reference = ?", reference).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *KYCRepository) Create(ctx context.Context, record *model.KYCRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Resubmit 重新发起核验（此前被拒绝/过期的记录复用同一行）
func (r *KYCRepository) Resubmit(ctx context.Context, id, status, reference, providerData string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.KYCRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             status,
			"provider_reference": reference,
			"provider_data":      providerData,
			"submitted_at":       &now,
			"approved_at":        nil,
			"rejected_at":        nil,
			"rejection_reason":   "",
		}).Error
}

// AdvanceStatus 核验状态流转，和交易流水同一套幂等规则：
// 条件更新抢流转，没抢到且已处于目标终态按成功的空操作处理。
// applied 为 true 表示本次调用真正完成了流转（调用方据此决定是否发事件）。
func (r *KYCRepository) AdvanceStatus(ctx context.Context, tx *gorm.DB, id, fromStatus, toStatus, reason string) (bool, error) {
	if fromStatus == toStatus && model.IsKYCTerminalStatus(toStatus) {
		return false, nil
	}

	if !model.CanAdvanceKYC(fromStatus, toStatus) {
		return false, ErrInvalidKYCTransition
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	now := time.Now()
	switch toStatus {
	case model.KYCStatusApproved:
		updates["approved_at"] = &now
	case model.KYCStatusRejected:
		updates["rejected_at"] = &now
		if reason != "" {
			updates["rejection_reason"] = reason
		}
	}

	result := tx.WithContext(ctx).
		Model(&model.KYCRecord{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		var current model.KYCRecord
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&current).Error; err != nil {
			return false, err
		}
		if current.Status == toStatus && model.IsKYCTerminalStatus(toStatus) {
			return false, nil
		}
		return false, ErrInvalidKYCTransition
	}

	return true, nil
}
