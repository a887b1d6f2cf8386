package model

import (
	"time"
)

// ============================================================================
// KYC 身份核验状态机
// ============================================================================

const (
	KYCStatusPending    = "pending"
	KYCStatusInProgress = "in_progress"
	KYCStatusApproved   = "approved"
	KYCStatusRejected   = "rejected"
	KYCStatusExpired    = "expired"

	// KYCStatusNotStarted 用户从未发起过核验时对外展示的状态（不落库）
	KYCStatusNotStarted = "not_started"
)

// ValidKYCTransitions KYC 状态流转表
// pending → in_progress → {approved | rejected | expired}
// 核验机构可能跳过 in_progress 直接给出结论
var ValidKYCTransitions = map[string][]string{
	KYCStatusPending:    {KYCStatusInProgress, KYCStatusApproved, KYCStatusRejected, KYCStatusExpired},
	KYCStatusInProgress: {KYCStatusApproved, KYCStatusRejected, KYCStatusExpired},
}

// CanAdvanceKYC 判断 KYC 状态是否允许从 currentStatus 流转到 targetStatus
func CanAdvanceKYC(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidKYCTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsKYCTerminalStatus 终态判断：approved / rejected / expired 之后由人工或重新发起处理
func IsKYCTerminalStatus(status string) bool {
	return status == KYCStatusApproved ||
		status == KYCStatusRejected ||
		status == KYCStatusExpired
}

// KYCRecord 身份核验记录表
// 每个用户一条，回调按 provider_reference 幂等查找，与交易对账遵循同一套终态去重规则
type KYCRecord struct {
	ID                string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID            string     `gorm:"type:char(36);uniqueIndex;not null" json:"user_id"`
	Status            string     `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	ProviderReference *string    `gorm:"type:varchar(128);uniqueIndex" json:"provider_reference"` // 核验机构引用号，回调幂等查找键
	ProviderData      string     `gorm:"type:text" json:"-"`                                      // 核验机构原始响应（不透出）
	SubmittedAt       *time.Time `json:"submitted_at"`
	ApprovedAt        *time.Time `json:"approved_at"`
	RejectedAt        *time.Time `json:"rejected_at"`
	RejectionReason   string     `gorm:"type:varchar(256)" json:"rejection_reason"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (KYCRecord) TableName() string {
	return "kyc_record"
}
