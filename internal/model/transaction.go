package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit    = "deposit"    // 入金（充值）
	TransactionTypeWithdrawal = "withdrawal" // 提现
	TransactionTypeInvestment = "investment" // 投资（内部划转）
	TransactionTypeDividend   = "dividend"   // 分红
	TransactionTypeRefund     = "refund"     // 退款
)

// ============================================================================
// 交易状态机
// ============================================================================

const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
	TransactionStatusCancelled  = "cancelled"
)

// ValidTransactionTransitions 交易状态流转表
// pending → processing → {completed | failed | cancelled}
// 服务商回调可能跳过 processing 直接报终态，所以 pending 也允许直达终态
var ValidTransactionTransitions = map[string][]string{
	TransactionStatusPending:    {TransactionStatusProcessing, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusProcessing: {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
}

// CanTransitionTo 判断交易状态是否允许从 currentStatus 流转到 targetStatus
func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidTransactionTransitions[currentStatus]
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

// IsTerminalStatus 终态判断：completed / failed / cancelled 之后不可再变更
func IsTerminalStatus(status string) bool {
	return status == TransactionStatusCompleted ||
		status == TransactionStatusFailed ||
		status == TransactionStatusCancelled
}

// Transaction 交易流水表
// 每一笔资金意图（入金/提现/投资/分红/退款）一行，是余额变更是否已生效的唯一事实来源
//
// 【重要】流水表设计原则：
// 1. 进入终态后不可修改（审计字段除外）—— 保证审计可追溯
// 2. psp_reference 全局唯一 —— 回调按服务商引用号幂等查找
// 3. 同一余额效果绝不允许被应用两次 —— 对账器必须先检查终态
type Transaction struct {
	ID            string          `gorm:"type:char(36);primaryKey" json:"id"`
	ReferenceNo   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference_no"` // 内部流水号（全局唯一）
	UserID        string          `gorm:"type:char(36);index;not null" json:"user_id"`
	WalletID      string          `gorm:"type:char(36);index;not null" json:"wallet_id"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status        string          `gorm:"type:varchar(20);index;not null" json:"status"`
	PSPReference  *string         `gorm:"type:varchar(128);uniqueIndex" json:"psp_reference"` // 服务商引用号，回调幂等查找键
	PSPData       string          `gorm:"type:text" json:"-"`                                 // 服务商原始响应（不透出）
	Description   string          `gorm:"type:varchar(256)" json:"description"`
	CompletedAt   *time.Time      `json:"completed_at"`
	FailedAt      *time.Time      `json:"failed_at"`
	FailureReason string          `gorm:"type:varchar(256)" json:"failure_reason"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
