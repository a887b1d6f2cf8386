package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PSP 托管账户状态
const (
	PSPAccountStatusPending   = "pending"
	PSPAccountStatusActive    = "active"
	PSPAccountStatusSuspended = "suspended"
	PSPAccountStatusClosed    = "closed"
)

// Wallet 用户钱包表
// 记录用户的托管资金余额，是整个结算系统的核心数据
//
// 【重要】余额一致性原则：
// 1. 余额 = 所有 completed 流水的带符号金额之和（提现在发起时即扣减，失败后补偿回来）
// 2. 任何本地扣减都不允许使余额变为负数
// 3. 余额变更必须通过 WalletRepository 的条件更新完成，禁止读-改-写
type Wallet struct {
	ID               string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID           string          `gorm:"type:char(36);uniqueIndex;not null" json:"user_id"` // 用户ID，业务方传入
	Balance          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	Currency         string          `gorm:"type:varchar(3);not null;default:AED" json:"currency"`
	PSPAccountID     string          `gorm:"type:varchar(128);index" json:"psp_account_id"`             // 支付服务商托管账户ID
	PSPAccountStatus string          `gorm:"type:varchar(20);not null;default:pending" json:"psp_account_status"` // 托管账户状态
	Version          int             `gorm:"not null;default:0" json:"version"`                         // 乐观锁版本号
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}
