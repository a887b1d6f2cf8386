package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 持仓状态
const (
	PortfolioStatusActive    = "active"
	PortfolioStatusSold      = "sold"
	PortfolioStatusMatured   = "matured"
	PortfolioStatusCancelled = "cancelled"
)

// Portfolio 持仓表
// 与 investment 类型的交易流水同事务创建：钱包扣款、持仓、流水三者要么同时成功要么同时失败
type Portfolio struct {
	ID            string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID        string          `gorm:"type:char(36);index;not null" json:"user_id"`
	ProductID     string          `gorm:"type:char(36);index;not null" json:"product_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"purchase_price"`
	CurrentValue  decimal.Decimal `gorm:"type:decimal(20,2)" json:"current_value"`
	Status        string          `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	PurchasedAt   time.Time       `gorm:"not null" json:"purchased_at"`
	SoldAt        *time.Time      `json:"sold_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolio"
}
