package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 产品风险等级
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// Product 投资产品表
// 投资下单时校验 min/max 额度，额度只在下单时校验一次，后续不再复核
type Product struct {
	ID             string           `gorm:"type:char(36);primaryKey" json:"id"`
	Name           string           `gorm:"type:varchar(128);not null" json:"name"`
	Description    string           `gorm:"type:text" json:"description"`
	Category       string           `gorm:"type:varchar(64);not null" json:"category"`
	MinInvestment  decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"min_investment"`
	MaxInvestment  *decimal.Decimal `gorm:"type:decimal(20,2)" json:"max_investment"` // 为空表示不设上限
	Currency       string           `gorm:"type:varchar(3);not null;default:AED" json:"currency"`
	ExpectedReturn decimal.Decimal  `gorm:"type:decimal(5,2)" json:"expected_return"`
	RiskLevel      string           `gorm:"type:varchar(10);not null" json:"risk_level"`
	IsActive       bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}
