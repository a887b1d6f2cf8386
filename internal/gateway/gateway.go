package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 外部服务商网关抽象
// ============================================================================
//
// 支付服务商（PSP/托管方）和 KYC 核验机构都只通过这里的接口消费，
// 网关实例在构造结算服务/对账服务时注入，不做进程级单例，方便测试替换。
// 根据配置选择真实 HTTP 客户端或内置模拟器（见 NewPaymentGateway / NewKYCGateway）。

var (
	// ErrProviderUnavailable 服务商外呼失败/超时。
	// 调用方保证此时未应用任何本地余额变更，整个操作可安全重试
	ErrProviderUnavailable = errors.New("外部服务商暂不可用")
)

// Profile 开户/核验时提交给服务商的用户资料快照
type Profile struct {
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Country     string `json:"country,omitempty"`
	Residency   string `json:"residency,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// AccountResult 托管账户开户结果
type AccountResult struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
}

// PaymentIntent 入金/提现发起结果
type PaymentIntent struct {
	TransactionID string `json:"transaction_id"` // 服务商引用号
	Status        string `json:"status"`
	RedirectURL   string `json:"redirect_url,omitempty"` // 入金时的收银台跳转地址
	Raw           string `json:"-"`                      // 服务商原始响应
}

// StatusResult 状态轮询结果
type StatusResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Raw    string `json:"-"`
}

// KYCResult 身份核验发起结果
type KYCResult struct {
	Reference   string `json:"reference"` // 核验机构引用号
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Raw         string `json:"-"`
}

// PaymentGateway 支付服务商网关
type PaymentGateway interface {
	CreateAccount(ctx context.Context, userID string, profile *Profile) (*AccountResult, error)
	InitiateDeposit(ctx context.Context, accountID string, amount decimal.Decimal, currency string, metadata map[string]string) (*PaymentIntent, error)
	InitiateWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, currency, destination string, metadata map[string]string) (*PaymentIntent, error)
	PollStatus(ctx context.Context, transactionID string) (*StatusResult, error)
	VerifyWebhookSignature(signature string, payload []byte) bool
}

// KYCGateway 身份核验机构网关
type KYCGateway interface {
	Initiate(ctx context.Context, userID string, profile *Profile) (*KYCResult, error)
	PollStatus(ctx context.Context, reference string) (*StatusResult, error)
	VerifyWebhookSignature(signature string, payload []byte) bool
}
