package gateway

import (
	"context"
	"fmt"
	"log"

	"investwallet/internal/model"
	"investwallet/pkg/idgen"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 服务商模拟器
// ============================================================================
//
// 未配置服务商凭证（或显式开启 simulated）时使用：
// 本地合成引用号，所有发起类操作返回 pending，终态靠测试或人工注入回调推进。
// 模拟器持有和真实网关同一个 webhook 密钥，所以签名校验路径完全一致。

// PaymentSimulator 支付服务商模拟器
type PaymentSimulator struct {
	webhookSecret string
}

func NewPaymentSimulator(webhookSecret string) *PaymentSimulator {
	return &PaymentSimulator{webhookSecret: webhookSecret}
}

func (s *PaymentSimulator) CreateAccount(ctx context.Context, userID string, profile *Profile) (*AccountResult, error) {
	accountID := idgen.GenerateAccountRef()
	log.Printf("[PSP模拟器] 开户: userID=%s, accountID=%s", userID, accountID)
	return &AccountResult{
		AccountID: accountID,
		Status:    model.PSPAccountStatusPending,
	}, nil
}

func (s *PaymentSimulator) InitiateDeposit(ctx context.Context, accountID string, amount decimal.Decimal, currency string, metadata map[string]string) (*PaymentIntent, error) {
	ref := idgen.GenerateDepositRef()
	log.Printf("[PSP模拟器] 发起入金: accountID=%s, amount=%s %s, ref=%s", accountID, amount, currency, ref)
	return &PaymentIntent{
		TransactionID: ref,
		Status:        model.TransactionStatusPending,
		RedirectURL:   fmt.Sprintf("https://pay.example.com/deposit?ref=%s", ref),
		Raw:           fmt.Sprintf(`{"transactionId":%q,"status":"pending","simulated":true}`, ref),
	}, nil
}

func (s *PaymentSimulator) InitiateWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, currency, destination string, metadata map[string]string) (*PaymentIntent, error) {
	ref := idgen.GenerateWithdrawalRef()
	log.Printf("[PSP模拟器] 发起提现: accountID=%s, amount=%s %s, ref=%s", accountID, amount, currency, ref)
	return &PaymentIntent{
		TransactionID: ref,
		Status:        model.TransactionStatusPending,
		Raw:           fmt.Sprintf(`{"transactionId":%q,"status":"pending","simulated":true}`, ref),
	}, nil
}

func (s *PaymentSimulator) PollStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	// 模拟器不主动推进状态，轮询返回 pending，终态靠回调注入
	return &StatusResult{Status: model.TransactionStatusPending}, nil
}

func (s *PaymentSimulator) VerifyWebhookSignature(signature string, payload []byte) bool {
	return VerifySignature(s.webhookSecret, signature, payload)
}

// KYCSimulator 身份核验机构模拟器
type KYCSimulator struct {
	webhookSecret string
}

func NewKYCSimulator(webhookSecret string) *KYCSimulator {
	return &KYCSimulator{webhookSecret: webhookSecret}
}

func (s *KYCSimulator) Initiate(ctx context.Context, userID string, profile *Profile) (*KYCResult, error) {
	ref := idgen.GenerateKYCRef()
	log.Printf("[KYC模拟器] 发起核验: userID=%s, ref=%s", userID, ref)
	return &KYCResult{
		Reference: ref,
		Status:    model.KYCStatusInProgress,
		Raw:       fmt.Sprintf(`{"reference":%q,"status":"in_progress","simulated":true}`, ref),
	}, nil
}

func (s *KYCSimulator) PollStatus(ctx context.Context, reference string) (*StatusResult, error) {
	return &StatusResult{Status: model.KYCStatusInProgress}, nil
}

func (s *KYCSimulator) VerifyWebhookSignature(signature string, payload []byte) bool {
	return VerifySignature(s.webhookSecret, signature, payload)
}
