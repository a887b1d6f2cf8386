package service

import (
	"context"
	"fmt"
	"testing"

	"investwallet/internal/config"
	"investwallet/internal/gateway"
	"investwallet/internal/model"
	"investwallet/pkg/idgen"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 测试里回调签名固定为该值，假网关只认它
const testSignature = "valid-signature"

func init() {
	idgen.Init(1)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.Wallet{},
		&model.Transaction{},
		&model.KYCRecord{},
		&model.Product{},
		&model.Portfolio{},
		&model.OutboxMessage{},
	)
	require.NoError(t, err)

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				WalletEvents: "wallet_events",
				KYCEvents:    "kyc_events",
			},
		},
		Business: config.BusinessConfig{
			PrimaryCurrency: "AED",
			MaxRetryCount:   3,
		},
	}
}

// fakePaymentGateway 可编程的假支付网关
type fakePaymentGateway struct {
	createAccountErr error
	initiateErr      error
	pollResult       *gateway.StatusResult
	pollErr          error

	// 在提现外呼期间执行，用来模拟外呼窗口内的并发动作
	onInitiateWithdrawal func()

	refSeq          int
	depositCalls    int
	withdrawalCalls int
}

func (f *fakePaymentGateway) nextRef(prefix string) string {
	f.refSeq++
	return fmt.Sprintf("%s-%04d", prefix, f.refSeq)
}

func (f *fakePaymentGateway) CreateAccount(ctx context.Context, userID string, profile *gateway.Profile) (*gateway.AccountResult, error) {
	if f.createAccountErr != nil {
		return nil, f.createAccountErr
	}
	return &gateway.AccountResult{
		AccountID: "PSPACC-" + userID,
		Status:    model.PSPAccountStatusActive,
	}, nil
}

func (f *fakePaymentGateway) InitiateDeposit(ctx context.Context, accountID string, amount decimal.Decimal, currency string, metadata map[string]string) (*gateway.PaymentIntent, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	f.depositCalls++
	ref := f.nextRef("DEP")
	return &gateway.PaymentIntent{
		TransactionID: ref,
		Status:        model.TransactionStatusPending,
		RedirectURL:   "https://pay.example.com/deposit?ref=" + ref,
	}, nil
}

func (f *fakePaymentGateway) InitiateWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, currency, destination string, metadata map[string]string) (*gateway.PaymentIntent, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	f.withdrawalCalls++
	if f.onInitiateWithdrawal != nil {
		f.onInitiateWithdrawal()
	}
	return &gateway.PaymentIntent{
		TransactionID: f.nextRef("WDR"),
		Status:        model.TransactionStatusPending,
	}, nil
}

func (f *fakePaymentGateway) PollStatus(ctx context.Context, transactionID string) (*gateway.StatusResult, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.pollResult != nil {
		return f.pollResult, nil
	}
	return &gateway.StatusResult{Status: model.TransactionStatusPending}, nil
}

func (f *fakePaymentGateway) VerifyWebhookSignature(signature string, payload []byte) bool {
	return signature == testSignature
}

// fakeKYCGateway 可编程的假核验网关
type fakeKYCGateway struct {
	initiateErr error
	pollResult  *gateway.StatusResult
	pollErr     error
	refSeq      int
}

func (f *fakeKYCGateway) Initiate(ctx context.Context, userID string, profile *gateway.Profile) (*gateway.KYCResult, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	f.refSeq++
	return &gateway.KYCResult{
		Reference:   fmt.Sprintf("KYC-%04d", f.refSeq),
		Status:      model.KYCStatusInProgress,
		RedirectURL: "https://verify.example.com/session",
	}, nil
}

func (f *fakeKYCGateway) PollStatus(ctx context.Context, reference string) (*gateway.StatusResult, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.pollResult != nil {
		return f.pollResult, nil
	}
	return &gateway.StatusResult{Status: model.KYCStatusInProgress}, nil
}

func (f *fakeKYCGateway) VerifyWebhookSignature(signature string, payload []byte) bool {
	return signature == testSignature
}

// countOutboxEvents 按事件类型统计发件箱消息
func countOutboxEvents(t *testing.T, db *gorm.DB, eventType string) int64 {
	t.Helper()
	var count int64
	err := db.Model(&model.OutboxMessage{}).
		Where("payload LIKE ?", fmt.Sprintf(`%%"event":%q%%`, eventType)).
		Count(&count).Error
	require.NoError(t, err)
	return count
}
