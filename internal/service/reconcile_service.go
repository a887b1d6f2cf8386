package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"investwallet/internal/config"
	"investwallet/internal/gateway"
	"investwallet/internal/model"
	"investwallet/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrSignatureInvalid = errors.New("回调签名校验失败")
	ErrMalformedPayload = errors.New("回调报文解析失败")
)

// ReconcileService 对账器
// 消费服务商的异步通知（以及轮询补偿的结果），幂等地把交易/核验记录推进到终态，
// 并施加对应的余额补偿。回调是至少一次投递、可能乱序、可能重复——
// 所有去重都落在数据库的条件更新上，不依赖应用内状态。
type ReconcileService struct {
	db              *gorm.DB
	cfg             *config.Config
	paymentGateway  gateway.PaymentGateway
	kycGateway      gateway.KYCGateway
	kycService      *KYCService
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewReconcileService(db *gorm.DB, cfg *config.Config, paymentGW gateway.PaymentGateway, kycGW gateway.KYCGateway) *ReconcileService {
	return &ReconcileService{
		db:              db,
		cfg:             cfg,
		paymentGateway:  paymentGW,
		kycGateway:      kycGW,
		kycService:      NewKYCService(db, cfg, kycGW),
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// paymentWebhookPayload 支付服务商回调报文
type paymentWebhookPayload struct {
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

// HandlePaymentWebhook 处理支付服务商回调
// 签名不过直接拒绝且不改任何状态；引用号未命中按成功确认处理
// （不是所有流程的引用号都会预先登记）
func (s *ReconcileService) HandlePaymentWebhook(ctx context.Context, signature string, rawPayload []byte) error {
	if !s.paymentGateway.VerifyWebhookSignature(signature, rawPayload) {
		return ErrSignatureInvalid
	}

	var payload paymentWebhookPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.TransactionID == "" {
		return fmt.Errorf("%w: 缺少 transactionId", ErrMalformedPayload)
	}

	trans, err := s.transactionRepo.GetByPSPReference(ctx, payload.TransactionID)
	if err != nil {
		return err
	}
	if trans == nil {
		log.Printf("[对账] 回调未命中交易，确认但不处理: pspRef=%s", payload.TransactionID)
		return nil
	}

	return s.ApplyProviderStatus(ctx, trans, payload.Status, payload.Amount, payload.Reason, string(rawPayload))
}

// ApplyProviderStatus 把服务商报告的状态应用到交易上（回调和轮询共用入口）
//
// 【关键点】余额效果与状态流转的原子绑定：
// 1. 已处于终态 → 重复投递，确认即可，绝不重放余额效果
// 2. 只有真正抢到状态流转（applied）的那次调用才施加余额效果，
//    两个并发的相同回调只会有一个命中条件更新
// 3. 入金到账金额以本地流水为准：回调金额不一致时告警并按本地金额入账
func (s *ReconcileService) ApplyProviderStatus(ctx context.Context, trans *model.Transaction, reportedStatus string, reportedAmount decimal.Decimal, reason, raw string) error {
	if model.IsTerminalStatus(trans.Status) {
		log.Printf("[对账] 交易已处于终态，按重复投递忽略: ref=%s, status=%s, reported=%s",
			trans.ReferenceNo, trans.Status, reportedStatus)
		return nil
	}

	// 服务商重复播报当前状态（比如 processing 投递两次），无可应用的变化
	if reportedStatus == trans.Status {
		return nil
	}

	switch reportedStatus {
	case model.TransactionStatusProcessing,
		model.TransactionStatusCompleted,
		model.TransactionStatusFailed,
		model.TransactionStatusCancelled:
	case model.TransactionStatusPending:
		// 服务商仍在处理，没有可应用的变化
		return nil
	default:
		return fmt.Errorf("%w: 未知状态 %q", ErrMalformedPayload, reportedStatus)
	}

	if reportedStatus == model.TransactionStatusCompleted &&
		trans.Type == model.TransactionTypeDeposit &&
		!reportedAmount.IsZero() && !reportedAmount.Equal(trans.Amount) {
		log.Printf("[对账] 回调金额与流水不一致，以流水为准: ref=%s, 流水=%s, 回调=%s",
			trans.ReferenceNo, trans.Amount, reportedAmount)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		applied, err := s.transactionRepo.UpdateStatus(ctx, tx, trans.ID, trans.Status, reportedStatus, &repository.StatusOutcome{
			FailureReason: reason,
			PSPData:       raw,
		})
		if err != nil {
			return err
		}
		if !applied {
			// 并发的重复投递抢先落了终态
			return nil
		}

		var eventType string
		switch {
		case reportedStatus == model.TransactionStatusCompleted && trans.Type == model.TransactionTypeDeposit:
			// 入金到账：给钱包入账
			if err := s.walletRepo.Credit(ctx, tx, trans.WalletID, trans.Amount); err != nil {
				return fmt.Errorf("入金到账失败: %w", err)
			}
			eventType = EventDepositCompleted

		case reportedStatus == model.TransactionStatusCompleted && trans.Type == model.TransactionTypeWithdrawal:
			// 提现成功：发起时已扣款，无余额效果
			eventType = EventWithdrawalCompleted

		case (reportedStatus == model.TransactionStatusFailed || reportedStatus == model.TransactionStatusCancelled) &&
			trans.Type == model.TransactionTypeWithdrawal:
			// 提现失败/被取消：资金没有离开托管池，补偿发起时的乐观扣减
			if err := s.walletRepo.Credit(ctx, tx, trans.WalletID, trans.Amount); err != nil {
				return fmt.Errorf("提现失败补偿入账失败: %w", err)
			}
			eventType = EventWithdrawalFailed
		}

		log.Printf("[对账] 交易状态已推进: ref=%s, %s -> %s, type=%s",
			trans.ReferenceNo, trans.Status, reportedStatus, trans.Type)

		if eventType == "" {
			return nil
		}

		return writeOutboxEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.WalletEvents, trans.ReferenceNo, eventType, map[string]interface{}{
			"user_id":        trans.UserID,
			"transaction_id": trans.ID,
			"reference_no":   trans.ReferenceNo,
			"type":           trans.Type,
			"amount":         trans.Amount,
			"currency":       trans.Currency,
			"status":         reportedStatus,
			"reason":         reason,
		})
	})
}

// kycWebhookPayload 核验机构回调报文
type kycWebhookPayload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

// HandleKYCWebhook 处理核验机构回调，幂等规则与支付回调一致
func (s *ReconcileService) HandleKYCWebhook(ctx context.Context, signature string, rawPayload []byte) error {
	if !s.kycGateway.VerifyWebhookSignature(signature, rawPayload) {
		return ErrSignatureInvalid
	}

	var payload kycWebhookPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Reference == "" {
		return fmt.Errorf("%w: 缺少 reference", ErrMalformedPayload)
	}

	return s.kycService.Advance(ctx, payload.Reference, payload.Status, payload.Reason)
}

// RefreshTransaction 用户查单时顺带向服务商轮询一次
// 轮询失败不致命：保持已存状态，等下次轮询或回调
func (s *ReconcileService) RefreshTransaction(ctx context.Context, userID, transactionID string) (*model.Transaction, error) {
	trans, err := s.transactionRepo.GetByIDAndUser(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}

	if model.IsTerminalStatus(trans.Status) || trans.PSPReference == nil {
		return trans, nil
	}

	result, err := s.paymentGateway.PollStatus(ctx, *trans.PSPReference)
	if err != nil {
		log.Printf("[对账] 交易状态轮询失败: ref=%s, err=%v", trans.ReferenceNo, err)
		return trans, nil
	}

	if result.Status != trans.Status {
		if err := s.ApplyProviderStatus(ctx, trans, result.Status, trans.Amount, result.Reason, result.Raw); err != nil {
			log.Printf("[对账] 轮询结果应用失败: ref=%s, err=%v", trans.ReferenceNo, err)
			return trans, nil
		}
		return s.transactionRepo.GetByIDAndUser(ctx, transactionID, userID)
	}

	return trans, nil
}

// ReconcileStale 轮询补偿：把长时间未落终态的交易逐一向服务商查证
// 由后台任务周期调用（见 internal/job/settlement_poller.go）
func (s *ReconcileService) ReconcileStale(ctx context.Context, staleBefore time.Time, limit int) (int, error) {
	transactions, err := s.transactionRepo.GetStaleInFlight(ctx, staleBefore, limit)
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, trans := range transactions {
		result, err := s.paymentGateway.PollStatus(ctx, *trans.PSPReference)
		if err != nil {
			log.Printf("[对账] 补偿轮询失败: ref=%s, err=%v", trans.ReferenceNo, err)
			continue
		}
		if result.Status == trans.Status {
			continue
		}
		if err := s.ApplyProviderStatus(ctx, trans, result.Status, trans.Amount, result.Reason, result.Raw); err != nil {
			log.Printf("[对账] 补偿应用失败: ref=%s, err=%v", trans.ReferenceNo, err)
			continue
		}
		advanced++
	}

	return advanced, nil
}
