package service

import (
	"context"
	"encoding/json"

	"investwallet/internal/model"
	"investwallet/internal/repository"

	"gorm.io/gorm"
)

// 钱包/KYC 生命周期事件类型（下游通知、邮件等消费方订阅）
const (
	EventDepositCompleted    = "deposit_completed"
	EventWithdrawalCompleted = "withdrawal_completed"
	EventWithdrawalFailed    = "withdrawal_failed"
	EventInvestmentCompleted = "investment_completed"
	EventKYCApproved         = "kyc_approved"
	EventKYCRejected         = "kyc_rejected"
)

// writeOutboxEvent 在业务事务内写入发件箱消息，由 OutboxSender 异步投递到 Kafka
func writeOutboxEvent(ctx context.Context, tx *gorm.DB, outboxRepo *repository.OutboxRepository, topic, key, eventType string, payload map[string]interface{}) error {
	payload["event"] = eventType
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	return outboxRepo.Create(ctx, tx, msg)
}
