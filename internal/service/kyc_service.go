package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"investwallet/internal/config"
	"investwallet/internal/gateway"
	"investwallet/internal/model"
	"investwallet/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KYCService 身份核验门禁
// 只做状态跟踪：是否要求核验通过才允许投资，由上层策略决定，这里不强制
type KYCService struct {
	db         *gorm.DB
	cfg        *config.Config
	gateway    gateway.KYCGateway
	kycRepo    *repository.KYCRepository
	outboxRepo *repository.OutboxRepository
}

func NewKYCService(db *gorm.DB, cfg *config.Config, gw gateway.KYCGateway) *KYCService {
	return &KYCService{
		db:         db,
		cfg:        cfg,
		gateway:    gw,
		kycRepo:    repository.NewKYCRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

type KYCInitiateResult struct {
	Record      *model.KYCRecord `json:"kyc"`
	RedirectURL string           `json:"redirect_url,omitempty"`
}

// Initiate 发起身份核验
// 已在进行中或已通过的不允许重复发起；被拒绝/过期的复用原记录重新提交
func (s *KYCService) Initiate(ctx context.Context, userID string, profile *gateway.Profile) (*KYCInitiateResult, error) {
	record, err := s.kycRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if record != nil && (record.Status == model.KYCStatusInProgress || record.Status == model.KYCStatusApproved) {
		return nil, repository.ErrKYCAlreadyInProgress
	}

	result, err := s.gateway.Initiate(ctx, userID, profile)
	if err != nil {
		return nil, fmt.Errorf("发起核验失败: %w", err)
	}

	status := result.Status
	if status == "" {
		status = model.KYCStatusPending
	}

	if record == nil {
		now := time.Now()
		record = &model.KYCRecord{
			ID:                uuid.NewString(),
			UserID:            userID,
			Status:            status,
			ProviderReference: &result.Reference,
			ProviderData:      result.Raw,
			SubmittedAt:       &now,
		}
		if err := s.kycRepo.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("创建核验记录失败: %w", err)
		}
	} else {
		if err := s.kycRepo.Resubmit(ctx, record.ID, status, result.Reference, result.Raw); err != nil {
			return nil, fmt.Errorf("更新核验记录失败: %w", err)
		}
		record, err = s.kycRepo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	log.Printf("身份核验已发起: userID=%s, ref=%s, status=%s", userID, result.Reference, status)

	return &KYCInitiateResult{
		Record:      record,
		RedirectURL: result.RedirectURL,
	}, nil
}

// Status 查询核验状态
// 未发起过返回 not_started；进行中的顺带向核验机构轮询一次，轮询失败不影响已存状态
func (s *KYCService) Status(ctx context.Context, userID string) (*model.KYCRecord, string, error) {
	record, err := s.kycRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if record == nil {
		return nil, model.KYCStatusNotStarted, nil
	}

	if !model.IsKYCTerminalStatus(record.Status) && record.ProviderReference != nil {
		result, err := s.gateway.PollStatus(ctx, *record.ProviderReference)
		if err != nil {
			// 轮询失败不致命：保持已存状态，等下次轮询或回调
			log.Printf("核验状态轮询失败: userID=%s, err=%v", userID, err)
			return record, record.Status, nil
		}
		if result.Status != record.Status {
			if err := s.Advance(ctx, *record.ProviderReference, result.Status, result.Reason); err != nil {
				log.Printf("核验状态推进失败: userID=%s, err=%v", userID, err)
			} else {
				record, err = s.kycRepo.GetByUserID(ctx, userID)
				if err != nil {
					return nil, "", err
				}
			}
		}
	}

	return record, record.Status, nil
}

// Advance 按核验机构引用号推进核验状态（回调和轮询共用入口）
// 引用号查不到或重复投递终态都按成功的空操作处理
func (s *KYCService) Advance(ctx context.Context, reference, newStatus, reason string) error {
	record, err := s.kycRepo.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if record == nil {
		log.Printf("核验回调未命中记录，忽略: ref=%s", reference)
		return nil
	}

	if model.IsKYCTerminalStatus(record.Status) {
		log.Printf("核验记录已处于终态，按重复投递忽略: ref=%s, status=%s", reference, record.Status)
		return nil
	}

	if newStatus == record.Status {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		applied, err := s.kycRepo.AdvanceStatus(ctx, tx, record.ID, record.Status, newStatus, reason)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}

		var eventType string
		switch newStatus {
		case model.KYCStatusApproved:
			eventType = EventKYCApproved
		case model.KYCStatusRejected:
			eventType = EventKYCRejected
		default:
			return nil
		}

		return writeOutboxEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.KYCEvents, record.UserID, eventType, map[string]interface{}{
			"user_id":   record.UserID,
			"reference": reference,
			"status":    newStatus,
			"reason":    reason,
		})
	})
}
