package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"investwallet/internal/config"
	"investwallet/internal/gateway"
	"investwallet/internal/infrastructure/lock"
	"investwallet/internal/model"
	"investwallet/internal/repository"
	"investwallet/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount      = errors.New("金额必须大于0")
	ErrMissingDestination = errors.New("提现目标账户不能为空")
	ErrSystemBusy         = errors.New("系统繁忙，请稍后重试")
)

// 提现外呼成功后扣款遇到版本冲突的最大重试次数
const withdrawDebitMaxRetries = 3

// SettlementService 结算协调器
// 负责入金/提现的发起：校验 → 外呼服务商 → 落流水 →（提现）扣减余额。
// 入金不在这里加钱（资金尚未到账），到账靠对账器消费回调后入账。
type SettlementService struct {
	db              *gorm.DB
	cfg             *config.Config
	gateway         gateway.PaymentGateway
	locks           lock.Factory
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
}

func NewSettlementService(db *gorm.DB, cfg *config.Config, gw gateway.PaymentGateway, locks lock.Factory) *SettlementService {
	return &SettlementService{
		db:              db,
		cfg:             cfg,
		gateway:         gw,
		locks:           locks,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type DepositRequest struct {
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Profile  *gateway.Profile // 首次入金开托管账户时提交的资料
}

type DepositResponse struct {
	Transaction *model.Transaction `json:"transaction"`
	RedirectURL string             `json:"redirect_url,omitempty"` // 服务商收银台跳转地址
}

// Deposit 发起入金
//
// 【关键点】入金发起不动余额：
// 资金还在用户自己手里，只有服务商回调确认到账后，对账器才会给钱包入账。
func (s *SettlementService) Deposit(ctx context.Context, req *DepositRequest) (*DepositResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Business.PrimaryCurrency
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, req.UserID, currency)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}

	// 首次入金需要先在托管方开户
	if wallet.PSPAccountID == "" {
		account, err := s.gateway.CreateAccount(ctx, req.UserID, req.Profile)
		if err != nil {
			return nil, fmt.Errorf("托管账户开户失败: %w", err)
		}
		if err := s.walletRepo.BindPSPAccount(ctx, nil, wallet.ID, account.AccountID, account.Status); err != nil {
			return nil, fmt.Errorf("绑定托管账户失败: %w", err)
		}
		wallet.PSPAccountID = account.AccountID
		wallet.PSPAccountStatus = account.Status
	}

	intent, err := s.gateway.InitiateDeposit(ctx, wallet.PSPAccountID, req.Amount, currency, map[string]string{
		"user_id": req.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("发起入金失败: %w", err)
	}

	trans := &model.Transaction{
		ID:           uuid.NewString(),
		ReferenceNo:  idgen.GenerateTransactionNo(),
		UserID:       req.UserID,
		WalletID:     wallet.ID,
		Type:         model.TransactionTypeDeposit,
		Amount:       req.Amount,
		Currency:     currency,
		Status:       normalizeInitiatedStatus(intent.Status),
		PSPReference: &intent.TransactionID,
		PSPData:      intent.Raw,
		Description:  "入金",
	}

	if err := s.transactionRepo.Create(ctx, nil, trans); err != nil {
		return nil, fmt.Errorf("创建交易流水失败: %w", err)
	}

	log.Printf("入金已发起: ref=%s, userID=%s, amount=%s %s, pspRef=%s",
		trans.ReferenceNo, req.UserID, req.Amount, currency, intent.TransactionID)

	return &DepositResponse{
		Transaction: trans,
		RedirectURL: intent.RedirectURL,
	}, nil
}

type WithdrawRequest struct {
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Destination string
}

// Withdraw 发起提现
//
// 【关键点】提现是乐观扣减：
// 1. 先外呼服务商，外呼失败时本地不产生任何状态（可安全整体重试）
// 2. 外呼成功后在一个本地事务里「落流水 + 扣余额」，资金即刻离开托管池
// 3. 扣款遇到版本冲突时回读钱包重试，而不是对外抛错：此时服务商侧的提现
//    已经发起，放弃会留下一笔没有本地流水的在途提现，调用方重试还会再发起一笔
// 4. 若服务商最终报失败，对账器把钱补偿回来——这是补偿动作，不是回滚，扣减早已对外可见
func (s *SettlementService) Withdraw(ctx context.Context, req *WithdrawRequest) (*model.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Destination == "" {
		return nil, ErrMissingDestination
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Business.PrimaryCurrency
	}

	// 按用户维度加锁，挡掉重复提交；余额正确性由 Deduct 的条件更新兜底
	walletLock := s.locks.WalletLock(req.UserID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	defer walletLock.Unlock(ctx)

	wallet, err := s.walletRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if wallet.Balance.LessThan(req.Amount) {
		return nil, repository.ErrInsufficientBalance
	}

	// 先外呼后扣款：外呼失败时钱包分文未动
	intent, err := s.gateway.InitiateWithdrawal(ctx, wallet.PSPAccountID, req.Amount, currency, req.Destination, map[string]string{
		"user_id": req.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("发起提现失败: %w", err)
	}

	trans := &model.Transaction{
		ID:           uuid.NewString(),
		ReferenceNo:  idgen.GenerateTransactionNo(),
		UserID:       req.UserID,
		WalletID:     wallet.ID,
		Type:         model.TransactionTypeWithdrawal,
		Amount:       req.Amount,
		Currency:     currency,
		Status:       normalizeInitiatedStatus(intent.Status),
		PSPReference: &intent.TransactionID,
		PSPData:      intent.Raw,
		Description:  fmt.Sprintf("提现至 %s", req.Destination),
	}

	// 落流水和扣余额必须同一个事务：不允许出现已扣款却没有流水的中间态。
	// 版本冲突（比如对账器并发入账抬了版本号）时回读钱包、重新校验余额后重试，
	// 只有余额真不足才放弃已发起的提现。
	for attempt := 0; ; attempt++ {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
				return fmt.Errorf("创建交易流水失败: %w", err)
			}

			return s.walletRepo.Deduct(ctx, tx, wallet.ID, req.Amount, wallet.Version)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= withdrawDebitMaxRetries {
			return nil, err
		}

		log.Printf("提现扣款版本冲突，重试: userID=%s, attempt=%d", req.UserID, attempt+1)

		wallet, err = s.walletRepo.GetByUserID(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if wallet.Balance.LessThan(req.Amount) {
			return nil, repository.ErrInsufficientBalance
		}
	}

	log.Printf("提现已发起并扣款: ref=%s, userID=%s, amount=%s %s, pspRef=%s",
		trans.ReferenceNo, req.UserID, req.Amount, currency, intent.TransactionID)

	return trans, nil
}

// normalizeInitiatedStatus 服务商发起响应里的状态只接受 pending/processing，其余一律按 pending 落库
func normalizeInitiatedStatus(status string) string {
	if status == model.TransactionStatusProcessing {
		return model.TransactionStatusProcessing
	}
	return model.TransactionStatusPending
}
