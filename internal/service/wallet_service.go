package service

import (
	"context"
	"errors"

	"investwallet/internal/config"
	"investwallet/internal/model"
	"investwallet/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 钱包查询服务
type WalletService struct {
	db              *gorm.DB
	cfg             *config.Config
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
}

func NewWalletService(db *gorm.DB, cfg *config.Config) *WalletService {
	return &WalletService{
		db:              db,
		cfg:             cfg,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

func (s *WalletService) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, userID, s.cfg.Business.PrimaryCurrency)
}

// ListTransactions 查询流水，可按类型过滤；钱包不存在时返回空列表
func (s *WalletService) ListTransactions(ctx context.Context, userID, txType string, page, pageSize int) ([]*model.Transaction, int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return []*model.Transaction{}, 0, nil
		}
		return nil, 0, err
	}

	return s.transactionRepo.ListByWallet(ctx, wallet.ID, txType, page, pageSize)
}

// AuditResult 余额对账结果
type AuditResult struct {
	WalletID      string          `json:"wallet_id"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
	JournalSum    decimal.Decimal `json:"journal_sum"`
	Consistent    bool            `json:"consistent"`
}

// AuditBalance 对账校验：钱包余额必须等于 completed 流水的带符号之和
// （提现在发起时扣减：处于 pending/processing 的提现要从流水和里再减掉）
func (s *WalletService) AuditBalance(ctx context.Context, userID string) (*AuditResult, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	completedSum, err := s.transactionRepo.SumCompletedByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	inFlightWithdrawals, err := s.transactionRepo.SumInFlightWithdrawals(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	journalSum := decimal.Zero
	if completedSum.Valid {
		journalSum = completedSum.Decimal
	}
	if inFlightWithdrawals.Valid {
		journalSum = journalSum.Sub(inFlightWithdrawals.Decimal)
	}

	return &AuditResult{
		WalletID:      wallet.ID,
		StoredBalance: wallet.Balance,
		JournalSum:    journalSum,
		Consistent:    wallet.Balance.Equal(journalSum),
	}, nil
}
