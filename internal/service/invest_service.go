package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"investwallet/internal/config"
	"investwallet/internal/infrastructure/lock"
	"investwallet/internal/model"
	"investwallet/internal/repository"
	"investwallet/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrBelowMinInvestment = errors.New("低于产品最低投资额")
	ErrAboveMaxInvestment = errors.New("超过产品最高投资额")
)

// InvestService 投资服务
// 投资是内部账本划转，没有服务商往返，发起即结算：
// 扣余额、建持仓、落 completed 流水在同一个事务里完成
type InvestService struct {
	db              *gorm.DB
	cfg             *config.Config
	locks           lock.Factory
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	portfolioRepo   *repository.PortfolioRepository
	productRepo     *repository.ProductRepository
	outboxRepo      *repository.OutboxRepository
}

func NewInvestService(db *gorm.DB, cfg *config.Config, locks lock.Factory) *InvestService {
	return &InvestService{
		db:              db,
		cfg:             cfg,
		locks:           locks,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		portfolioRepo:   repository.NewPortfolioRepository(db),
		productRepo:     repository.NewProductRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type InvestRequest struct {
	UserID    string
	ProductID string
	Amount    decimal.Decimal
}

// Invest 投资下单
// 额度校验只在下单时做一次（产品额度后续调整不影响存量持仓）。
// KYC 是否必须先通过由上层策略决定，这里不做强制门禁。
func (s *InvestService) Invest(ctx context.Context, req *InvestRequest) (*model.Portfolio, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, repository.ErrProductNotFound
	}

	// 额度校验先于任何资金动作
	if req.Amount.LessThan(product.MinInvestment) {
		return nil, fmt.Errorf("%w: 最低 %s %s", ErrBelowMinInvestment, product.MinInvestment, product.Currency)
	}
	if product.MaxInvestment != nil && req.Amount.GreaterThan(*product.MaxInvestment) {
		return nil, fmt.Errorf("%w: 最高 %s %s", ErrAboveMaxInvestment, product.MaxInvestment, product.Currency)
	}

	walletLock := s.locks.WalletLock(req.UserID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	defer walletLock.Unlock(ctx)

	wallet, err := s.walletRepo.GetOrCreate(ctx, req.UserID, s.cfg.Business.PrimaryCurrency)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}

	if wallet.Balance.LessThan(req.Amount) {
		return nil, repository.ErrInsufficientBalance
	}

	now := time.Now()
	position := &model.Portfolio{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		ProductID:     product.ID,
		Amount:        req.Amount,
		Currency:      product.Currency,
		PurchasePrice: req.Amount,
		CurrentValue:  req.Amount,
		Status:        model.PortfolioStatusActive,
		PurchasedAt:   now,
	}

	trans := &model.Transaction{
		ID:          uuid.NewString(),
		ReferenceNo: idgen.GenerateTransactionNo(),
		UserID:      req.UserID,
		WalletID:    wallet.ID,
		Type:        model.TransactionTypeInvestment,
		Amount:      req.Amount,
		Currency:    product.Currency,
		Status:      model.TransactionStatusCompleted,
		CompletedAt: &now,
		Description: fmt.Sprintf("投资 %s", product.Name),
	}

	// 扣款、持仓、流水、事件同一个事务：任一步失败则全部不落
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.walletRepo.Deduct(ctx, tx, wallet.ID, req.Amount, wallet.Version); err != nil {
			return err
		}

		if err := s.portfolioRepo.Create(ctx, tx, position); err != nil {
			return fmt.Errorf("创建持仓失败: %w", err)
		}

		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("创建交易流水失败: %w", err)
		}

		return writeOutboxEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.WalletEvents, trans.ReferenceNo, EventInvestmentCompleted, map[string]interface{}{
			"user_id":      req.UserID,
			"product_id":   product.ID,
			"portfolio_id": position.ID,
			"amount":       req.Amount,
			"currency":     product.Currency,
			"completed_at": now.Format(time.RFC3339),
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("投资成功: ref=%s, userID=%s, productID=%s, amount=%s %s",
		trans.ReferenceNo, req.UserID, product.ID, req.Amount, product.Currency)

	return position, nil
}

// GetPortfolio 查询用户当前持仓及汇总
func (s *InvestService) GetPortfolio(ctx context.Context, userID string) ([]*model.Portfolio, decimal.Decimal, error) {
	positions, err := s.portfolioRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	totalValue := decimal.Zero
	for _, p := range positions {
		if p.CurrentValue.IsZero() {
			totalValue = totalValue.Add(p.Amount)
		} else {
			totalValue = totalValue.Add(p.CurrentValue)
		}
	}

	return positions, totalValue, nil
}

// ListProducts 查询在售产品
func (s *InvestService) ListProducts(ctx context.Context) ([]*model.Product, error) {
	return s.productRepo.ListActive(ctx)
}
