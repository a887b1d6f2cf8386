package repository

import (
	"context"
	"errors"

	"investwallet/internal/model"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = errors.New("产品不存在或已下架")
	ErrPortfolioNotFound = errors.New("持仓不存在")
)

type PortfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepository(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func (r *PortfolioRepository) Create(ctx context.Context, tx *gorm.DB, position *model.Portfolio) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(position).Error
}

func (r *PortfolioRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*model.Portfolio, error) {
	var position model.Portfolio
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, err
	}
	return &position, nil
}

func (r *PortfolioRepository) ListActiveByUser(ctx context.Context, userID string) ([]*model.Portfolio, error) {
	var positions []*model.Portfolio
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.PortfolioStatusActive).
		Order("purchased_at DESC").
		Find(&positions).Error
	return positions, err
}

// ============================================================
// 产品
// ============================================================

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) ListActive(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&products).Error
	return products, err
}
