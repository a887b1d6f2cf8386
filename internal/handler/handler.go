package handler

import (
	"errors"
	"net/http"
	"strconv"

	"investwallet/internal/config"
	"investwallet/internal/gateway"
	"investwallet/internal/infrastructure/lock"
	"investwallet/internal/repository"
	"investwallet/internal/service"
	"investwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	walletService     *service.WalletService
	settlementService *service.SettlementService
	investService     *service.InvestService
	kycService        *service.KYCService
	reconcileService  *service.ReconcileService
}

// NewHandler 创建处理器实例
// 网关和锁工厂从外部注入，便于测试替换（不使用进程级单例）
func NewHandler(db *gorm.DB, cfg *config.Config, locks lock.Factory, paymentGW gateway.PaymentGateway, kycGW gateway.KYCGateway) *Handler {
	return &Handler{
		walletService:     service.NewWalletService(db, cfg),
		settlementService: service.NewSettlementService(db, cfg, paymentGW, locks),
		investService:     service.NewInvestService(db, cfg, locks),
		kycService:        service.NewKYCService(db, cfg, kycGW),
		reconcileService:  service.NewReconcileService(db, cfg, paymentGW, kycGW),
	}
}

// respondError 业务错误统一映射到错误码
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrMissingDestination),
		errors.Is(err, service.ErrBelowMinInvestment),
		errors.Is(err, service.ErrAboveMaxInvestment),
		errors.Is(err, service.ErrMalformedPayload):
		response.BusinessError(c, response.CodeValidationError, err.Error())
	case errors.Is(err, repository.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, repository.ErrInvalidStateTransition),
		errors.Is(err, repository.ErrInvalidKYCTransition):
		response.BusinessError(c, response.CodeInvalidStateTransition, err.Error())
	case errors.Is(err, repository.ErrKYCAlreadyInProgress):
		response.BusinessError(c, response.CodeAlreadyInProgress, err.Error())
	case errors.Is(err, gateway.ErrProviderUnavailable):
		response.BusinessError(c, response.CodeProviderUnavailable, err.Error())
	case errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, service.ErrSystemBusy):
		response.BusinessError(c, response.CodeConflict, err.Error())
	case errors.Is(err, repository.ErrWalletNotFound):
		response.BusinessError(c, response.CodeWalletNotFound, err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound):
		response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		response.BusinessError(c, response.CodeProductNotFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalance 查询钱包余额
// GET /api/v1/wallet/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	wallet, err := h.walletService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":            wallet.UserID,
		"balance":            wallet.Balance,
		"currency":           wallet.Currency,
		"psp_account_status": wallet.PSPAccountStatus,
	})
}

// ListTransactions 查询流水列表
// GET /api/v1/wallet/transactions?user_id=xxx&type=deposit&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.walletService.ListTransactions(c.Request.Context(), userID, c.Query("type"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AuditBalance 余额对账
// GET /api/v1/wallet/audit?user_id=xxx
func (h *Handler) AuditBalance(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	result, err := h.walletService.AuditBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 结算相关接口
// ============================================================

// DepositRequest 入金请求
type DepositRequest struct {
	UserID    string          `json:"user_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
}

// Deposit 发起入金
// POST /api/v1/payments/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.settlementService.Deposit(c.Request.Context(), &service.DepositRequest{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Profile: &gateway.Profile{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	UserID      string          `json:"user_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Destination string          `json:"destination" binding:"required"`
}

// Withdraw 发起提现
// POST /api/v1/payments/withdraw
//
// 【关键点】提现是乐观扣减：发起成功即扣款，服务商报失败后由对账器补偿
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.settlementService.Withdraw(c.Request.Context(), &service.WithdrawRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Destination: req.Destination,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction": trans,
	})
}

// GetTransaction 查询交易（未落终态时顺带向服务商轮询一次）
// GET /api/v1/payments/transaction/:id?user_id=xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	trans, err := h.reconcileService.RefreshTransaction(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction": trans,
	})
}

// ============================================================
// 投资相关接口
// ============================================================

// InvestRequest 投资请求
type InvestRequest struct {
	UserID    string          `json:"user_id" binding:"required"`
	ProductID string          `json:"product_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// Invest 投资下单
// POST /api/v1/portfolio/invest
func (h *Handler) Invest(c *gin.Context) {
	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	position, err := h.investService.Invest(c.Request.Context(), &service.InvestRequest{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Amount:    req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"portfolio": position,
	})
}

// GetPortfolio 查询持仓
// GET /api/v1/portfolio?user_id=xxx
func (h *Handler) GetPortfolio(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	positions, totalValue, err := h.investService.GetPortfolio(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"portfolios": positions,
		"summary": gin.H{
			"total_investments": len(positions),
			"total_value":       totalValue,
		},
	})
}

// ListProducts 查询在售产品
// GET /api/v1/products
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.investService.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list": products,
	})
}

// ============================================================
// KYC 相关接口
// ============================================================

// KYCInitiateRequest 发起核验请求
type KYCInitiateRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Country     string `json:"country"`
	Residency   string `json:"residency"`
	DateOfBirth string `json:"date_of_birth"`
	PhoneNumber string `json:"phone_number"`
}

// KYCInitiate 发起身份核验
// POST /api/v1/kyc/initiate
func (h *Handler) KYCInitiate(c *gin.Context) {
	var req KYCInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.kycService.Initiate(c.Request.Context(), req.UserID, &gateway.Profile{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Country:     req.Country,
		Residency:   req.Residency,
		DateOfBirth: req.DateOfBirth,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// KYCStatus 查询核验状态
// GET /api/v1/kyc/status?user_id=xxx
func (h *Handler) KYCStatus(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	record, status, err := h.kycService.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if record == nil {
		response.Success(c, gin.H{"status": status})
		return
	}

	response.Success(c, gin.H{
		"status": status,
		"kyc":    record,
	})
}

// ============================================================
// 服务商回调接口
// ============================================================

// PSPWebhook 支付服务商回调
// POST /api/v1/webhooks/psp
//
// 【关键点】回调是至少一次投递：
// 1. 签名不过直接 401，不改任何状态
// 2. 重复/乱序投递由对账器按终态规则静默吸收
// 3. 响应只做确认，不带业务数据
func (h *Handler) PSPWebhook(c *gin.Context) {
	rawPayload, err := c.GetRawData()
	if err != nil {
		response.ParamError(c, "读取回调报文失败")
		return
	}

	signature := c.GetHeader("X-Signature")
	if signature == "" {
		signature = c.GetHeader("X-PSP-Signature")
	}

	err = h.reconcileService.HandlePaymentWebhook(c.Request.Context(), signature, rawPayload)
	if err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"received": true})
}

// KYCWebhook 核验机构回调
// POST /api/v1/webhooks/kyc
func (h *Handler) KYCWebhook(c *gin.Context) {
	rawPayload, err := c.GetRawData()
	if err != nil {
		response.ParamError(c, "读取回调报文失败")
		return
	}

	signature := c.GetHeader("X-Signature")
	if signature == "" {
		signature = c.GetHeader("X-KYC-Signature")
	}

	err = h.reconcileService.HandleKYCWebhook(c.Request.Context(), signature, rawPayload)
	if err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"received": true})
}
