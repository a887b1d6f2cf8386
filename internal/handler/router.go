package handler

import (
	"investwallet/internal/config"
	"investwallet/internal/gateway"
	"investwallet/internal/infrastructure/lock"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, cfg *config.Config, locks lock.Factory, paymentGW gateway.PaymentGateway, kycGW gateway.KYCGateway) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, cfg, locks, paymentGW, kycGW)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 钱包相关
		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/transactions", h.ListTransactions)
			wallet.GET("/audit", h.AuditBalance)
		}

		// 结算相关
		payments := api.Group("/payments")
		{
			payments.POST("/deposit", h.Deposit)
			payments.POST("/withdraw", h.Withdraw)
			payments.GET("/transaction/:id", h.GetTransaction)
		}

		// 投资相关
		portfolio := api.Group("/portfolio")
		{
			portfolio.GET("", h.GetPortfolio)
			portfolio.POST("/invest", h.Invest)
		}
		api.GET("/products", h.ListProducts)

		// 身份核验相关
		kyc := api.Group("/kyc")
		{
			kyc.POST("/initiate", h.KYCInitiate)
			kyc.GET("/status", h.KYCStatus)
		}

		// 服务商回调（签名校验在 service 层做，这里不挂通用鉴权）
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/psp", h.PSPWebhook)
			webhooks.POST("/kyc", h.KYCWebhook)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
