package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"investwallet/internal/config"
	"investwallet/internal/gateway"
	"investwallet/internal/handler"
	"investwallet/internal/infrastructure/cache"
	"investwallet/internal/infrastructure/database"
	"investwallet/internal/infrastructure/lock"
	"investwallet/internal/infrastructure/mq"
	"investwallet/internal/job"
	"investwallet/internal/service"
	"investwallet/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 构建服务商网关（配置为 simulated 或未配密钥时走模拟器）
	paymentGW := gateway.NewPaymentGateway(&cfg.PSP)
	kycGW := gateway.NewKYCGateway(&cfg.KYC)

	// 分布式锁工厂
	locks := lock.NewRedisFactory(redisClient)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	reconcile := service.NewReconcileService(db, cfg, paymentGW, kycGW)
	settlementPoller := job.NewSettlementPoller(reconcile, cfg)
	go settlementPoller.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, cfg, locks, paymentGW, kycGW)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
