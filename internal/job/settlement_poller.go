package job

import (
	"context"
	"log"
	"time"

	"investwallet/internal/config"
	"investwallet/internal/service"
)

// SettlementPoller 结算轮询补偿任务
// 回调可能丢失，这里兜底：周期扫描长时间停在 pending/processing 的交易，
// 主动向服务商查证并通过对账器幂等推进。本地不做取消——
// 服务商往返一旦发起，只有服务商的终态通知（或查证结果）能关闭交易。
type SettlementPoller struct {
	reconcile *service.ReconcileService
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	staleFor  time.Duration
	batchSize int
}

func NewSettlementPoller(reconcile *service.ReconcileService, cfg *config.Config) *SettlementPoller {
	interval := time.Duration(cfg.Business.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	staleFor := time.Duration(cfg.Business.PollStaleMinutes) * time.Minute
	if staleFor <= 0 {
		staleFor = 5 * time.Minute
	}

	return &SettlementPoller{
		reconcile: reconcile,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  interval,
		staleFor:  staleFor,
		batchSize: 50,
	}
}

func (j *SettlementPoller) Start(ctx context.Context) {
	log.Println("[SettlementPoller] 结算轮询任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[SettlementPoller] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[SettlementPoller] 任务停止")
			return
		case <-ticker.C:
			j.pollStaleTransactions(ctx)
		}
	}
}

func (j *SettlementPoller) Stop() {
	close(j.stopCh)
}

func (j *SettlementPoller) pollStaleTransactions(ctx context.Context) {
	staleBefore := time.Now().Add(-j.staleFor)

	advanced, err := j.reconcile.ReconcileStale(ctx, staleBefore, j.batchSize)
	if err != nil {
		log.Printf("[SettlementPoller] 补偿轮询失败: %v", err)
		return
	}

	if advanced > 0 {
		log.Printf("[SettlementPoller] 本次推进 %d 笔交易", advanced)
	}
}
