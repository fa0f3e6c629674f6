package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler 双循环调度器
// 功能：按各自的节拍驱动信控评估与车流评估两条独立循环
// 说明：单拍评估超过节拍时跳过本拍而不是排队，保证循环不会滚雪球落后
type Scheduler struct {
	ctx *Context

	signalBusy atomic.Bool
	flowBusy   atomic.Bool
	signalTick atomic.Int64
	flowTick   atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler 创建调度器
func NewScheduler(ctx *Context) *Scheduler {
	return &Scheduler{ctx: ctx}
}

// Start 启动两条评估循环
// 算法说明：
// 1. 信控循环按signal_interval节拍对所有启用路口并行评估
// 2. 车流循环按flow_interval节拍推进车辆生成与流动
// 3. 每heartbeat_every拍输出一次心跳日志
func (s *Scheduler) Start(parent context.Context) {
	c, cancel := context.WithCancel(parent)
	s.cancel = cancel
	rc := s.ctx.RuntimeConfig()

	s.wg.Add(1)
	go s.loop(c, rc.SignalInterval, &s.signalBusy, &s.signalTick, s.runSignal)
	s.wg.Add(1)
	go s.loop(c, rc.FlowInterval, &s.flowBusy, &s.flowTick, s.runFlow)
	log.Infof("scheduler started: signal every %s, flow every %s",
		rc.SignalInterval, rc.FlowInterval)
}

// Stop 停止调度器并等待在途评估结束
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Infof("scheduler stopped after %d signal ticks, %d flow ticks",
		s.signalTick.Load(), s.flowTick.Load())
}

// loop 单条评估循环
// 说明：每拍评估在独立goroutine中执行，busy标志保证同一循环不重入：
// 上一拍还没结束时新节拍直接丢弃，而不是排队滚雪球
func (s *Scheduler) loop(c context.Context, interval time.Duration, busy *atomic.Bool, tick *atomic.Int64, run func(context.Context, int64)) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
			if !busy.CompareAndSwap(false, true) {
				log.Warnf("tick overrun, skipping")
				continue
			}
			n := tick.Add(1)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer busy.Store(false)
				run(c, n)
			}()
		}
	}
}

// runSignal 一拍信控评估
func (s *Scheduler) runSignal(c context.Context, tick int64) {
	results := s.ctx.JunctionManager().RunAll(c)
	changed := 0
	for _, r := range results {
		changed += len(r.Changed)
	}
	if tick%int64(s.ctx.RuntimeConfig().C.HeartbeatEvery) == 0 {
		log.Infof("SIGNAL TICK %d: %d junctions, %d changes (%s)",
			tick, len(results), changed, s.ctx.Clock().Now().Format(time.TimeOnly))
	} else if changed > 0 {
		log.Debugf("signal tick %d: %d changes", tick, changed)
	}
}

// runFlow 一拍车流评估
func (s *Scheduler) runFlow(c context.Context, tick int64) {
	result, err := s.ctx.RunVehicleFlow(c)
	if err != nil {
		log.Errorf("flow tick %d failed: %v", tick, err)
		return
	}
	if tick%int64(s.ctx.RuntimeConfig().C.HeartbeatEvery) == 0 {
		log.Infof("FLOW TICK %d: %s", tick, result)
	}
}
