package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/storage"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/config"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/input"
)

var t0 = time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)

// newDemoTask 灌入演示校园并初始化任务上下文
func newDemoTask(t *testing.T) (*Context, *clock.Clock, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	c := config.Default()
	assert.NoError(t, input.Demo().Provision(context.Background(), store,
		entity.LightTiming{Red: 30, Yellow: 5, Green: 25}, t0))

	clk := clock.NewFrozen(t0)
	tc := NewContext("test", c, store, clk, 7)
	assert.NoError(t, tc.Init(context.Background()))
	return tc, clk, store
}

func TestEndToEndTicks(t *testing.T) {
	tc, clk, store := newDemoTask(t)
	ctx := context.Background()

	// 跑一段时间的双循环：车流堆积车辆，信控循环放行
	for i := 0; i < 120; i++ {
		clk.Advance(2 * time.Second)
		_, err := tc.RunVehicleFlow(ctx)
		assert.NoError(t, err)
		for _, id := range []int32{1, 2} {
			r, err := tc.RunTrafficCycle(ctx, id)
			assert.NoError(t, err)
			assert.EqualValues(t, id, r.IntersectionID)
		}
	}

	// 每个路口绿灯数不超过上限，道路计数都在[0,容量]内
	for _, id := range []int32{1, 2} {
		snap, err := store.GetIntersection(ctx, id)
		assert.NoError(t, err)
		greens := 0
		for _, l := range snap.Lights {
			if l.Status == entity.LightStatusGreen {
				greens++
			}
		}
		assert.LessOrEqual(t, greens, 1)
		for _, r := range snap.Roads {
			assert.GreaterOrEqual(t, r.VehicleCount, int32(0))
			assert.LessOrEqual(t, r.VehicleCount, r.MaxCapacity)
		}
	}
	// 信控日志已经在累积
	assert.NotEmpty(t, store.Logs())
}

func TestContextOperations(t *testing.T) {
	tc, _, store := newDemoTask(t)
	ctx := context.Background()

	assert.NoError(t, tc.SetAlgorithm(ctx, 1, entity.AlgorithmAIOptimized))
	assert.NoError(t, tc.ActivateEmergency(ctx, 2))
	assert.NoError(t, tc.Override(ctx, 101, entity.LightStatusFlashingYellow, "night mode"))

	snap, err := store.GetIntersection(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, entity.AlgorithmAIOptimized, snap.Intersection.Algorithm)
	snap, _ = store.GetIntersection(ctx, 2)
	assert.True(t, snap.Intersection.EmergencyMode)

	l, err := store.GetLight(ctx, 101)
	assert.NoError(t, err)
	assert.Equal(t, entity.LightStatusFlashingYellow, l.Status)
}

func TestSchedulerStartStop(t *testing.T) {
	store := storage.NewMemoryStore()
	assert.NoError(t, input.Demo().Provision(context.Background(), store,
		entity.LightTiming{Red: 30, Yellow: 5, Green: 25}, time.Now()))

	c := config.Default()
	c.Control.Step.SignalInterval = 0.01
	c.Control.Step.FlowInterval = 0.01
	tc := NewContext("sched", c, store, clock.New(), 7)
	assert.NoError(t, tc.Init(context.Background()))

	s := NewScheduler(tc)
	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	// 两条循环都跑起来过
	assert.Positive(t, s.signalTick.Load())
	assert.Positive(t, s.flowTick.Load())
}

func TestSchedulerSkipsOverrunTicks(t *testing.T) {
	s := NewScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())
	var busy atomic.Bool
	var tick atomic.Int64
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	run := func(context.Context, int64) {
		started <- struct{}{}
		<-release
	}

	s.wg.Add(1)
	go s.loop(ctx, 5*time.Millisecond, &busy, &tick, run)
	<-started

	// 首拍阻塞期间后续节拍全部被丢弃，不排队、不计数
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, tick.Load())

	cancel()
	close(release)
	s.wg.Wait()
}
