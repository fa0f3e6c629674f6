// Package vehicle 车辆生成与流动模型
// 车流是信控算法的激励源：红灯堆积车辆，绿灯放行车辆，
// 平均车速回写道路记录，作为启发式优化算法的输入
package vehicle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/randengine"
)

// Manager 车辆管理器
type Manager struct {
	ctx  entity.ITaskContext
	seed uint64

	mtx     sync.Mutex
	engines map[int32]*randengine.Engine // 道路ID->随机数引擎，按道路播种保证逐道路可复现

	lastPurge time.Time
}

// NewManager 创建车辆管理器
func NewManager(ctx entity.ITaskContext, seed uint64) *Manager {
	return &Manager{
		ctx:     ctx,
		seed:    seed,
		engines: make(map[int32]*randengine.Engine),
	}
}

// engine 获取道路的随机数引擎，首次访问时创建
func (m *Manager) engine(roadID int32) *randengine.Engine {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	e, ok := m.engines[roadID]
	if !ok {
		e = randengine.New(m.seed + uint64(roadID))
		m.engines[roadID] = e
	}
	return e
}

// RunVehicleFlow 对所有启用道路执行一次车辆评估
// 算法说明：
// 1. 逐条道路：先推进已有车辆（前进/离开），再按灯色权重生成新车辆
// 2. 流动后把活跃车辆的实测平均车速回写道路记录
// 3. 按purge_interval定期清除超过保留期的已离开车辆
// 说明：先动后生——新生成的车辆要等到下一拍才开始移动
func (m *Manager) RunVehicleFlow(ctx context.Context) (*entity.FlowResult, error) {
	store := m.ctx.Store()
	now := m.ctx.Clock().Now()
	result := &entity.FlowResult{}

	roads, err := store.GetActiveRoads(ctx)
	if err != nil {
		return nil, fmt.Errorf("vehicle flow: %w", err)
	}
	for _, r := range roads {
		light, err := store.GetLightForRoad(ctx, r.ID)
		if err != nil {
			log.Warnf("road %d has no light, skipping: %v", r.ID, err)
			continue
		}
		e := m.engine(r.ID)

		moved, exited, err := m.moveRoad(ctx, r, light, e, now)
		if err != nil {
			return nil, err
		}
		result.Moved += moved
		result.Exited += exited

		generated, err := m.generateRoad(ctx, r, light, e, now)
		if err != nil {
			return nil, err
		}
		result.Generated += generated
	}

	if m.lastPurge.IsZero() || now.Sub(m.lastPurge) >= m.ctx.RuntimeConfig().PurgeInterval {
		n, err := store.PurgeVehicles(ctx, now.Add(-m.ctx.RuntimeConfig().Retention))
		if err != nil {
			log.Errorf("purge vehicles failed: %v", err)
		} else {
			result.Purged = int(n)
		}
		m.lastPurge = now
	}
	return result, nil
}
