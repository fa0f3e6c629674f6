package vehicle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/randengine"
)

// profile 单个车辆类型的生成画像
type profile struct {
	Type      entity.VehicleType
	Weight    float64 // 类型占比
	BaseSpeed float64 // 基准车速（km/h）
	Prefix    string  // 车牌前缀
}

// profiles 校园车型构成
// 说明：小汽车为主，应急车辆刻意保持稀有，让抢占路径成为低频事件
var profiles = []profile{
	{entity.VehicleTypeCar, 0.70, 40, "CAR"},
	{entity.VehicleTypeMotorcycle, 0.12, 45, "MOT"},
	{entity.VehicleTypeBus, 0.08, 25, "BUS"},
	{entity.VehicleTypeTruck, 0.06, 30, "TRK"},
	{entity.VehicleTypeBicycle, 0.025, 15, "BIK"},
	{entity.VehicleTypeEmergency, 0.015, 60, "EMG"},
}

// typeWeights 供离散分布抽样的权重数组，与profiles下标对齐
var typeWeights = func() []float64 {
	ws := make([]float64, len(profiles))
	for i, p := range profiles {
		ws[i] = p.Weight
	}
	return ws
}()

// generateRoad 按灯色与时段权重在单条道路上生成新车辆
// 算法说明：
// 1. 每拍最多per_tick个生成槽位，每个槽位以 灯色权重/红灯权重 的概率成车，
//    红灯道路堆积最快，绿灯道路车流在流出、进车最慢
// 2. 工作日早晚高峰按peak_multiplier放大生成概率（窗口与启发式配时共用）
// 3. 容量守卫：先原子加计数，实际生效增量为0说明道路已满，本拍立即停止生成
// 4. 车速=类型基准速±均匀抖动，下限封底
// 说明：车辆写入失败时回滚计数，计数与车辆集合不会漂移
func (m *Manager) generateRoad(ctx context.Context, r *entity.RoadRecord, light *entity.LightRecord, e *randengine.Engine, now time.Time) (int, error) {
	store := m.ctx.Store()
	g := &m.ctx.RuntimeConfig().All.Flow.Generation
	if g.PerTick <= 0 || g.RedWeight <= 0 {
		return 0, nil
	}

	var w float64
	switch light.Status {
	case entity.LightStatusGreen:
		w = g.GreenWeight
	case entity.LightStatusYellow, entity.LightStatusFlashingYellow:
		w = g.YellowWeight
	default:
		w = g.RedWeight
	}
	p := w / g.RedWeight
	ai := &m.ctx.RuntimeConfig().All.Signal.AI
	if g.PeakMultiplier > 0 && !clock.IsWeekend(now) &&
		(ai.MorningPeak.Contains(now.Hour()) || ai.EveningPeak.Contains(now.Hour())) {
		p = math.Min(1, p*g.PeakMultiplier)
	}

	generated := 0
	for slot := 0; slot < g.PerTick; slot++ {
		if !e.PTrueSafe(p) {
			continue
		}
		applied, err := store.IncVehicleCount(ctx, r.ID, 1)
		if err != nil {
			return generated, err
		}
		if applied == 0 {
			// 道路已满
			break
		}

		prof := profiles[e.DiscreteDistributionSafe(typeWeights)%int32(len(profiles))]
		speed := math.Max(g.MinSpeed, prof.BaseSpeed+e.UniformRange(-g.SpeedJitter, g.SpeedJitter))
		v := &entity.VehicleRecord{
			ID:        uuid.NewString(),
			Plate:     fmt.Sprintf("%s-%04d", prof.Prefix, e.IntnSafe(10000)),
			Type:      prof.Type,
			RoadID:    r.ID,
			Speed:     speed,
			Position:  0,
			IsMoving:  light.Status == entity.LightStatusGreen,
			Priority:  prof.Type.Priority(),
			EnteredAt: now,
		}
		if err := store.CreateVehicle(ctx, v); err != nil {
			if _, rbErr := store.IncVehicleCount(ctx, r.ID, -1); rbErr != nil {
				log.Errorf("road %d: rollback after create failure: %v", r.ID, rbErr)
			}
			return generated, err
		}
		generated++
	}
	return generated, nil
}
