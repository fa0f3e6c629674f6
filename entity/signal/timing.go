package signal

import (
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/config"
)

// profile 按算法变体计算配时与通行指标
// 返回：配时（已Normalized）、效率估计、等待时间估计
func profile(cfg *config.Signal, algo entity.Algorithm, m entity.RoadMetrics, now time.Time) (entity.LightTiming, float64, int32) {
	switch algo {
	case entity.AlgorithmFixed:
		return fixedProfile(&cfg.Fixed)
	case entity.AlgorithmAIOptimized:
		return aiProfile(&cfg.AI, m, now)
	case entity.AlgorithmEmergency:
		return emergencyProfile(&cfg.Emergency, m)
	default:
		// Select已把未知值归一到Adaptive，这里兜底同样走自适应
		return adaptiveProfile(&cfg.Adaptive, m)
	}
}

// fixedProfile 固定配时：常量配时，完全忽略交通状况，确定性基线
func fixedProfile(p *config.FixedPolicy) (entity.LightTiming, float64, int32) {
	t := entity.LightTiming{Red: p.Red, Yellow: p.Yellow, Green: p.Green}.Normalized()
	return t, 0, 0
}

// adaptiveProfile 自适应配时
// 算法说明：
// 1. green = clamp(BaseGreen + vehicleCount*PerVehicleBonus, MinGreen, MaxGreen)
// 2. red随车辆数按比例收缩，下限MinRed
// 3. efficiency = max(0, 1-congestion)
// 4. waitTime = round(red*congestion)，无车时为0
func adaptiveProfile(p *config.AdaptivePolicy, m entity.RoadMetrics) (entity.LightTiming, float64, int32) {
	green := lo.Clamp(p.BaseGreen+m.VehicleCount*p.PerVehicleBonus, p.MinGreen, p.MaxGreen)
	red := p.BaseRed - m.VehicleCount*p.RedShrinkPerVehicle
	if red < p.MinRed {
		red = p.MinRed
	}
	t := entity.LightTiming{Red: red, Yellow: p.Yellow, Green: green}.Normalized()
	efficiency := math.Max(0, 1-m.CongestionLevel)
	var wait int32
	if m.VehicleCount > 0 {
		wait = int32(math.Round(float64(red) * m.CongestionLevel))
	}
	return t, efficiency, wait
}

// aiProfile 启发式优化配时
// 功能：在自适应公式上叠加高峰倍率与车速代理，得到更大的绿灯动态范围
// 算法说明：
// 1. 倍率：高峰时段乘PeakMultiplier，周末乘WeekendDamping
// 2. speedFactor = max(MinSpeedFactor, avgSpeed/ReferenceSpeed)，慢速即拥堵
// 3. 有效负载 = vehicleCount × 倍率 ÷ speedFactor，代入自适应公式，
//    上限放宽到AI.MaxGreen
// 4. 效率用流率代理：vehicleCount × speedFactor × (1-congestion)，按容量归一
func aiProfile(p *config.AIPolicy, m entity.RoadMetrics, now time.Time) (entity.LightTiming, float64, int32) {
	multiplier := 1.0
	hour := now.Hour()
	if p.MorningPeak.Contains(hour) || p.EveningPeak.Contains(hour) {
		multiplier *= p.PeakMultiplier
	}
	if clock.IsWeekend(now) {
		multiplier *= p.WeekendDamping
	}

	speedFactor := 1.0
	if m.AverageSpeed > 0 && p.ReferenceSpeed > 0 {
		speedFactor = math.Max(p.MinSpeedFactor, m.AverageSpeed/p.ReferenceSpeed)
	}

	ap := &p.Adaptive
	load := float64(m.VehicleCount) * multiplier / speedFactor
	green := lo.Clamp(
		ap.BaseGreen+int32(math.Round(load*float64(ap.PerVehicleBonus))),
		ap.MinGreen, p.MaxGreen,
	)
	red := ap.BaseRed - m.VehicleCount*ap.RedShrinkPerVehicle
	if red < ap.MinRed {
		red = ap.MinRed
	}
	t := entity.LightTiming{Red: red, Yellow: ap.Yellow, Green: green}.Normalized()

	flow := float64(m.VehicleCount) * speedFactor * (1 - m.CongestionLevel)
	capacity := math.Max(1, float64(m.MaxCapacity))
	efficiency := lo.Clamp(flow/capacity, 0, 1)
	var wait int32
	if m.VehicleCount > 0 {
		wait = int32(math.Round(float64(red) * m.CongestionLevel))
	}
	return t, efficiency, wait
}

// emergencyProfile 应急配时：加长绿灯、压缩红灯
// 说明：道路上无应急车辆时同样使用该配时按正常相位机翻相
func emergencyProfile(p *config.EmergencyPolicy, m entity.RoadMetrics) (entity.LightTiming, float64, int32) {
	t := entity.LightTiming{Red: p.Red, Yellow: p.Yellow, Green: p.Green}.Normalized()
	return t, math.Max(0, 1-m.CongestionLevel), 0
}
