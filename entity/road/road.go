// 道路实时指标计算，信控算法与车流模型的共同输入
package road

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
)

// AverageSpeed 计算活跃车辆的平均车速
// 返回：平均车速，无活跃车辆时返回0
func AverageSpeed(vehicles []*entity.VehicleRecord) float64 {
	active := lo.Filter(vehicles, func(v *entity.VehicleRecord, _ int) bool {
		return !v.Exited()
	})
	if len(active) == 0 {
		return 0
	}
	sum := .0
	for _, v := range active {
		sum += v.Speed
	}
	return sum / float64(len(active))
}

// HasEmergency 判断道路上是否有未离开的应急车辆
func HasEmergency(vehicles []*entity.VehicleRecord) bool {
	return lo.SomeBy(vehicles, func(v *entity.VehicleRecord) bool {
		return v.Type == entity.VehicleTypeEmergency && !v.Exited()
	})
}

// ComputeMetrics 根据道路记录与其车辆集合计算实时指标
// 功能：拥堵度按车辆数/容量钳制到[0,1]，平均车速优先取活跃车辆实测，
// 无车时沿用道路记录里的上一次均值
func ComputeMetrics(r *entity.RoadRecord, vehicles []*entity.VehicleRecord) entity.RoadMetrics {
	m := entity.RoadMetrics{
		VehicleCount: r.VehicleCount,
		MaxCapacity:  r.MaxCapacity,
		AverageSpeed: r.AverageSpeed,
		HasEmergency: HasEmergency(vehicles),
	}
	if r.MaxCapacity > 0 {
		m.CongestionLevel = lo.Clamp(float64(r.VehicleCount)/float64(r.MaxCapacity), 0, 1)
	}
	if v := AverageSpeed(vehicles); v > 0 {
		m.AverageSpeed = v
	}
	return m
}

// CongestionLabel 拥堵度分级，供日志与仪表盘展示
func CongestionLabel(level float64) string {
	switch {
	case level < 0.25:
		return "free"
	case level < 0.5:
		return "moderate"
	case level < 0.75:
		return "heavy"
	default:
		return "severe"
	}
}
