package road_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity/road"
)

func TestComputeMetrics(t *testing.T) {
	r := &entity.RoadRecord{ID: 1, VehicleCount: 10, MaxCapacity: 40, AverageSpeed: 42}
	exited := time.Now()
	vehicles := []*entity.VehicleRecord{
		{Type: entity.VehicleTypeCar, Speed: 50},
		{Type: entity.VehicleTypeBus, Speed: 30},
		// 已离开的车辆不参与均速与应急判断
		{Type: entity.VehicleTypeEmergency, Speed: 70, ExitedAt: &exited},
	}

	m := road.ComputeMetrics(r, vehicles)
	assert.Equal(t, int32(10), m.VehicleCount)
	assert.InDelta(t, 0.25, m.CongestionLevel, 1e-9)
	assert.InDelta(t, 40, m.AverageSpeed, 1e-9)
	assert.False(t, m.HasEmergency)
}

func TestComputeMetricsEmergencyAndFallbacks(t *testing.T) {
	r := &entity.RoadRecord{ID: 1, VehicleCount: 60, MaxCapacity: 40, AverageSpeed: 42}
	m := road.ComputeMetrics(r, []*entity.VehicleRecord{
		{Type: entity.VehicleTypeEmergency, Speed: 70},
	})
	// 拥堵度钳制到1，应急车辆被识别
	assert.Equal(t, 1.0, m.CongestionLevel)
	assert.True(t, m.HasEmergency)

	// 无车时均速沿用道路记录
	m = road.ComputeMetrics(r, nil)
	assert.InDelta(t, 42, m.AverageSpeed, 1e-9)
}

func TestCongestionLabel(t *testing.T) {
	assert.Equal(t, "free", road.CongestionLabel(0.1))
	assert.Equal(t, "moderate", road.CongestionLabel(0.3))
	assert.Equal(t, "heavy", road.CongestionLabel(0.6))
	assert.Equal(t, "severe", road.CongestionLabel(0.9))
}
