package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
)

func newTestStore(t *testing.T) *MemoryStore {
	s := NewMemoryStore()
	ctx := context.Background()
	assert.NoError(t, s.CreateIntersection(ctx, &entity.IntersectionRecord{
		ID: 1, Name: "North Gate", IsActive: true, Algorithm: entity.AlgorithmFixed,
	}))
	assert.NoError(t, s.CreateRoad(ctx, &entity.RoadRecord{
		ID: 10, IntersectionID: 1, Name: "North Approach",
		Direction: entity.DirectionNorth, VehicleCount: 5, MaxCapacity: 20,
	}))
	assert.NoError(t, s.CreateLight(ctx, &entity.LightRecord{
		ID: 100, RoadID: 10, IntersectionID: 1,
		Status: entity.LightStatusRed, Timing: entity.LightTiming{Red: 30, Yellow: 5, Green: 25},
		IsActive: true, LastChanged: time.Now(),
	}))
	return s
}

func TestIncVehicleCountClamped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// 正向超容量钳制
	applied, err := s.IncVehicleCount(ctx, 10, 100)
	assert.NoError(t, err)
	assert.EqualValues(t, 15, applied)
	roads, _ := s.GetActiveRoads(ctx)
	assert.EqualValues(t, 20, roads[0].VehicleCount)
	assert.InDelta(t, 1.0, roads[0].CongestionLevel, 1e-9)

	// 负向下界钳制
	applied, err = s.IncVehicleCount(ctx, 10, -100)
	assert.NoError(t, err)
	assert.EqualValues(t, -20, applied)
	roads, _ = s.GetActiveRoads(ctx)
	assert.EqualValues(t, 0, roads[0].VehicleCount)
	assert.Zero(t, roads[0].CongestionLevel)

	_, err = s.IncVehicleCount(ctx, 404, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncVehicleCountConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// 大量并发的加减之后计数必须仍落在[0,容量]内
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		delta := int32(3)
		if i%2 == 1 {
			delta = -2
		}
		wg.Add(1)
		go func(d int32) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := s.IncVehicleCount(ctx, 10, d)
				assert.NoError(t, err)
			}
		}(delta)
	}
	wg.Wait()

	roads, err := s.GetActiveRoads(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, roads[0].VehicleCount, int32(0))
	assert.LessOrEqual(t, roads[0].VehicleCount, roads[0].MaxCapacity)
}

func TestSnapshotAlignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.NoError(t, s.CreateRoad(ctx, &entity.RoadRecord{
		ID: 11, IntersectionID: 1, Name: "South Approach",
		Direction: entity.DirectionSouth, MaxCapacity: 20,
	}))
	assert.NoError(t, s.CreateLight(ctx, &entity.LightRecord{
		ID: 101, RoadID: 11, IntersectionID: 1,
		Status: entity.LightStatusRed, Timing: entity.LightTiming{Red: 30, Yellow: 5, Green: 25},
		IsActive: true,
	}))

	snap, err := s.GetIntersection(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, snap.Roads, 2)
	assert.Len(t, snap.Lights, 2)
	for i := range snap.Roads {
		assert.Equal(t, snap.Roads[i].ID, snap.Lights[i].RoadID)
	}
	l, ok := snap.LightForRoad(11)
	assert.True(t, ok)
	assert.EqualValues(t, 101, l.ID)

	// 快照是深拷贝，改写副本不得影响store内部状态
	snap.Roads[0].VehicleCount = 999
	again, _ := s.GetIntersection(ctx, 1)
	assert.EqualValues(t, 5, again.Roads[0].VehicleCount)
}

func TestUpdateLightCycleCounting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	timing := entity.LightTiming{Red: 30, Yellow: 5, Green: 25}
	now := time.Now()

	assert.NoError(t, s.UpdateLight(ctx, 100, entity.LightStatusGreen, timing, now, false))
	assert.NoError(t, s.UpdateLight(ctx, 100, entity.LightStatusYellow, timing, now, false))
	assert.NoError(t, s.UpdateLight(ctx, 100, entity.LightStatusRed, timing, now, true))

	l, err := s.GetLight(ctx, 100)
	assert.NoError(t, err)
	assert.Equal(t, entity.LightStatusRed, l.Status)
	assert.EqualValues(t, 1, l.TotalCycles)
}

func TestVehicleLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	v := &entity.VehicleRecord{
		ID: "v-1", Plate: "SIM-0001", Type: entity.VehicleTypeCar,
		RoadID: 10, Speed: 40, Position: 0.2, IsMoving: true,
		Priority: entity.VehicleTypeCar.Priority(), EnteredAt: now,
	}
	assert.NoError(t, s.CreateVehicle(ctx, v))
	assert.ErrorIs(t, s.CreateVehicle(ctx, v), ErrDuplicateID)

	active, err := s.GetActiveVehicles(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, active, 1)

	exited := now.Add(8 * time.Second)
	assert.NoError(t, s.UpdateVehicle(ctx, "v-1", 1.0, 40, false, &exited))
	active, _ = s.GetActiveVehicles(ctx, 10)
	assert.Empty(t, active)

	// 保留期内不删，过期删除
	n, err := s.PurgeVehicles(ctx, exited)
	assert.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.PurgeVehicles(ctx, exited.Add(time.Second))
	assert.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
