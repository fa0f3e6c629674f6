package vehicle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/storage"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/config"
)

// testContext 测试用的任务上下文：冻结时钟+内存store
type testContext struct {
	clk   *clock.Clock
	store *storage.MemoryStore
	rc    *config.RuntimeConfig
}

func (c *testContext) Clock() *clock.Clock                  { return c.clk }
func (c *testContext) Store() entity.IStore                 { return c.store }
func (c *testContext) RuntimeConfig() *config.RuntimeConfig { return c.rc }

var t0 = time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)

// newTestWorld 搭建单道路的测试现场
// 参数：status-信号灯初始状态，vehicleCount-道路计数初值，perTick-每拍生成上限
func newTestWorld(t *testing.T, status entity.LightStatus, vehicleCount int32, perTick int) (*testContext, *Manager) {
	cfg := config.Default()
	cfg.Flow.Generation.PerTick = perTick
	tc := &testContext{
		clk:   clock.NewFrozen(t0),
		store: storage.NewMemoryStore(),
		rc:    config.NewRuntimeConfig(cfg),
	}
	ctx := context.Background()
	assert.NoError(t, tc.store.CreateIntersection(ctx, &entity.IntersectionRecord{
		ID: 1, Name: "East Gate", IsActive: true, Algorithm: entity.AlgorithmFixed,
	}))
	assert.NoError(t, tc.store.CreateRoad(ctx, &entity.RoadRecord{
		ID: 10, IntersectionID: 1, Direction: entity.DirectionNorth,
		VehicleCount: vehicleCount, MaxCapacity: 20,
	}))
	assert.NoError(t, tc.store.CreateLight(ctx, &entity.LightRecord{
		ID: 100, RoadID: 10, IntersectionID: 1,
		Status:      status,
		Timing:      entity.LightTiming{Red: 30, Yellow: 5, Green: 25}.Normalized(),
		LastChanged: t0, IsActive: true,
	}))
	return tc, NewManager(tc, 42)
}

func addVehicle(t *testing.T, tc *testContext, id string, position, speed float64) {
	assert.NoError(t, tc.store.CreateVehicle(context.Background(), &entity.VehicleRecord{
		ID: id, Plate: "CAR-0001", Type: entity.VehicleTypeCar,
		RoadID: 10, Speed: speed, Position: position, IsMoving: true,
		Priority: entity.VehicleTypeCar.Priority(), EnteredAt: t0,
	}))
}

func roadState(t *testing.T, tc *testContext) *entity.RoadRecord {
	roads, err := tc.store.GetActiveRoads(context.Background())
	assert.NoError(t, err)
	assert.Len(t, roads, 1)
	return roads[0]
}

func TestGreenExitAtStopLine(t *testing.T) {
	tc, m := newTestWorld(t, entity.LightStatusGreen, 1, 0)
	// 参考速度下绿灯每拍前进0.2，0.95必然越线
	addVehicle(t, tc, "v-1", 0.95, 50)

	r, err := m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Exited)
	assert.Zero(t, roadState(t, tc).VehicleCount)

	active, _ := tc.store.GetActiveVehicles(context.Background(), 10)
	assert.Empty(t, active)
}

func TestYellowCrossesStopLine(t *testing.T) {
	tc, m := newTestWorld(t, entity.LightStatusYellow, 1, 0)
	addVehicle(t, tc, "v-1", 0.96, 50)

	r, err := m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Exited)
	assert.Zero(t, roadState(t, tc).VehicleCount)
}

func TestRedCreepNeverExits(t *testing.T) {
	tc, m := newTestWorld(t, entity.LightStatusRed, 1, 0)
	addVehicle(t, tc, "v-1", 0.9, 50)

	// 红灯下反复评估只会蠕动到停车线前，绝不越线离开
	for i := 0; i < 50; i++ {
		r, err := m.RunVehicleFlow(context.Background())
		assert.NoError(t, err)
		assert.Zero(t, r.Exited)
	}
	assert.EqualValues(t, 1, roadState(t, tc).VehicleCount)

	active, _ := tc.store.GetActiveVehicles(context.Background(), 10)
	assert.Len(t, active, 1)
	assert.Less(t, active[0].Position, 1.0)
	assert.False(t, active[0].IsMoving)
}

func TestGenerationRespectsCapacity(t *testing.T) {
	tc, m := newTestWorld(t, entity.LightStatusRed, 20, 2) // 已满载

	r, err := m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, r.Generated)
	assert.EqualValues(t, 20, roadState(t, tc).VehicleCount)
}

func TestGenerationOnRedRoad(t *testing.T) {
	tc, m := newTestWorld(t, entity.LightStatusRed, 0, 2)

	// 红灯权重/红灯权重=1，每个槽位必然成车
	r, err := m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Generated)
	assert.EqualValues(t, 2, roadState(t, tc).VehicleCount)

	active, _ := tc.store.GetActiveVehicles(context.Background(), 10)
	assert.Len(t, active, 2)
	for _, v := range active {
		assert.Zero(t, v.Position)
		assert.GreaterOrEqual(t, v.Speed, tc.rc.All.Flow.Generation.MinSpeed)
		assert.True(t, v.Type.Valid())
		// 车牌前缀来自抽中车型的画像
		for _, p := range profiles {
			if p.Type == v.Type {
				assert.True(t, strings.HasPrefix(v.Plate, p.Prefix+"-"))
			}
		}
	}
}

func TestAverageSpeedFeedback(t *testing.T) {
	tc, m := newTestWorld(t, entity.LightStatusRed, 2, 0)
	addVehicle(t, tc, "v-1", 0.1, 30)
	addVehicle(t, tc, "v-2", 0.2, 50)

	_, err := m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 40, roadState(t, tc).AverageSpeed, 1e-9)
}

// exitFailStore 在标记离场时注入失败，用于验证计数回滚
type exitFailStore struct {
	*storage.MemoryStore
	failures int
}

func (s *exitFailStore) UpdateVehicle(ctx context.Context, id string, position, speed float64, isMoving bool, exitedAt *time.Time) error {
	if exitedAt != nil && s.failures > 0 {
		s.failures--
		return errors.New("vehicle write rejected")
	}
	return s.MemoryStore.UpdateVehicle(ctx, id, position, speed, isMoving, exitedAt)
}

type failContext struct {
	*testContext
	fail *exitFailStore
}

func (c *failContext) Store() entity.IStore { return c.fail }

func TestExitFailureRollsBackCount(t *testing.T) {
	tc, _ := newTestWorld(t, entity.LightStatusGreen, 1, 0)
	addVehicle(t, tc, "v-1", 0.95, 50)
	fc := &failContext{testContext: tc, fail: &exitFailStore{MemoryStore: tc.store, failures: 1}}
	m := NewManager(fc, 42)

	// 离场标记失败：整拍报错，计数回滚，车辆仍在场
	_, err := m.RunVehicleFlow(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 1, roadState(t, tc).VehicleCount)
	active, _ := tc.store.GetActiveVehicles(context.Background(), 10)
	assert.Len(t, active, 1)

	// 下一拍重试成功离场
	r, err := m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Exited)
	assert.Zero(t, roadState(t, tc).VehicleCount)
}

func TestPurgeAfterRetention(t *testing.T) {
	tc, m := newTestWorld(t, entity.LightStatusRed, 0, 0)
	exited := t0.Add(-2 * tc.rc.Retention)
	assert.NoError(t, tc.store.CreateVehicle(context.Background(), &entity.VehicleRecord{
		ID: "old-1", Plate: "CAR-9999", Type: entity.VehicleTypeCar,
		RoadID: 10, Position: 1, EnteredAt: exited.Add(-time.Minute), ExitedAt: &exited,
	}))

	r, err := m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Purged)

	// 保留期内的不会被第二次扫描清掉
	tc.clk.Advance(tc.rc.PurgeInterval)
	recent := tc.clk.Now().Add(-time.Second)
	assert.NoError(t, tc.store.CreateVehicle(context.Background(), &entity.VehicleRecord{
		ID: "new-1", Plate: "CAR-0002", Type: entity.VehicleTypeCar,
		RoadID: 10, Position: 1, EnteredAt: t0, ExitedAt: &recent,
	}))
	r, err = m.RunVehicleFlow(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, r.Purged)
}
