package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
)

// MemoryStore 内存版store
// 功能：单机演示与测试使用，语义与MongoDB版一致
// 说明：读操作返回深拷贝快照，写操作在锁内完成钳制，保证两条评估循环并发安全
type MemoryStore struct {
	mu sync.RWMutex

	intersections map[int32]*entity.IntersectionRecord
	roads         map[int32]*entity.RoadRecord
	lights        map[int32]*entity.LightRecord
	lightByRoad   map[int32]int32 // 道路ID->信号灯ID
	vehicles      map[string]*entity.VehicleRecord
	logs          []*entity.LogRecord
}

// NewMemoryStore 创建内存版store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intersections: make(map[int32]*entity.IntersectionRecord),
		roads:         make(map[int32]*entity.RoadRecord),
		lights:        make(map[int32]*entity.LightRecord),
		lightByRoad:   make(map[int32]int32),
		vehicles:      make(map[string]*entity.VehicleRecord),
		logs:          make([]*entity.LogRecord, 0),
	}
}

func cloneIntersection(r *entity.IntersectionRecord) *entity.IntersectionRecord {
	c := *r
	c.RoadIDs = append([]int32(nil), r.RoadIDs...)
	return &c
}

func cloneRoad(r *entity.RoadRecord) *entity.RoadRecord {
	c := *r
	return &c
}

func cloneLight(r *entity.LightRecord) *entity.LightRecord {
	c := *r
	return &c
}

func cloneVehicle(r *entity.VehicleRecord) *entity.VehicleRecord {
	c := *r
	if r.ExitedAt != nil {
		t := *r.ExitedAt
		c.ExitedAt = &t
	}
	return &c
}

// GetIntersection 获取路口快照
// 说明：道路与信号灯按RoadIDs的创建顺序排列，一一对应
func (s *MemoryStore) GetIntersection(_ context.Context, id int32) (*entity.IntersectionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inter, ok := s.intersections[id]
	if !ok {
		return nil, fmt.Errorf("intersection %d: %w", id, ErrNotFound)
	}
	snap := &entity.IntersectionSnapshot{Intersection: cloneIntersection(inter)}
	for _, roadID := range inter.RoadIDs {
		r, ok := s.roads[roadID]
		if !ok {
			return nil, fmt.Errorf("road %d of intersection %d: %w", roadID, id, ErrNotFound)
		}
		lightID, ok := s.lightByRoad[roadID]
		if !ok {
			return nil, fmt.Errorf("light of road %d: %w", roadID, ErrNotFound)
		}
		snap.Roads = append(snap.Roads, cloneRoad(r))
		snap.Lights = append(snap.Lights, cloneLight(s.lights[lightID]))
	}
	return snap, nil
}

// GetActiveIntersectionIDs 获取所有启用路口的ID（升序，保证遍历顺序确定）
func (s *MemoryStore) GetActiveIntersectionIDs(_ context.Context) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int32, 0)
	for id, inter := range s.intersections {
		if inter.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// GetActiveRoads 获取所有启用路口下的道路（按道路ID升序）
func (s *MemoryStore) GetActiveRoads(_ context.Context) ([]*entity.RoadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roads := make([]*entity.RoadRecord, 0)
	for _, r := range s.roads {
		if inter, ok := s.intersections[r.IntersectionID]; ok && inter.IsActive {
			roads = append(roads, cloneRoad(r))
		}
	}
	sort.Slice(roads, func(i, j int) bool { return roads[i].ID < roads[j].ID })
	return roads, nil
}

// GetLight 获取信号灯
func (s *MemoryStore) GetLight(_ context.Context, id int32) (*entity.LightRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lights[id]
	if !ok {
		return nil, fmt.Errorf("light %d: %w", id, ErrNotFound)
	}
	return cloneLight(l), nil
}

// GetLightForRoad 获取道路对应的信号灯
func (s *MemoryStore) GetLightForRoad(_ context.Context, roadID int32) (*entity.LightRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lightID, ok := s.lightByRoad[roadID]
	if !ok {
		return nil, fmt.Errorf("light of road %d: %w", roadID, ErrNotFound)
	}
	return cloneLight(s.lights[lightID]), nil
}

// GetActiveVehicles 获取道路上未离开的车辆（按进入时间升序）
func (s *MemoryStore) GetActiveVehicles(_ context.Context, roadID int32) ([]*entity.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vehicles := make([]*entity.VehicleRecord, 0)
	for _, v := range s.vehicles {
		if v.RoadID == roadID && !v.Exited() {
			vehicles = append(vehicles, cloneVehicle(v))
		}
	}
	sort.Slice(vehicles, func(i, j int) bool {
		if vehicles[i].EnteredAt.Equal(vehicles[j].EnteredAt) {
			return vehicles[i].ID < vehicles[j].ID
		}
		return vehicles[i].EnteredAt.Before(vehicles[j].EnteredAt)
	})
	return vehicles, nil
}

// UpdateLight 更新信号灯状态与配时
func (s *MemoryStore) UpdateLight(_ context.Context, id int32, status entity.LightStatus, timing entity.LightTiming, lastChanged time.Time, cycleDone bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lights[id]
	if !ok {
		return fmt.Errorf("light %d: %w", id, ErrNotFound)
	}
	l.Status = status
	l.Timing = timing
	l.LastChanged = lastChanged
	if cycleDone {
		l.TotalCycles++
	}
	return nil
}

// IncVehicleCount 车辆计数的原子相对更新
// 说明：钳制在锁内完成，返回实际生效的增量，调用方据此得知是否被钳制
func (s *MemoryStore) IncVehicleCount(_ context.Context, roadID int32, delta int32) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roads[roadID]
	if !ok {
		return 0, fmt.Errorf("road %d: %w", roadID, ErrNotFound)
	}
	before := r.VehicleCount
	r.VehicleCount = clampCount(before+delta, r.MaxCapacity)
	r.CongestionLevel = congestion(r.VehicleCount, r.MaxCapacity)
	return r.VehicleCount - before, nil
}

// SetAverageSpeed 更新道路平均车速
func (s *MemoryStore) SetAverageSpeed(_ context.Context, roadID int32, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roads[roadID]
	if !ok {
		return fmt.Errorf("road %d: %w", roadID, ErrNotFound)
	}
	r.AverageSpeed = v
	return nil
}

// SetAlgorithm 切换路口信控算法
func (s *MemoryStore) SetAlgorithm(_ context.Context, intersectionID int32, algo entity.Algorithm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inter, ok := s.intersections[intersectionID]
	if !ok {
		return fmt.Errorf("intersection %d: %w", intersectionID, ErrNotFound)
	}
	inter.Algorithm = algo
	return nil
}

// SetEmergencyMode 设置路口应急模式
func (s *MemoryStore) SetEmergencyMode(_ context.Context, intersectionID int32, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inter, ok := s.intersections[intersectionID]
	if !ok {
		return fmt.Errorf("intersection %d: %w", intersectionID, ErrNotFound)
	}
	inter.EmergencyMode = on
	return nil
}

// CreateVehicle 创建车辆
func (s *MemoryStore) CreateVehicle(_ context.Context, v *entity.VehicleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[v.ID]; ok {
		return fmt.Errorf("vehicle %s: %w", v.ID, ErrDuplicateID)
	}
	s.vehicles[v.ID] = cloneVehicle(v)
	return nil
}

// UpdateVehicle 更新车辆运行时状态
func (s *MemoryStore) UpdateVehicle(_ context.Context, id string, position, speed float64, isMoving bool, exitedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return fmt.Errorf("vehicle %s: %w", id, ErrNotFound)
	}
	v.Position = position
	v.Speed = speed
	v.IsMoving = isMoving
	if exitedAt != nil {
		t := *exitedAt
		v.ExitedAt = &t
	}
	return nil
}

// PurgeVehicles 物理删除保留期外的已离开车辆
func (s *MemoryStore) PurgeVehicles(_ context.Context, exitedBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, v := range s.vehicles {
		if v.Exited() && v.ExitedAt.Before(exitedBefore) {
			delete(s.vehicles, id)
			n++
		}
	}
	return n, nil
}

// AppendLog 追加信控日志
func (s *MemoryStore) AppendLog(_ context.Context, entry *entity.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	s.logs = append(s.logs, &e)
	return nil
}

// Logs 获取全部日志的副本（测试与调试用，不属于IStore契约）
func (s *MemoryStore) Logs() []*entity.LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.logs, func(e *entity.LogRecord, _ int) *entity.LogRecord {
		c := *e
		return &c
	})
}

// CreateIntersection 创建路口
func (s *MemoryStore) CreateIntersection(_ context.Context, r *entity.IntersectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intersections[r.ID]; ok {
		return fmt.Errorf("intersection %d: %w", r.ID, ErrDuplicateID)
	}
	s.intersections[r.ID] = cloneIntersection(r)
	return nil
}

// CreateRoad 创建道路并登记到所属路口
func (s *MemoryStore) CreateRoad(_ context.Context, r *entity.RoadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roads[r.ID]; ok {
		return fmt.Errorf("road %d: %w", r.ID, ErrDuplicateID)
	}
	inter, ok := s.intersections[r.IntersectionID]
	if !ok {
		return fmt.Errorf("intersection %d: %w", r.IntersectionID, ErrNotFound)
	}
	c := cloneRoad(r)
	c.CongestionLevel = congestion(c.VehicleCount, c.MaxCapacity)
	s.roads[r.ID] = c
	inter.RoadIDs = append(inter.RoadIDs, r.ID)
	return nil
}

// CreateLight 创建信号灯
func (s *MemoryStore) CreateLight(_ context.Context, r *entity.LightRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lights[r.ID]; ok {
		return fmt.Errorf("light %d: %w", r.ID, ErrDuplicateID)
	}
	if _, ok := s.lightByRoad[r.RoadID]; ok {
		return fmt.Errorf("road %d already has a light: %w", r.RoadID, ErrDuplicateID)
	}
	s.lights[r.ID] = cloneLight(r)
	s.lightByRoad[r.RoadID] = r.ID
	return nil
}
