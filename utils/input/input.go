// 路网布局的加载与写入，模拟开始前把校园路网灌入store
package input

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"gopkg.in/yaml.v2"
)

// Layout 校园路网布局
// 说明：standalone运行时的输入数据——周边产品在开通时创建路口，
// 独立运行的模拟器需要先灌入一份路网才有东西可以模拟
type Layout struct {
	Intersections []Intersection `yaml:"intersections"`
}

// Intersection 布局中的单个路口
type Intersection struct {
	ID        int32  `yaml:"id"`
	Name      string `yaml:"name"`
	Location  string `yaml:"location,omitempty"`
	Algorithm string `yaml:"algorithm,omitempty"` // 缺省FIXED
	Priority  int32  `yaml:"priority,omitempty"`
	Roads     []Road `yaml:"roads"`
}

// Road 布局中的单条道路及其信号灯
type Road struct {
	ID           int32  `yaml:"id"`
	LightID      int32  `yaml:"light_id"`
	Name         string `yaml:"name,omitempty"`
	Direction    string `yaml:"direction"`
	MaxCapacity  int32  `yaml:"max_capacity"`
	VehicleCount int32  `yaml:"vehicle_count,omitempty"` // 初始车辆计数
}

// Load 从YAML文件加载路网布局
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load layout: %w", err)
	}
	l := &Layout{}
	if err := yaml.UnmarshalStrict(data, l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	return l, nil
}

// Demo 内置的演示校园：两个路口、七条道路
func Demo() *Layout {
	return &Layout{Intersections: []Intersection{
		{
			ID: 1, Name: "Main Gate", Location: "South Campus", Roads: []Road{
				{ID: 11, LightID: 101, Name: "Gate North Approach", Direction: "NORTH", MaxCapacity: 20},
				{ID: 12, LightID: 102, Name: "Gate East Approach", Direction: "EAST", MaxCapacity: 15},
				{ID: 13, LightID: 103, Name: "Gate South Approach", Direction: "SOUTH", MaxCapacity: 20},
				{ID: 14, LightID: 104, Name: "Gate West Approach", Direction: "WEST", MaxCapacity: 15},
			},
		},
		{
			ID: 2, Name: "Library Cross", Location: "Central Campus", Algorithm: "ADAPTIVE", Roads: []Road{
				{ID: 21, LightID: 201, Name: "Library North Approach", Direction: "NORTH", MaxCapacity: 12},
				{ID: 22, LightID: 202, Name: "Library East Approach", Direction: "EAST", MaxCapacity: 12},
				{ID: 23, LightID: 203, Name: "Library South Approach", Direction: "SOUTH", MaxCapacity: 12},
			},
		},
	}}
}

// Provision 把布局写入store
// 功能：创建路口、道路与信号灯，信号灯初始全红并使用给定配时
// 参数：now-灌入时刻，作为所有信号灯的初始lastChanged
// 说明：枚举字段在写入前校验，坏布局在模拟开始前就失败
func (l *Layout) Provision(ctx context.Context, store entity.IStore, timing entity.LightTiming, now time.Time) error {
	timing = timing.Normalized()
	if !timing.Valid() {
		return fmt.Errorf("invalid initial timing %+v", timing)
	}
	for _, in := range l.Intersections {
		algo := entity.Algorithm(in.Algorithm)
		if in.Algorithm == "" {
			algo = entity.AlgorithmFixed
		}
		if !algo.Valid() {
			return fmt.Errorf("intersection %d: invalid algorithm %q", in.ID, in.Algorithm)
		}
		if err := store.CreateIntersection(ctx, &entity.IntersectionRecord{
			ID:        in.ID,
			Name:      in.Name,
			Location:  in.Location,
			IsActive:  true,
			Algorithm: algo,
			Priority:  in.Priority,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		for _, r := range in.Roads {
			dir := entity.Direction(r.Direction)
			if !dir.Valid() {
				return fmt.Errorf("road %d: invalid direction %q", r.ID, r.Direction)
			}
			if r.MaxCapacity <= 0 {
				return fmt.Errorf("road %d: max_capacity must be positive", r.ID)
			}
			if err := store.CreateRoad(ctx, &entity.RoadRecord{
				ID:             r.ID,
				IntersectionID: in.ID,
				Name:           r.Name,
				Direction:      dir,
				VehicleCount:   r.VehicleCount,
				MaxCapacity:    r.MaxCapacity,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
			if err := store.CreateLight(ctx, &entity.LightRecord{
				ID:             r.LightID,
				RoadID:         r.ID,
				IntersectionID: in.ID,
				Status:         entity.LightStatusRed,
				Timing:         timing,
				LastChanged:    now,
				IsActive:       true,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
