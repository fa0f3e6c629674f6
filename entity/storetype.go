package entity

import (
	"context"
	"time"
)

// storage包的依赖倒置，表达核心对持久层的接口需求
// 核心每拍从store读取快照、写回增量，不持有跨拍的实体对象图

// IStore 持久层接口
type IStore interface {
	// 读取

	GetIntersection(ctx context.Context, id int32) (*IntersectionSnapshot, error) // 获取路口快照（路口+道路+信号灯）
	GetActiveIntersectionIDs(ctx context.Context) ([]int32, error)                // 获取所有启用路口的ID
	GetActiveRoads(ctx context.Context) ([]*RoadRecord, error)                    // 获取所有启用路口下的道路
	GetLight(ctx context.Context, id int32) (*LightRecord, error)                 // 获取信号灯
	GetLightForRoad(ctx context.Context, roadID int32) (*LightRecord, error)      // 获取道路对应的信号灯
	GetActiveVehicles(ctx context.Context, roadID int32) ([]*VehicleRecord, error) // 获取道路上未离开的车辆

	// 写入

	// UpdateLight 更新信号灯状态与配时
	// cycleDone为true时TotalCycles加一（重新进入RED视为完成一整周期）
	UpdateLight(ctx context.Context, id int32, status LightStatus, timing LightTiming, lastChanged time.Time, cycleDone bool) error
	// IncVehicleCount 对道路车辆数做原子相对更新，在store内部钳制到[0, MaxCapacity]并重算拥堵度
	// 返回实际生效的增量（被钳制时可能为0或小于|delta|）
	IncVehicleCount(ctx context.Context, roadID int32, delta int32) (applied int32, err error)
	SetAverageSpeed(ctx context.Context, roadID int32, v float64) error       // 更新道路平均车速
	SetAlgorithm(ctx context.Context, intersectionID int32, algo Algorithm) error // 切换路口信控算法
	SetEmergencyMode(ctx context.Context, intersectionID int32, on bool) error    // 设置路口应急模式

	CreateVehicle(ctx context.Context, v *VehicleRecord) error // 创建车辆
	// UpdateVehicle 更新车辆运行时状态，exitedAt非nil表示车辆离开道路
	UpdateVehicle(ctx context.Context, id string, position, speed float64, isMoving bool, exitedAt *time.Time) error
	// PurgeVehicles 物理删除在exitedBefore之前已离开的车辆，返回删除数量
	PurgeVehicles(ctx context.Context, exitedBefore time.Time) (int64, error)

	AppendLog(ctx context.Context, entry *LogRecord) error // 追加信控日志

	// 开通（provisioning）

	CreateIntersection(ctx context.Context, r *IntersectionRecord) error
	CreateRoad(ctx context.Context, r *RoadRecord) error
	CreateLight(ctx context.Context, r *LightRecord) error
}
