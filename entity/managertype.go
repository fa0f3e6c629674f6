package entity

import "context"

// Manager依赖倒置

// entity/junction/manager.go的依赖倒置
type IJunctionManager interface {
	Init(ctx context.Context) error // 初始化，从store载入启用路口

	// 输入Junction ID，查找Junction，如果不存在则panic
	Get(id int32) IJunction
	// 输入Junction ID，查找Junction，如果不存在则返回error
	GetOrError(id int32) (IJunction, error)

	// RunTrafficCycle 对单个路口执行一次信控评估
	RunTrafficCycle(ctx context.Context, intersectionID int32) (*CycleResult, error)
	// RunAll 对所有启用路口并行执行一次信控评估，单个路口失败不影响其他路口
	RunAll(ctx context.Context) []*CycleResult

	// Override 人工覆写单个信号灯状态，绕过算法一拍，单独记录日志
	Override(ctx context.Context, lightID int32, status LightStatus, reason string) error
	// ActivateEmergency 开启路口应急模式，所有信号灯按应急配时趋向绿灯
	ActivateEmergency(ctx context.Context, intersectionID int32) error
	// DeactivateEmergency 关闭路口应急模式
	DeactivateEmergency(ctx context.Context, intersectionID int32) error
	// SetAlgorithm 切换路口信控算法
	SetAlgorithm(ctx context.Context, intersectionID int32, algo Algorithm) error
}

// entity/junction/junction.go的依赖倒置
type IJunction interface {
	ID() int32 // 获取Junction ID
	// RunCycle 执行一次信控评估：分类灯态、推进相位机、挑选下一个绿灯
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// entity/vehicle/manager.go的依赖倒置
type IVehicleManager interface {
	// RunVehicleFlow 对所有启用道路执行一次车辆生成与流动评估
	RunVehicleFlow(ctx context.Context) (*FlowResult, error)
}
