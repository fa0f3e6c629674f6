package task

import (
	"context"

	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity/junction"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/config"
)

// Context 模拟任务上下文
// 功能：包含一次模拟任务的所有变量和状态，替代全局变量
// 说明：两条评估循环（信控/车流）共享同一个Context，store是唯一事实来源
type Context struct {
	// 任务名
	job string

	// 时钟
	clock *clock.Clock
	// 存储层
	store entity.IStore

	// Junction管理器
	junctionManager entity.IJunctionManager
	// Vehicle管理器
	vehicleManager entity.IVehicleManager

	// 运行时配置
	runtimeConfig *config.RuntimeConfig
}

// NewContext 创建模拟任务上下文
// 参数：job-任务名，c-配置对象，store-存储层实现（内存或MongoDB），
// clk-时钟（测试注入冻结时钟），seed-随机数种子
func NewContext(job string, c config.Config, store entity.IStore, clk *clock.Clock, seed uint64) *Context {
	ctx := &Context{
		job:           job,
		clock:         clk,
		store:         store,
		runtimeConfig: config.NewRuntimeConfig(c),
	}
	ctx.junctionManager = junction.NewManager(ctx)
	ctx.vehicleManager = vehicle.NewManager(ctx, seed)
	return ctx
}

// Init 初始化各管理器
func (ctx *Context) Init(c context.Context) error {
	if err := ctx.junctionManager.Init(c); err != nil {
		return err
	}
	log.Infof("task %s initialized", ctx.job)
	return nil
}

// Job 获取任务名
func (ctx *Context) Job() string { return ctx.job }

// Clock 获取时钟
func (ctx *Context) Clock() *clock.Clock { return ctx.clock }

// Store 获取存储层
func (ctx *Context) Store() entity.IStore { return ctx.store }

// RuntimeConfig 获取运行时配置
func (ctx *Context) RuntimeConfig() *config.RuntimeConfig { return ctx.runtimeConfig }

// JunctionManager 获取Junction管理器
func (ctx *Context) JunctionManager() entity.IJunctionManager { return ctx.junctionManager }

// VehicleManager 获取Vehicle管理器
func (ctx *Context) VehicleManager() entity.IVehicleManager { return ctx.vehicleManager }

// RunTrafficCycle 对单个路口执行一次信控评估
func (ctx *Context) RunTrafficCycle(c context.Context, intersectionID int32) (*entity.CycleResult, error) {
	return ctx.junctionManager.RunTrafficCycle(c, intersectionID)
}

// RunVehicleFlow 执行一次车辆评估
func (ctx *Context) RunVehicleFlow(c context.Context) (*entity.FlowResult, error) {
	return ctx.vehicleManager.RunVehicleFlow(c)
}

// Override 人工覆写信号灯状态
func (ctx *Context) Override(c context.Context, lightID int32, status entity.LightStatus, reason string) error {
	return ctx.junctionManager.Override(c, lightID, status, reason)
}

// ActivateEmergency 开启路口应急模式
func (ctx *Context) ActivateEmergency(c context.Context, intersectionID int32) error {
	return ctx.junctionManager.ActivateEmergency(c, intersectionID)
}

// DeactivateEmergency 关闭路口应急模式
func (ctx *Context) DeactivateEmergency(c context.Context, intersectionID int32) error {
	return ctx.junctionManager.DeactivateEmergency(c, intersectionID)
}

// SetAlgorithm 切换路口信控算法
func (ctx *Context) SetAlgorithm(c context.Context, intersectionID int32, algo entity.Algorithm) error {
	return ctx.junctionManager.SetAlgorithm(c, intersectionID, algo)
}
