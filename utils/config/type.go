package config

// Input 指定持久层数据来源的配置
// 说明：URI非空时使用MongoDB作为store，否则使用内存store（单机演示/测试）
type Input struct {
	URI string `yaml:"uri,omitempty"` // MongoDB连接字符串
	DB  string `yaml:"db,omitempty"`  // 数据库名
}

// ControlStep 指定两条独立评估循环的节拍间隔
// 说明：信控循环与车流循环并发运行，节拍超时跳过不排队
type ControlStep struct {
	SignalInterval float64 `yaml:"signal_interval"` // 信控评估间隔（秒）
	FlowInterval   float64 `yaml:"flow_interval"`   // 车流评估间隔（秒）
}

// Coordination 路口协调策略
type Coordination struct {
	GreenCap    int     `yaml:"green_cap"`     // 同一路口同时绿灯的上限
	MaxWaitSec  float64 `yaml:"max_wait_sec"`  // 红灯等待超过该时长后开始获得优先级补偿
	BoostPerSec float64 `yaml:"boost_per_sec"` // 超时等待每秒折算的车辆数补偿
}

// Control 模拟器控制配置
type Control struct {
	Step             ControlStep  `yaml:"step"`
	Coordination     Coordination `yaml:"coordination"`
	HeartbeatEvery   int          `yaml:"heartbeat_every,omitempty"`   // 心跳日志间隔节拍数
	RetentionSec     float64      `yaml:"retention_sec,omitempty"`     // 已离开车辆的保留期（秒）
	PurgeIntervalSec float64      `yaml:"purge_interval_sec,omitempty"` // 清除扫描间隔（秒）
}

// PeakWindow 高峰时段 [Start, End) 小时
type PeakWindow struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains 判断小时是否落在高峰窗口内
func (w PeakWindow) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// FixedPolicy 固定配时策略，完全忽略交通状况，作为确定性基线
type FixedPolicy struct {
	Red    int32 `yaml:"red"`
	Yellow int32 `yaml:"yellow"`
	Green  int32 `yaml:"green"`
}

// AdaptivePolicy 自适应配时策略
// green = clamp(BaseGreen + vehicleCount*PerVehicleBonus, MinGreen, MaxGreen)
// red   = max(MinRed, BaseRed - vehicleCount*RedShrinkPerVehicle)
type AdaptivePolicy struct {
	BaseGreen           int32 `yaml:"base_green"`
	PerVehicleBonus     int32 `yaml:"per_vehicle_bonus"`
	MinGreen            int32 `yaml:"min_green"`
	MaxGreen            int32 `yaml:"max_green"`
	BaseRed             int32 `yaml:"base_red"`
	RedShrinkPerVehicle int32 `yaml:"red_shrink_per_vehicle"`
	MinRed              int32 `yaml:"min_red"`
	Yellow              int32 `yaml:"yellow"`
}

// AIPolicy 启发式优化配时策略，在自适应公式上叠加高峰倍率与车速代理
type AIPolicy struct {
	Adaptive       AdaptivePolicy `yaml:"adaptive"`
	MaxGreen       int32          `yaml:"max_green"`        // 高峰期允许的更大绿灯上限
	ReferenceSpeed float64        `yaml:"reference_speed"`  // 车速代理参考速度
	MinSpeedFactor float64        `yaml:"min_speed_factor"` // speedFactor下限
	PeakMultiplier float64        `yaml:"peak_multiplier"`  // 高峰时段车流权重倍率
	WeekendDamping float64        `yaml:"weekend_damping"`  // 周末的倍率折减
	MorningPeak    PeakWindow     `yaml:"morning_peak"`
	EveningPeak    PeakWindow     `yaml:"evening_peak"`
}

// EmergencyPolicy 应急配时策略：加长绿灯、压缩红灯
type EmergencyPolicy struct {
	Green  int32 `yaml:"green"`
	Red    int32 `yaml:"red"`
	Yellow int32 `yaml:"yellow"`
}

// Signal 四种信控策略的参数集合
// 说明：算法家族共享一个相位机，差异全部体现在这里的数据上
type Signal struct {
	Fixed     FixedPolicy     `yaml:"fixed"`
	Adaptive  AdaptivePolicy  `yaml:"adaptive"`
	AI        AIPolicy        `yaml:"ai"`
	Emergency EmergencyPolicy `yaml:"emergency"`
}

// Generation 车辆生成策略
// 说明：高峰时段沿用AIPolicy的窗口定义，校园的早晚高峰只有一份
type Generation struct {
	PerTick        int     `yaml:"per_tick"`        // 每拍生成车辆数上限
	RedWeight      float64 `yaml:"red_weight"`      // 红灯道路的生成权重（车辆堆积）
	YellowWeight   float64 `yaml:"yellow_weight"`   // 黄灯道路的生成权重
	GreenWeight    float64 `yaml:"green_weight"`    // 绿灯道路的生成权重（车流在流出）
	PeakMultiplier float64 `yaml:"peak_multiplier"` // 高峰时段的生成概率倍率
	SpeedJitter    float64 `yaml:"speed_jitter"`    // 车速均匀抖动幅度（±）
	MinSpeed       float64 `yaml:"min_speed"`       // 车速下限
}

// Movement 车辆流动策略
type Movement struct {
	BaseGreenExitProb  float64 `yaml:"base_green_exit_prob"`  // 绿灯基础离开概率
	GreenExitSlope     float64 `yaml:"green_exit_slope"`      // 随绿灯经过时间增长的斜率
	MaxGreenExitProb   float64 `yaml:"max_green_exit_prob"`   // 绿灯离开概率上限
	YellowExitPosition float64 `yaml:"yellow_exit_position"`  // 黄灯下视为已接近停车线的位置阈值
	YellowNearExitProb float64 `yaml:"yellow_near_exit_prob"` // 黄灯且接近停车线的离开概率
	YellowFarExitProb  float64 `yaml:"yellow_far_exit_prob"`  // 黄灯且远离停车线的离开概率
	GreenAdvance       float64 `yaml:"green_advance"`         // 绿灯每拍基准前进量（参考速度下）
	YellowAdvance      float64 `yaml:"yellow_advance"`        // 黄灯每拍基准前进量
	RedCreep           float64 `yaml:"red_creep"`             // 红灯每拍蠕动量
	ReferenceSpeed     float64 `yaml:"reference_speed"`       // 前进量按车速/参考速度缩放
}

// Flow 车辆生成与流动策略的集合
type Flow struct {
	Generation Generation `yaml:"generation"`
	Movement   Movement   `yaml:"movement"`
}

// Config YAML配置文件的根结构
type Config struct {
	Input   Input   `yaml:"input"`   // 输入
	Control Control `yaml:"control"` // 模拟过程控制
	Signal  Signal  `yaml:"signal"`  // 信控策略参数
	Flow    Flow    `yaml:"flow"`    // 车流策略参数
}
