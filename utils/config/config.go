package config

import "time"

// Default 缺省配置
// 功能：给出一套可直接运行的策略参数，YAML中出现的字段覆盖对应缺省值
// 说明：数值是策略数据而非代码常量，调参不应改动任何算法代码
func Default() Config {
	return Config{
		Control: Control{
			Step: ControlStep{
				SignalInterval: 5,
				FlowInterval:   2,
			},
			Coordination: Coordination{
				GreenCap:    1,
				MaxWaitSec:  120,
				BoostPerSec: 0.5,
			},
			HeartbeatEvery:   100,
			RetentionSec:     60,
			PurgeIntervalSec: 30,
		},
		Signal: Signal{
			Fixed: FixedPolicy{Red: 30, Yellow: 5, Green: 25},
			Adaptive: AdaptivePolicy{
				BaseGreen:           10,
				PerVehicleBonus:     1,
				MinGreen:            8,
				MaxGreen:            30,
				BaseRed:             30,
				RedShrinkPerVehicle: 1,
				MinRed:              10,
				Yellow:              5,
			},
			AI: AIPolicy{
				Adaptive: AdaptivePolicy{
					BaseGreen:           10,
					PerVehicleBonus:     1,
					MinGreen:            8,
					MaxGreen:            30,
					BaseRed:             30,
					RedShrinkPerVehicle: 1,
					MinRed:              8,
					Yellow:              5,
				},
				MaxGreen:       45,
				ReferenceSpeed: 50,
				MinSpeedFactor: 0.5,
				PeakMultiplier: 1.5,
				WeekendDamping: 0.7,
				MorningPeak:    PeakWindow{Start: 7, End: 9},
				EveningPeak:    PeakWindow{Start: 17, End: 19},
			},
			Emergency: EmergencyPolicy{Green: 40, Red: 10, Yellow: 5},
		},
		Flow: Flow{
			Generation: Generation{
				PerTick:        2,
				RedWeight:      3,
				YellowWeight:   2,
				GreenWeight:    1,
				PeakMultiplier: 1.5,
				SpeedJitter:    10,
				MinSpeed:       5,
			},
			Movement: Movement{
				BaseGreenExitProb:  0.5,
				GreenExitSlope:     0.4,
				MaxGreenExitProb:   0.9,
				YellowExitPosition: 0.75,
				YellowNearExitProb: 0.8,
				YellowFarExitProb:  0.1,
				GreenAdvance:       0.2,
				YellowAdvance:      0.05,
				RedCreep:           0.01,
				ReferenceSpeed:     50,
			},
		},
	}
}

// RuntimeConfig 运行时配置
// 说明：将YAML配置转换为运行时可用的配置对象，并换算出常用的派生值
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	SignalInterval time.Duration // 信控循环节拍
	FlowInterval   time.Duration // 车流循环节拍
	Retention      time.Duration // 已离开车辆的保留期
	PurgeInterval  time.Duration // 清除扫描间隔
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 说明：间隔为0或负值时回退到缺省值，保证两条循环一定能运转
func NewRuntimeConfig(config Config) *RuntimeConfig {
	def := Default()
	if config.Control.Step.SignalInterval <= 0 {
		config.Control.Step.SignalInterval = def.Control.Step.SignalInterval
	}
	if config.Control.Step.FlowInterval <= 0 {
		config.Control.Step.FlowInterval = def.Control.Step.FlowInterval
	}
	if config.Control.Coordination.GreenCap <= 0 {
		config.Control.Coordination.GreenCap = def.Control.Coordination.GreenCap
	}
	if config.Control.HeartbeatEvery <= 0 {
		config.Control.HeartbeatEvery = def.Control.HeartbeatEvery
	}
	if config.Control.RetentionSec <= 0 {
		config.Control.RetentionSec = def.Control.RetentionSec
	}
	if config.Control.PurgeIntervalSec <= 0 {
		config.Control.PurgeIntervalSec = def.Control.PurgeIntervalSec
	}

	rc := &RuntimeConfig{}
	rc.All = config
	rc.C = config.Control
	rc.SignalInterval = time.Duration(config.Control.Step.SignalInterval * float64(time.Second))
	rc.FlowInterval = time.Duration(config.Control.Step.FlowInterval * float64(time.Second))
	rc.Retention = time.Duration(config.Control.RetentionSec * float64(time.Second))
	rc.PurgeInterval = time.Duration(config.Control.PurgeIntervalSec * float64(time.Second))
	return rc
}
