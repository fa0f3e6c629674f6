// 提供可互换的信控配时算法家族
// 四种变体（固定/自适应/启发式优化/应急）共享同一个RED→GREEN→YELLOW→RED相位机，
// 差异全部落在配时策略参数上，调参是数据而非代码分叉
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/config"
)

// Decision 一次信控决策的输出
type Decision struct {
	Status      entity.LightStatus // 决策后的状态
	Timing      entity.LightTiming // 决策后的配时（翻相时更新）
	Reason      string             // 决策原因，写入日志
	Efficiency  float64            // 通行效率估计 ∈ [0,1]
	WaitTimeSec int32              // 等待时间估计（秒）
	Changed     bool               // 是否发生状态变化
}

// Select 选择实际生效的算法
// 功能：应急压倒一切——道路上存在应急车辆或路口处于应急模式时强制使用应急变体；
// 否则按路口配置分发，未知算法值回退到自适应，绝不让一拍评估失败
func Select(configured entity.Algorithm, emergencyMode bool, m entity.RoadMetrics) entity.Algorithm {
	if emergencyMode || m.HasEmergency {
		return entity.AlgorithmEmergency
	}
	if !configured.Valid() {
		log.Warnf("unknown algorithm %q, falling back to %s", configured, entity.AlgorithmAdaptive)
		return entity.AlgorithmAdaptive
	}
	return configured
}

// NextStatus 相位机的唯一合法推进：RED→GREEN→YELLOW→RED
// 说明：不存在GREEN→RED的直接跳变，YELLOW必经
func NextStatus(s entity.LightStatus) entity.LightStatus {
	switch s {
	case entity.LightStatusRed:
		return entity.LightStatusGreen
	case entity.LightStatusGreen:
		return entity.LightStatusYellow
	case entity.LightStatusYellow:
		return entity.LightStatusRed
	}
	// 驻留状态不推进
	return s
}

// Decide 对单盏信号灯执行一次决策
// 功能：四种算法共用的入口——先按变体算出配时与指标，再跑共享相位机
// 参数：cfg-策略参数，algo-生效算法（应经过Select），light-信号灯快照，
// m-所属道路实时指标，now-当前时间
// 算法说明：
// 1. 驻留状态（闪烁/检修）不做任何决策
// 2. 应急变体且道路上有应急车辆时，无论当前相位与经过时间，立即强制绿灯
// 3. 其余情况：当前相位经过时间不足配时驻留时长则保持现状（elapsed=0幂等），
//    到时则推进到下一相位并带上新算出的配时
// 说明：相位驻留时长取灯当前存储的配时，新配时从翻相时刻才开始约束
func Decide(cfg *config.Signal, algo entity.Algorithm, light *entity.LightRecord, m entity.RoadMetrics, now time.Time) Decision {
	if !light.Status.InPhaseCycle() {
		return Decision{Status: light.Status, Timing: light.Timing}
	}

	timing, efficiency, wait := profile(cfg, algo, m, now)

	if algo == entity.AlgorithmEmergency && m.HasEmergency && light.Status != entity.LightStatusGreen {
		return Decision{
			Status:      entity.LightStatusGreen,
			Timing:      timing,
			Reason:      "emergency vehicle priority",
			Efficiency:  efficiency,
			WaitTimeSec: 0,
			Changed:     true,
		}
	}

	elapsed := clock.Elapsed(now, light.LastChanged)
	dwell := light.Timing.Phase(light.Status)
	if elapsed < float64(dwell) {
		return Decision{
			Status:      light.Status,
			Timing:      light.Timing,
			Efficiency:  efficiency,
			WaitTimeSec: wait,
		}
	}
	next := NextStatus(light.Status)
	return Decision{
		Status:      next,
		Timing:      timing,
		Reason:      fmt.Sprintf("%s: %s phase elapsed", strings.ToLower(string(algo)), strings.ToLower(string(light.Status))),
		Efficiency:  efficiency,
		WaitTimeSec: wait,
		Changed:     true,
	}
}

// GrantTiming 为即将放行的道路计算一份新配时
// 说明：协调器把绿灯让给下一条道路时调用，和Decide使用同一套变体公式
func GrantTiming(cfg *config.Signal, algo entity.Algorithm, m entity.RoadMetrics, now time.Time) (entity.LightTiming, float64, int32) {
	return profile(cfg, algo, m, now)
}
