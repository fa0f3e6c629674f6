// Package junction 路口信控协调器
// 同一路口内的信号灯不是独立决策的：绿灯数量受green_cap约束，
// 红灯道路按压力排队竞争放行，应急车辆可以抢占一切
package junction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity/road"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity/signal"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/container"
)

// Junction 路口实体
type Junction struct {
	id  int32
	ctx entity.ITaskContext
}

// newJunction 创建路口实体
func newJunction(ctx entity.ITaskContext, id int32) *Junction {
	return &Junction{id: id, ctx: ctx}
}

// ID 获取路口ID
func (j *Junction) ID() int32 {
	return j.id
}

// lane 一次评估中单条道路及其附属状态的汇总视图
type lane struct {
	road    *entity.RoadRecord
	light   *entity.LightRecord
	metrics entity.RoadMetrics
	algo    entity.Algorithm // 本道路实际生效的算法
	changed bool             // 本拍内已发生过状态变化（刚转红的灯不参与本拍补位）
}

// elapsed 当前相位已经过的时间（秒）
func (l *lane) elapsed(now time.Time) float64 {
	return clock.Elapsed(now, l.light.LastChanged)
}

// remaining 当前相位剩余的驻留时间（秒），不为负
func (l *lane) remaining(now time.Time) float64 {
	r := float64(l.light.Timing.Phase(l.light.Status)) - l.elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}

// RunCycle 对路口执行一次信控评估
// 算法说明：
// 1. 载入路口快照，对每条道路汇总实时指标并确定生效算法
// 2. 应急抢占：存在应急车辆且其道路未放行时，先把所有绿灯降级为黄灯
//    （绿灯绝不直接跳红，黄灯必经）
// 3. 推进相位机：到时的绿灯转黄，到时的黄灯转红并计满一个周期
// 4. 放行补位：绿灯数量低于green_cap时，红灯相位到时的道路按
//    车辆数+超时等待补偿 的压力得分排队，应急道路压力压倒一切，
//    依次授予绿灯并用生效算法现算一份配时；
//    路口完全空闲时跳过红灯到时门槛，立即放行压力最大的一路
// 5. 每次状态变化写一条信控日志
// 说明：评估是幂等的——相位未到时、无补位空缺时重复调用不产生任何写入
func (j *Junction) RunCycle(ctx context.Context) (*entity.CycleResult, error) {
	store := j.ctx.Store()
	now := j.ctx.Clock().Now()
	cfg := &j.ctx.RuntimeConfig().All.Signal
	coord := &j.ctx.RuntimeConfig().C.Coordination

	snap, err := store.GetIntersection(ctx, j.id)
	if err != nil {
		return nil, err
	}
	inter := snap.Intersection

	lanes := make([]*lane, 0, len(snap.Roads))
	for i, r := range snap.Roads {
		light := snap.Lights[i]
		if !light.IsActive {
			continue
		}
		vehicles, err := store.GetActiveVehicles(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		m := road.ComputeMetrics(r, vehicles)
		lanes = append(lanes, &lane{
			road:    r,
			light:   light,
			metrics: m,
			algo:    signal.Select(inter.Algorithm, inter.EmergencyMode, m),
		})
	}

	result := &entity.CycleResult{IntersectionID: j.id}

	// 应急抢占：有待放行的应急道路时先清空绿灯，再做任何其他写入
	preempting := false
	for _, l := range lanes {
		if l.algo == entity.AlgorithmEmergency && l.metrics.HasEmergency &&
			l.light.Status != entity.LightStatusGreen {
			preempting = true
			break
		}
	}
	if preempting {
		for _, l := range lanes {
			if l.light.Status != entity.LightStatusGreen {
				continue
			}
			j.apply(ctx, result, l, signal.Decision{
				Status:  entity.LightStatusYellow,
				Timing:  l.light.Timing,
				Reason:  "emergency preemption",
				Changed: true,
			}, now, false)
		}
	}

	// 推进相位机
	for _, l := range lanes {
		if !l.light.Status.InPhaseCycle() || l.changed {
			continue
		}
		switch l.light.Status {
		case entity.LightStatusGreen:
			d := signal.Decide(cfg, l.algo, l.light, l.metrics, now)
			if d.Changed {
				j.apply(ctx, result, l, d, now, false)
			}
		case entity.LightStatusYellow:
			d := signal.Decide(cfg, l.algo, l.light, l.metrics, now)
			if d.Changed {
				// 只有真正回到红灯才算完成一个完整周期；
				// 应急放行可能把黄灯直接翻绿，此时不计周期
				j.apply(ctx, result, l, d, now, d.Status == entity.LightStatusRed)
			}
		}
	}

	// 放行补位
	// 说明：路口完全空闲（无绿无黄，起步或刚复位）时不等红灯到时，立即放行一路
	free := coord.GreenCap
	idle := true
	for _, l := range lanes {
		switch l.light.Status {
		case entity.LightStatusGreen:
			free--
			idle = false
		case entity.LightStatusYellow:
			idle = false
		}
	}
	if free > 0 {
		pq := container.NewPriorityQueue[*lane]()
		for i, l := range lanes {
			if l.light.Status != entity.LightStatusRed || l.changed {
				continue
			}
			score, ready := j.pressure(l, coord.MaxWaitSec, coord.BoostPerSec, now)
			if !ready && !idle {
				continue
			}
			// 内部是小根堆，取负让压力最大者先出队；
			// 按道路创建顺序加极小扰动，并列时先创建的道路稳定胜出
			pq.Push(l, -score+float64(i)*1e-6)
		}
		pq.Heapify()
		for free > 0 && pq.Len() > 0 {
			l, _ := pq.HeapPop()
			timing, efficiency, wait := signal.GrantTiming(cfg, l.algo, l.metrics, now)
			reason := fmt.Sprintf("%s: granted green", strings.ToLower(string(l.algo)))
			if l.algo == entity.AlgorithmEmergency && l.metrics.HasEmergency {
				reason = "emergency vehicle priority"
				wait = 0
			}
			j.apply(ctx, result, l, signal.Decision{
				Status:      entity.LightStatusGreen,
				Timing:      timing,
				Reason:      reason,
				Efficiency:  efficiency,
				WaitTimeSec: wait,
				Changed:     true,
			}, now, false)
			free--
		}
	}

	// 无变化时上报最近一次翻相的剩余时间，供展示
	if len(result.Changed) == 0 {
		result.RemainingSec = j.soonest(lanes, now)
	}
	return result, nil
}

// 应急道路的压力基数，远超任何真实车辆数与等待补偿
const emergencyPressure = 1 << 30

// pressure 红灯道路的放行压力得分
// 返回：score-压力得分，ready-是否具备放行资格（红灯相位到时或应急）
func (j *Junction) pressure(l *lane, maxWaitSec, boostPerSec float64, now time.Time) (float64, bool) {
	if l.algo == entity.AlgorithmEmergency && l.metrics.HasEmergency {
		// 多条应急道路之间仍按车辆数裁决
		return emergencyPressure + float64(l.metrics.VehicleCount), true
	}
	elapsed := l.elapsed(now)
	score := float64(l.metrics.VehicleCount)
	if over := elapsed - maxWaitSec; over > 0 {
		// 久等的道路逐秒获得补偿，避免低流量方向被饿死
		score += over * boostPerSec
	}
	// 得分始终按车辆数计算：空闲路口跳过到时门槛放行时仍要选最拥挤的一路
	return score, elapsed >= float64(l.light.Timing.Red)
}

// soonest 所有在相位循环内的灯中最近一次翻相的剩余时间
func (j *Junction) soonest(lanes []*lane, now time.Time) float64 {
	best := mathutil.INF
	for _, l := range lanes {
		if !l.light.Status.InPhaseCycle() {
			continue
		}
		if r := l.remaining(now); r < best {
			best = r
		}
	}
	if best == mathutil.INF {
		return 0
	}
	return best
}

// apply 落实一次状态变化：校验配时、写回store、记录日志
// 说明：配时非法时保留灯上原有配时，只推进状态，绝不让坏参数链进入存储
func (j *Junction) apply(ctx context.Context, result *entity.CycleResult, l *lane, d signal.Decision, now time.Time, cycleDone bool) {
	timing := d.Timing.Normalized()
	if !timing.Valid() {
		log.Warnf("junction %d light %d: invalid timing %+v, keeping previous",
			j.id, l.light.ID, d.Timing)
		timing = l.light.Timing
	}
	if err := j.ctx.Store().UpdateLight(ctx, l.light.ID, d.Status, timing, now, cycleDone); err != nil {
		log.Errorf("junction %d light %d: update failed: %v", j.id, l.light.ID, err)
		return
	}
	prev := l.light.Status
	result.Changed = append(result.Changed, entity.ChangedLight{
		LightID: l.light.ID,
		RoadID:  l.road.ID,
		From:    prev,
		To:      d.Status,
		Reason:  d.Reason,
	})
	if err := j.ctx.Store().AppendLog(ctx, &entity.LogRecord{
		LightID:        l.light.ID,
		IntersectionID: j.id,
		PreviousStatus: prev,
		NewStatus:      d.Status,
		Reason:         d.Reason,
		VehicleCount:   l.metrics.VehicleCount,
		Efficiency:     d.Efficiency,
		WaitTimeSec:    d.WaitTimeSec,
		CreatedAt:      now,
	}); err != nil {
		log.Errorf("junction %d light %d: append log failed: %v", j.id, l.light.ID, err)
	}
	// 同一拍内后续判断要看到新状态
	l.light.Status = d.Status
	l.light.Timing = timing
	l.light.LastChanged = now
	l.changed = true
}
