package vehicle

import (
	"context"
	"math"
	"time"

	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity/road"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/randengine"
)

// 红灯下的排队上限位置：车辆蠕动到停车线前但不越线
const stopLinePosition = 0.99

// moveRoad 推进单条道路上的全部活跃车辆
// 功能：按信号灯当前状态决定每辆车的前进量与离开概率，
// 位置到达1.0（停车线越线）的车辆确定性离开，计数同步递减
// 算法说明：
// 1. 绿灯：前进量按车速/参考速度缩放；越线确定性离开，
//    未越线按 base+绿灯经过占比*slope 的概率（封顶max）提前离开
// 2. 黄灯（含黄闪）：低速前进；越过位置阈值的车辆大概率抢行离开，
//    远离停车线的车辆小概率离开
// 3. 红灯（含红闪与检修）：向停车线蠕动排队，绝不离开
// 返回：moved-前进车辆数，exited-离开车辆数
func (m *Manager) moveRoad(ctx context.Context, r *entity.RoadRecord, light *entity.LightRecord, e *randengine.Engine, now time.Time) (int, int, error) {
	store := m.ctx.Store()
	mv := &m.ctx.RuntimeConfig().All.Flow.Movement

	vehicles, err := store.GetActiveVehicles(ctx, r.ID)
	if err != nil {
		return 0, 0, err
	}
	if len(vehicles) == 0 {
		return 0, 0, nil
	}

	elapsed := clock.Elapsed(now, light.LastChanged)
	moved, exited := 0, 0
	for _, v := range vehicles {
		scale := 1.0
		if mv.ReferenceSpeed > 0 {
			scale = v.Speed / mv.ReferenceSpeed
		}

		pos := v.Position
		exit := false
		switch light.Status {
		case entity.LightStatusGreen:
			pos += mv.GreenAdvance * scale
			if pos >= 1 {
				exit = true
			} else {
				p := mv.BaseGreenExitProb
				if g := float64(light.Timing.Green); g > 0 {
					p += elapsed / g * mv.GreenExitSlope
				}
				exit = e.PTrueSafe(math.Min(p, mv.MaxGreenExitProb))
			}
		case entity.LightStatusYellow, entity.LightStatusFlashingYellow:
			pos += mv.YellowAdvance * scale
			if pos >= 1 {
				exit = true
			} else if pos >= mv.YellowExitPosition {
				exit = e.PTrueSafe(mv.YellowNearExitProb)
			} else {
				exit = e.PTrueSafe(mv.YellowFarExitProb)
			}
		default:
			// 红灯/红闪/检修：排队蠕动
			pos = math.Min(pos+mv.RedCreep, stopLinePosition)
		}

		if exit {
			// 先扣计数再标记离场：标记失败时回滚计数，车辆下一拍重试
			if _, err := store.IncVehicleCount(ctx, r.ID, -1); err != nil {
				return moved, exited, err
			}
			t := now
			if err := store.UpdateVehicle(ctx, v.ID, 1, v.Speed, false, &t); err != nil {
				if _, rbErr := store.IncVehicleCount(ctx, r.ID, 1); rbErr != nil {
					log.Errorf("road %d: rollback after exit failure: %v", r.ID, rbErr)
				}
				return moved, exited, err
			}
			v.Position = 1
			exited++
			continue
		}
		if pos != v.Position {
			isMoving := light.Status == entity.LightStatusGreen ||
				light.Status == entity.LightStatusYellow ||
				light.Status == entity.LightStatusFlashingYellow
			if err := store.UpdateVehicle(ctx, v.ID, pos, v.Speed, isMoving, nil); err != nil {
				return moved, exited, err
			}
			v.Position = pos
			moved++
		}
	}

	// 车速反馈：留在道路上的车辆决定下一拍算法看到的平均车速
	remaining := make([]*entity.VehicleRecord, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Position < 1 {
			remaining = append(remaining, v)
		}
	}
	if len(remaining) > 0 {
		if err := store.SetAverageSpeed(ctx, r.ID, road.AverageSpeed(remaining)); err != nil {
			return moved, exited, err
		}
	}
	return moved, exited, nil
}
