package junction

import (
	"context"
	"fmt"
	"strings"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
)

// Manager 路口管理器
type Manager struct {
	ctx entity.ITaskContext

	ids       []int32 // 启用路口ID（升序，遍历顺序稳定）
	junctions map[int32]*Junction
}

// NewManager 创建路口管理器
func NewManager(ctx entity.ITaskContext) *Manager {
	return &Manager{
		ctx:       ctx,
		junctions: make(map[int32]*Junction),
	}
}

// Init 初始化，从store载入所有启用路口
func (m *Manager) Init(ctx context.Context) error {
	ids, err := m.ctx.Store().GetActiveIntersectionIDs(ctx)
	if err != nil {
		return fmt.Errorf("load active intersections: %w", err)
	}
	m.ids = ids
	for _, id := range ids {
		m.junctions[id] = newJunction(m.ctx, id)
	}
	log.Infof("junction manager initialized with %d intersections", len(ids))
	return nil
}

// Get 输入路口ID，查找路口，如果不存在则panic
func (m *Manager) Get(id int32) entity.IJunction {
	if j, ok := m.junctions[id]; ok {
		return j
	}
	log.Panicf("no junction with id %d", id)
	panic("unreachable")
}

// GetOrError 输入路口ID，查找路口，如果不存在则返回error
func (m *Manager) GetOrError(id int32) (entity.IJunction, error) {
	if j, ok := m.junctions[id]; ok {
		return j, nil
	}
	return nil, fmt.Errorf("no junction with id %d", id)
}

// RunTrafficCycle 对单个路口执行一次信控评估
func (m *Manager) RunTrafficCycle(ctx context.Context, intersectionID int32) (*entity.CycleResult, error) {
	j, err := m.GetOrError(intersectionID)
	if err != nil {
		return nil, err
	}
	return j.RunCycle(ctx)
}

// RunAll 对所有启用路口并行执行一次信控评估
// 说明：单个路口评估失败只记日志，不影响其他路口
func (m *Manager) RunAll(ctx context.Context) []*entity.CycleResult {
	return parallel.GoMapFilter(m.ids, func(id int32) (*entity.CycleResult, bool) {
		r, err := m.junctions[id].RunCycle(ctx)
		if err != nil {
			log.Errorf("junction %d: cycle failed: %v", id, err)
			return nil, false
		}
		return r, true
	})
}

// Override 人工覆写单个信号灯状态
// 功能：绕过算法直接设定状态，配时保持灯上原值，单独记录manual日志
// 说明：覆写只持续到下一拍评估——相位机会从新状态继续正常推进
func (m *Manager) Override(ctx context.Context, lightID int32, status entity.LightStatus, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid light status %q", status)
	}
	store := m.ctx.Store()
	now := m.ctx.Clock().Now()

	light, err := store.GetLight(ctx, lightID)
	if err != nil {
		return err
	}
	if light.Status == status {
		return nil
	}
	if err := store.UpdateLight(ctx, lightID, status, light.Timing, now, false); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "operator request"
	}
	entry := &entity.LogRecord{
		LightID:        lightID,
		IntersectionID: light.IntersectionID,
		PreviousStatus: light.Status,
		NewStatus:      status,
		Reason:         fmt.Sprintf("manual: %s", reason),
		CreatedAt:      now,
	}
	if err := store.AppendLog(ctx, entry); err != nil {
		log.Errorf("light %d: append override log failed: %v", lightID, err)
	}
	log.Infof("light %d overridden %s -> %s (%s)", lightID, light.Status, status, reason)
	return nil
}

// ActivateEmergency 开启路口应急模式
func (m *Manager) ActivateEmergency(ctx context.Context, intersectionID int32) error {
	if _, err := m.GetOrError(intersectionID); err != nil {
		return err
	}
	if err := m.ctx.Store().SetEmergencyMode(ctx, intersectionID, true); err != nil {
		return err
	}
	log.Warnf("junction %d: emergency mode activated", intersectionID)
	return nil
}

// DeactivateEmergency 关闭路口应急模式
func (m *Manager) DeactivateEmergency(ctx context.Context, intersectionID int32) error {
	if _, err := m.GetOrError(intersectionID); err != nil {
		return err
	}
	if err := m.ctx.Store().SetEmergencyMode(ctx, intersectionID, false); err != nil {
		return err
	}
	log.Infof("junction %d: emergency mode deactivated", intersectionID)
	return nil
}

// SetAlgorithm 切换路口信控算法
// 说明：从下一拍评估开始生效，正在走的相位不被打断
func (m *Manager) SetAlgorithm(ctx context.Context, intersectionID int32, algo entity.Algorithm) error {
	if !algo.Valid() {
		return fmt.Errorf("invalid algorithm %q", algo)
	}
	if _, err := m.GetOrError(intersectionID); err != nil {
		return err
	}
	if err := m.ctx.Store().SetAlgorithm(ctx, intersectionID, algo); err != nil {
		return err
	}
	log.Infof("junction %d: algorithm set to %s", intersectionID, algo)
	return nil
}
