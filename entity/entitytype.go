package entity

import (
	"fmt"
	"time"
)

// LightStatus 信号灯状态
type LightStatus string

const (
	LightStatusRed            LightStatus = "RED"             // 红灯
	LightStatusYellow         LightStatus = "YELLOW"          // 黄灯
	LightStatusGreen          LightStatus = "GREEN"           // 绿灯
	LightStatusFlashingRed    LightStatus = "FLASHING_RED"    // 红闪（等效停车再通行）
	LightStatusFlashingYellow LightStatus = "FLASHING_YELLOW" // 黄闪（减速通行）
	LightStatusMaintenance    LightStatus = "MAINTENANCE"     // 检修（不参与信控）
)

// Valid 检查信号灯状态是否为枚举中的合法值
func (s LightStatus) Valid() bool {
	switch s {
	case LightStatusRed, LightStatusYellow, LightStatusGreen,
		LightStatusFlashingRed, LightStatusFlashingYellow, LightStatusMaintenance:
		return true
	}
	return false
}

// InPhaseCycle 检查状态是否参与RED→GREEN→YELLOW→RED相位机
// 说明：闪烁与检修为驻留状态，只能由人工干预进出，算法不会触碰
func (s LightStatus) InPhaseCycle() bool {
	switch s {
	case LightStatusRed, LightStatusYellow, LightStatusGreen:
		return true
	}
	return false
}

// VehicleType 车辆类型
type VehicleType string

const (
	VehicleTypeCar        VehicleType = "CAR"
	VehicleTypeBus        VehicleType = "BUS"
	VehicleTypeMotorcycle VehicleType = "MOTORCYCLE"
	VehicleTypeTruck      VehicleType = "TRUCK"
	VehicleTypeEmergency  VehicleType = "EMERGENCY"
	VehicleTypeBicycle    VehicleType = "BICYCLE"
)

// Valid 检查车辆类型是否为枚举中的合法值
func (t VehicleType) Valid() bool {
	switch t {
	case VehicleTypeCar, VehicleTypeBus, VehicleTypeMotorcycle,
		VehicleTypeTruck, VehicleTypeEmergency, VehicleTypeBicycle:
		return true
	}
	return false
}

// Priority 获取车辆优先级，应急车辆为2，其余为1
func (t VehicleType) Priority() int32 {
	if t == VehicleTypeEmergency {
		return 2
	}
	return 1
}

// Algorithm 信控算法类型
type Algorithm string

const (
	AlgorithmFixed       Algorithm = "FIXED"        // 固定配时
	AlgorithmAdaptive    Algorithm = "ADAPTIVE"     // 自适应配时
	AlgorithmAIOptimized Algorithm = "AI_OPTIMIZED" // 启发式优化配时（高峰时段+车速代理）
	AlgorithmEmergency   Algorithm = "EMERGENCY"    // 应急配时
)

// Valid 检查算法类型是否为枚举中的合法值
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmFixed, AlgorithmAdaptive, AlgorithmAIOptimized, AlgorithmEmergency:
		return true
	}
	return false
}

// Direction 道路朝向，8个罗盘方向
type Direction string

const (
	DirectionNorth     Direction = "NORTH"
	DirectionNortheast Direction = "NORTHEAST"
	DirectionEast      Direction = "EAST"
	DirectionSoutheast Direction = "SOUTHEAST"
	DirectionSouth     Direction = "SOUTH"
	DirectionSouthwest Direction = "SOUTHWEST"
	DirectionWest      Direction = "WEST"
	DirectionNorthwest Direction = "NORTHWEST"
)

// Valid 检查道路朝向是否为枚举中的合法值
func (d Direction) Valid() bool {
	switch d {
	case DirectionNorth, DirectionNortheast, DirectionEast, DirectionSoutheast,
		DirectionSouth, DirectionSouthwest, DirectionWest, DirectionNorthwest:
		return true
	}
	return false
}

// LightTiming 信号灯配时，单位为整秒
// 不变量：Cycle == Red + Yellow + Green
type LightTiming struct {
	Red    int32 `bson:"red" json:"red"`
	Yellow int32 `bson:"yellow" json:"yellow"`
	Green  int32 `bson:"green" json:"green"`
	Cycle  int32 `bson:"cycle" json:"cycle"`
}

// Normalized 返回周期等于三相位之和的配时副本
// 说明：所有写入store的配时都应先经过Normalized，保证周期不变量恒成立
func (t LightTiming) Normalized() LightTiming {
	t.Cycle = t.Red + t.Yellow + t.Green
	return t
}

// Valid 检查配时合法性：三相位均为正且周期等于其和
func (t LightTiming) Valid() bool {
	return t.Red > 0 && t.Yellow > 0 && t.Green > 0 &&
		t.Cycle == t.Red+t.Yellow+t.Green
}

// Phase 获取指定相位状态的驻留秒数
// 参数：s-相位状态，仅对RED/YELLOW/GREEN有意义
// 返回：该相位的秒数，非相位状态返回0
func (t LightTiming) Phase(s LightStatus) int32 {
	switch s {
	case LightStatusRed:
		return t.Red
	case LightStatusYellow:
		return t.Yellow
	case LightStatusGreen:
		return t.Green
	}
	return 0
}

// IntersectionRecord 路口记录
// 说明：路口在开通时创建，模拟过程中只会因算法切换或应急/复位操作被修改，不会销毁
type IntersectionRecord struct {
	ID            int32     `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	Location      string    `bson:"location" json:"location"`
	IsActive      bool      `bson:"is_active" json:"isActive"`
	Algorithm     Algorithm `bson:"algorithm" json:"algorithm"`
	Priority      int32     `bson:"priority" json:"priority"`            // 仅作为并列时的权重
	EmergencyMode bool      `bson:"emergency_mode" json:"emergencyMode"` // 应急模式开关
	RoadIDs       []int32   `bson:"road_ids" json:"roadIds"`             // 按创建顺序排列，作为稳定的并列裁决依据
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
}

// RoadRecord 道路记录
// 不变量：0 <= VehicleCount <= MaxCapacity，CongestionLevel = VehicleCount/MaxCapacity ∈ [0,1]
type RoadRecord struct {
	ID              int32     `bson:"_id" json:"id"`
	IntersectionID  int32     `bson:"intersection_id" json:"intersectionId"`
	Name            string    `bson:"name" json:"name"`
	Direction       Direction `bson:"direction" json:"direction"`
	VehicleCount    int32     `bson:"vehicle_count" json:"vehicleCount"`
	MaxCapacity     int32     `bson:"max_capacity" json:"maxCapacity"`
	CongestionLevel float64   `bson:"congestion_level" json:"congestionLevel"`
	AverageSpeed    float64   `bson:"average_speed" json:"averageSpeed"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`
}

// LightRecord 信号灯记录，每条道路一盏
type LightRecord struct {
	ID             int32       `bson:"_id" json:"id"`
	RoadID         int32       `bson:"road_id" json:"roadId"`
	IntersectionID int32       `bson:"intersection_id" json:"intersectionId"`
	Status         LightStatus `bson:"status" json:"status"`
	Timing         LightTiming `bson:"timing" json:"timing"`
	LastChanged    time.Time   `bson:"last_changed" json:"lastChanged"`
	TotalCycles    int64       `bson:"total_cycles" json:"totalCycles"` // 每次重新进入RED计一整周期
	IsActive       bool        `bson:"is_active" json:"isActive"`
}

// VehicleRecord 车辆记录
// 说明：由生成器创建，流动模型每拍修改，ExitedAt置位后逻辑销毁，保留期过后物理删除
type VehicleRecord struct {
	ID        string      `bson:"_id" json:"id"`
	Plate     string      `bson:"plate" json:"plate"`
	Type      VehicleType `bson:"type" json:"type"`
	RoadID    int32       `bson:"road_id" json:"roadId"`
	Speed     float64     `bson:"speed" json:"speed"`
	Position  float64     `bson:"position" json:"position"` // 沿道路归一化位置∈[0,1]，1为停车线
	IsMoving  bool        `bson:"is_moving" json:"isMoving"`
	Priority  int32       `bson:"priority" json:"priority"`
	EnteredAt time.Time   `bson:"entered_at" json:"enteredAt"`
	ExitedAt  *time.Time  `bson:"exited_at,omitempty" json:"exitedAt,omitempty"`
}

// Exited 判断车辆是否已离开道路
func (v *VehicleRecord) Exited() bool {
	return v.ExitedAt != nil
}

// LogRecord 信控日志记录，只追加，从不修改
type LogRecord struct {
	LightID        int32       `bson:"light_id" json:"lightId"`
	IntersectionID int32       `bson:"intersection_id" json:"intersectionId"`
	PreviousStatus LightStatus `bson:"previous_status" json:"previousStatus"`
	NewStatus      LightStatus `bson:"new_status" json:"newStatus"`
	Reason         string      `bson:"reason" json:"reason"`
	VehicleCount   int32       `bson:"vehicle_count" json:"vehicleCount"`
	Efficiency     float64     `bson:"efficiency" json:"efficiency"`
	WaitTimeSec    int32       `bson:"wait_time_sec" json:"waitTimeSec"`
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
}

// IntersectionSnapshot 路口快照，一次读取路口及其全部道路与信号灯
// 说明：Roads与Lights按道路创建顺序一一对应
type IntersectionSnapshot struct {
	Intersection *IntersectionRecord
	Roads        []*RoadRecord
	Lights       []*LightRecord
}

// LightForRoad 在快照内查找道路对应的信号灯
func (s *IntersectionSnapshot) LightForRoad(roadID int32) (*LightRecord, bool) {
	for _, l := range s.Lights {
		if l.RoadID == roadID {
			return l, true
		}
	}
	return nil, false
}

// RoadMetrics 道路实时指标，作为信控算法的输入
type RoadMetrics struct {
	VehicleCount    int32   // 当前车辆数
	MaxCapacity     int32   // 道路容量
	CongestionLevel float64 // 拥堵度 = VehicleCount/MaxCapacity ∈ [0,1]
	AverageSpeed    float64 // 平均车速
	HasEmergency    bool    // 是否有应急车辆在道路上
}

// ChangedLight 一次信控评估中发生状态变化的信号灯
type ChangedLight struct {
	LightID int32       `json:"lightId"`
	RoadID  int32       `json:"roadId"`
	From    LightStatus `json:"from"`
	To      LightStatus `json:"to"`
	Reason  string      `json:"reason"`
}

// CycleResult 一次路口信控评估的结果
type CycleResult struct {
	IntersectionID int32          `json:"intersectionId"`
	Changed        []ChangedLight `json:"changedLights"`
	RemainingSec   float64        `json:"remainingSec"` // 当前活跃相位剩余时间（无变化时供展示）
}

func (r *CycleResult) String() string {
	return fmt.Sprintf("CycleResult{junction=%d changed=%d}", r.IntersectionID, len(r.Changed))
}

// FlowResult 一次车辆流动评估的结果
type FlowResult struct {
	Generated int `json:"generated"` // 新生成车辆数
	Moved     int `json:"moved"`     // 前进车辆数
	Exited    int `json:"exited"`    // 离开道路车辆数
	Purged    int `json:"purged"`    // 超过保留期被清除的车辆数
}

func (r *FlowResult) String() string {
	return fmt.Sprintf("FlowResult{generated=%d moved=%d exited=%d purged=%d}",
		r.Generated, r.Moved, r.Exited, r.Purged)
}
