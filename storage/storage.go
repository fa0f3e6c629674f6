// 持久层实现，提供entity.IStore的内存版与MongoDB版
// 车辆计数的钳制发生在原子更新内部，而不是事后修补——
// 信控循环与车流循环并发读写同一批道路记录，相对增量是唯一安全的写法
package storage

import (
	"errors"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound    = errors.New("storage: record not found")
	ErrDuplicateID = errors.New("storage: duplicated id")
)

// log 持久层模块的日志记录器
var log = logrus.WithField("module", "storage")

// clampCount 将车辆计数钳制到[0, capacity]
func clampCount(count, capacity int32) int32 {
	return lo.Clamp(count, 0, capacity)
}

// congestion 计算拥堵度 = count/capacity ∈ [0,1]
func congestion(count, capacity int32) float64 {
	if capacity <= 0 {
		return 0
	}
	return lo.Clamp(float64(count)/float64(capacity), 0, 1)
}
