package clock

import (
	"fmt"
	"sync"
	"time"
)

// Elapsed 计算自since以来经过的秒数
// 功能：信号灯相位机的唯一时间输入，纯函数
// 说明：since为零值或晚于now时返回0，保证新建/被覆写的灯不会立即翻相
func Elapsed(now, since time.Time) float64 {
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return now.Sub(since).Seconds()
}

// IsWeekend 判断是否为周末
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Clock 仿真时钟
// 功能：为调度器与信控算法提供统一的当前时间，默认跟随墙钟
// 说明：测试中可冻结并手工推进，避免对time.Now的直接依赖散落在核心逻辑里
type Clock struct {
	mu     sync.Mutex
	frozen *time.Time // 非nil时时钟被冻结
}

// New 创建跟随墙钟的时钟
func New() *Clock {
	return &Clock{}
}

// NewFrozen 创建冻结在指定时刻的时钟（测试用）
func NewFrozen(t time.Time) *Clock {
	return &Clock{frozen: &t}
}

// Now 获取当前时间
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen != nil {
		return *c.frozen
	}
	return time.Now()
}

// Advance 将冻结的时钟向前推进d
// 说明：仅对冻结时钟有效，对墙钟时钟不做任何事
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen != nil {
		t := c.frozen.Add(d)
		c.frozen = &t
	}
}

// String 获取时钟的字符串表示（HH:MM:SS）
func (c *Clock) String() string {
	t := c.Now()
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}
