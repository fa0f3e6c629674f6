package entity

import (
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	Store() IStore
	RuntimeConfig() *config.RuntimeConfig
}
