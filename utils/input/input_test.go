package input

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/storage"
)

var timing = entity.LightTiming{Red: 30, Yellow: 5, Green: 25}

func TestProvisionDemoCampus(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)
	assert.NoError(t, Demo().Provision(context.Background(), store, timing, now))

	ids, err := store.GetActiveIntersectionIDs(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, ids)

	roads, err := store.GetActiveRoads(context.Background())
	assert.NoError(t, err)
	assert.Len(t, roads, 7)

	// 所有信号灯初始全红、配时一致、lastChanged为灌入时刻
	for _, r := range roads {
		l, err := store.GetLightForRoad(context.Background(), r.ID)
		assert.NoError(t, err)
		assert.Equal(t, entity.LightStatusRed, l.Status)
		assert.Equal(t, timing.Normalized(), l.Timing)
		assert.Equal(t, now, l.LastChanged)
	}
}

func TestProvisionRejectsBadLayout(t *testing.T) {
	ctx := context.Background()

	bad := &Layout{Intersections: []Intersection{{
		ID: 1, Name: "Bad", Roads: []Road{
			{ID: 11, LightID: 101, Direction: "UP", MaxCapacity: 10},
		},
	}}}
	assert.Error(t, bad.Provision(ctx, storage.NewMemoryStore(), timing, time.Now()))

	bad.Intersections[0].Roads[0].Direction = "NORTH"
	bad.Intersections[0].Roads[0].MaxCapacity = 0
	assert.Error(t, bad.Provision(ctx, storage.NewMemoryStore(), timing, time.Now()))

	bad.Intersections[0].Algorithm = "GENETIC"
	bad.Intersections[0].Roads[0].MaxCapacity = 10
	assert.Error(t, bad.Provision(ctx, storage.NewMemoryStore(), timing, time.Now()))

	assert.Error(t, Demo().Provision(ctx, storage.NewMemoryStore(),
		entity.LightTiming{Red: -1, Yellow: 5, Green: 25}, time.Now()))
}
