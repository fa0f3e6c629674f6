package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collIntersections = "intersections"
	collRoads         = "roads"
	collLights        = "traffic_lights"
	collVehicles      = "vehicles"
	collLogs          = "traffic_logs"
)

// MongoStore MongoDB版store
// 功能：为仪表盘后端与模拟核心提供共享的持久层
// 说明：车辆计数的钳制用聚合管道更新表达，约束在数据库端原子执行，
// 客户端任何过期的内存副本都不可能把计数写成负数或超容量
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore 连接MongoDB并创建store
func NewMongoStore(ctx context.Context, uri, db string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	log.Infof("connected to mongodb database %s", db)
	return &MongoStore{client: client, db: client.Database(db)}, nil
}

// Close 断开MongoDB连接
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// GetIntersection 获取路口快照
// 说明：道路与信号灯按RoadIDs的创建顺序排列，一一对应
func (s *MongoStore) GetIntersection(ctx context.Context, id int32) (*entity.IntersectionSnapshot, error) {
	var inter entity.IntersectionRecord
	err := s.db.Collection(collIntersections).FindOne(ctx, bson.M{"_id": id}).Decode(&inter)
	if err != nil {
		return nil, wrapNotFound(err, "intersection %d", id)
	}

	cur, err := s.db.Collection(collRoads).Find(ctx, bson.M{"intersection_id": id})
	if err != nil {
		return nil, fmt.Errorf("roads of intersection %d: %w", id, err)
	}
	var roads []*entity.RoadRecord
	if err := cur.All(ctx, &roads); err != nil {
		return nil, fmt.Errorf("roads of intersection %d: %w", id, err)
	}
	roadByID := make(map[int32]*entity.RoadRecord, len(roads))
	for _, r := range roads {
		roadByID[r.ID] = r
	}

	cur, err = s.db.Collection(collLights).Find(ctx, bson.M{"intersection_id": id})
	if err != nil {
		return nil, fmt.Errorf("lights of intersection %d: %w", id, err)
	}
	var lights []*entity.LightRecord
	if err := cur.All(ctx, &lights); err != nil {
		return nil, fmt.Errorf("lights of intersection %d: %w", id, err)
	}
	lightByRoad := make(map[int32]*entity.LightRecord, len(lights))
	for _, l := range lights {
		lightByRoad[l.RoadID] = l
	}

	snap := &entity.IntersectionSnapshot{Intersection: &inter}
	for _, roadID := range inter.RoadIDs {
		r, ok := roadByID[roadID]
		if !ok {
			return nil, fmt.Errorf("road %d of intersection %d: %w", roadID, id, ErrNotFound)
		}
		l, ok := lightByRoad[roadID]
		if !ok {
			return nil, fmt.Errorf("light of road %d: %w", roadID, ErrNotFound)
		}
		snap.Roads = append(snap.Roads, r)
		snap.Lights = append(snap.Lights, l)
	}
	return snap, nil
}

// GetActiveIntersectionIDs 获取所有启用路口的ID（升序）
func (s *MongoStore) GetActiveIntersectionIDs(ctx context.Context) ([]int32, error) {
	cur, err := s.db.Collection(collIntersections).Find(ctx, bson.M{"is_active": true},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("active intersections: %w", err)
	}
	var docs []struct {
		ID int32 `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("active intersections: %w", err)
	}
	ids := make([]int32, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// GetActiveRoads 获取所有启用路口下的道路（按道路ID升序）
func (s *MongoStore) GetActiveRoads(ctx context.Context) ([]*entity.RoadRecord, error) {
	ids, err := s.GetActiveIntersectionIDs(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := s.db.Collection(collRoads).Find(ctx,
		bson.M{"intersection_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("active roads: %w", err)
	}
	var roads []*entity.RoadRecord
	if err := cur.All(ctx, &roads); err != nil {
		return nil, fmt.Errorf("active roads: %w", err)
	}
	return roads, nil
}

// GetLight 获取信号灯
func (s *MongoStore) GetLight(ctx context.Context, id int32) (*entity.LightRecord, error) {
	var l entity.LightRecord
	if err := s.db.Collection(collLights).FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return nil, wrapNotFound(err, "light %d", id)
	}
	return &l, nil
}

// GetLightForRoad 获取道路对应的信号灯
func (s *MongoStore) GetLightForRoad(ctx context.Context, roadID int32) (*entity.LightRecord, error) {
	var l entity.LightRecord
	if err := s.db.Collection(collLights).FindOne(ctx, bson.M{"road_id": roadID}).Decode(&l); err != nil {
		return nil, wrapNotFound(err, "light of road %d", roadID)
	}
	return &l, nil
}

// GetActiveVehicles 获取道路上未离开的车辆（按进入时间升序）
func (s *MongoStore) GetActiveVehicles(ctx context.Context, roadID int32) ([]*entity.VehicleRecord, error) {
	cur, err := s.db.Collection(collVehicles).Find(ctx,
		bson.M{"road_id": roadID, "exited_at": bson.M{"$exists": false}},
		options.Find().SetSort(bson.D{{Key: "entered_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("vehicles of road %d: %w", roadID, err)
	}
	var vehicles []*entity.VehicleRecord
	if err := cur.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("vehicles of road %d: %w", roadID, err)
	}
	return vehicles, nil
}

// UpdateLight 更新信号灯状态与配时
func (s *MongoStore) UpdateLight(ctx context.Context, id int32, status entity.LightStatus, timing entity.LightTiming, lastChanged time.Time, cycleDone bool) error {
	update := bson.M{"$set": bson.M{
		"status":       status,
		"timing":       timing,
		"last_changed": lastChanged,
	}}
	if cycleDone {
		update["$inc"] = bson.M{"total_cycles": int64(1)}
	}
	res, err := s.db.Collection(collLights).UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update light %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("light %d: %w", id, ErrNotFound)
	}
	return nil
}

// IncVehicleCount 车辆计数的原子相对更新
// 算法说明：
// 1. 聚合管道update在数据库端一步完成 加增量→钳制到[0,容量]→重算拥堵度
// 2. 返回更新前文档，据此算出实际生效的增量
func (s *MongoStore) IncVehicleCount(ctx context.Context, roadID int32, delta int32) (int32, error) {
	update := bson.A{
		bson.M{"$set": bson.M{
			"vehicle_count": bson.M{"$max": bson.A{
				0,
				bson.M{"$min": bson.A{
					"$max_capacity",
					bson.M{"$add": bson.A{"$vehicle_count", delta}},
				}},
			}},
		}},
		bson.M{"$set": bson.M{
			"congestion_level": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{"$max_capacity", 0}},
				bson.M{"$divide": bson.A{"$vehicle_count", "$max_capacity"}},
				0,
			}},
		}},
	}
	var before entity.RoadRecord
	err := s.db.Collection(collRoads).FindOneAndUpdate(ctx, bson.M{"_id": roadID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&before)
	if err != nil {
		return 0, wrapNotFound(err, "inc vehicle count of road %d", roadID)
	}
	after := clampCount(before.VehicleCount+delta, before.MaxCapacity)
	return after - before.VehicleCount, nil
}

// SetAverageSpeed 更新道路平均车速
func (s *MongoStore) SetAverageSpeed(ctx context.Context, roadID int32, v float64) error {
	res, err := s.db.Collection(collRoads).UpdateByID(ctx, roadID,
		bson.M{"$set": bson.M{"average_speed": v}})
	if err != nil {
		return fmt.Errorf("set average speed of road %d: %w", roadID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("road %d: %w", roadID, ErrNotFound)
	}
	return nil
}

// SetAlgorithm 切换路口信控算法
func (s *MongoStore) SetAlgorithm(ctx context.Context, intersectionID int32, algo entity.Algorithm) error {
	res, err := s.db.Collection(collIntersections).UpdateByID(ctx, intersectionID,
		bson.M{"$set": bson.M{"algorithm": algo}})
	if err != nil {
		return fmt.Errorf("set algorithm of intersection %d: %w", intersectionID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("intersection %d: %w", intersectionID, ErrNotFound)
	}
	return nil
}

// SetEmergencyMode 设置路口应急模式
func (s *MongoStore) SetEmergencyMode(ctx context.Context, intersectionID int32, on bool) error {
	res, err := s.db.Collection(collIntersections).UpdateByID(ctx, intersectionID,
		bson.M{"$set": bson.M{"emergency_mode": on}})
	if err != nil {
		return fmt.Errorf("set emergency mode of intersection %d: %w", intersectionID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("intersection %d: %w", intersectionID, ErrNotFound)
	}
	return nil
}

// CreateVehicle 创建车辆
func (s *MongoStore) CreateVehicle(ctx context.Context, v *entity.VehicleRecord) error {
	if _, err := s.db.Collection(collVehicles).InsertOne(ctx, v); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("vehicle %s: %w", v.ID, ErrDuplicateID)
		}
		return fmt.Errorf("create vehicle %s: %w", v.ID, err)
	}
	return nil
}

// UpdateVehicle 更新车辆运行时状态
func (s *MongoStore) UpdateVehicle(ctx context.Context, id string, position, speed float64, isMoving bool, exitedAt *time.Time) error {
	set := bson.M{
		"position":  position,
		"speed":     speed,
		"is_moving": isMoving,
	}
	if exitedAt != nil {
		set["exited_at"] = *exitedAt
	}
	res, err := s.db.Collection(collVehicles).UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update vehicle %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("vehicle %s: %w", id, ErrNotFound)
	}
	return nil
}

// PurgeVehicles 物理删除保留期外的已离开车辆
func (s *MongoStore) PurgeVehicles(ctx context.Context, exitedBefore time.Time) (int64, error) {
	res, err := s.db.Collection(collVehicles).DeleteMany(ctx,
		bson.M{"exited_at": bson.M{"$lt": exitedBefore}})
	if err != nil {
		return 0, fmt.Errorf("purge vehicles: %w", err)
	}
	return res.DeletedCount, nil
}

// AppendLog 追加信控日志（只插入，从不更新）
func (s *MongoStore) AppendLog(ctx context.Context, entry *entity.LogRecord) error {
	if _, err := s.db.Collection(collLogs).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// CreateIntersection 创建路口
func (s *MongoStore) CreateIntersection(ctx context.Context, r *entity.IntersectionRecord) error {
	if r.RoadIDs == nil {
		r.RoadIDs = make([]int32, 0)
	}
	if _, err := s.db.Collection(collIntersections).InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("intersection %d: %w", r.ID, ErrDuplicateID)
		}
		return fmt.Errorf("create intersection %d: %w", r.ID, err)
	}
	return nil
}

// CreateRoad 创建道路并登记到所属路口
func (s *MongoStore) CreateRoad(ctx context.Context, r *entity.RoadRecord) error {
	r.CongestionLevel = congestion(r.VehicleCount, r.MaxCapacity)
	if _, err := s.db.Collection(collRoads).InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("road %d: %w", r.ID, ErrDuplicateID)
		}
		return fmt.Errorf("create road %d: %w", r.ID, err)
	}
	res, err := s.db.Collection(collIntersections).UpdateByID(ctx, r.IntersectionID,
		bson.M{"$push": bson.M{"road_ids": r.ID}})
	if err != nil {
		return fmt.Errorf("register road %d: %w", r.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("intersection %d: %w", r.IntersectionID, ErrNotFound)
	}
	return nil
}

// CreateLight 创建信号灯
func (s *MongoStore) CreateLight(ctx context.Context, r *entity.LightRecord) error {
	if _, err := s.db.Collection(collLights).InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("light %d: %w", r.ID, ErrDuplicateID)
		}
		return fmt.Errorf("create light %d: %w", r.ID, err)
	}
	return nil
}
