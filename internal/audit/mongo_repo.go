package audit

import (
	"context"
	"encoding/json"
	"time"

	"libraryapi/internal/platform/mongodb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type entryDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp   time.Time          `bson:"timestamp"`
	Entity      string             `bson:"entity"`
	EntityID    string             `bson:"entityId,omitempty"`
	Action      string             `bson:"action"`
	PerformedBy string             `bson:"performedBy"`
	Data        string             `bson:"data,omitempty"`
}

func (d entryDoc) toEntry() Entry {
	e := Entry{
		ID:          d.ID.Hex(),
		Timestamp:   d.Timestamp,
		Entity:      d.Entity,
		EntityID:    d.EntityID,
		Action:      d.Action,
		PerformedBy: d.PerformedBy,
	}
	if d.Data != "" {
		e.Data = json.RawMessage(d.Data)
	}
	return e
}

type MongoRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepo(db *mongo.Database, timeout time.Duration) *MongoRepo {
	return &MongoRepo{coll: db.Collection(mongodb.AuditCollection), timeout: timeout}
}

func (r *MongoRepo) Insert(ctx context.Context, e *Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	d := entryDoc{
		ID:          primitive.NewObjectID(),
		Timestamp:   e.Timestamp,
		Entity:      e.Entity,
		EntityID:    e.EntityID,
		Action:      e.Action,
		PerformedBy: e.PerformedBy,
		Data:        string(e.Data),
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return err
	}
	e.ID = d.ID.Hex()
	return nil
}

func (r *MongoRepo) List(ctx context.Context, q Query) ([]Entry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{}
	if q.Entity != "" {
		filter["entity"] = q.Entity
	}
	if q.Action != "" {
		filter["action"] = q.Action
	}
	if q.PerformedBy != "" {
		filter["performedBy"] = q.PerformedBy
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []Entry{}
	for cur.Next(ctx) {
		var d entryDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, d.toEntry())
	}
	return out, int(total), cur.Err()
}
