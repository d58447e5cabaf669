package event

import (
	"context"
	"errors"
	"time"

	"libraryapi/internal/platform/mongodb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type eventDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Title            string             `bson:"title"`
	Description      string             `bson:"description"`
	Date             time.Time          `bson:"date"`
	Time             string             `bson:"time"`
	Location         string             `bson:"location"`
	MaxAttendees     int                `bson:"maxAttendees"`
	CurrentAttendees int                `bson:"currentAttendees"`
	Category         string             `bson:"category"`
	IsActive         bool               `bson:"isActive"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func (d eventDoc) toEvent() Event {
	return Event{
		ID:               d.ID.Hex(),
		Title:            d.Title,
		Description:      d.Description,
		Date:             d.Date,
		Time:             d.Time,
		Location:         d.Location,
		MaxAttendees:     d.MaxAttendees,
		CurrentAttendees: d.CurrentAttendees,
		Category:         d.Category,
		IsActive:         d.IsActive,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type MongoRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepo(db *mongo.Database, timeout time.Duration) *MongoRepo {
	return &MongoRepo{coll: db.Collection(mongodb.EventsCollection), timeout: timeout}
}

func (r *MongoRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *MongoRepo) Create(ctx context.Context, e *Event) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	d := eventDoc{
		ID:           primitive.NewObjectID(),
		Title:        e.Title,
		Description:  e.Description,
		Date:         e.Date,
		Time:         e.Time,
		Location:     e.Location,
		MaxAttendees: e.MaxAttendees,
		Category:     e.Category,
		IsActive:     e.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return err
	}
	*e = d.toEvent()
	return nil
}

func (r *MongoRepo) GetByID(ctx context.Context, id string) (Event, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Event{}, ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d eventDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return d.toEvent(), nil
}

func listFilter(q Query) bson.M {
	filter := bson.M{}
	if q.Active != nil {
		filter["isActive"] = *q.Active
	}
	if q.From != nil {
		filter["date"] = bson.M{"$gte": *q.From}
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	return filter
}

func (r *MongoRepo) List(ctx context.Context, q Query) ([]Event, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := listFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	events := []Event{}
	for cur.Next(ctx) {
		var d eventDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		events = append(events, d.toEvent())
	}
	return events, int(total), cur.Err()
}

// exists tells a missing event apart from a guarded update that did not match.
func (r *MongoRepo) exists(ctx context.Context, oid primitive.ObjectID) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	return n > 0, err
}

func (r *MongoRepo) Update(ctx context.Context, e *Event) error {
	oid, ok := mongodb.ObjectID(e.ID)
	if !ok {
		return ErrNotFound
	}
	updCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": oid, "currentAttendees": bson.M{"$lte": e.MaxAttendees}}
	update := bson.M{"$set": bson.M{
		"title":        e.Title,
		"description":  e.Description,
		"date":         e.Date,
		"time":         e.Time,
		"location":     e.Location,
		"maxAttendees": e.MaxAttendees,
		"category":     e.Category,
		"isActive":     e.IsActive,
		"updatedAt":    time.Now().UTC(),
	}}
	var d eventDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(updCtx, filter, update, opts).Decode(&d)
	if err == nil {
		*e = d.toEvent()
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	found, err := r.exists(ctx, oid)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return ErrCapacity
}

func (r *MongoRepo) Delete(ctx context.Context, id string) error {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) Register(ctx context.Context, id string) (Event, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Event{}, ErrNotFound
	}
	updCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"_id":      oid,
		"isActive": true,
		"$expr":    bson.M{"$lt": bson.A{"$currentAttendees", "$maxAttendees"}},
	}
	update := bson.M{
		"$inc": bson.M{"currentAttendees": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	var d eventDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(updCtx, filter, update, opts).Decode(&d)
	if err == nil {
		return d.toEvent(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Event{}, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if !current.IsActive {
		return Event{}, ErrInactive
	}
	return Event{}, ErrFull
}

func (r *MongoRepo) CountUpcoming(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.coll.CountDocuments(ctx, bson.M{"isActive": true, "date": bson.M{"$gte": now}})
	return int(n), err
}

func (r *MongoRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}
