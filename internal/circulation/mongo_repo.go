package circulation

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

type transactionDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"userId"`
	BookID     string             `bson:"bookId"`
	BookTitle  string             `bson:"bookTitle,omitempty"`
	Type       string             `bson:"type"`
	Status     string             `bson:"status"`
	BorrowDate time.Time          `bson:"borrowDate"`
	DueDate    time.Time          `bson:"dueDate"`
	ReturnDate *time.Time         `bson:"returnDate,omitempty"`
	FineAmount float64            `bson:"fineAmount"`
	Renewals   int                `bson:"renewals"`
	Notes      string             `bson:"notes,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d transactionDoc) toTransaction() Transaction {
	return Transaction{
		ID:         d.ID.Hex(),
		UserID:     d.UserID,
		BookID:     d.BookID,
		BookTitle:  d.BookTitle,
		Type:       Type(d.Type),
		Status:     Status(d.Status),
		BorrowDate: d.BorrowDate,
		DueDate:    d.DueDate,
		ReturnDate: d.ReturnDate,
		FineAmount: d.FineAmount,
		Renewals:   d.Renewals,
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func statusList(statuses []Status) bson.A {
	out := make(bson.A, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

type MongoRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepo(db *mongo.Database, timeout time.Duration) *MongoRepo {
	return &MongoRepo{coll: db.Collection(mongodb.TransactionsCollection), timeout: timeout}
}

func (r *MongoRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *MongoRepo) Create(ctx context.Context, t *Transaction) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	d := transactionDoc{
		ID:         primitive.NewObjectID(),
		UserID:     t.UserID,
		BookID:     t.BookID,
		BookTitle:  t.BookTitle,
		Type:       string(t.Type),
		Status:     string(t.Status),
		BorrowDate: t.BorrowDate,
		DueDate:    t.DueDate,
		ReturnDate: t.ReturnDate,
		FineAmount: t.FineAmount,
		Renewals:   t.Renewals,
		Notes:      t.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return err
	}
	*t = d.toTransaction()
	return nil
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d transactionDoc
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return d.toTransaction(), nil
}

func (r *MongoRepo) GetByID(ctx context.Context, id string) (Transaction, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func listFilter(q Query) bson.M {
	filter := bson.M{}
	if q.UserID != "" {
		filter["userId"] = q.UserID
	}
	if q.BookID != "" {
		filter["bookId"] = q.BookID
	}
	if q.Type != "" {
		filter["type"] = string(q.Type)
	}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": statusList(q.Statuses)}
	}
	return filter
}

func (r *MongoRepo) List(ctx context.Context, q Query) ([]Transaction, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := listFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return r.find(ctx, filter, opts, int(total))
}

func (r *MongoRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions, total int) ([]Transaction, int, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []Transaction{}
	for cur.Next(ctx) {
		var d transactionDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, d.toTransaction())
	}
	return out, total, cur.Err()
}

func (r *MongoRepo) FindOpen(ctx context.Context, userID, bookID string, typ Type) (Transaction, error) {
	return r.findOne(ctx, bson.M{
		"userId": userID,
		"bookId": bookID,
		"type":   string(typ),
		"status": bson.M{"$in": statusList(OpenStatuses)},
	}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func openFilter() bson.M {
	return bson.M{
		"type":   bson.M{"$in": bson.A{string(TypeBorrow), string(TypeReserve)}},
		"status": bson.M{"$in": statusList(OpenStatuses)},
	}
}

func (r *MongoRepo) count(ctx context.Context, filter bson.M) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.coll.CountDocuments(ctx, filter)
	return int(n), err
}

func (r *MongoRepo) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	filter := openFilter()
	filter["userId"] = userID
	return r.count(ctx, filter)
}

func (r *MongoRepo) CountOpenByBook(ctx context.Context, bookID string) (int, error) {
	filter := openFilter()
	filter["bookId"] = bookID
	return r.count(ctx, filter)
}

// guardedUpdate applies update when filter (which always includes the id)
// matches. A miss is reported as ErrNotFound or ErrStateChanged.
func (r *MongoRepo) guardedUpdate(ctx context.Context, oid primitive.ObjectID, guard, update bson.M) (Transaction, error) {
	filter := bson.M{"_id": oid}
	for k, v := range guard {
		filter[k] = v
	}

	opCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d transactionDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(opCtx, filter, update, opts).Decode(&d)
	if err == nil {
		return d.toTransaction(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Transaction{}, err
	}

	n, err := r.count(ctx, bson.M{"_id": oid})
	if err != nil {
		return Transaction{}, err
	}
	if n == 0 {
		return Transaction{}, ErrNotFound
	}
	return Transaction{}, ErrStateChanged
}

func (r *MongoRepo) Transition(ctx context.Context, id string, tr Transition) (Transaction, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Transaction{}, ErrNotFound
	}
	set := bson.M{
		"status":     string(tr.To),
		"fineAmount": tr.FineAmount,
		"updatedAt":  time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if tr.ReturnDate != nil {
		set["returnDate"] = *tr.ReturnDate
	} else {
		update["$unset"] = bson.M{"returnDate": ""}
	}
	return r.guardedUpdate(ctx, oid, bson.M{"status": bson.M{"$in": statusList(tr.From)}}, update)
}

func (r *MongoRepo) Renew(ctx context.Context, id string, maxRenewals int, dueDate, now time.Time) (Transaction, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return r.guardedUpdate(ctx, oid,
		bson.M{
			"type":     string(TypeBorrow),
			"status":   string(StatusActive),
			"renewals": bson.M{"$lt": maxRenewals},
			"dueDate":  bson.M{"$gte": now},
		},
		bson.M{
			"$set": bson.M{"dueDate": dueDate, "updatedAt": now},
			"$inc": bson.M{"renewals": 1},
		},
	)
}

func (r *MongoRepo) Update(ctx context.Context, id string, c Changes) (Transaction, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Transaction{}, ErrNotFound
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if c.DueDate != nil {
		set["dueDate"] = c.DueDate.UTC()
	}
	if c.Notes != nil {
		set["notes"] = *c.Notes
	}
	if c.Status != nil {
		set["status"] = string(*c.Status)
	}
	return r.guardedUpdate(ctx, oid, nil, bson.M{"$set": set})
}

func (r *MongoRepo) DeleteClosed(ctx context.Context, id string) error {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return ErrNotFound
	}
	delCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": oid, "$nor": bson.A{openFilter()}}
	res, err := r.coll.DeleteOne(delCtx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount > 0 {
		return nil
	}
	n, err := r.count(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStillOpen
}

func (r *MongoRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx,
		bson.M{"type": string(TypeBorrow), "status": string(StatusActive), "dueDate": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": string(StatusOverdue), "updatedAt": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepo) ExpiredReservations(ctx context.Context, now time.Time) ([]Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"type": string(TypeReserve), "status": string(StatusActive), "dueDate": bson.M{"$lt": now}}
	out, _, err := r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}}), 0)
	return out, err
}

func (r *MongoRepo) Counts(ctx context.Context) (Counts, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: openFilter()}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "type", Value: "$type"}, {Key: "status", Value: "$status"}}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Counts{}, err
	}
	defer cur.Close(ctx)

	var c Counts
	for cur.Next(ctx) {
		var row struct {
			ID struct {
				Type   string `bson:"type"`
				Status string `bson:"status"`
			} `bson:"_id"`
			N int `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return Counts{}, err
		}
		c.add(Type(row.ID.Type), Status(row.ID.Status), row.N)
	}
	return c, cur.Err()
}

func (r *MongoRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}
