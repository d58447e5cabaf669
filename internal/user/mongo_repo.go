package user

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

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	FirstName      string             `bson:"firstName"`
	LastName       string             `bson:"lastName"`
	Email          string             `bson:"email"`
	Password       string             `bson:"password"`
	Phone          string             `bson:"phone,omitempty"`
	Address        string             `bson:"address,omitempty"`
	MembershipID   string             `bson:"membershipId"`
	MembershipType string             `bson:"membershipType"`
	IsActive       bool               `bson:"isActive"`
	IsAdmin        bool               `bson:"isAdmin"`
	JoinDate       time.Time          `bson:"joinDate"`
	LastLogin      *time.Time         `bson:"lastLogin,omitempty"`
	FineAmount     float64            `bson:"fineAmount"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (d userDoc) toUser() User {
	return User{
		ID:             d.ID.Hex(),
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		Password:       d.Password,
		Phone:          d.Phone,
		Address:        d.Address,
		MembershipID:   d.MembershipID,
		MembershipType: MembershipType(d.MembershipType),
		IsActive:       d.IsActive,
		IsAdmin:        d.IsAdmin,
		JoinDate:       d.JoinDate,
		LastLogin:      d.LastLogin,
		FineAmount:     d.FineAmount,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type MongoRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepo(db *mongo.Database, timeout time.Duration) *MongoRepo {
	return &MongoRepo{coll: db.Collection(mongodb.UsersCollection), timeout: timeout}
}

func (r *MongoRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *MongoRepo) Create(ctx context.Context, u *User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	d := userDoc{
		ID:             primitive.NewObjectID(),
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		Password:       u.Password,
		Phone:          u.Phone,
		Address:        u.Address,
		MembershipID:   u.MembershipID,
		MembershipType: string(u.MembershipType),
		IsActive:       u.IsActive,
		IsAdmin:        u.IsAdmin,
		JoinDate:       u.JoinDate,
		FineAmount:     u.FineAmount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d.JoinDate.IsZero() {
		d.JoinDate = now
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		if mongodb.IsDuplicateKey(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*u = d.toUser()
	return nil
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return d.toUser(), nil
}

func (r *MongoRepo) GetByID(ctx context.Context, id string) (User, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func listFilter(q Query) bson.M {
	filter := bson.M{}
	if q.MembershipType != "" {
		filter["membershipType"] = string(q.MembershipType)
	}
	if q.Active != nil {
		filter["isActive"] = *q.Active
	}
	if q.Q != "" {
		pattern := mongodb.ContainsPattern(q.Q)
		filter["$or"] = bson.A{
			bson.M{"firstName": pattern},
			bson.M{"lastName": pattern},
			bson.M{"email": pattern},
			bson.M{"membershipId": pattern},
		}
	}
	return filter
}

func (r *MongoRepo) List(ctx context.Context, q Query) ([]User, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := listFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []User{}
	for cur.Next(ctx) {
		var d userDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, d.toUser())
	}
	return out, int(total), cur.Err()
}

func (r *MongoRepo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d userDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		if mongodb.IsDuplicateKey(err) {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}
	return d.toUser(), nil
}

// changeSet maps the non-nil fields of ch to a $set document.
func changeSet(ch Changes, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	put := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	put("firstName", ch.FirstName)
	put("lastName", ch.LastName)
	put("phone", ch.Phone)
	put("address", ch.Address)
	put("email", ch.Email)
	put("password", ch.PasswordHash)
	if ch.MembershipType != nil {
		set["membershipType"] = string(*ch.MembershipType)
	}
	if ch.IsAdmin != nil {
		set["isAdmin"] = *ch.IsAdmin
	}
	if ch.IsActive != nil {
		set["isActive"] = *ch.IsActive
	}
	if ch.FineAmount != nil {
		set["fineAmount"] = *ch.FineAmount
	}
	return set
}

func (r *MongoRepo) Update(ctx context.Context, id string, ch Changes) (User, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": changeSet(ch, time.Now().UTC())})
}

func (r *MongoRepo) SetActive(ctx context.Context, id string, active bool) (User, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"isActive":  active,
		"updatedAt": time.Now().UTC(),
	}})
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

func (r *MongoRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) AddFine(ctx context.Context, id string, amount float64) (User, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{
		"$inc": bson.M{"fineAmount": amount},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoRepo) PayFine(ctx context.Context, id string, amount float64) (User, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	u, err := r.findOneAndUpdate(ctx,
		bson.M{"_id": oid, "fineAmount": bson.M{"$gte": amount}},
		bson.M{
			"$inc": bson.M{"fineAmount": -amount},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		})
	if !errors.Is(err, ErrNotFound) {
		return u, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return User{}, getErr
	}
	return User{}, ErrOverpayment
}

func (r *MongoRepo) Totals(ctx context.Context) (Totals, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "users", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "activeUsers", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{"$isActive", 1, 0}},
			}}}},
			{Key: "outstandingFines", Value: bson.D{{Key: "$sum", Value: "$fineAmount"}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Totals{}, err
	}
	defer cur.Close(ctx)

	var t Totals
	if cur.Next(ctx) {
		var row struct {
			Users            int     `bson:"users"`
			ActiveUsers      int     `bson:"activeUsers"`
			OutstandingFines float64 `bson:"outstandingFines"`
		}
		if err := cur.Decode(&row); err != nil {
			return Totals{}, err
		}
		t = Totals(row)
	}
	t.OutstandingFines = roundCents(t.OutstandingFines)
	return t, cur.Err()
}

func (r *MongoRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}
