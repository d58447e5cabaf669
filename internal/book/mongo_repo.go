package book

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

type bookDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Title           string             `bson:"title"`
	Author          string             `bson:"author"`
	ISBN            string             `bson:"isbn"`
	Category        string             `bson:"category"`
	Description     string             `bson:"description,omitempty"`
	CoverImage      string             `bson:"coverImage,omitempty"`
	FileURL         string             `bson:"fileUrl,omitempty"`
	TotalCopies     int                `bson:"totalCopies"`
	AvailableCopies int                `bson:"availableCopies"`
	PublishedYear   int                `bson:"publishedYear,omitempty"`
	Publisher       string             `bson:"publisher,omitempty"`
	Language        string             `bson:"language,omitempty"`
	Pages           int                `bson:"pages,omitempty"`
	Rating          float64            `bson:"rating"`
	Tags            []string           `bson:"tags"`
	IsDigital       bool               `bson:"isDigital"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d bookDoc) toBook() Book {
	b := Book{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Author:          d.Author,
		ISBN:            d.ISBN,
		Category:        Category(d.Category),
		Description:     d.Description,
		CoverImage:      d.CoverImage,
		FileURL:         d.FileURL,
		TotalCopies:     d.TotalCopies,
		AvailableCopies: d.AvailableCopies,
		PublishedYear:   d.PublishedYear,
		Publisher:       d.Publisher,
		Language:        d.Language,
		Pages:           d.Pages,
		Rating:          d.Rating,
		Tags:            d.Tags,
		IsDigital:       d.IsDigital,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	b.Derive()
	return b
}

// editable is the $set document for an update; copy counts are handled separately.
func editable(b *Book, now time.Time) bson.M {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return bson.M{
		"title":         b.Title,
		"author":        b.Author,
		"isbn":          b.ISBN,
		"category":      string(b.Category),
		"description":   b.Description,
		"coverImage":    b.CoverImage,
		"fileUrl":       b.FileURL,
		"totalCopies":   b.TotalCopies,
		"publishedYear": b.PublishedYear,
		"publisher":     b.Publisher,
		"language":      b.Language,
		"pages":         b.Pages,
		"rating":        b.Rating,
		"tags":          tags,
		"isDigital":     b.IsDigital,
		"updatedAt":     now,
	}
}

var sortFields = map[string]string{
	"title":      "title",
	"author":     "author",
	"year":       "publishedYear",
	"rating":     "rating",
	"created_at": "createdAt",
}

type MongoRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepo(db *mongo.Database, timeout time.Duration) *MongoRepo {
	return &MongoRepo{coll: db.Collection(mongodb.BooksCollection), timeout: timeout}
}

func (r *MongoRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func listFilter(q Query) bson.M {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = string(q.Category)
	}
	if q.Language != "" {
		filter["language"] = q.Language
	}
	if q.Tag != "" {
		filter["tags"] = q.Tag
	}
	if q.Available != nil {
		if *q.Available {
			filter["availableCopies"] = bson.M{"$gt": 0}
		} else {
			filter["availableCopies"] = bson.M{"$lte": 0}
		}
	}
	if q.Q != "" {
		pattern := mongodb.ContainsPattern(q.Q)
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"author": pattern},
			bson.M{"isbn": pattern},
			bson.M{"tags": pattern},
		}
	}
	return filter
}

func (r *MongoRepo) List(ctx context.Context, q Query) ([]Book, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := listFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	field, ok := sortFields[q.Sort]
	if !ok {
		field = "title"
	}
	order := 1
	if q.Desc {
		order = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: order}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []Book{}
	for cur.Next(ctx) {
		var d bookDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, d.toBook())
	}
	return out, int(total), cur.Err()
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M) (Book, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d bookDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return d.toBook(), nil
}

func (r *MongoRepo) GetByID(ctx context.Context, id string) (Book, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Book{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepo) GetByISBN(ctx context.Context, isbn string) (Book, error) {
	return r.findOne(ctx, bson.M{"isbn": isbn})
}

func (r *MongoRepo) Create(ctx context.Context, b *Book) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	d := bookDoc{
		ID:              primitive.NewObjectID(),
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Category:        string(b.Category),
		Description:     b.Description,
		CoverImage:      b.CoverImage,
		FileURL:         b.FileURL,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		PublishedYear:   b.PublishedYear,
		Publisher:       b.Publisher,
		Language:        b.Language,
		Pages:           b.Pages,
		Rating:          b.Rating,
		Tags:            tags,
		IsDigital:       b.IsDigital,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		if mongodb.IsDuplicateKey(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*b = d.toBook()
	return nil
}

func (r *MongoRepo) Update(ctx context.Context, b *Book, prevTotal int) error {
	oid, ok := mongodb.ObjectID(b.ID)
	if !ok {
		return ErrNotFound
	}
	delta := b.TotalCopies - prevTotal
	filter := bson.M{"_id": oid, "totalCopies": prevTotal}
	if delta < 0 {
		filter["availableCopies"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$set": editable(b, time.Now().UTC()),
		"$inc": bson.M{"availableCopies": delta},
	}

	d, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return ErrAlreadyExists
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		current, getErr := r.GetByID(ctx, b.ID)
		if getErr != nil {
			return getErr
		}
		if current.TotalCopies != prevTotal {
			return ErrConflict
		}
		return ErrInvalidCopies
	}
	*b = d.toBook()
	return nil
}

func (r *MongoRepo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (bookDoc, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d bookDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	return d, err
}

// conditionalUpdate runs a guarded update on one book. When the guard fails
// it tells a missing book apart from a failed condition.
func (r *MongoRepo) conditionalUpdate(ctx context.Context, id string, guard bson.M, update bson.M, failed error) (Book, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return Book{}, ErrNotFound
	}
	filter := bson.M{"_id": oid}
	for k, v := range guard {
		filter[k] = v
	}

	d, err := r.findOneAndUpdate(ctx, filter, update)
	if err == nil {
		return d.toBook(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Book{}, err
	}

	countCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.coll.CountDocuments(countCtx, bson.M{"_id": oid})
	if err != nil {
		return Book{}, err
	}
	if n == 0 {
		return Book{}, ErrNotFound
	}
	return Book{}, failed
}

func (r *MongoRepo) TakeCopy(ctx context.Context, id string) (Book, error) {
	return r.conditionalUpdate(ctx, id,
		bson.M{"availableCopies": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"availableCopies": -1}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
		ErrNotAvailable,
	)
}

func (r *MongoRepo) ReleaseCopy(ctx context.Context, id string) (Book, error) {
	return r.conditionalUpdate(ctx, id,
		bson.M{"$expr": bson.M{"$lt": bson.A{"$availableCopies", "$totalCopies"}}},
		bson.M{"$inc": bson.M{"availableCopies": 1}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
		ErrNoCopyOut,
	)
}

func (r *MongoRepo) SetAvailableCopies(ctx context.Context, id string, available int) (Book, error) {
	if available < 0 {
		return Book{}, ErrInvalidCopies
	}
	return r.conditionalUpdate(ctx, id,
		bson.M{"totalCopies": bson.M{"$gte": available}},
		bson.M{"$set": bson.M{"availableCopies": available, "updatedAt": time.Now().UTC()}},
		ErrInvalidCopies,
	)
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

func (r *MongoRepo) Totals(ctx context.Context) (Totals, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "titles", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalCopies", Value: bson.D{{Key: "$sum", Value: "$totalCopies"}}},
			{Key: "availableCopies", Value: bson.D{{Key: "$sum", Value: "$availableCopies"}}},
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
			Titles          int `bson:"titles"`
			TotalCopies     int `bson:"totalCopies"`
			AvailableCopies int `bson:"availableCopies"`
		}
		if err := cur.Decode(&row); err != nil {
			return Totals{}, err
		}
		t = Totals(row)
	}
	return t, cur.Err()
}

func (r *MongoRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}
