package auth

import (
	"context"
	"time"

	"libraryapi/internal/platform/mongodb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBlacklist keeps revoked ids in a collection with a TTL index on
// expiresAt, so the server expires entries on its own; CleanupExpired only
// covers the gap until the TTL monitor runs.
type MongoBlacklist struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoBlacklist(db *mongo.Database, timeout time.Duration) *MongoBlacklist {
	return &MongoBlacklist{coll: db.Collection(mongodb.RevokedTokensCollection), timeout: timeout}
}

func (r *MongoBlacklist) Add(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"jti": jti},
		bson.M{"$setOnInsert": bson.M{
			"jti":       jti,
			"userId":    userID,
			"expiresAt": expiresAt.UTC(),
			"createdAt": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *MongoBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{
		"jti":       jti,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoBlacklist) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
