package book

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func bookBSON(id primitive.ObjectID, total, available int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: "Dune"},
		{Key: "author", Value: "Frank Herbert"},
		{Key: "isbn", Value: "9780441013593"},
		{Key: "category", Value: "Fiction"},
		{Key: "totalCopies", Value: total},
		{Key: "availableCopies", Value: available},
		{Key: "tags", Value: bson.A{"classic"}},
	}
}

func countResponse(n int) bson.D {
	return mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func TestMongoRepo_TakeCopy(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("takes the last copy", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bookBSON(id, 1, 0)}))

		b, err := repo.TakeCopy(context.Background(), id.Hex())

		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), b.ID)
		assert.Equal(mt, 0, b.AvailableCopies)
		assert.False(mt, b.IsAvailable)
	})

	mt.Run("no copy left", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			countResponse(1),
		)

		_, err := repo.TakeCopy(context.Background(), id.Hex())

		assert.ErrorIs(mt, err, ErrNotAvailable)
	})

	mt.Run("missing book", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			countResponse(0),
		)

		_, err := repo.TakeCopy(context.Background(), primitive.NewObjectID().Hex())

		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)

		_, err := repo.TakeCopy(context.Background(), "not-an-object-id")

		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoRepo_ReleaseCopy(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("returns a copy", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bookBSON(id, 2, 2)}))

		b, err := repo.ReleaseCopy(context.Background(), id.Hex())

		require.NoError(mt, err)
		assert.Equal(mt, 2, b.AvailableCopies)
		assert.True(mt, b.IsAvailable)
	})

	mt.Run("nothing out", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			countResponse(1),
		)

		_, err := repo.ReleaseCopy(context.Background(), primitive.NewObjectID().Hex())

		assert.ErrorIs(mt, err, ErrNoCopyOut)
	})
}

func TestMongoRepo_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("success", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		b := &Book{Title: "Dune", ISBN: "9780441013593", TotalCopies: 2, AvailableCopies: 2}
		require.NoError(mt, repo.Create(context.Background(), b))

		assert.NotEmpty(mt, b.ID)
		assert.False(mt, b.CreatedAt.IsZero())
		assert.Equal(mt, []string{}, b.Tags)
	})

	mt.Run("duplicate isbn", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Create(context.Background(), &Book{Title: "Dune", ISBN: "9780441013593"})

		assert.ErrorIs(mt, err, ErrAlreadyExists)
	})
}

func TestMongoRepo_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("returns page and total", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			countResponse(7),
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bookBSON(first, 1, 1), bookBSON(second, 3, 0)),
		)

		books, total, err := repo.List(context.Background(), Query{Q: "dune", Limit: 2})

		require.NoError(mt, err)
		assert.Equal(mt, 7, total)
		require.Len(mt, books, 2)
		assert.True(mt, books[0].IsAvailable)
		assert.False(mt, books[1].IsAvailable)
	})
}

func TestListFilter(t *testing.T) {
	yes := true
	f := listFilter(Query{Category: CategoryHistory, Tag: "war", Available: &yes, Q: "a.b"})

	assert.Equal(t, "History", f["category"])
	assert.Equal(t, "war", f["tags"])
	assert.Equal(t, bson.M{"$gt": 0}, f["availableCopies"])
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	assert.Len(t, or, 4)
	assert.Equal(t, primitive.Regex{Pattern: `a\.b`, Options: "i"}, or[0].(bson.M)["title"])
}
