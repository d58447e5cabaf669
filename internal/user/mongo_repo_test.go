package user

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

func userBSON(id primitive.ObjectID, fine float64) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "firstName", Value: "Ada"},
		{Key: "lastName", Value: "Lovelace"},
		{Key: "email", Value: "ada@example.com"},
		{Key: "password", Value: "hash"},
		{Key: "membershipId", Value: "LIB-2025-ABCDEF12"},
		{Key: "membershipType", Value: "Student"},
		{Key: "isActive", Value: true},
		{Key: "fineAmount", Value: fine},
	}
}

func TestMongoRepo_PayFine(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("pays down the balance", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: userBSON(id, 0.5)}))

		u, err := repo.PayFine(context.Background(), id.Hex(), 1)

		require.NoError(mt, err)
		assert.Equal(mt, 0.5, u.FineAmount)
		assert.Equal(mt, MembershipStudent, u.MembershipType)
	})

	mt.Run("more than owed", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, userBSON(id, 0.5)),
		)

		_, err := repo.PayFine(context.Background(), id.Hex(), 5)

		assert.ErrorIs(mt, err, ErrOverpayment)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch),
		)

		_, err := repo.PayFine(context.Background(), primitive.NewObjectID().Hex(), 5)

		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoRepo_Create_DuplicateEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("duplicate", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		err := repo.Create(context.Background(), &User{Email: "ada@example.com"})

		assert.ErrorIs(mt, err, ErrAlreadyExists)
	})
}

func TestChangeSet(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	first, phone := "Augusta", "555-0100"

	set := changeSet(Changes{FirstName: &first, Phone: &phone}, now)

	assert.Equal(t, bson.M{"firstName": "Augusta", "phone": "555-0100", "updatedAt": now}, set)
	assert.NotContains(t, set, "fineAmount")
	assert.NotContains(t, set, "isActive")
	assert.NotContains(t, set, "isAdmin")
	assert.NotContains(t, set, "password")

	active, fine := false, 0.0
	set = changeSet(Changes{IsActive: &active, FineAmount: &fine}, now)
	assert.Equal(t, false, set["isActive"])
	assert.Equal(t, 0.0, set["fineAmount"])
	assert.NotContains(t, set, "firstName")
}

func TestMongoRepo_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("returns the stored document", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: userBSON(id, 1.5)}))

		first := "Ada"
		u, err := repo.Update(context.Background(), id.Hex(), Changes{FirstName: &first})

		require.NoError(mt, err)
		assert.Equal(mt, 1.5, u.FineAmount)
		assert.True(mt, u.IsActive)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		first := "Ada"
		_, err := repo.Update(context.Background(), primitive.NewObjectID().Hex(), Changes{FirstName: &first})

		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestUserListFilter(t *testing.T) {
	active := false
	f := listFilter(Query{Q: "ada", MembershipType: MembershipSenior, Active: &active})

	assert.Equal(t, "Senior", f["membershipType"])
	assert.Equal(t, false, f["isActive"])
	assert.Len(t, f["$or"], 4)
}
