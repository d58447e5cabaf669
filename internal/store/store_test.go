package store

import (
	"context"
	"testing"
	"time"

	"libraryapi/internal/config"
	"libraryapi/internal/logger"
	"libraryapi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Driver: "sqlite"}, logger.Discard())
	assert.ErrorContains(t, err, "sqlite")
}

func TestMongoRepositories(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("wires every port", func(mt *mtest.T) {
		repos := mongoRepositories(mt.Client, mt.DB, config.Config{DBTimeout: time.Second})

		assert.Equal(mt, config.DriverMongo, repos.Driver)
		assert.NotNil(mt, repos.Books)
		assert.NotNil(mt, repos.Users)
		assert.NotNil(mt, repos.Transactions)
		assert.NotNil(mt, repos.Events)
		assert.NotNil(mt, repos.Audit)
		assert.NotNil(mt, repos.Blacklist)

		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}})
		assert.NoError(mt, repos.Ping(context.Background()))
	})
}

func TestPostgresRepositories(t *testing.T) {
	pool := testutil.PostgresPool(t)
	repos := postgresRepositories(pool, config.Config{DBTimeout: time.Second})

	require.NoError(t, repos.Ping(context.Background()))
	assert.Equal(t, config.DriverPostgres, repos.Driver)
}
