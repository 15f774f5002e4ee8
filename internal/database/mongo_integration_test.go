//go:build integration

package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"analytics-uploader/internal/database"
	"analytics-uploader/internal/events"
)

const mongoDatabase = "analytics"

// startMongo runs a single-node replica set; transactions need one.
func startMongo(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() { ctr.Terminate(ctx) }) //nolint:errcheck

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	return uri
}

func insertAll(ctx context.Context, driver database.DatabaseDriver, evs ...events.AnalyticsEvent) error {
	return driver.ExecuteTx(ctx, func(tx database.Tx) error {
		for _, ev := range evs {
			if err := tx.Insert(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func storedIDs(t *testing.T, uri string) []int64 {
	t.Helper()
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(ctx) //nolint:errcheck

	cur, err := client.Database(mongoDatabase).Collection(table).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	require.NoError(t, err)

	var docs []struct {
		ID int64 `bson:"id"`
	}
	require.NoError(t, cur.All(ctx, &docs))

	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

func TestMongoDriver_AssignsSequentialIDsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	uri := startMongo(t)

	driver := database.NewMongoDriver(database.Options{Table: table, FirstID: 0})
	require.NoError(t, driver.ConnectURI(ctx, uri, mongoDatabase))
	defer driver.Close(ctx)

	_, ok, err := driver.MaxID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, insertAll(ctx, driver,
		events.AnalyticsEvent{Time: "2024-01-01T00:00:00", Customer: "acme", Event: "start"},
		events.AnalyticsEvent{Time: "2024-01-02T00:00:00", Customer: "acme", Event: "stop"},
	))
	maxID, ok, err := driver.MaxID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), maxID)

	require.NoError(t, insertAll(ctx, driver,
		events.AnalyticsEvent{Time: "2024-01-03T00:00:00", Customer: "globex", Event: "sync"},
	))
	assert.Equal(t, []int64{0, 1, 2}, storedIDs(t, uri))
}

func TestMongoDriver_FirstIDForEmptyCollection(t *testing.T) {
	ctx := context.Background()
	uri := startMongo(t)

	driver := database.NewMongoDriver(database.Options{Table: table, FirstID: 1})
	require.NoError(t, driver.ConnectURI(ctx, uri, mongoDatabase))
	defer driver.Close(ctx)

	require.NoError(t, insertAll(ctx, driver, events.AnalyticsEvent{Time: "t1"}, events.AnalyticsEvent{Time: "t2"}))
	assert.Equal(t, []int64{1, 2}, storedIDs(t, uri))
}

func TestMongoDriver_RollsBackWhenTxFuncFails(t *testing.T) {
	ctx := context.Background()
	uri := startMongo(t)
	boom := errors.New("boom")

	driver := database.NewMongoDriver(database.Options{Table: table})
	require.NoError(t, driver.ConnectURI(ctx, uri, mongoDatabase))
	defer driver.Close(ctx)

	require.NoError(t, insertAll(ctx, driver, events.AnalyticsEvent{Time: "t1"}))

	err := driver.ExecuteTx(ctx, func(tx database.Tx) error {
		if err := tx.Insert(ctx, events.AnalyticsEvent{Time: "t2"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	maxID, ok, err := driver.MaxID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, maxID)
	assert.Equal(t, []int64{0}, storedIDs(t, uri))
}
