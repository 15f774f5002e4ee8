package database

import (
	"context"
	"errors"
	"net/url"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/events"
)

// MongoDriver stores events as documents in a collection named after the
// table. Documents carry an integer "id" field that the driver assigns,
// continuing from the current maximum, since collections have no sequence.
// Transactions need a replica set.
type MongoDriver struct {
	client   *mongo.Client
	database string
	opts     Options
}

type analyticsDocument struct {
	ID                    int64 `bson:"id"`
	events.AnalyticsEvent `bson:",inline"`
}

func NewMongoDriver(opts Options) *MongoDriver {
	return &MongoDriver{opts: opts}
}

func mongoURI(creds config.Credentials) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   creds.Hostname,
		Path:   "/" + creds.Database,
	}
	if creds.Username != "" {
		u.User = url.UserPassword(creds.Username, creds.Password)
	}
	return u.String()
}

func (md *MongoDriver) Connect(ctx context.Context, creds config.Credentials) error {
	return md.ConnectURI(ctx, mongoURI(creds), creds.Database)
}

// ConnectURI connects with a ready-made connection string and writes to the
// named database.
func (md *MongoDriver) ConnectURI(ctx context.Context, uri, database string) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	// Connect is lazy; surface unreachable servers here rather than mid-run.
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}
	md.client = client
	md.database = database
	return nil
}

func (md *MongoDriver) Close(ctx context.Context) error {
	if md.client == nil {
		return nil
	}
	return md.client.Disconnect(ctx)
}

func (md *MongoDriver) collection() *mongo.Collection {
	return md.client.Database(md.database).Collection(md.opts.Table)
}

func (md *MongoDriver) MaxID(ctx context.Context) (int64, bool, error) {
	if md.client == nil {
		return 0, false, ErrNotConnected
	}

	var doc analyticsDocument
	err := md.collection().FindOne(ctx, bson.M{},
		options.FindOne().
			SetSort(bson.D{{Key: colID, Value: -1}}).
			SetProjection(bson.M{colID: 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return doc.ID, true, nil
}

func (md *MongoDriver) ExecuteTx(ctx context.Context, txFunc func(Tx) error) error {
	if md.client == nil {
		return ErrNotConnected
	}

	session, err := md.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		// WithTransaction may rerun this callback; ids restart from the
		// committed maximum on every attempt.
		next := md.opts.FirstID
		maxID, ok, err := md.MaxID(sessCtx)
		if err != nil {
			return nil, err
		}
		if ok {
			next = maxID + 1
		}

		if err := txFunc(&mongoTx{sessCtx: sessCtx, coll: md.collection(), next: next}); err != nil {
			return nil, err
		}
		return nil, nil
	})

	return err
}

type mongoTx struct {
	sessCtx mongo.SessionContext
	coll    *mongo.Collection
	next    int64
}

// Insert writes through the transaction's session; ctx only bounds the call.
func (t *mongoTx) Insert(ctx context.Context, ev events.AnalyticsEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.coll.InsertOne(t.sessCtx, analyticsDocument{ID: t.next, AnalyticsEvent: ev})
	if err != nil {
		return err
	}
	t.next++
	return nil
}
