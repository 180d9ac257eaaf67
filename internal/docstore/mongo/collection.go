package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/userhub/internal/docstore"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Store owns the driver client for one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(
		options.Client().
			ApplyURI(uri).
			SetServerSelectionTimeout(5 * time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Collection(name string) *Collection {
	return &Collection{coll: s.db.Collection(name)}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type Collection struct {
	coll *mongo.Collection
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) error {
	_, err := c.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return translate("insert", err)
	}

	return nil
}

func (c *Collection) FindByID(ctx context.Context, id string) (docstore.Document, error) {
	return c.FindOne(ctx, docstore.Filter{docstore.IDField: id})
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	var m bson.M

	err := c.coll.FindOne(ctx, toFilter(filter)).Decode(&m)
	if err != nil {
		return nil, translate("find one", err)
	}

	return fromBSON(m), nil
}

func (c *Collection) Find(ctx context.Context, filter docstore.Filter, skip, limit int64) ([]docstore.Document, error) {
	opts := options.Find().SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := c.coll.Find(ctx, toFilter(filter), opts)
	if err != nil {
		return nil, translate("find", err)
	}

	defer cur.Close(ctx)

	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, translate("find", err)
	}

	out := make([]docstore.Document, 0, len(rows))
	for _, m := range rows {
		out = append(out, fromBSON(m))
	}

	return out, nil
}

func (c *Collection) UpdateFields(ctx context.Context, id string, set docstore.Document) (docstore.Document, error) {
	fields := bson.M{}
	for k, v := range set {
		if k == docstore.IDField {
			continue
		}
		fields[k] = v
	}

	var m bson.M

	err := c.coll.FindOneAndUpdate(
		ctx,
		bson.M{docstore.IDField: id},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return nil, translate("update", err)
	}

	return fromBSON(m), nil
}

func (c *Collection) DeleteByID(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{docstore.IDField: id})
	if err != nil {
		return translate("delete", err)
	}

	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}

	return nil
}

func (c *Collection) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, toFilter(filter))
	if err != nil {
		return 0, translate("count", err)
	}

	return n, nil
}

func (c *Collection) EnsureUniqueIndex(ctx context.Context, field string) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(field + "_unique"),
	})
	if err != nil {
		return translate("create index", err)
	}

	return nil
}

func (c *Collection) Ping(ctx context.Context) error {
	return c.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func toFilter(f docstore.Filter) bson.M {
	out := bson.M{}
	for k, v := range f {
		out[k] = v
	}
	return out
}

// fromBSON turns driver datetimes back into time.Time.
func fromBSON(m bson.M) docstore.Document {
	doc := make(docstore.Document, len(m))

	for k, v := range m {
		if dt, ok := v.(bson.DateTime); ok {
			doc[k] = dt.Time().UTC()
			continue
		}
		doc[k] = v
	}

	return doc
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return docstore.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("mongo: %s: %w: %v", op, docstore.ErrDuplicateKey, err)
	default:
		return fmt.Errorf("mongo: %s: %w", op, err)
	}
}
