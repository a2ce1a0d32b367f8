package datastore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/privacy"
)

// MongoConfig holds the MongoDB connection parameters.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore implements Interface on a MongoDB collection.
type MongoStore struct {
	Config MongoConfig

	client *mongo.Client
	coll   *mongo.Collection
}

// mongoEntry is the stored document shape.
type mongoEntry struct {
	ID        string            `bson:"_id"`
	Category  string            `bson:"category"`
	Fields    map[string]string `bson:"fields"`
	ImageURL  string            `bson:"imageUrl,omitempty"`
	RawData   map[string]string `bson:"rawData,omitempty"`
	DedupeKey string            `bson:"dedupeKey"`
	CreatedAt time.Time         `bson:"createdAt"`
}

func toMongo(e *Entry) mongoEntry {
	return mongoEntry{
		ID:        e.ID,
		Category:  string(e.Category),
		Fields:    e.Fields,
		ImageURL:  e.ImageURL,
		RawData:   e.Raw(),
		DedupeKey: e.DedupeKey,
		CreatedAt: e.CreatedAt,
	}
}

func (m mongoEntry) entry() (Entry, error) {
	e, err := NewEntry(category.Category(m.Category), m.Fields, m.RawData, m.ImageURL)
	if err != nil {
		return Entry{}, err
	}
	e.ID = m.ID
	e.DedupeKey = m.DedupeKey
	e.CreatedAt = m.CreatedAt.UTC()
	return *e, nil
}

func NewMongoStore(cfg MongoConfig) *MongoStore {
	if cfg.Database == "" {
		cfg.Database = "wikidata_cache"
	}
	if cfg.Collection == "" {
		cfg.Collection = "entries"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MongoStore{Config: cfg}
}

func (store *MongoStore) Open() error {
	if store.Config.URI == "" {
		return errors.Newf("mongodb URI is empty").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), store.Config.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(store.Config.URI).
		SetServerSelectionTimeout(store.Config.Timeout))
	if err != nil {
		return mongoError("connect", "", privacy.WrapError(err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return mongoError("ping", "", privacy.WrapError(err))
	}

	coll := client.Database(store.Config.Database).Collection(store.Config.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "dedupeKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_entries_dedupe"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_entries_recent"),
		},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return mongoError("create indexes", "", err)
	}

	store.client = client
	store.coll = coll
	GetLogger().Info("opened MongoDB collection",
		logger.String("uri", privacy.SanitizeURL(store.Config.URI)),
		logger.String("database", store.Config.Database),
		logger.String("collection", store.Config.Collection))
	return nil
}

func (store *MongoStore) Close() error {
	if store.client == nil {
		return ErrNotOpen
	}
	ctx, cancel := context.WithTimeout(context.Background(), store.Config.Timeout)
	defer cancel()
	return store.client.Disconnect(ctx)
}

func (store *MongoStore) Ping(ctx context.Context) error {
	if store.client == nil {
		return ErrNotOpen
	}
	return store.client.Ping(ctx, nil)
}

func (store *MongoStore) Count(ctx context.Context, c category.Category) (int64, error) {
	if store.coll == nil {
		return 0, ErrNotOpen
	}
	n, err := store.coll.CountDocuments(ctx, bson.M{"category": string(c)})
	if err != nil {
		return 0, mongoError("count entries", c, err)
	}
	return n, nil
}

func (store *MongoStore) CountAll(ctx context.Context) (map[category.Category]int64, error) {
	if store.coll == nil {
		return nil, ErrNotOpen
	}
	cur, err := store.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, mongoError("count all entries", "", err)
	}

	var rows []struct {
		Category string `bson:"_id"`
		Total    int64  `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, mongoError("count all entries", "", err)
	}

	out := make(map[category.Category]int64, len(rows))
	for _, r := range rows {
		out[category.Category(r.Category)] = r.Total
	}
	return out, nil
}

func (store *MongoStore) SampleRandom(ctx context.Context, c category.Category, n int) ([]Entry, error) {
	if store.coll == nil {
		return nil, ErrNotOpen
	}
	if n <= 0 {
		return []Entry{}, nil
	}
	cur, err := store.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "category", Value: string(c)}}}},
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: n}}}},
	})
	if err != nil {
		return nil, mongoError("sample entries", c, err)
	}
	return decodeEntries(ctx, cur, c)
}

func (store *MongoStore) FindRecent(ctx context.Context, c category.Category, n int) ([]Entry, error) {
	if store.coll == nil {
		return nil, ErrNotOpen
	}
	if n <= 0 {
		return []Entry{}, nil
	}
	cur, err := store.coll.Find(ctx, bson.M{"category": string(c)}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(n)))
	if err != nil {
		return nil, mongoError("find recent entries", c, err)
	}
	return decodeEntries(ctx, cur, c)
}

func (store *MongoStore) FindOneRandomOffset(ctx context.Context, c category.Category) (*Entry, error) {
	total, err := store.Count(ctx, c)
	if err != nil || total == 0 {
		return nil, err
	}

	var doc mongoEntry
	err = store.coll.FindOne(ctx, bson.M{"category": string(c)}, options.FindOne().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(rand.Int64N(total))).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mongoError("find entry by offset", c, err)
	}

	e, err := doc.entry()
	if err != nil {
		return nil, mongoError("decode entry", c, err)
	}
	return &e, nil
}

func (store *MongoStore) Insert(ctx context.Context, e *Entry) error {
	if store.coll == nil {
		return ErrNotOpen
	}
	e.prepare()
	if _, err := store.coll.InsertOne(ctx, toMongo(e)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s %s", ErrDuplicateKey, e.Category, e.DedupeKey[:12])
		}
		return mongoError("insert entry", e.Category, err)
	}
	return nil
}

func decodeEntries(ctx context.Context, cur *mongo.Cursor, c category.Category) ([]Entry, error) {
	var docs []mongoEntry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoError("decode entries", c, err)
	}
	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		e, err := d.entry()
		if err != nil {
			return nil, mongoError("decode entry", c, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func mongoError(op string, c category.Category, err error) error {
	return errors.Newf("mongodb %s: %w", op, err).
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("category", string(c)).
		Component("datastore").
		Build()
}
