package checkpoint

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
)

const (
	DefaultMongoDatabase   = "orgraph"
	DefaultMongoCollection = "checkpoints"
)

// MongoConfig configures a [MongoStore].
type MongoConfig struct {
	URI        string
	Database   string // Defaults to [DefaultMongoDatabase]
	Collection string // Defaults to [DefaultMongoCollection]
}

// mongoRecord is the stored document, one per repository.
type mongoRecord struct {
	Repo         string    `bson:"_id"`
	Dependencies []string  `bson:"dependencies"`
	ScannedAt    time.Time `bson:"scanned_at"`
}

// MongoStore keeps one document per repository in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time

	mu      sync.RWMutex
	records map[string][]string
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, orgerrors.New(orgerrors.ErrCodeInvalidConfig, "mongo URI is empty")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "ping mongo")
	}
	return &MongoStore{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		now:     time.Now,
		records: make(map[string][]string),
	}, nil
}

// Load reads every repository document into memory.
func (s *MongoStore) Load(ctx context.Context) (map[string][]string, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "query checkpoints")
	}
	var docs []mongoRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "decode checkpoints")
	}

	records := make(map[string][]string, len(docs))
	for _, d := range docs {
		records[d.Repo] = normalize(d.Dependencies)
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return cloneRecords(records), nil
}

// Put upserts the document for repo.
func (s *MongoStore) Put(ctx context.Context, repo string, deps []string) error {
	deps = normalize(deps)
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": repo},
		bson.M{"$set": bson.M{"dependencies": deps, "scanned_at": s.now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "upsert checkpoint %s", repo)
	}
	s.mu.Lock()
	s.records[repo] = deps
	s.mu.Unlock()
	return nil
}

// Has reports whether repo has been checkpointed.
func (s *MongoStore) Has(repo string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[repo]
	return ok
}

// All returns a copy of every record.
func (s *MongoStore) All() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Clear deletes every document in the collection.
func (s *MongoStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "clear checkpoints")
	}
	s.mu.Lock()
	s.records = make(map[string][]string)
	s.mu.Unlock()
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
