// Package mongostore implements the repository ports on MongoDB.
package mongostore

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"brainrotMarket/internal/ports"
)

// Collection names.
const (
	CollBrainrots     = "brainrots"
	CollMutations     = "mutations"
	CollTraits        = "traits"
	CollTrades        = "trades"
	CollUsers         = "users"
	CollNotifications = "notifications"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultListLimit = 50
)

// Config holds configuration for the MongoDB store.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration // Connect and per-operation timeout; zero means 30s
	Logger   ports.Logger
}

// Store implements the catalog, trade, user and notification ports.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger ports.Logger

	brainrots     *mongo.Collection
	mutations     *mongo.Collection
	traits        *mongo.Collection
	trades        *mongo.Collection
	users         *mongo.Collection
	notifications *mongo.Collection
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for MongoDB store")
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("MONGODB_URI not set: %w", ports.ErrConfigurationError)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name not set: %w", ports.ErrConfigurationError)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetTimeout(timeout).
		SetConnectTimeout(timeout)
	// Atlas SRV clusters need TLS with the system roots.
	if strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		clientOptions.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("MongoDB connection failed: %w: %w", ports.ErrDBConnection, err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, timeout/2)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB ping failed: %w: %w", ports.ErrDBConnection, err)
	}

	s := newStore(client, cfg.Database, cfg.Logger)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	cfg.Logger.Info(ctx, "Connected to MongoDB", map[string]interface{}{"database": cfg.Database})
	return s, nil
}

func newStore(client *mongo.Client, database string, logger ports.Logger) *Store {
	db := client.Database(database)
	return &Store{
		client:        client,
		db:            db,
		logger:        logger,
		brainrots:     db.Collection(CollBrainrots),
		mutations:     db.Collection(CollMutations),
		traits:        db.Collection(CollTraits),
		trades:        db.Collection(CollTrades),
		users:         db.Collection(CollUsers),
		notifications: db.Collection(CollNotifications),
	}
}

// EnsureIndexes creates the secondary indexes used by list queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.trades: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "joinerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		s.notifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		s.mutations: {
			{Keys: bson.M{"name": 1}, Options: options.Index().SetUnique(true)},
		},
		s.traits: {
			{Keys: bson.M{"name": 1}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	s.logger.Info(ctx, "Closing MongoDB connection")
	return s.client.Disconnect(ctx)
}
