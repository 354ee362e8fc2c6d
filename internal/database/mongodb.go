package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collections used by the mongo session store
const (
	CollectionSessions      = "sessions"
	CollectionExecutionLogs = "execution_logs"
)

const defaultMongoDatabase = "meetsync"

// MongoDB is a connected client bound to one database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB connects to uri. The database name comes from the URI path.
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("meetsync").
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	name := databaseName(uri)
	log.Printf("✅ MongoDB connected (database %s)", name)
	return &MongoDB{client: client, database: client.Database(name)}, nil
}

// databaseName maps mongodb://host/meetsync?authSource=admin to "meetsync"
func databaseName(uri string) string {
	if parsed, err := url.Parse(uri); err == nil {
		if name := strings.Trim(parsed.Path, "/"); name != "" {
			return name
		}
	}
	return defaultMongoDatabase
}

// Initialize ensures one document per user in both collections and a lookup on active sessions
func (m *MongoDB) Initialize(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionSessions: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("user_unique")},
			{Keys: bson.D{{Key: "active", Value: 1}}, Options: options.Index().SetName("active")},
		},
		CollectionExecutionLogs: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("user_unique")},
		},
	}

	for collection, models := range indexes {
		if _, err := m.database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}
	log.Println("✅ MongoDB indexes ready")
	return nil
}

// Collection returns a collection handle
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
