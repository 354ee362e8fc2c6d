package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meetsync/internal/database"
	"meetsync/internal/models"
)

// MongoSessionBackend keeps one document per session and one capped log document per user
type MongoSessionBackend struct {
	db *database.MongoDB
}

// NewMongoSessionBackend creates a backend over an initialized MongoDB
func NewMongoSessionBackend(db *database.MongoDB) *MongoSessionBackend {
	return &MongoSessionBackend{db: db}
}

type executionLogDoc struct {
	UserID  string                   `bson:"userId"`
	Entries []models.ExecutionRecord `bson:"entries"`
}

func (b *MongoSessionBackend) sessions() *mongo.Collection {
	return b.db.Collection(database.CollectionSessions)
}

func (b *MongoSessionBackend) logs() *mongo.Collection {
	return b.db.Collection(database.CollectionExecutionLogs)
}

func (b *MongoSessionBackend) LoadSession(ctx context.Context, userID string) (*StoredSession, error) {
	var stored StoredSession
	err := b.sessions().FindOne(ctx, bson.M{"userId": userID}).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stored.UploadedAt = stored.UploadedAt.UTC()
	return &stored, nil
}

func (b *MongoSessionBackend) SaveSession(ctx context.Context, session *StoredSession) error {
	_, err := b.sessions().ReplaceOne(ctx,
		bson.M{"userId": session.UserID},
		session,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (b *MongoSessionBackend) DeleteSession(ctx context.Context, userID string) error {
	_, err := b.sessions().DeleteOne(ctx, bson.M{"userId": userID})
	return err
}

// AppendExecution pushes to the front of the entries array and slices it to limit in one update
func (b *MongoSessionBackend) AppendExecution(ctx context.Context, userID string, record models.ExecutionRecord, limit int) error {
	_, err := b.logs().UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$push": bson.M{"entries": bson.M{
			"$each":     []models.ExecutionRecord{record},
			"$position": 0,
			"$slice":    limit,
		}}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (b *MongoSessionBackend) ListExecutions(ctx context.Context, userID string) ([]models.ExecutionRecord, error) {
	var doc executionLogDoc
	err := b.logs().FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []models.ExecutionRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range doc.Entries {
		doc.Entries[i].StartedAt = doc.Entries[i].StartedAt.UTC()
		doc.Entries[i].CompletedAt = doc.Entries[i].CompletedAt.UTC()
	}
	return doc.Entries, nil
}

func (b *MongoSessionBackend) DeleteExecutions(ctx context.Context, userID string) error {
	_, err := b.logs().DeleteOne(ctx, bson.M{"userId": userID})
	return err
}

func (b *MongoSessionBackend) ActiveUsers(ctx context.Context) ([]string, error) {
	cursor, err := b.sessions().Find(ctx, bson.M{"active": true},
		options.Find().SetProjection(bson.M{"userId": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []string{}
	for cursor.Next(ctx) {
		var doc struct {
			UserID string `bson:"userId"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, doc.UserID)
	}
	return users, cursor.Err()
}

func (b *MongoSessionBackend) Ping(ctx context.Context) error {
	return b.db.Ping(ctx)
}
