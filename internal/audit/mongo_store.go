package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoEntry is the document shape; ids are stored as strings so the
// collection stays readable from other tools.
type mongoEntry struct {
	ID         string                 `bson:"_id"`
	EntityType string                 `bson:"entity_type"`
	EntityID   string                 `bson:"entity_id"`
	Action     string                 `bson:"action"`
	ActorID    string                 `bson:"actor_id,omitempty"`
	ActorRole  string                 `bson:"actor_role,omitempty"`
	Before     map[string]interface{} `bson:"before,omitempty"`
	After      map[string]interface{} `bson:"after,omitempty"`
	Metadata   map[string]interface{} `bson:"metadata,omitempty"`
	CreatedAt  time.Time              `bson:"created_at"`
}

type mongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates an audit store on the given collection
func NewMongoStore(collection *mongo.Collection) Store {
	return &mongoStore{collection: collection}
}

// ConnectMongo opens a client and returns the audit collection
func ConnectMongo(ctx context.Context, uri, database, collection string) (*mongo.Client, *mongo.Collection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to create audit index: %w", err)
	}
	return client, coll, nil
}

func (s *mongoStore) Append(ctx context.Context, entry *Entry) error {
	entry.prepare()
	doc := mongoEntry{
		ID:         entry.ID.String(),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID.String(),
		Action:     entry.Action,
		ActorRole:  entry.ActorRole,
		Before:     entry.Before,
		After:      entry.After,
		Metadata:   entry.Metadata,
		CreatedAt:  entry.CreatedAt,
	}
	if entry.ActorID != nil {
		doc.ActorID = entry.ActorID.String()
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *mongoStore) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Entry, error) {
	filter := bson.M{"entity_type": entityType, "entity_id": entityID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoEntry
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		entry, err := d.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (d mongoEntry) toEntry() (Entry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid audit id %q: %w", d.ID, err)
	}
	entityID, err := uuid.Parse(d.EntityID)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid audit entity id %q: %w", d.EntityID, err)
	}

	entry := Entry{
		ID:         id,
		EntityType: d.EntityType,
		EntityID:   entityID,
		Action:     d.Action,
		ActorRole:  d.ActorRole,
		Before:     d.Before,
		After:      d.After,
		Metadata:   d.Metadata,
		CreatedAt:  d.CreatedAt,
	}
	if d.ActorID != "" {
		actorID, err := uuid.Parse(d.ActorID)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid audit actor id %q: %w", d.ActorID, err)
		}
		entry.ActorID = &actorID
	}
	return entry, nil
}
