package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Activity subjects.
const (
	SubjectTicket = "ticket"
	SubjectOrder  = "order"
)

// Activity is one entry of a subject's timeline.
type Activity struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	SubjectType string                 `bson:"subject_type" json:"subject_type"`
	SubjectID   string                 `bson:"subject_id" json:"subject_id"`
	Action      string                 `bson:"action" json:"action"`
	ActorID     string                 `bson:"actor_id" json:"actor_id"`
	Data        map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
}

// ActivityLog records and lists timeline entries.
type ActivityLog interface {
	Record(ctx context.Context, entry Activity) error
	List(ctx context.Context, subjectType, subjectID string) ([]Activity, error)
}

// MongoActivityLog stores activity documents in the "activity" collection.
type MongoActivityLog struct {
	collection *mongo.Collection
}

// ConnectMongo opens and pings a MongoDB client.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// NewMongoActivityLog creates the log and its lookup index.
func NewMongoActivityLog(ctx context.Context, client *mongo.Client, dbName string) (*MongoActivityLog, error) {
	collection := client.Database(dbName).Collection("activity")
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "subject_type", Value: 1}, {Key: "subject_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoActivityLog{collection: collection}, nil
}

// Record inserts an entry, stamping CreatedAt when empty.
func (l *MongoActivityLog) Record(ctx context.Context, entry Activity) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.collection.InsertOne(ctx, entry)
	return err
}

// List returns a subject's timeline, oldest first.
func (l *MongoActivityLog) List(ctx context.Context, subjectType, subjectID string) ([]Activity, error) {
	cursor, err := l.collection.Find(ctx,
		bson.M{"subject_type": subjectType, "subject_id": subjectID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []Activity{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// NoopActivityLog drops entries. Used when MongoDB is not configured.
type NoopActivityLog struct{}

// Record does nothing.
func (NoopActivityLog) Record(context.Context, Activity) error { return nil }

// List returns an empty timeline.
func (NoopActivityLog) List(context.Context, string, string) ([]Activity, error) {
	return []Activity{}, nil
}
