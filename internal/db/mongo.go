package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

const mongoAppendAttempts = 5

type Mongo struct {
	Client        *mongo.Client
	Database      *mongo.Database
	Conversations *mongo.Collection
	Messages      *mongo.Collection
}

type conversationDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	UserID    string    `bson:"user_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	Role           string    `bson:"role"`
	Content        string    `bson:"content"`
	CreatedAt      time.Time `bson:"created_at"`
}

func NewMongo(ctx context.Context, cfg utils.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Mongo{
		Client:        client,
		Database:      db,
		Conversations: db.Collection("conversations"),
		Messages:      db.Collection("messages"),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("mongo: client not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Ping(ctx, nil)
}

func (m *Mongo) EnsureCollections(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("mongo: database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.Messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure message index: %w", err)
	}

	_, err = m.Conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure conversation index: %w", err)
	}

	return nil
}

func (m *Mongo) CreateConversation(ctx context.Context, title, sessionID, firstMessage string) (*models.Conversation, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := conversationDoc{
		ID:        uuid.NewString(),
		Title:     titleOrDefault(title),
		UserID:    sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := m.Conversations.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("mongo: insert conversation: %w", err)
	}

	conv := doc.toModel(0)
	if firstMessage == "" {
		return conv, nil
	}

	msg := messageDoc{
		ID:             uuid.NewString(),
		ConversationID: doc.ID,
		Role:           string(models.RoleUser),
		Content:        firstMessage,
		CreatedAt:      now,
	}
	if _, err := m.Messages.InsertOne(ctx, msg); err != nil {
		// No multi-document transaction on standalone servers; undo the header.
		_, _ = m.Conversations.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": doc.ID})
		return nil, fmt.Errorf("mongo: insert message: %w", err)
	}
	conv.Messages = []models.Message{msg.toModel()}
	conv.MessageCount = 1
	return conv, nil
}

func (m *Mongo) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if !validID(id) {
		return nil, notFound(id)
	}

	var doc conversationDoc
	err := m.Conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get conversation: %w", err)
	}

	count, err := m.Messages.CountDocuments(ctx, bson.M{"conversation_id": id})
	if err != nil {
		return nil, fmt.Errorf("mongo: count messages: %w", err)
	}
	return doc.toModel(int(count)), nil
}

func (m *Mongo) ListConversations(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	filter := bson.M{}
	if sessionID != "" {
		filter["user_id"] = sessionID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limitOrDefault(limit)))

	cursor, err := m.Conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list conversations: %w", err)
	}
	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode conversations: %w", err)
	}

	counts, err := m.countMessages(ctx, docs)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversations = append(conversations, *doc.toModel(counts[doc.ID]))
	}
	return conversations, nil
}

func (m *Mongo) countMessages(ctx context.Context, docs []conversationDoc) (map[string]int, error) {
	counts := make(map[string]int, len(docs))
	if len(docs) == 0 {
		return counts, nil
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"conversation_id": bson.M{"$in": ids}}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := m.Messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo: count messages: %w", err)
	}

	var rows []struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongo: decode message counts: %w", err)
	}
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}

func (m *Mongo) DeleteConversation(ctx context.Context, id string) error {
	if !validID(id) {
		return notFound(id)
	}

	res, err := m.Conversations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: delete conversation: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}

	if _, err := m.Messages.DeleteMany(ctx, bson.M{"conversation_id": id}); err != nil {
		return fmt.Errorf("mongo: delete messages: %w", err)
	}
	return nil
}

// AppendMessage claims the next timestamp with a compare-and-set on the
// conversation's updated_at, retrying when another writer got there first.
func (m *Mongo) AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("mongo: invalid role %q", role)
	}
	if !validID(conversationID) {
		return nil, notFound(conversationID)
	}

	for attempt := 0; attempt < mongoAppendAttempts; attempt++ {
		var conv conversationDoc
		err := m.Conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(conversationID)
		}
		if err != nil {
			return nil, fmt.Errorf("mongo: read conversation: %w", err)
		}

		created := models.NextMessageTime(time.Now(), conv.UpdatedAt, time.Millisecond)
		res, err := m.Conversations.UpdateOne(ctx,
			bson.M{"_id": conversationID, "updated_at": conv.UpdatedAt},
			bson.M{"$set": bson.M{"updated_at": created}})
		if err != nil {
			return nil, fmt.Errorf("mongo: touch conversation: %w", err)
		}
		if res.MatchedCount == 0 {
			continue
		}

		doc := messageDoc{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           string(role),
			Content:        content,
			CreatedAt:      created,
		}
		if _, err := m.Messages.InsertOne(ctx, doc); err != nil {
			return nil, fmt.Errorf("mongo: insert message: %w", err)
		}
		msg := doc.toModel()
		return &msg, nil
	}

	return nil, fmt.Errorf("mongo: append to %s: too much contention", conversationID)
}

func (m *Mongo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if !validID(conversationID) {
		return nil, notFound(conversationID)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.Messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list messages: %w", err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode messages: %w", err)
	}

	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, doc.toModel())
	}
	return messages, nil
}

func (d conversationDoc) toModel(count int) *models.Conversation {
	return &models.Conversation{
		ID:           d.ID,
		Title:        d.Title,
		SessionID:    d.UserID,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		MessageCount: count,
	}
}

func (d messageDoc) toModel() models.Message {
	return models.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		Role:           models.Role(d.Role),
		Content:        d.Content,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}
