package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	chatSessionCollection = "chat_sessions"
	chatMessageCollection = "chat_messages"
)

type ChatRepo interface {
	CreateSession(ctx context.Context, session *types.ChatSession) error
	GetSession(ctx context.Context, userID int64, id string) (*types.ChatSession, error)
	ListSessions(ctx context.Context, userID int64) ([]*types.ChatSession, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, userID int64, id string) error

	AddMessages(ctx context.Context, messages ...*types.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]*types.ChatMessage, error)
	// RecentMessages returns the last limit messages, oldest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]*types.ChatMessage, error)
}

type chatRepo struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

func NewChatRepo(ctx context.Context, db *mongo.Database) (ChatRepo, error) {
	collectionNames, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	existing := make(map[string]bool, len(collectionNames))
	for _, name := range collectionNames {
		existing[name] = true
	}

	sessions := db.Collection(chatSessionCollection)
	messages := db.Collection(chatMessageCollection)
	log := logger.WithComponent("chat_repo")

	if !existing[chatSessionCollection] {
		_, err := sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "updated_at", Value: -1},
			},
		})
		if err != nil {
			log.Warn().Err(err).Msg("error creating session indexes")
		}
	}
	if !existing[chatMessageCollection] {
		_, err := messages.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
		})
		if err != nil {
			log.Warn().Err(err).Msg("error creating message indexes")
		}
	}

	return &chatRepo{
		sessions: sessions,
		messages: messages,
	}, nil
}

func (r *chatRepo) CreateSession(ctx context.Context, session *types.ChatSession) error {
	res, err := r.sessions.InsertOne(ctx, session)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		session.ID = oid.Hex()
	}
	return nil
}

func (r *chatRepo) GetSession(ctx context.Context, userID int64, id string) (*types.ChatSession, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var session types.ChatSession
	err = r.sessions.FindOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "user_id", Value: userID}}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatRepo) ListSessions(ctx context.Context, userID int64) ([]*types.ChatSession, error) {
	cursor, err := r.sessions.Find(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := make([]*types.ChatSession, 0)
	for cursor.Next(ctx) {
		var session types.ChatSession
		if err := cursor.Decode(&session); err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}
	return sessions, cursor.Err()
}

func (r *chatRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.sessions.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: bson.D{{Key: "updated_at", Value: at}}}})
	return err
}

func (r *chatRepo) DeleteSession(ctx context.Context, userID int64, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.sessions.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "user_id", Value: userID}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = r.messages.DeleteMany(ctx, bson.D{{Key: "session_id", Value: id}})
	return err
}

func (r *chatRepo) AddMessages(ctx context.Context, messages ...*types.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	docs := make([]interface{}, len(messages))
	for i, m := range messages {
		docs[i] = m
	}
	res, err := r.messages.InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	for i, id := range res.InsertedIDs {
		if oid, ok := id.(bson.ObjectID); ok && i < len(messages) {
			messages[i].ID = oid.Hex()
		}
	}
	return nil
}

func (r *chatRepo) ListMessages(ctx context.Context, sessionID string) ([]*types.ChatMessage, error) {
	return r.findMessages(ctx, sessionID, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *chatRepo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*types.ChatMessage, error) {
	msgs, err := r.findMessages(ctx, sessionID, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *chatRepo) findMessages(ctx context.Context, sessionID string, opts *options.FindOptionsBuilder) ([]*types.ChatMessage, error) {
	cursor, err := r.messages.Find(ctx, bson.D{{Key: "session_id", Value: sessionID}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := make([]*types.ChatMessage, 0)
	for cursor.Next(ctx) {
		var m types.ChatMessage
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, cursor.Err()
}
