package model

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection 返回集合名称
func (c *Chat) Collection() string {
	return "chats"
}

// EnsureIndexes 创建和维护索引
func (c *Chat) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_updated"),
		},
	}
	_, err := db.Collection(c.Collection()).Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection 返回集合名称
func (m *StoredMessage) Collection() string {
	return "messages"
}

// EnsureIndexes 创建和维护索引
func (m *StoredMessage) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "chat_id", Value: 1}, bson.E{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_chat_timestamp"),
		},
	}
	_, err := db.Collection(m.Collection()).Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection 返回集合名称
func (d *Document) Collection() string {
	return "documents"
}

// EnsureIndexes 创建和维护索引
func (d *Document) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "conversation_id", Value: 1}, bson.E{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_conversation_created"),
		},
	}
	_, err := db.Collection(d.Collection()).Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection 返回集合名称
func (c *DocumentChunk) Collection() string {
	return "document_chunks"
}

// EnsureIndexes 创建和维护索引
func (c *DocumentChunk) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "document_id", Value: 1}, bson.E{Key: "index", Value: 1}},
			Options: options.Index().SetName("idx_document_index"),
		},
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "conversation_id", Value: 1}},
			Options: options.Index().SetName("idx_user_conversation"),
		},
		{
			Keys:    bson.D{bson.E{Key: "terms", Value: 1}},
			Options: options.Index().SetName("idx_terms"),
		},
	}
	_, err := db.Collection(c.Collection()).Indexes().CreateMany(ctx, indexes)
	return err
}
