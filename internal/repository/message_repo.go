package repository

import (
	"context"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"multichat/internal/model"
)

// MessageRepo 消息仓库
type MessageRepo struct {
	collection *mongo.Collection
}

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		collection: db.Collection((&model.StoredMessage{}).Collection()),
	}
}

// Insert 写入一条消息
func (r *MessageRepo) Insert(ctx context.Context, msg *model.StoredMessage) error {
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

// ListRecent 返回对话最近 limit 条消息，按时间正序
func (r *MessageRepo) ListRecent(ctx context.Context, chatID string, limit int64) ([]model.StoredMessage, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "timestamp", Value: -1}, bson.E{Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []model.StoredMessage{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// ListRecentConversational 返回最近 limit 条非 system 消息，按时间正序
func (r *MessageRepo) ListRecentConversational(ctx context.Context, chatID string, limit int64) ([]model.StoredMessage, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "timestamp", Value: -1}, bson.E{Key: "_id", Value: -1}}).
		SetLimit(limit)

	filter := bson.M{"chat_id": chatID, "role": bson.M{"$ne": model.RoleSystem}}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []model.StoredMessage{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// DeleteByChat 删除对话的全部消息
func (r *MessageRepo) DeleteByChat(ctx context.Context, chatID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"chat_id": chatID})
	return err
}
