package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"multichat/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// ChatRepo 对话仓库
type ChatRepo struct {
	collection *mongo.Collection
}

// NewChatRepo 创建对话仓库
func NewChatRepo(db *mongo.Database) *ChatRepo {
	return &ChatRepo{
		collection: db.Collection((&model.Chat{}).Collection()),
	}
}

// Create 创建对话，CreatedAt/UpdatedAt 为空时取当前时间
func (r *ChatRepo) Create(ctx context.Context, chat *model.Chat) error {
	now := time.Now().UTC()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}
	_, err := r.collection.InsertOne(ctx, chat)
	return err
}

// FindByID 根据 ID 查询用户的对话
func (r *ChatRepo) FindByID(ctx context.Context, userID, id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListByUserID 查询用户对话列表，最近更新的在前
func (r *ChatRepo) ListByUserID(ctx context.Context, userID string, limit int64) ([]*model.Chat, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chats := []*model.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// Touch 刷新更新时间
func (r *ChatRepo) Touch(ctx context.Context, id string) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}})
	return err
}

// UpdateSystemPrompt 更新系统提示词，空字符串表示清除。返回是否命中
func (r *ChatRepo) UpdateSystemPrompt(ctx context.Context, userID, id, prompt string) (bool, error) {
	update := bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}}
	if prompt == "" {
		update["$unset"] = bson.M{"system_prompt": ""}
	} else {
		update["$set"].(bson.M)["system_prompt"] = prompt
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// Delete 删除对话，返回是否命中
func (r *ChatRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
