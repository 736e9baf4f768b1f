package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"multichat/internal/model"
)

// maxScannedChunks 向量检索时单次最多加载的分块数
const maxScannedChunks = 2000

// DocumentRepo 文档与分块仓库
type DocumentRepo struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
}

// NewDocumentRepo 创建文档仓库
func NewDocumentRepo(db *mongo.Database) *DocumentRepo {
	return &DocumentRepo{
		documents: db.Collection((&model.Document{}).Collection()),
		chunks:    db.Collection((&model.DocumentChunk{}).Collection()),
	}
}

// Create 写入文档及其分块
func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document, chunks []*model.DocumentChunk) error {
	if _, err := r.documents.InsertOne(ctx, doc); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]any, len(chunks))
	for i, c := range chunks {
		docs[i] = c
	}
	if _, err := r.chunks.InsertMany(ctx, docs); err != nil {
		// 分块写入失败时撤销文档记录
		_, _ = r.documents.DeleteOne(ctx, bson.M{"_id": doc.ID})
		return err
	}
	return nil
}

// List 列出用户文档；conversationID 非空时只返回该对话的文档和全局文档
func (r *DocumentRepo) List(ctx context.Context, userID, conversationID string) ([]model.Document, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})
	cursor, err := r.documents.Find(ctx, scopeFilter(userID, conversationID), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []model.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ChunksByTerms 返回至少包含一个词项的分块
func (r *DocumentRepo) ChunksByTerms(ctx context.Context, userID, conversationID string, terms []string) ([]model.DocumentChunk, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	filter := scopeFilter(userID, conversationID)
	filter["terms"] = bson.M{"$in": terms}
	return r.findChunks(ctx, filter, options.Find().SetLimit(maxScannedChunks).SetProjection(bson.M{"embedding": 0}))
}

// EmbeddedChunks 返回带向量的分块
func (r *DocumentRepo) EmbeddedChunks(ctx context.Context, userID, conversationID string) ([]model.DocumentChunk, error) {
	filter := scopeFilter(userID, conversationID)
	filter["embedding"] = bson.M{"$exists": true}
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}}).
		SetLimit(maxScannedChunks).
		SetProjection(bson.M{"terms": 0})
	return r.findChunks(ctx, filter, opts)
}

// DeleteByConversation 删除对话范围内的文档和分块，返回被删除的文档
func (r *DocumentRepo) DeleteByConversation(ctx context.Context, userID, conversationID string) ([]model.Document, error) {
	filter := bson.M{"user_id": userID, "conversation_id": conversationID}

	cursor, err := r.documents.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	docs := []model.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	if _, err := r.chunks.DeleteMany(ctx, filter); err != nil {
		return nil, err
	}
	if _, err := r.documents.DeleteMany(ctx, filter); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepo) findChunks(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.DocumentChunk, error) {
	cursor, err := r.chunks.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chunks := []model.DocumentChunk{}
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// scopeFilter 用户范围内，对话文档加上未绑定对话的全局文档
func scopeFilter(userID, conversationID string) bson.M {
	filter := bson.M{"user_id": userID}
	if conversationID != "" {
		filter["$or"] = bson.A{
			bson.M{"conversation_id": conversationID},
			bson.M{"conversation_id": bson.M{"$exists": false}},
			bson.M{"conversation_id": ""},
		}
	}
	return filter
}
