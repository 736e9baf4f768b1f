package service

import (
	"context"
	"time"

	"multichat/internal/ai"
	"multichat/internal/model"
)

// ChatRepository 对话持久化，由 repository.ChatRepo 实现
type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	FindByID(ctx context.Context, userID, id string) (*model.Chat, error)
	ListByUserID(ctx context.Context, userID string, limit int64) ([]*model.Chat, error)
	Touch(ctx context.Context, id string) error
	UpdateSystemPrompt(ctx context.Context, userID, id, prompt string) (bool, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// MessageRepository 消息持久化，由 repository.MessageRepo 实现
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.StoredMessage) error
	ListRecent(ctx context.Context, chatID string, limit int64) ([]model.StoredMessage, error)
	ListRecentConversational(ctx context.Context, chatID string, limit int64) ([]model.StoredMessage, error)
	DeleteByChat(ctx context.Context, chatID string) error
}

// DocumentRepository 文档与分块持久化，由 repository.DocumentRepo 实现
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document, chunks []*model.DocumentChunk) error
	List(ctx context.Context, userID, conversationID string) ([]model.Document, error)
	ChunksByTerms(ctx context.Context, userID, conversationID string, terms []string) ([]model.DocumentChunk, error)
	EmbeddedChunks(ctx context.Context, userID, conversationID string) ([]model.DocumentChunk, error)
	DeleteByConversation(ctx context.Context, userID, conversationID string) ([]model.Document, error)
}

// Cache JSON 缓存，由 cache.RedisCache 实现；为 nil 时不缓存
type Cache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
}

// LLM 模型调用，由 ai.Client 实现
type LLM interface {
	Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error)
	GenerateTitle(ctx context.Context, content string, id model.ModelID) (string, error)
}
