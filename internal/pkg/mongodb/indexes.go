package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"multichat/internal/model"
)

// Model 自己维护索引的集合实体
type Model interface {
	Collection() string
	EnsureIndexes(ctx context.Context, db *mongo.Database) error
}

// EnsureIndexes 启动时为 chats、messages、documents、document_chunks 建索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return ensureAll(ctx, db,
		&model.Chat{},
		&model.StoredMessage{},
		&model.Document{},
		&model.DocumentChunk{},
	)
}

func ensureAll(ctx context.Context, db *mongo.Database, models ...Model) error {
	for _, m := range models {
		if err := m.EnsureIndexes(ctx, db); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", m.Collection(), err)
		}
	}
	return nil
}
