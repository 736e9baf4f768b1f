package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"multichat/internal/config"
)

const connectTimeout = 10 * time.Second

// Client 持有对话库的连接
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// New 连接 MongoDB 并确认主节点可用
func New(ctx context.Context, cfg *config.MongoConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("multichat").
		SetServerSelectionTimeout(connectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Database, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping %s: %w", cfg.Database, err)
	}

	return &Client{
		client:   client,
		database: client.Database(cfg.Database),
	}, nil
}

func (c *Client) Database() *mongo.Database {
	return c.database
}

// Ping 供 /ready 使用
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
