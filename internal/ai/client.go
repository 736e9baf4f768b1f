package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"multichat/internal/ai/chain"
	"multichat/internal/config"
	"multichat/internal/model"
	"multichat/internal/pkg/metrics"
)

// Client AI 能力层客户端
// 职责: 封装所有 AI 能力，提供统一接口
type Client struct {
	cfg        *config.AIConfig
	router     *Router
	chatChain  *ChatChain
	titleChain *chain.TitleChain
}

// NewClient 创建 AI 客户端，factory 为 nil 时使用 eino 模型组件
func NewClient(cfg *config.AIConfig, factory ModelFactory) *Client {
	router := NewRouter(cfg, factory)
	if len(router.Available()) == 0 {
		log.Warn().Msg("no AI provider configured, chat requests will fail")
	}

	return &Client{
		cfg:        cfg,
		router:     router,
		chatChain:  NewChatChain(router),
		titleChain: chain.NewTitleChain(router),
	}
}

// ChatRequest AI 对话请求
type ChatRequest struct {
	Model        model.ModelID
	SystemPrompt string
	History      []model.StoredMessage
	Message      string
}

// ChatResponse AI 对话响应
type ChatResponse struct {
	Content string
	Usage   *model.TokenUsage
}

// Chat 同步对话
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.chatChain.Run(ctx, req)
	metrics.ObserveLLMRequest(string(req.Model), "chat", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("chat with %s: %w", req.Model, err)
	}
	return resp, nil
}

// GenerateTitle 为对话生成标题
func (c *Client) GenerateTitle(ctx context.Context, content string, id model.ModelID) (string, error) {
	start := time.Now()
	title, err := c.titleChain.Run(ctx, &chain.TitleRequest{Content: content, Model: id})
	metrics.ObserveLLMRequest(string(id), "title", time.Since(start), err)
	return title, err
}

// Models 返回已配置可用的模型
func (c *Client) Models() []model.Capability {
	return c.router.Available()
}

// Embedder 按 rag 配置创建向量化客户端，未配置时返回 nil
func (c *Client) Embedder(providerKey, modelName string) Embedder {
	if providerKey == "" {
		return nil
	}
	pc, ok := c.router.providerConfig(model.Provider(providerKey))
	if !ok {
		log.Warn().Str("provider", providerKey).Msg("embedding provider not configured, falling back to keyword retrieval")
		return nil
	}
	return NewOpenAIEmbedder(pc, modelName)
}

// Close 关闭客户端
func (c *Client) Close() error {
	return nil
}
