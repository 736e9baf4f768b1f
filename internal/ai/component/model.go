package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"multichat/internal/config"
)

// 兼容 OpenAI 协议的提供方默认地址
const (
	DefaultArkBaseURL    = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
)

// NewChatModel 创建 ChatModel
// 支持多种 Provider 类型: openai(含 ollama/gemini/groq 的兼容接口), azure, ark
func NewChatModel(ctx context.Context, provider config.ProviderConfig, modelName string, opts config.AIOptionsConfig) (model.BaseChatModel, error) {
	switch provider.Type {
	case "openai", "":
		return newOpenAIChatModel(ctx, provider, modelName, opts)
	case "azure":
		return newAzureChatModel(ctx, provider, modelName, opts)
	case "ark":
		return newArkChatModel(ctx, provider, modelName, opts)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", provider.Type)
	}
}

// newOpenAIChatModel 创建 OpenAI ChatModel
func newOpenAIChatModel(ctx context.Context, provider config.ProviderConfig, modelName string, opts config.AIOptionsConfig) (model.BaseChatModel, error) {
	modelCfg := &openai.ChatModelConfig{
		Model:  modelName,
		APIKey: provider.APIKey,
	}

	// Base URL (用于代理或兼容 API)
	if provider.BaseURL != "" {
		modelCfg.BaseURL = provider.BaseURL
	}

	// 模型参数
	if opts.Temperature > 0 {
		temp := float32(opts.Temperature)
		modelCfg.Temperature = &temp
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if opts.TopP > 0 {
		topP := float32(opts.TopP)
		modelCfg.TopP = &topP
	}

	return openai.NewChatModel(ctx, modelCfg)
}

// newAzureChatModel 创建 Azure OpenAI ChatModel
func newAzureChatModel(ctx context.Context, provider config.ProviderConfig, modelName string, opts config.AIOptionsConfig) (model.BaseChatModel, error) {
	modelCfg := &openai.ChatModelConfig{
		Model:      modelName,
		APIKey:     provider.APIKey,
		BaseURL:    provider.BaseURL,
		APIVersion: provider.APIVersion,
		ByAzure:    true,
	}

	if opts.Temperature > 0 {
		temp := float32(opts.Temperature)
		modelCfg.Temperature = &temp
	}

	return openai.NewChatModel(ctx, modelCfg)
}

// newArkChatModel 创建 Ark ChatModel（使用 eino-ext 模块）
func newArkChatModel(ctx context.Context, provider config.ProviderConfig, modelName string, opts config.AIOptionsConfig) (model.BaseChatModel, error) {
	baseURL := provider.BaseURL
	if baseURL == "" {
		baseURL = DefaultArkBaseURL
	}

	modelCfg := &arkext.ChatModelConfig{
		Model:   modelName,
		APIKey:  provider.APIKey,
		BaseURL: baseURL,
	}

	if opts.Temperature > 0 {
		temp := float32(opts.Temperature)
		modelCfg.Temperature = &temp
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if opts.TopP > 0 {
		topP := float32(opts.TopP)
		modelCfg.TopP = &topP
	}

	return arkext.NewChatModel(ctx, modelCfg)
}
