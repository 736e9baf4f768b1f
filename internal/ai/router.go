package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"

	"multichat/internal/ai/component"
	"multichat/internal/config"
	"multichat/internal/model"
)

// ErrUnknownModel 模型不在目录中
var ErrUnknownModel = errors.New("unknown model")

// ErrProviderNotConfigured 模型所属提供方没有配置
var ErrProviderNotConfigured = errors.New("model provider not configured")

// ModelFactory 按提供方配置创建 ChatModel，测试中可替换
type ModelFactory func(ctx context.Context, provider config.ProviderConfig, modelName string, opts config.AIOptionsConfig) (einomodel.BaseChatModel, error)

// Router 把模型标识分发到对应提供方的 ChatModel，按模型缓存实例
type Router struct {
	cfg     *config.AIConfig
	factory ModelFactory

	mu     sync.Mutex
	models map[model.ModelID]einomodel.BaseChatModel
}

// NewRouter 创建模型路由
func NewRouter(cfg *config.AIConfig, factory ModelFactory) *Router {
	if factory == nil {
		factory = component.NewChatModel
	}
	return &Router{
		cfg:     cfg,
		factory: factory,
		models:  make(map[model.ModelID]einomodel.BaseChatModel),
	}
}

// Model 返回模型对应的 ChatModel
func (r *Router) Model(ctx context.Context, id model.ModelID) (einomodel.BaseChatModel, error) {
	capability, ok := model.LookupModel(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[id]; ok {
		return m, nil
	}

	provider, ok := r.providerConfig(capability.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, capability.Provider)
	}
	m, err := r.factory(ctx, provider, capability.UpstreamModel, r.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("create chat model %s: %w", id, err)
	}
	r.models[id] = m
	return m, nil
}

// Available 返回已配置提供方的模型
func (r *Router) Available() []model.Capability {
	var out []model.Capability
	for _, c := range model.Models() {
		if _, ok := r.providerConfig(c.Provider); ok {
			out = append(out, c)
		}
	}
	return out
}

// providerConfig 读取 ai.providers.<key>，为兼容 OpenAI 协议的提供方补全类型与默认地址。
// ollama 不需要 API key，未配置时也可用
func (r *Router) providerConfig(p model.Provider) (config.ProviderConfig, bool) {
	pc, ok := r.cfg.Providers[string(p)]
	if !ok && p != model.ProviderOllama {
		return config.ProviderConfig{}, false
	}

	switch p {
	case model.ProviderOllama:
		pc.Type = "openai"
		if pc.BaseURL == "" {
			pc.BaseURL = component.DefaultOllamaBaseURL
		}
		if pc.APIKey == "" {
			pc.APIKey = "ollama"
		}
	case model.ProviderGemini:
		pc.Type = "openai"
		if pc.BaseURL == "" {
			pc.BaseURL = component.DefaultGeminiBaseURL
		}
	case model.ProviderGroq:
		pc.Type = "openai"
		if pc.BaseURL == "" {
			pc.BaseURL = component.DefaultGroqBaseURL
		}
	case model.ProviderArk:
		if pc.Type == "" {
			pc.Type = "ark"
		}
	}

	if pc.APIKey == "" {
		return config.ProviderConfig{}, false
	}
	return pc, true
}
