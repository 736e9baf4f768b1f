package model

import (
	"fmt"
	"strings"
)

// ModelID 模型标识，封闭枚举，必须与后端支持的集合一致
type ModelID string

const (
	ModelPhi3Mini    ModelID = "phi3:mini"
	ModelGeminiFlash ModelID = "gemini-2.0-flash"
	ModelGroqLlama   ModelID = "groq-llama"
	ModelGPT4o       ModelID = "gpt-4o"
	ModelGPT4oMini   ModelID = "gpt-4o-mini"
	ModelDoubaoSeed  ModelID = "doubao-seed"
)

// DefaultModel 新对话默认使用的模型
const DefaultModel = ModelPhi3Mini

// Provider 模型提供方，对应配置 ai.providers.<key>
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
	ProviderGroq   Provider = "groq"
	ProviderOpenAI Provider = "openai"
	ProviderArk    Provider = "ark"
)

// Capability 模型能力描述
type Capability struct {
	ID                   ModelID  `json:"id"`
	DisplayName          string   `json:"display_name"`
	Provider             Provider `json:"provider"`
	UpstreamModel        string   `json:"upstream_model"`
	Local                bool     `json:"local"`
	SupportsFiles        bool     `json:"supports_files"`
	SupportsSystemPrompt bool     `json:"supports_system_prompt"`
}

var catalog = []Capability{
	{
		ID:                   ModelPhi3Mini,
		DisplayName:          "Phi-3 Mini (local)",
		Provider:             ProviderOllama,
		UpstreamModel:        "phi3:mini",
		Local:                true,
		SupportsFiles:        true,
		SupportsSystemPrompt: true,
	},
	{
		ID:                   ModelGeminiFlash,
		DisplayName:          "Gemini 2.0 Flash",
		Provider:             ProviderGemini,
		UpstreamModel:        "gemini-2.0-flash",
		SupportsFiles:        true,
		SupportsSystemPrompt: true,
	},
	{
		ID:                   ModelGroqLlama,
		DisplayName:          "Llama 3.1 8B (Groq)",
		Provider:             ProviderGroq,
		UpstreamModel:        "llama-3.1-8b-instant",
		SupportsSystemPrompt: true,
	},
	{
		ID:                   ModelGPT4o,
		DisplayName:          "GPT-4o",
		Provider:             ProviderOpenAI,
		UpstreamModel:        "gpt-4o",
		SupportsFiles:        true,
		SupportsSystemPrompt: true,
	},
	{
		ID:                   ModelGPT4oMini,
		DisplayName:          "GPT-4o mini",
		Provider:             ProviderOpenAI,
		UpstreamModel:        "gpt-4o-mini",
		SupportsFiles:        true,
		SupportsSystemPrompt: true,
	},
	{
		ID:                   ModelDoubaoSeed,
		DisplayName:          "Doubao Seed 1.6 Flash",
		Provider:             ProviderArk,
		UpstreamModel:        "doubao-seed-1-6-flash-250615",
		SupportsSystemPrompt: true,
	},
}

var catalogIndex = func() map[ModelID]Capability {
	m := make(map[ModelID]Capability, len(catalog))
	for _, c := range catalog {
		m[c.ID] = c
	}
	return m
}()

// Models 返回全部已支持模型（按展示顺序）
func Models() []Capability {
	out := make([]Capability, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel 查询模型能力
func LookupModel(id ModelID) (Capability, bool) {
	c, ok := catalogIndex[id]
	return c, ok
}

// Valid 是否为已知模型
func (id ModelID) Valid() bool {
	_, ok := catalogIndex[id]
	return ok
}

func (id ModelID) String() string {
	return string(id)
}

// ParseModelID 解析模型标识，大小写与首尾空白不敏感
func ParseModelID(s string) (ModelID, error) {
	id := ModelID(strings.ToLower(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", fmt.Errorf("unsupported model: %q", s)
	}
	return id, nil
}
