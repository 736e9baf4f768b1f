package ai

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"multichat/internal/config"
)

// DefaultEmbeddingModel 未配置 rag.embedding_model 时使用
const DefaultEmbeddingModel = "text-embedding-3-small"

// embeddingBatch 单次请求最多提交的文本数
const embeddingBatch = 64

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder 走 OpenAI 兼容的 /embeddings 接口
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder 创建向量化客户端
func NewOpenAIEmbedder(provider config.ProviderConfig, modelName string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(provider.APIKey)
	if provider.BaseURL != "" {
		cfg.BaseURL = provider.BaseURL
	}
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}
}

// Embed 批量向量化，返回顺序与输入一致
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatch {
		end := min(start+embeddingBatch, len(texts))
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), end-start)
		}
		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, errors.New("embedding index out of range")
			}
			batch[d.Index] = d.Embedding
		}
		out = append(out, batch...)
	}
	return out, nil
}

// Cosine 余弦相似度，维度不一致或零向量时返回 0
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
