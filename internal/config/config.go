package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"multichat/internal/model"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Log     LogConfig     `mapstructure:"log"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	RAG     RAGConfig     `mapstructure:"rag"`
	Client  ClientConfig  `mapstructure:"client"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string          `mapstructure:"host"`
	Port         int             `mapstructure:"port"`
	Mode         string          `mapstructure:"mode"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
	CORSOrigins  []string        `mapstructure:"cors_origins"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 每个客户端的请求速率限制，RPS 为 0 时关闭
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// AIConfig AI 服务配置
type AIConfig struct {
	DefaultModel        string                    `mapstructure:"default_model"`
	DefaultSystemPrompt string                    `mapstructure:"default_system_prompt"`
	HistoryWindow       int                       `mapstructure:"history_window"`
	RequestTimeout      time.Duration             `mapstructure:"request_timeout"`
	Providers           map[string]ProviderConfig `mapstructure:"providers"`
	Options             AIOptionsConfig           `mapstructure:"options"`
}

// ProviderConfig 单个模型提供方的接入配置
type ProviderConfig struct {
	Type       string `mapstructure:"type"` // openai, azure, ark
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	APIVersion string `mapstructure:"api_version"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置，Addr 为空时不启用缓存
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AuthConfig 认证配置，JWTSecret 为空时所有请求按匿名用户处理
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
	Required          bool          `mapstructure:"required"`            // 为 true 时拒绝匿名请求
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
	BaseURL  string `mapstructure:"base_url"`  // 基础URL（用于生成访问URL）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	Prefix          string `mapstructure:"prefix"`            // 对象 key 前缀
}

// RAGConfig 文档检索配置
type RAGConfig struct {
	ChunkSize         int     `mapstructure:"chunk_size"`
	ChunkOverlap      int     `mapstructure:"chunk_overlap"`
	TopK              int     `mapstructure:"top_k"`
	MinSimilarity     float64 `mapstructure:"min_similarity"`
	MaxUploadBytes    int64   `mapstructure:"max_upload_bytes"`
	EmbeddingProvider string  `mapstructure:"embedding_provider"` // ai.providers 中的 key，为空时使用分词检索
	EmbeddingModel    string  `mapstructure:"embedding_model"`
}

// ClientConfig 终端客户端配置
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	UploadTimeout  time.Duration `mapstructure:"upload_timeout"`
	Token          string        `mapstructure:"token"`
	DataDir        string        `mapstructure:"data_dir"`
	DefaultModel   string        `mapstructure:"default_model"`
	Theme          string        `mapstructure:"theme"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	GenerateTitles bool          `mapstructure:"generate_titles"`
	RenderMarkdown bool          `mapstructure:"render_markdown"`
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid server.cors_origins entry %q", origin)
		}
	}

	if c.AI.DefaultModel != "" && !model.ModelID(c.AI.DefaultModel).Valid() {
		return fmt.Errorf("invalid ai.default_model %q", c.AI.DefaultModel)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize && c.RAG.ChunkSize > 0 {
		return errors.New("rag.chunk_overlap must be smaller than rag.chunk_size")
	}

	return nil
}

// Validate 验证客户端配置
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid client.base_url %q", c.BaseURL)
	}
	if c.DefaultModel != "" && !model.ModelID(c.DefaultModel).Valid() {
		return fmt.Errorf("invalid client.default_model %q", c.DefaultModel)
	}
	if c.Theme != "" && c.Theme != "dark" && c.Theme != "light" {
		return fmt.Errorf("invalid client.theme %q, must be dark/light", c.Theme)
	}
	return nil
}
