package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"multichat/internal/config"
	"multichat/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "multichat",
	Short: "multichat - chat with several LLMs from one place",
	Long: `multichat is a multi-model chat client and backend.
"multichat serve" runs the chat API, "multichat chat" opens the terminal client.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// .env 可选，已存在的环境变量优先
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.multichat")
	}

	// 环境变量设置
	viper.SetEnvPrefix("MULTICHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "60s")
	viper.SetDefault("server.write_timeout", "180s")
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("server.rate_limit.rps", 2)
	viper.SetDefault("server.rate_limit.burst", 10)

	// AI
	viper.SetDefault("ai.default_model", "phi3:mini")
	viper.SetDefault("ai.history_window", 15)
	viper.SetDefault("ai.request_timeout", "120s")
	viper.SetDefault("ai.options.temperature", 0.7)
	viper.SetDefault("ai.options.max_tokens", 1000)
	viper.SetDefault("ai.options.top_p", 1.0)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "multichat")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "30m")

	// Auth
	viper.SetDefault("auth.access_token_expiry", "720h")
	viper.SetDefault("auth.required", false)

	// Storage
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.base_path", "./data/uploads")

	// RAG
	viper.SetDefault("rag.chunk_size", 1000)
	viper.SetDefault("rag.chunk_overlap", 200)
	viper.SetDefault("rag.top_k", 3)
	viper.SetDefault("rag.min_similarity", 0.2)
	viper.SetDefault("rag.max_upload_bytes", 10<<20)
	viper.SetDefault("rag.embedding_model", "text-embedding-3-small")

	// Client
	viper.SetDefault("client.base_url", "http://localhost:8080/api")
	viper.SetDefault("client.timeout", "60s")
	viper.SetDefault("client.upload_timeout", "120s")
	viper.SetDefault("client.data_dir", "$HOME/.multichat")
	viper.SetDefault("client.default_model", "phi3:mini")
	viper.SetDefault("client.theme", "dark")
	viper.SetDefault("client.history_limit", 50)
	viper.SetDefault("client.generate_titles", true)
	viper.SetDefault("client.render_markdown", true)
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
