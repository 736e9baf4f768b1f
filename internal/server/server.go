package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "multichat/docs"
	"multichat/internal/ai"
	"multichat/internal/config"
	"multichat/internal/handler"
	"multichat/internal/model"
	"multichat/internal/pkg/cache"
	"multichat/internal/pkg/jwt"
	"multichat/internal/pkg/mongodb"
	"multichat/internal/pkg/storage"
	"multichat/internal/pkg/storagefactory"
	"multichat/internal/pkg/textproc"
	"multichat/internal/repository"
	"multichat/internal/server/middleware"
	"multichat/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
	ai     *ai.Client
}

// Deps 路由依赖，由 New 组装，测试中可直接传入替身
type Deps struct {
	Handler *handler.Handler
	Health  *handler.HealthHandler
	JWT     *jwt.JWT
}

// New 创建服务器实例并连接依赖；MongoDB 必需，Redis 和对象存储可选
func New(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 初始化 MongoDB
	mongoClient, err := mongodb.New(ctx, &cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect MongoDB: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	// 创建索引
	if err := mongodb.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without history cache")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	// 初始化文档原件存储 (可选)
	var docStore storage.Storage
	if cfg.Storage.Type != "" {
		st, err := storagefactory.NewStorage(ctx, &cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize storage, uploaded originals will not be kept")
		} else {
			docStore = st
			log.Info().Str("type", st.GetStorageType()).Msg("initialized document storage")
		}
	}

	aiClient := ai.NewClient(&cfg.AI, nil)

	db := mongoClient.Database()
	docSvc := service.NewDocumentService(
		repository.NewDocumentRepo(db),
		docStore,
		aiClient.Embedder(cfg.RAG.EmbeddingProvider, cfg.RAG.EmbeddingModel),
		textproc.NewTokenizer(),
		service.DocumentOptions{
			ChunkSize:      cfg.RAG.ChunkSize,
			ChunkOverlap:   cfg.RAG.ChunkOverlap,
			TopK:           cfg.RAG.TopK,
			MinSimilarity:  cfg.RAG.MinSimilarity,
			MaxUploadBytes: cfg.RAG.MaxUploadBytes,
		},
	)

	var historyCache service.Cache
	if redisCache != nil {
		historyCache = redisCache
	}
	chatSvc := service.NewChatService(
		aiClient,
		repository.NewChatRepo(db),
		repository.NewMessageRepo(db),
		historyCache,
		docSvc,
		service.ChatOptions{
			DefaultModel:        model.ModelID(cfg.AI.DefaultModel),
			DefaultSystemPrompt: cfg.AI.DefaultSystemPrompt,
			HistoryWindow:       cfg.AI.HistoryWindow,
			CacheTTL:            cfg.Redis.TTL,
		},
	)

	pingers := map[string]handler.Pinger{"mongo": mongoClient}
	if redisCache != nil {
		pingers["redis"] = redisCache
	}

	deps := Deps{
		Handler: handler.NewHandler(handler.Options{
			Chats:          chatSvc,
			Documents:      docSvc,
			Scraper:        service.NewScrapeService(nil),
			Catalog:        aiClient,
			MaxUploadBytes: cfg.RAG.MaxUploadBytes,
		}),
		Health: handler.NewHealthHandler(pingers),
	}
	if cfg.Auth.JWTSecret != "" {
		deps.JWT = jwt.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	} else {
		log.Warn().Msg("JWT secret not configured, all requests are handled as the anonymous user")
	}

	return &Server{
		cfg:    cfg,
		engine: NewEngine(cfg, deps),
		mongo:  mongoClient,
		redis:  redisCache,
		ai:     aiClient,
	}, nil
}

// NewEngine 创建 Gin 引擎并注册路由
func NewEngine(cfg *config.Config, deps Deps) *gin.Engine {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Metrics())
	engine.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	// 健康检查
	engine.GET("/health", deps.Health.Health)
	engine.GET("/ready", deps.Health.Ready)
	// 终端客户端以 /api 为 base url 探活，不经过认证
	engine.GET("/api/health", deps.Health.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger 文档
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h := deps.Handler
	api := engine.Group("/api")
	api.Use(middleware.Auth(deps.JWT, cfg.Auth.Required))
	{
		chat := []gin.HandlerFunc{h.Chat}
		if rl := cfg.Server.RateLimit; rl.RPS > 0 {
			limiter := middleware.NewRateLimiter(rl.RPS, rl.Burst)
			chat = append([]gin.HandlerFunc{limiter.Middleware("chat")}, chat...)
		}
		api.POST("/chat", chat...)
		api.POST("/generate-title", h.GenerateTitle)
		api.GET("/models", h.Models)

		// 对话管理
		api.GET("/chats", h.ListChats)
		api.POST("/chats", h.CreateChat)
		api.GET("/chats/:id", h.History)
		api.DELETE("/chats/:id", h.DeleteChat)
		api.POST("/chats/:id/messages", h.SaveMessage)
		api.PATCH("/chats/:id/system-prompt", h.UpdateSystemPrompt)

		// 文档与工具
		api.POST("/upload-document", h.UploadDocument)
		api.GET("/documents", h.ListDocuments)
		api.POST("/scrape-url", h.ScrapeURL)
	}

	return engine
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.close(shutdownCtx)
		return err
	case err := <-errCh:
		s.close(context.Background())
		return err
	}
}

func (s *Server) close(ctx context.Context) {
	if err := s.ai.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close AI client")
	}
	if err := s.mongo.Close(ctx); err != nil {
		log.Error().Err(err).Msg("failed to close MongoDB connection")
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
