package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"multichat/internal/model"
	"multichat/internal/pkg/ctxutil"
	httputil "multichat/internal/pkg/http"
	"multichat/internal/service"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// ChatService 对话相关业务
type ChatService interface {
	Chat(ctx context.Context, userID string, req *model.ChatRequest) (*model.ChatResponse, error)
	GenerateTitle(ctx context.Context, content string, modelID model.ModelID) (string, error)
	ListChats(ctx context.Context, userID string, limit int) ([]model.Chat, error)
	CreateChat(ctx context.Context, userID string, req *model.CreateChatRequest) (string, error)
	History(ctx context.Context, userID, chatID string, limit int) ([]model.StoredMessage, error)
	SaveMessage(ctx context.Context, userID, chatID string, req *model.SaveMessageRequest) error
	DeleteChat(ctx context.Context, userID, chatID string) (bool, error)
	UpdateSystemPrompt(ctx context.Context, userID, chatID, prompt string) (bool, error)
}

// DocumentService 文档上传与列表
type DocumentService interface {
	Upload(ctx context.Context, in *service.UploadInput) (*model.UploadDocumentResponse, error)
	List(ctx context.Context, userID, conversationID string) ([]model.Document, error)
}

// Scraper 网页抓取
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (*model.ScrapeResponse, error)
}

// ModelCatalog 当前可用的模型
type ModelCatalog interface {
	Models() []model.Capability
}

// Handler 聊天后端 HTTP 处理器
type Handler struct {
	chats    ChatService
	docs     DocumentService
	scraper  Scraper
	catalog  ModelCatalog
	maxBytes int64
}

// Options Handler 依赖
type Options struct {
	Chats     ChatService
	Documents DocumentService
	Scraper   Scraper
	Catalog   ModelCatalog
	// MaxUploadBytes 单个上传文件的读取上限
	MaxUploadBytes int64
}

const defaultMaxUploadBytes = 10 << 20

// NewHandler 创建处理器
func NewHandler(opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		chats:    opts.Chats,
		docs:     opts.Documents,
		scraper:  opts.Scraper,
		catalog:  opts.Catalog,
		maxBytes: opts.MaxUploadBytes,
	}
}

// userID 认证中间件写入的用户，未认证时为匿名用户
func userID(c *gin.Context) string {
	if id, ok := ctxutil.GetUserID(c.Request.Context()); ok {
		return id
	}
	return model.AnonymousUserID
}

func badRequest(c *gin.Context, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadRequest, message, detail))
}

// fail 把 service 层错误映射成 HTTP 状态码和错误码
func fail(c *gin.Context, err error, message string) {
	status, code := http.StatusInternalServerError, httputil.CodeInternal
	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidModel),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrUnsupportedDocument),
		errors.Is(err, service.ErrEmptyDocument),
		errors.Is(err, service.ErrInvalidURL):
		status, code = http.StatusBadRequest, httputil.CodeValidation
	case errors.Is(err, service.ErrChatNotFound):
		status, code = http.StatusNotFound, httputil.CodeNotFound
	case errors.Is(err, service.ErrDocumentTooLarge):
		status, code = http.StatusRequestEntityTooLarge, httputil.CodeTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, httputil.CodeGatewayTimeout
	case errors.Is(err, service.ErrUpstream):
		status, code = http.StatusBadGateway, httputil.CodeUpstream
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg(message)
	}
	c.JSON(status, httputil.NewErrorResponse(code, message, err.Error()))
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, httputil.NewErrorResponse(httputil.CodeUnavailable, what+" not available"))
}
