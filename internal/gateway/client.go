package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"multichat/internal/model"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultUploadTimeout = 120 * time.Second
	DefaultHistoryLimit  = 50

	maxResponseBytes = 10 << 20
)

// Config 网关客户端配置
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	Token         string
	HTTPClient    *http.Client
}

// Client talks to the chat backend. Every call is bounded by a timeout and
// fails with a *Error.
type Client struct {
	baseURL       string
	timeout       time.Duration
	uploadTimeout time.Duration
	token         string
	http          *http.Client
}

// New 创建网关客户端
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway base url %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:       strings.TrimSuffix(u.String(), "/"),
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
		token:         cfg.Token,
		http:          cfg.HTTPClient,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = DefaultUploadTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

// SendRequest 发送消息参数；ConversationID 为空时由后端创建新对话
type SendRequest struct {
	ConversationID string
	Message        string
	Model          model.ModelID
	SystemPrompt   string
	Files          []File
}

// SendResult 助手回复
type SendResult struct {
	Role           model.Role
	Content        string
	ConversationID string
	Model          model.ModelID
	Citations      []model.Citation
}

// SendMessage POST /chat
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	const op = "send"
	if strings.TrimSpace(req.Message) == "" {
		return nil, validationError(op, "message is empty")
	}
	if err := ValidateFiles(req.Files); err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
		timeout     = c.timeout
	)
	if len(req.Files) > 0 {
		fields := map[string]string{
			"message":         req.Message,
			"model":           string(req.Model),
			"conversation_id": req.ConversationID,
			"system_prompt":   req.SystemPrompt,
		}
		buf, ct, err := encodeMultipart(fields, "files", req.Files)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: op, Message: "encode attachments", Err: err}
		}
		body, contentType, timeout = buf, ct, c.uploadTimeout
	} else {
		payload := model.ChatRequest{
			Message:        req.Message,
			Model:          req.Model,
			ConversationID: req.ConversationID,
			SystemPrompt:   req.SystemPrompt,
		}
		buf, err := encodeJSON(payload)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: op, Message: "encode request", Err: err}
		}
		body, contentType = buf, "application/json"
	}

	var resp model.ChatResponse
	if err := c.do(ctx, op, http.MethodPost, "/chat", body, contentType, timeout, &resp); err != nil {
		return nil, err
	}

	content := resp.Content
	if content == "" {
		content = resp.Response
	}
	if content == "" && resp.ConversationID == "" {
		return nil, malformedError(op, errors.New("response has neither content nor conversation_id"))
	}
	role := resp.Role
	if role == "" {
		role = model.RoleAssistant
	}
	return &SendResult{
		Role:           role,
		Content:        content,
		ConversationID: resp.ConversationID,
		Model:          resp.ModelUsed,
		Citations:      resp.Citations,
	}, nil
}

// ListConversations GET /chats
func (c *Client) ListConversations(ctx context.Context) ([]model.Chat, error) {
	var resp struct {
		Chats []chatWire `json:"chats"`
	}
	if err := c.do(ctx, "list", http.MethodGet, "/chats", nil, "", c.timeout, &resp); err != nil {
		return nil, err
	}
	chats := make([]model.Chat, 0, len(resp.Chats))
	for _, w := range resp.Chats {
		chats = append(chats, w.toChat())
	}
	return chats, nil
}

// CreateConversation POST /chats，用于持久化本地先创建的对话
func (c *Client) CreateConversation(ctx context.Context, chat model.Chat) (string, error) {
	const op = "create"
	payload := model.CreateChatRequest{
		ID:           chat.ID,
		Title:        chat.Title,
		Model:        chat.Model,
		SystemPrompt: chat.SystemPrompt,
	}
	buf, err := encodeJSON(payload)
	if err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Message: "encode request", Err: err}
	}
	var resp model.CreateChatResponse
	if err := c.do(ctx, op, http.MethodPost, "/chats", buf, "application/json", c.timeout, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &Error{Kind: KindRejected, Op: op, Message: "backend refused to create conversation"}
	}
	return resp.ChatID, nil
}

// GetHistory GET /chats/{id}?limit=N；limit <= 0 时使用默认值
func (c *Client) GetHistory(ctx context.Context, conversationID string, limit int) ([]model.StoredMessage, error) {
	const op = "history"
	if conversationID == "" {
		return nil, validationError(op, "conversation id is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	path := "/chats/" + url.PathEscape(conversationID) + "?limit=" + strconv.Itoa(limit)

	var resp struct {
		Messages []messageWire `json:"messages"`
	}
	if err := c.do(ctx, op, http.MethodGet, path, nil, "", c.timeout, &resp); err != nil {
		return nil, err
	}
	msgs := make([]model.StoredMessage, 0, len(resp.Messages))
	for _, w := range resp.Messages {
		msgs = append(msgs, w.toMessage(conversationID))
	}
	return msgs, nil
}

// DeleteConversation DELETE /chats/{id}
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) (bool, error) {
	const op = "delete"
	if conversationID == "" {
		return false, validationError(op, "conversation id is required")
	}
	var resp model.SuccessResponse
	if err := c.do(ctx, op, http.MethodDelete, "/chats/"+url.PathEscape(conversationID), nil, "", c.timeout, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// UpdateSystemPrompt PATCH /chats/{id}/system-prompt
func (c *Client) UpdateSystemPrompt(ctx context.Context, conversationID, prompt string) (bool, error) {
	const op = "system-prompt"
	if conversationID == "" {
		return false, validationError(op, "conversation id is required")
	}
	buf, err := encodeJSON(model.UpdateSystemPromptRequest{SystemPrompt: prompt})
	if err != nil {
		return false, &Error{Kind: KindValidation, Op: op, Message: "encode request", Err: err}
	}
	var resp model.SuccessResponse
	path := "/chats/" + url.PathEscape(conversationID) + "/system-prompt"
	if err := c.do(ctx, op, http.MethodPatch, path, buf, "application/json", c.timeout, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// SaveMessage POST /chats/{id}/messages
func (c *Client) SaveMessage(ctx context.Context, conversationID string, role model.Role, content string) error {
	const op = "save-message"
	if conversationID == "" {
		return validationError(op, "conversation id is required")
	}
	buf, err := encodeJSON(model.SaveMessageRequest{Role: role, Content: content})
	if err != nil {
		return &Error{Kind: KindValidation, Op: op, Message: "encode request", Err: err}
	}
	var resp model.SuccessResponse
	path := "/chats/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, op, http.MethodPost, path, buf, "application/json", c.timeout, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &Error{Kind: KindRejected, Op: op, Message: "backend refused to store message"}
	}
	return nil
}

// UploadDocument POST /upload-document
func (c *Client) UploadDocument(ctx context.Context, f File, conversationID string) (*model.UploadDocumentResponse, error) {
	const op = "upload-document"
	if err := ValidateDocument(f); err != nil {
		return nil, err
	}
	fields := map[string]string{"conversation_id": conversationID}
	buf, ct, err := encodeMultipart(fields, "file", []File{f})
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Message: "encode document", Err: err}
	}
	var resp model.UploadDocumentResponse
	if err := c.do(ctx, op, http.MethodPost, "/upload-document", buf, ct, c.uploadTimeout, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Kind: KindRejected, Op: op, Message: resp.Message}
	}
	return &resp, nil
}

// ListDocuments GET /documents
func (c *Client) ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error) {
	path := "/documents"
	if conversationID != "" {
		path += "?conversation_id=" + url.QueryEscape(conversationID)
	}
	var resp model.DocumentListResponse
	if err := c.do(ctx, "documents", http.MethodGet, path, nil, "", c.timeout, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// GenerateTitle POST /generate-title
func (c *Client) GenerateTitle(ctx context.Context, content string, modelID model.ModelID) (string, error) {
	const op = "generate-title"
	if strings.TrimSpace(content) == "" {
		return "", validationError(op, "content is empty")
	}
	buf, err := encodeJSON(model.GenerateTitleRequest{Content: content, Model: modelID})
	if err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Message: "encode request", Err: err}
	}
	var resp model.TitleResponse
	if err := c.do(ctx, op, http.MethodPost, "/generate-title", buf, "application/json", c.timeout, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Title) == "" {
		return "", malformedError(op, errors.New("empty title"))
	}
	return strings.TrimSpace(resp.Title), nil
}

// ScrapeURL POST /scrape-url
func (c *Client) ScrapeURL(ctx context.Context, rawURL string) (*model.ScrapeResponse, error) {
	const op = "scrape-url"
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, validationError(op, fmt.Sprintf("invalid url %q", rawURL))
	}
	buf, err := encodeJSON(model.ScrapeRequest{URL: u.String()})
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Message: "encode request", Err: err}
	}
	var resp model.ScrapeResponse
	if err := c.do(ctx, op, http.MethodPost, "/scrape-url", buf, "application/json", c.timeout, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Kind: KindRejected, Op: op, Message: "scrape failed"}
	}
	return &resp, nil
}

// Health GET <base>/health，用于启动时确认后端可达
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, "", c.timeout, nil)
}

// do performs one request. out may be nil when the body is ignored.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: KindValidation, Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("op", op).Str("path", path).Msg("gateway request failed")
		return transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return transportError(op, err)
	}

	log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway request")

	if len(data) > maxResponseBytes {
		return malformedError(op, errors.New("response body too large"))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &Error{
			Kind:    KindRejected,
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(data, resp.Status),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformedError(op, err)
	}
	return nil
}

// errorMessage extracts the server's explanation from an error body.
func errorMessage(data []byte, status string) string {
	var body struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		detail := ""
		switch d := body.Detail.(type) {
		case string:
			detail = d
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				detail = string(b)
			}
		}
		switch {
		case body.Message != "" && detail != "":
			return body.Message + ": " + detail
		case body.Message != "":
			return body.Message
		case detail != "":
			return detail
		case body.Error != "":
			return body.Error
		}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return status
	}
	if r := []rune(text); len(r) > 200 {
		text = string(r[:200])
	}
	return text
}

func encodeJSON(v any) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeMultipart(fields map[string]string, fileField string, files []File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(fileField, f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
