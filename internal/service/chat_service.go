package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"multichat/internal/ai"
	"multichat/internal/model"
	"multichat/internal/pkg/id"
	"multichat/internal/pkg/metrics"
	"multichat/internal/repository"
)

// DefaultSystemPrompt 对话和配置都没有系统提示词时使用
const DefaultSystemPrompt = "You are a helpful AI assistant that provides informative, engaging responses with appropriate emojis. Always be comprehensive and knowledgeable in your analysis."

const (
	defaultHistoryWindow = 15
	chatTitleRunes       = 30
	maxAttachmentRunes   = 5000
)

// ChatOptions 对话服务配置
type ChatOptions struct {
	DefaultModel        model.ModelID
	DefaultSystemPrompt string
	HistoryWindow       int
	CacheTTL            time.Duration
}

// ChatService 对话服务 - 业务逻辑层
// 职责: 编排 AI 层、检索和数据层，实现对话流程与对话管理
type ChatService struct {
	llm      LLM
	chats    ChatRepository
	messages MessageRepository
	cache    Cache
	docs     *DocumentService
	opts     ChatOptions
	now      func() time.Time
}

// NewChatService 创建对话服务；cache 和 docs 可以为 nil
func NewChatService(llm LLM, chats ChatRepository, messages MessageRepository, cache Cache, docs *DocumentService, opts ChatOptions) *ChatService {
	if opts.DefaultModel == "" {
		opts.DefaultModel = model.DefaultModel
	}
	if opts.DefaultSystemPrompt == "" {
		opts.DefaultSystemPrompt = DefaultSystemPrompt
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	return &ChatService{
		llm:      llm,
		chats:    chats,
		messages: messages,
		cache:    cache,
		docs:     docs,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Chat 处理对话请求
// 业务流程: 1. 定位或创建对话 -> 2. 组装历史与检索上下文 -> 3. 调用 AI -> 4. 保存消息
func (s *ChatService) Chat(ctx context.Context, userID string, req *model.ChatRequest) (*model.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	modelID := req.Model
	if modelID == "" {
		modelID = s.opts.DefaultModel
	}
	capability, ok := model.LookupModel(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidModel, modelID)
	}

	// 1. 定位对话，不存在时创建
	chat, err := s.ensureChat(ctx, userID, req.ConversationID, modelID, message, req.SystemPrompt)
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("conversation_id", chat.ID).Str("model", string(modelID)).Logger()

	// 2. 历史窗口与检索上下文
	history := s.historyWindow(ctx, chat.ID)

	systemPrompt := ""
	if capability.SupportsSystemPrompt {
		systemPrompt = firstNonEmpty(req.SystemPrompt, chat.SystemPrompt, s.opts.DefaultSystemPrompt)
	}

	userContent := message + renderAttachments(req.Attachments)
	prompt := userContent
	var citations []model.Citation
	if s.docs != nil && !IsURLAnalysisRequest(message) {
		hits, err := s.docs.Search(ctx, userID, chat.ID, message)
		if err != nil {
			logger.Warn().Err(err).Msg("document search failed")
		}
		if len(hits) > 0 {
			prompt = BuildContextPrompt(hits, userContent)
			citations = make([]model.Citation, len(hits))
			for i, h := range hits {
				citations[i] = h.Citation
			}
		}
	}

	// 3. 调用 AI 层
	userMsg := s.newMessage(chat.ID, model.RoleUser, userContent, "")
	if err := s.saveMessage(ctx, userMsg); err != nil {
		logger.Warn().Err(err).Msg("failed to save user message")
	}

	aiResp, err := s.llm.Chat(ctx, &ai.ChatRequest{
		Model:        modelID,
		SystemPrompt: systemPrompt,
		History:      history,
		Message:      prompt,
	})
	if err != nil {
		logger.Error().Err(err).Msg("AI chat failed")
		s.invalidateHistory(ctx, chat.ID)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// 4. 保存回复
	assistantMsg := s.newMessage(chat.ID, model.RoleAssistant, aiResp.Content, modelID)
	assistantMsg.Citations = citations
	if err := s.saveMessage(ctx, assistantMsg); err != nil {
		logger.Warn().Err(err).Msg("failed to save assistant message")
	}
	if err := s.chats.Touch(ctx, chat.ID); err != nil {
		logger.Warn().Err(err).Msg("failed to touch chat")
	}
	s.extendHistory(ctx, chat.ID, history, *userMsg, *assistantMsg)

	event := logger.Info().Int("citations", len(citations))
	if aiResp.Usage != nil {
		event = event.Int("prompt_tokens", aiResp.Usage.PromptTokens).Int("completion_tokens", aiResp.Usage.CompletionTokens)
	}
	event.Msg("chat completed")

	return &model.ChatResponse{
		Role:           model.RoleAssistant,
		Content:        aiResp.Content,
		Response:       aiResp.Content,
		ConversationID: chat.ID,
		ModelUsed:      modelID,
		Citations:      citations,
		Usage:          aiResp.Usage,
	}, nil
}

// GenerateTitle 用模型生成标题，失败或为空时退回截断首条消息
func (s *ChatService) GenerateTitle(ctx context.Context, content string, modelID model.ModelID) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if modelID == "" {
		modelID = s.opts.DefaultModel
	}
	if !modelID.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidModel, modelID)
	}

	title, err := s.llm.GenerateTitle(ctx, content, modelID)
	if err != nil {
		log.Warn().Err(err).Str("model", string(modelID)).Msg("title generation failed, using truncation")
	}
	if err != nil || title == "" {
		return TruncateTitle(content), nil
	}
	return title, nil
}

func (s *ChatService) ensureChat(ctx context.Context, userID, chatID string, modelID model.ModelID, message, systemPrompt string) (*model.Chat, error) {
	if chatID != "" {
		chat, err := s.chats.FindByID(ctx, userID, chatID)
		if err == nil {
			return chat, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("find chat: %w", err)
		}
	} else {
		chatID = id.NewOrdered()
	}

	now := s.now()
	chat := &model.Chat{
		ID:           chatID,
		UserID:       userID,
		Title:        headRunes(message, chatTitleRunes),
		Model:        modelID,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	log.Info().Str("conversation_id", chat.ID).Str("user_id", userID).Msg("chat created")
	return chat, nil
}

func (s *ChatService) newMessage(chatID string, role model.Role, content string, modelID model.ModelID) *model.StoredMessage {
	return &model.StoredMessage{
		ID:        id.NewOrdered(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Model:     modelID,
		Timestamp: s.now(),
	}
}

func (s *ChatService) saveMessage(ctx context.Context, msg *model.StoredMessage) error {
	if err := s.messages.Insert(ctx, msg); err != nil {
		return err
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
	return nil
}

// IsURLAnalysisRequest 网页分析类请求不附加文档上下文
func IsURLAnalysisRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, indicator := range []string{
		"analyze and summarize the following content from:",
		"please analyze",
		"content summary:",
		"url:",
		"title:",
		"please provide a comprehensive summary",
	} {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// TruncateTitle 取前 30 个字符作为标题，截断时追加 "..."
func TruncateTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= chatTitleRunes {
		return content
	}
	return headRunes(content, chatTitleRunes) + "..."
}

// renderAttachments 文本附件内联到消息末尾，其它类型只记录文件名
func renderAttachments(files []model.Attachment) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range files {
		if isTextAttachment(f) {
			text := string(f.Data)
			if utf8.RuneCountInString(text) > maxAttachmentRunes {
				text = headRunes(text, maxAttachmentRunes) + "..."
			}
			fmt.Fprintf(&b, "\n\n[Attachment: %s]\n%s", f.Filename, text)
		} else {
			fmt.Fprintf(&b, "\n\n[Attachment: %s (%s, %d bytes, not inlined)]", f.Filename, f.ContentType, len(f.Data))
		}
	}
	return b.String()
}

func isTextAttachment(f model.Attachment) bool {
	ct := strings.ToLower(f.ContentType)
	if strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json") || strings.Contains(ct, "markdown") {
		return utf8.Valid(f.Data)
	}
	return false
}

func headRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
