package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"multichat/internal/model"
	"multichat/internal/pkg/id"
	"multichat/internal/repository"
)

const (
	DefaultChatListLimit    = 20
	DefaultHistoryLimit     = 50
	maxListLimit            = 200
	defaultConversationName = "New Chat"
)

// ListChats 用户对话列表，最近更新的在前
func (s *ChatService) ListChats(ctx context.Context, userID string, limit int) ([]model.Chat, error) {
	limit = clampLimit(limit, DefaultChatListLimit)
	chats, err := s.chats.ListByUserID(ctx, userID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	out := make([]model.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, *c)
	}
	return out, nil
}

// CreateChat 创建对话；请求带 id 时沿用，已存在则直接返回该 id
func (s *ChatService) CreateChat(ctx context.Context, userID string, req *model.CreateChatRequest) (string, error) {
	if !req.Model.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidModel, req.Model)
	}
	chatID := strings.TrimSpace(req.ID)
	if chatID != "" {
		if _, err := s.chats.FindByID(ctx, userID, chatID); err == nil {
			return chatID, nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("find chat: %w", err)
		}
	} else {
		chatID = id.NewOrdered()
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultConversationName
	}
	now := s.now()
	chat := &model.Chat{
		ID:           chatID,
		UserID:       userID,
		Title:        title,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return chatID, nil
}

// History 返回对话最近 limit 条消息（含 system），按时间正序
func (s *ChatService) History(ctx context.Context, userID, chatID string, limit int) ([]model.StoredMessage, error) {
	if _, err := s.findChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultHistoryLimit)
	msgs, err := s.messages.ListRecent(ctx, chatID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// SaveMessage 追加一条消息，不调用模型
func (s *ChatService) SaveMessage(ctx context.Context, userID, chatID string, req *model.SaveMessageRequest) error {
	if !req.Role.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, req.Role)
	}
	if strings.TrimSpace(req.Content) == "" {
		return ErrEmptyMessage
	}
	if _, err := s.findChat(ctx, userID, chatID); err != nil {
		return err
	}
	msg := s.newMessage(chatID, req.Role, req.Content, "")
	if err := s.saveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	if err := s.chats.Touch(ctx, chatID); err != nil {
		log.Warn().Err(err).Str("conversation_id", chatID).Msg("failed to touch chat")
	}
	s.invalidateHistory(ctx, chatID)
	return nil
}

// DeleteChat 删除对话及其消息、文档和缓存；对话不存在时返回 false
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) (bool, error) {
	deleted, err := s.chats.Delete(ctx, userID, chatID)
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	if !deleted {
		return false, nil
	}
	if err := s.messages.DeleteByChat(ctx, chatID); err != nil {
		log.Warn().Err(err).Str("conversation_id", chatID).Msg("failed to delete messages")
	}
	if s.docs != nil {
		if err := s.docs.DeleteByConversation(ctx, userID, chatID); err != nil {
			log.Warn().Err(err).Str("conversation_id", chatID).Msg("failed to delete documents")
		}
	}
	s.invalidateHistory(ctx, chatID)
	log.Info().Str("conversation_id", chatID).Msg("chat deleted")
	return true, nil
}

// UpdateSystemPrompt 更新系统提示词，空字符串表示清除；对话不存在时返回 false
func (s *ChatService) UpdateSystemPrompt(ctx context.Context, userID, chatID, prompt string) (bool, error) {
	ok, err := s.chats.UpdateSystemPrompt(ctx, userID, chatID, strings.TrimSpace(prompt))
	if err != nil {
		return false, fmt.Errorf("update system prompt: %w", err)
	}
	return ok, nil
}

func (s *ChatService) findChat(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	chat, err := s.chats.FindByID(ctx, userID, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return chat, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxListLimit)
}
