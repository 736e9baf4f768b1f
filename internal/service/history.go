package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"multichat/internal/model"
	"multichat/internal/pkg/cache"
)

// historyWindow 返回送给模型的最近 HistoryWindow 条非 system 消息，优先读缓存
func (s *ChatService) historyWindow(ctx context.Context, chatID string) []model.StoredMessage {
	key := cache.HistoryCacheKey(chatID)
	if s.cache != nil {
		var cached []model.StoredMessage
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached
		}
		if !cache.IsMiss(err) {
			log.Warn().Err(err).Str("conversation_id", chatID).Msg("history cache read failed")
		}
	}

	msgs, err := s.messages.ListRecentConversational(ctx, chatID, int64(s.opts.HistoryWindow))
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", chatID).Msg("failed to load history, continuing without it")
		return nil
	}
	s.storeHistory(ctx, chatID, msgs)
	return msgs
}

// extendHistory 追加本轮问答并截到窗口大小
func (s *ChatService) extendHistory(ctx context.Context, chatID string, history []model.StoredMessage, added ...model.StoredMessage) {
	if s.cache == nil {
		return
	}
	window := make([]model.StoredMessage, 0, len(history)+len(added))
	window = append(window, history...)
	window = append(window, added...)
	if n := len(window) - s.opts.HistoryWindow; n > 0 {
		window = window[n:]
	}
	s.storeHistory(ctx, chatID, window)
}

func (s *ChatService) storeHistory(ctx context.Context, chatID string, msgs []model.StoredMessage) {
	if s.cache == nil {
		return
	}
	ttl := s.opts.CacheTTL
	if ttl <= 0 {
		ttl = cache.HistoryCacheTTL
	}
	if msgs == nil {
		msgs = []model.StoredMessage{}
	}
	if err := s.cache.Set(ctx, cache.HistoryCacheKey(chatID), msgs, ttl); err != nil {
		log.Warn().Err(err).Str("conversation_id", chatID).Msg("history cache write failed")
	}
}

func (s *ChatService) invalidateHistory(ctx context.Context, chatID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.HistoryCacheKey(chatID)); err != nil {
		log.Warn().Err(err).Str("conversation_id", chatID).Msg("history cache delete failed")
	}
}
