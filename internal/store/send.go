package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"multichat/internal/gateway"
	"multichat/internal/model"
)

// SendRequest is one outbound user turn.
type SendRequest struct {
	Content string
	Files   []gateway.File
	// SystemPrompt overrides the conversation's stored prompt for this send.
	SystemPrompt string
}

// SendMessage appends the user turn, calls the backend and appends the
// assistant reply, or ErrorReply when the call fails. Backend failures are not
// returned; only validation errors, cancellation while queued and deletion of
// the conversation mid-flight are. Sends to one conversation run one at a time
// in arrival order.
func (s *Store) SendMessage(ctx context.Context, req SendRequest) (Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}
	if err := gateway.ValidateFiles(req.Files); err != nil {
		return Message{}, err
	}

	// 模型在排队前确定，排队期间切换会话或模型不影响这次发送
	s.mu.RLock()
	sendModel := s.activeModel
	conv := s.findLocked(s.activeID)
	s.mu.RUnlock()

	if len(req.Files) > 0 {
		if c, ok := s.lookup(sendModel); ok && !c.SupportsFiles {
			return Message{}, ErrFilesNotSupported
		}
	}

	if conv == nil {
		created := s.CreateConversation(sendModel, "")
		s.mu.RLock()
		conv = s.findLocked(created.ID)
		s.mu.RUnlock()
		if conv == nil {
			return Message{}, ErrConversationNotFound
		}
	}

	s.beginSend(conv)
	defer s.endSend(conv)

	release, err := s.acquireSlot(ctx, conv)
	if err != nil {
		return Message{}, err
	}
	defer release()

	s.mu.Lock()
	if !s.containsLocked(conv) {
		s.mu.Unlock()
		return Message{}, ErrConversationNotFound
	}
	conv.Model = sendModel
	userMsg, titled := s.appendLocked(conv, MessageInput{
		Role:    model.RoleUser,
		Content: content + attachmentSuffix(len(req.Files)),
	})
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = conv.SystemPrompt
	}
	if c, ok := s.lookup(sendModel); ok && !c.SupportsSystemPrompt {
		systemPrompt = ""
	}
	sendReq := gateway.SendRequest{
		ConversationID: conv.ID,
		Message:        content,
		Model:          sendModel,
		SystemPrompt:   systemPrompt,
		Files:          req.Files,
	}
	if conv.Draft {
		sendReq.ConversationID = ""
	}
	snapshot := conv.clone()
	s.mu.Unlock()

	s.mirrorSave(snapshot)
	if titled {
		s.refineTitle(conv, userMsg.Content, sendModel, snapshot.Title)
	}

	logger := log.With().Str("conversation_id", snapshot.ID).Str("model", string(sendModel)).Logger()
	res, sendErr := s.gw.SendMessage(ctx, sendReq)

	s.mu.Lock()
	if !s.containsLocked(conv) {
		s.mu.Unlock()
		logger.Info().Msg("conversation deleted while a reply was pending, dropping reply")
		return Message{}, ErrConversationNotFound
	}

	var reply Message
	renamedFrom := ""
	if sendErr != nil {
		logger.Warn().Err(sendErr).Str("kind", string(gateway.KindOf(sendErr))).Msg("send failed")
		reply, _ = s.appendLocked(conv, MessageInput{
			Role:    model.RoleAssistant,
			Content: ErrorReply,
			Model:   sendModel,
			Failed:  true,
		})
	} else {
		if res.ConversationID != "" && res.ConversationID != conv.ID {
			renamedFrom = s.adoptIDLocked(conv, res.ConversationID)
		}
		conv.Draft = false
		replyModel := res.Model
		if replyModel == "" {
			replyModel = sendModel
		}
		reply, _ = s.appendLocked(conv, MessageInput{
			Role:      model.RoleAssistant,
			Content:   res.Content,
			Model:     replyModel,
			Citations: res.Citations,
		})
		logger.Debug().Int("citations", len(res.Citations)).Msg("reply received")
	}
	activeID := s.activeID
	snapshot = conv.clone()
	s.mu.Unlock()

	if renamedFrom != "" {
		s.mirrorDelete(renamedFrom)
		if activeID == snapshot.ID {
			s.rememberActive(snapshot.ID)
		}
	}
	s.mirrorSave(snapshot)
	return reply.clone(), nil
}

// adoptIDLocked switches conv to the backend-assigned id and returns the old one.
func (s *Store) adoptIDLocked(conv *Conversation, newID string) string {
	old := conv.ID
	if dup := s.findLocked(newID); dup != nil && dup != conv {
		// keep the conversation that owns the send; drop the stale copy
		s.removeLocked(dup)
	}
	conv.ID = newID
	if s.activeID == old {
		s.activeID = newID
	}
	log.Debug().Str("draft_id", old).Str("conversation_id", newID).Msg("adopted backend conversation id")
	return old
}

func (s *Store) beginSend(conv *Conversation) {
	s.mu.Lock()
	s.sending++
	s.sendingTo[conv]++
	s.mu.Unlock()
}

func (s *Store) endSend(conv *Conversation) {
	s.mu.Lock()
	s.sending--
	if s.sendingTo[conv]--; s.sendingTo[conv] <= 0 {
		delete(s.sendingTo, conv)
	}
	s.mu.Unlock()
}

// acquireSlot waits for the conversation's single send slot.
func (s *Store) acquireSlot(ctx context.Context, conv *Conversation) (func(), error) {
	s.slotsMu.Lock()
	slot, ok := s.slots[conv]
	if !ok {
		slot = make(chan struct{}, 1)
		s.slots[conv] = slot
	}
	s.slotsMu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
