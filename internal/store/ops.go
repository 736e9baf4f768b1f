package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"multichat/internal/model"
)

// Initialize loads the conversation list. When the backend is unreachable it
// falls back to the local mirror; failures are logged and never returned.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	s.initializing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.initializing = false
		s.mu.Unlock()
	}()

	var (
		convs     []*Conversation
		localOnly bool
	)
	chats, err := s.gw.ListConversations(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load conversations from backend")
		if s.mirror == nil {
			return
		}
		local, lerr := s.mirror.LoadConversations(ctx)
		if lerr != nil {
			log.Error().Err(lerr).Msg("failed to load local conversations")
			return
		}
		for i := range local {
			c := local[i]
			convs = append(convs, &c)
		}
		localOnly = true
		log.Info().Int("count", len(convs)).Msg("running in local-only mode")
	} else {
		for _, ch := range chats {
			convs = append(convs, fromChat(ch))
		}
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})

	preferred := ""
	if s.prefs != nil {
		if id, perr := s.prefs.LastConversationID(ctx); perr != nil {
			log.Warn().Err(perr).Msg("failed to read last conversation id")
		} else {
			preferred = id
		}
	}

	s.mu.Lock()
	s.convs = convs
	s.localOnly = localOnly
	s.activeID = ""
	active := s.findLocked(preferred)
	if active == nil && len(s.convs) > 0 {
		active = s.convs[0]
	}
	if active != nil {
		s.activeID = active.ID
		if active.Model != "" {
			s.activeModel = active.Model
		}
	}
	needLoad := active != nil && len(active.Messages) == 0
	var snapshots []Conversation
	if !localOnly {
		for _, c := range s.convs {
			snapshots = append(snapshots, c.clone())
		}
	}
	s.mu.Unlock()

	for _, c := range snapshots {
		s.mirrorSave(c)
	}
	if needLoad {
		s.loadHistory(ctx, active)
	}

	log.Info().
		Int("conversations", len(convs)).
		Str("active_id", s.ActiveConversationID()).
		Bool("local_only", localOnly).
		Msg("conversation store initialized")
}

// CreateConversation adds an empty draft conversation at the front of the
// list and makes it active. The backend learns about it on the first send.
func (s *Store) CreateConversation(m model.ModelID, systemPrompt string) Conversation {
	s.mu.Lock()
	if m == "" {
		m = s.activeModel
	} else if !m.Valid() {
		log.Warn().Str("model", string(m)).Msg("model not in local catalog, the backend decides")
	}
	now := s.now()
	conv := &Conversation{
		ID:           s.newID(),
		Title:        DefaultTitle,
		Model:        m,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
		Draft:        true,
	}
	s.convs = append([]*Conversation{conv}, s.convs...)
	s.activeID = conv.ID
	s.activeModel = m
	snapshot := conv.clone()
	s.mu.Unlock()

	s.mirrorSave(snapshot)
	s.rememberActive(snapshot.ID)
	log.Debug().Str("conversation_id", snapshot.ID).Str("model", string(m)).Msg("conversation created")
	return snapshot
}

// SelectConversation activates id and loads its history when no messages are
// cached. It returns false for unknown ids.
func (s *Store) SelectConversation(ctx context.Context, id string) bool {
	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return false
	}
	s.activeID = conv.ID
	if conv.Model != "" {
		s.activeModel = conv.Model
	}
	needLoad := len(conv.Messages) == 0 && !conv.Draft
	s.mu.Unlock()

	s.rememberActive(id)
	if needLoad {
		s.loadHistory(ctx, conv)
	}
	return true
}

// loadHistory fetches messages for conv and installs them if none arrived meanwhile.
func (s *Store) loadHistory(ctx context.Context, conv *Conversation) {
	s.mu.RLock()
	id := conv.ID
	s.mu.RUnlock()

	stored, err := s.gw.GetHistory(ctx, id, s.historyLimit)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", id).Msg("failed to load message history")
		return
	}

	s.mu.Lock()
	if !s.containsLocked(conv) || len(conv.Messages) > 0 {
		s.mu.Unlock()
		return
	}
	conv.Messages = fromStored(stored)
	snapshot := conv.clone()
	s.mu.Unlock()

	s.mirrorSave(snapshot)
}

// AppendMessage appends a message to id, creating the conversation with the
// active model when id is unknown. User and assistant messages are persisted
// to the backend in the background.
func (s *Store) AppendMessage(id string, in MessageInput) (Message, error) {
	if !in.Role.Valid() {
		return Message{}, ErrInvalidRole
	}

	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		if id == "" {
			id = s.newID()
		}
		now := s.now()
		conv = &Conversation{
			ID:        id,
			Title:     DefaultTitle,
			Model:     s.activeModel,
			CreatedAt: now,
			UpdatedAt: now,
			Draft:     true,
		}
		s.convs = append([]*Conversation{conv}, s.convs...)
		s.activeID = conv.ID
	}
	msg, titled := s.appendLocked(conv, in)

	persist := in.Role != model.RoleSystem && !s.localOnly
	createRemote := persist && conv.Draft
	if createRemote {
		conv.Draft = false
	}
	snapshot := conv.clone()
	s.mu.Unlock()

	if persist {
		s.enqueue(func(ctx context.Context) {
			if createRemote {
				if _, err := s.gw.CreateConversation(ctx, snapshot.chat()); err != nil {
					log.Warn().Err(err).Str("conversation_id", snapshot.ID).Msg("failed to persist conversation")
				}
			}
			if err := s.gw.SaveMessage(ctx, snapshot.ID, msg.Role, msg.Content); err != nil {
				log.Warn().Err(err).Str("conversation_id", snapshot.ID).Msg("failed to persist message")
			}
		})
	}
	s.mirrorSave(snapshot)
	s.rememberActive(snapshot.ID)
	if titled {
		s.refineTitle(conv, msg.Content, snapshot.Model, snapshot.Title)
	}
	return msg.clone(), nil
}

// appendLocked appends without persisting. It reports whether the title was
// derived from this message.
func (s *Store) appendLocked(conv *Conversation, in MessageInput) (Message, bool) {
	msg := Message{
		ID:        s.newID(),
		Role:      in.Role,
		Content:   in.Content,
		Timestamp: s.now(),
		Model:     in.Model,
		Citations: in.Citations,
		Failed:    in.Failed,
	}
	titled := false
	if in.Role == model.RoleUser && conv.Title == DefaultTitle && !conv.hasUserMessage() {
		conv.Title = DeriveTitle(in.Content)
		titled = conv.Title != DefaultTitle
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp
	s.moveToFrontLocked(conv)
	return msg, titled
}

// refineTitle replaces a derived title with a generated one, unless the title
// changed in the meantime.
func (s *Store) refineTitle(conv *Conversation, content string, m model.ModelID, derived string) {
	if !s.generateTitles {
		return
	}
	s.titleWG.Add(1)
	go func() {
		defer s.titleWG.Done()
		title, err := s.gw.GenerateTitle(context.Background(), content, m)
		if err != nil {
			log.Debug().Err(err).Msg("title generation failed, keeping derived title")
			return
		}
		s.mu.Lock()
		if !s.containsLocked(conv) || conv.Title != derived {
			s.mu.Unlock()
			return
		}
		conv.Title = title
		conv.UpdatedAt = s.now()
		snapshot := conv.clone()
		s.mu.Unlock()
		s.mirrorSave(snapshot)
	}()
}

// UpdateMessage replaces the message at index. Zero id or timestamp in msg
// keep the existing values.
func (s *Store) UpdateMessage(id string, index int, msg Message) error {
	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	if index < 0 || index >= len(conv.Messages) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrMessageIndex, index, len(conv.Messages))
	}
	old := conv.Messages[index]
	if msg.ID == "" {
		msg.ID = old.ID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = old.Timestamp
	}
	if msg.Role == "" {
		msg.Role = old.Role
	}
	conv.Messages[index] = msg.clone()
	conv.UpdatedAt = s.now()
	s.moveToFrontLocked(conv)
	snapshot := conv.clone()
	s.mu.Unlock()

	s.mirrorSave(snapshot)
	return nil
}

// DeleteConversation removes id after the backend confirms. On failure the
// local list is unchanged and the error is returned. Unknown ids are a no-op.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.RLock()
	conv := s.findLocked(id)
	remote := conv != nil && !conv.Draft && !s.localOnly
	s.mu.RUnlock()
	if conv == nil {
		return nil
	}

	if remote {
		ok, err := s.gw.DeleteConversation(ctx, id)
		if err != nil {
			return fmt.Errorf("delete conversation %s: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("delete conversation %s: %w", id, ErrRemoteRejected)
		}
	}

	s.mu.Lock()
	wasActive := s.activeID == conv.ID
	s.removeLocked(conv)
	var next *Conversation
	if wasActive {
		s.activeID = ""
		if len(s.convs) > 0 {
			next = s.convs[0]
			s.activeID = next.ID
			if next.Model != "" {
				s.activeModel = next.Model
			}
		}
	}
	activeID := s.activeID
	needLoad := next != nil && len(next.Messages) == 0 && !next.Draft
	s.mu.Unlock()

	s.slotsMu.Lock()
	delete(s.slots, conv)
	s.slotsMu.Unlock()

	s.mirrorDelete(id)
	if wasActive {
		s.rememberActive(activeID)
	}
	log.Info().Str("conversation_id", id).Str("next_active_id", activeID).Msg("conversation deleted")

	if needLoad {
		s.loadHistory(ctx, next)
	}
	return nil
}

// SetSystemPrompt updates the prompt locally, then on the backend. When the
// backend call fails the previous prompt is restored and the error returned.
func (s *Store) SetSystemPrompt(ctx context.Context, id, prompt string) error {
	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return nil
	}
	prev := conv.SystemPrompt
	conv.SystemPrompt = prompt
	conv.UpdatedAt = s.now()
	s.moveToFrontLocked(conv)
	remote := !conv.Draft && !s.localOnly
	snapshot := conv.clone()
	s.mu.Unlock()

	if !remote {
		s.mirrorSave(snapshot)
		return nil
	}

	ok, err := s.gw.UpdateSystemPrompt(ctx, id, prompt)
	if err == nil && !ok {
		err = ErrRemoteRejected
	}
	if err != nil {
		s.mu.Lock()
		if s.containsLocked(conv) && conv.SystemPrompt == prompt {
			conv.SystemPrompt = prev
		}
		s.mu.Unlock()
		log.Warn().Err(err).Str("conversation_id", id).Msg("system prompt update failed, rolled back")
		return fmt.Errorf("update system prompt: %w", err)
	}

	s.mirrorSave(snapshot)
	return nil
}
