package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"multichat/internal/ai"
	"multichat/internal/model"
	"multichat/internal/pkg/cache"
	"multichat/internal/repository"
)

type fakeChats struct {
	mu      sync.Mutex
	chats   map[string]*model.Chat
	touched []string
}

func newFakeChats() *fakeChats { return &fakeChats{chats: map[string]*model.Chat{}} }

func (r *fakeChats) Create(ctx context.Context, chat *model.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *chat
	r.chats[chat.ID] = &c
	return nil
}

func (r *fakeChats) FindByID(ctx context.Context, userID, id string) (*model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *fakeChats) ListByUserID(ctx context.Context, userID string, limit int64) ([]*model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Chat
	for _, c := range r.chats {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeChats) Touch(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
	return nil
}

func (r *fakeChats) UpdateSystemPrompt(ctx context.Context, userID, id, prompt string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	c.SystemPrompt = prompt
	return true, nil
}

func (r *fakeChats) Delete(ctx context.Context, userID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(r.chats, id)
	return true, nil
}

type fakeMessages struct {
	mu        sync.Mutex
	msgs      []model.StoredMessage
	listCalls int
	insertErr error
}

func (r *fakeMessages) Insert(ctx context.Context, msg *model.StoredMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *fakeMessages) filter(chatID string, conversational bool, limit int64) []model.StoredMessage {
	var out []model.StoredMessage
	for _, m := range r.msgs {
		if m.ChatID != chatID || (conversational && m.Role == model.RoleSystem) {
			continue
		}
		out = append(out, m)
	}
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out
}

func (r *fakeMessages) ListRecent(ctx context.Context, chatID string, limit int64) ([]model.StoredMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(chatID, false, limit), nil
}

func (r *fakeMessages) ListRecentConversational(ctx context.Context, chatID string, limit int64) ([]model.StoredMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	return r.filter(chatID, true, limit), nil
}

func (r *fakeMessages) DeleteByChat(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.msgs[:0]
	for _, m := range r.msgs {
		if m.ChatID != chatID {
			kept = append(kept, m)
		}
	}
	r.msgs = kept
	return nil
}

func (r *fakeMessages) forChat(chatID string) []model.StoredMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(chatID, false, 1<<30)
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type fakeLLM struct {
	mu       sync.Mutex
	reqs     []*ai.ChatRequest
	reply    string
	err      error
	title    string
	titleErr error
}

func (l *fakeLLM) Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, req)
	if l.err != nil {
		return nil, l.err
	}
	reply := l.reply
	if reply == "" {
		reply = "reply to " + req.Message
	}
	return &ai.ChatResponse{Content: reply, Usage: &model.TokenUsage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}}, nil
}

func (l *fakeLLM) GenerateTitle(ctx context.Context, content string, id model.ModelID) (string, error) {
	return l.title, l.titleErr
}

func (l *fakeLLM) last() *ai.ChatRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reqs[len(l.reqs)-1]
}

type fakeDocuments struct {
	mu     sync.Mutex
	docs   []model.Document
	chunks []model.DocumentChunk
}

func inScope(userID, conversationID, docUser, docConv string) bool {
	if docUser != userID {
		return false
	}
	return conversationID == "" || docConv == "" || docConv == conversationID
}

func (r *fakeDocuments) Create(ctx context.Context, doc *model.Document, chunks []*model.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, *doc)
	for _, c := range chunks {
		r.chunks = append(r.chunks, *c)
	}
	return nil
}

func (r *fakeDocuments) List(ctx context.Context, userID, conversationID string) ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Document
	for _, d := range r.docs {
		if inScope(userID, conversationID, d.UserID, d.ConversationID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDocuments) ChunksByTerms(ctx context.Context, userID, conversationID string, terms []string) ([]model.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, t := range terms {
		want[t] = true
	}
	var out []model.DocumentChunk
	for _, c := range r.chunks {
		if !inScope(userID, conversationID, c.UserID, c.ConversationID) {
			continue
		}
		for _, t := range c.Terms {
			if want[t] {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeDocuments) EmbeddedChunks(ctx context.Context, userID, conversationID string) ([]model.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DocumentChunk
	for _, c := range r.chunks {
		if len(c.Embedding) > 0 && inScope(userID, conversationID, c.UserID, c.ConversationID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeDocuments) DeleteByConversation(ctx context.Context, userID, conversationID string) ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed, kept []model.Document
	for _, d := range r.docs {
		if d.UserID == userID && d.ConversationID == conversationID {
			removed = append(removed, d)
		} else {
			kept = append(kept, d)
		}
	}
	r.docs = kept
	var keptChunks []model.DocumentChunk
	for _, c := range r.chunks {
		if !(c.UserID == userID && c.ConversationID == conversationID) {
			keptChunks = append(keptChunks, c)
		}
	}
	r.chunks = keptChunks
	return removed, nil
}

// keywordEmbedder 按关键词出现与否生成向量: [apple, banana, cherry]
type keywordEmbedder struct {
	err error
}

func (e *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 3)
		for j, w := range []string{"apple", "banana", "cherry"} {
			if strings.Contains(strings.ToLower(t), w) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

var errBoom = errors.New("boom")
