package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"multichat/internal/gateway"
	"multichat/internal/model"
)

type savedMessage struct {
	ConversationID string
	Role           model.Role
	Content        string
}

type fakeGateway struct {
	mu sync.Mutex

	chats   []model.Chat
	listErr error

	history      map[string][]model.StoredMessage
	historyCalls []string

	sendFn func(ctx context.Context, req gateway.SendRequest) (*gateway.SendResult, error)
	sends  []gateway.SendRequest

	deleteErr error
	deleteOK  bool
	deleted   []string

	promptErr error
	promptOK  bool
	prompts   map[string]string

	created []model.Chat
	saved   []savedMessage

	title    string
	titleErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		history:  make(map[string][]model.StoredMessage),
		prompts:  make(map[string]string),
		deleteOK: true,
		promptOK: true,
		sendFn: func(ctx context.Context, req gateway.SendRequest) (*gateway.SendResult, error) {
			id := req.ConversationID
			if id == "" {
				id = "srv-new"
			}
			return &gateway.SendResult{
				Role:           model.RoleAssistant,
				Content:        "echo: " + req.Message,
				ConversationID: id,
				Model:          req.Model,
			}, nil
		},
	}
}

func (f *fakeGateway) SendMessage(ctx context.Context, req gateway.SendRequest) (*gateway.SendResult, error) {
	f.mu.Lock()
	f.sends = append(f.sends, req)
	fn := f.sendFn
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeGateway) ListConversations(ctx context.Context) ([]model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Chat(nil), f.chats...), nil
}

func (f *fakeGateway) CreateConversation(ctx context.Context, chat model.Chat) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, chat)
	return chat.ID, nil
}

func (f *fakeGateway) GetHistory(ctx context.Context, id string, limit int) ([]model.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls = append(f.historyCalls, id)
	msgs, ok := f.history[id]
	if !ok {
		return nil, &gateway.Error{Kind: gateway.KindRejected, Op: "history", Status: 404, Message: "Chat not found"}
	}
	return msgs, nil
}

func (f *fakeGateway) DeleteConversation(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return f.deleteOK, nil
}

func (f *fakeGateway) UpdateSystemPrompt(ctx context.Context, id, prompt string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.promptErr != nil {
		return false, f.promptErr
	}
	f.prompts[id] = prompt
	return f.promptOK, nil
}

func (f *fakeGateway) SaveMessage(ctx context.Context, id string, role model.Role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedMessage{ConversationID: id, Role: role, Content: content})
	return nil
}

func (f *fakeGateway) GenerateTitle(ctx context.Context, content string, m model.ModelID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.titleErr != nil {
		return "", f.titleErr
	}
	return f.title, nil
}

func (f *fakeGateway) historyCallsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.historyCalls {
		if c == id {
			n++
		}
	}
	return n
}

func (f *fakeGateway) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type fakeMirror struct {
	mu      sync.Mutex
	convs   map[string]Conversation
	loadErr error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{convs: make(map[string]Conversation)}
}

func (m *fakeMirror) LoadConversations(ctx context.Context) ([]Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		out = append(out, c)
	}
	return out, nil
}

func (m *fakeMirror) SaveConversation(ctx context.Context, conv Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv.Messages == nil {
		conv.Messages = m.convs[conv.ID].Messages
	}
	m.convs[conv.ID] = conv
	return nil
}

func (m *fakeMirror) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, id)
	return nil
}

func (m *fakeMirror) get(id string) (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	return c, ok
}

type fakePrefs struct {
	mu   sync.Mutex
	last string
}

func (p *fakePrefs) LastConversationID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, nil
}

func (p *fakePrefs) SetLastConversationID(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = id
	return nil
}

func (p *fakePrefs) get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// testClock advances one second per reading so UpdatedAt ordering is strict.
func testClock() func() time.Time {
	var n int64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&n, 1)) * time.Second)
	}
}

func testIDs() func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("local-%d", atomic.AddInt64(&n, 1))
	}
}

func newTestStore(gw *fakeGateway, opts ...Option) *Store {
	base := []Option{WithClock(testClock()), WithIDGenerator(testIDs())}
	return New(gw, append(base, opts...)...)
}

// eventually polls cond for up to two seconds.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
