// Package store owns all client-side conversation state. UIs read snapshots
// from it and mutate only through its operations.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"multichat/internal/gateway"
	"multichat/internal/model"
	"multichat/internal/pkg/id"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageIndex         = errors.New("message index out of range")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrInvalidRole          = errors.New("invalid message role")
	ErrFilesNotSupported    = errors.New("model does not accept file attachments")
	ErrRemoteRejected       = errors.New("backend rejected the change")
	ErrInvalidModel         = errors.New("unsupported model")
)

// Gateway is the part of the chat backend the store depends on.
// *gateway.Client implements it.
type Gateway interface {
	SendMessage(ctx context.Context, req gateway.SendRequest) (*gateway.SendResult, error)
	ListConversations(ctx context.Context) ([]model.Chat, error)
	CreateConversation(ctx context.Context, chat model.Chat) (string, error)
	GetHistory(ctx context.Context, conversationID string, limit int) ([]model.StoredMessage, error)
	DeleteConversation(ctx context.Context, conversationID string) (bool, error)
	UpdateSystemPrompt(ctx context.Context, conversationID, prompt string) (bool, error)
	SaveMessage(ctx context.Context, conversationID string, role model.Role, content string) error
	GenerateTitle(ctx context.Context, content string, modelID model.ModelID) (string, error)
}

// Mirror is a local replica used when the backend cannot be reached at startup.
// SaveConversation upserts metadata and replaces the stored messages only
// when conv.Messages is non-nil.
type Mirror interface {
	LoadConversations(ctx context.Context) ([]Conversation, error)
	SaveConversation(ctx context.Context, conv Conversation) error
	DeleteConversation(ctx context.Context, id string) error
}

// Preferences persists UI state across restarts.
type Preferences interface {
	LastConversationID(ctx context.Context) (string, error)
	SetLastConversationID(ctx context.Context, id string) error
}

// Store is the conversation state owner. All methods are safe for concurrent use.
type Store struct {
	gw             Gateway
	mirror         Mirror
	prefs          Preferences
	now            func() time.Time
	newID          func() string
	historyLimit   int
	generateTitles bool
	lookup         func(model.ModelID) (model.Capability, bool)

	mu           sync.RWMutex
	convs        []*Conversation // most recently updated first
	activeID     string
	activeModel  model.ModelID
	sending      int
	sendingTo    map[*Conversation]int
	initializing bool
	localOnly    bool

	slotsMu sync.Mutex
	slots   map[*Conversation]chan struct{}

	jobsMu   sync.RWMutex
	jobs     chan func(context.Context)
	closed   bool
	workerWG sync.WaitGroup
	titleWG  sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithMirror enables local replication and local-only fallback.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithPreferences enables restoring the last active conversation.
func WithPreferences(p Preferences) Option {
	return func(s *Store) { s.prefs = p }
}

// WithDefaultModel sets the initial active model.
func WithDefaultModel(m model.ModelID) Option {
	return func(s *Store) {
		if m.Valid() {
			s.activeModel = m
		}
	}
}

// WithTitleGenerator asks the backend for a title after the first user message.
func WithTitleGenerator() Option {
	return func(s *Store) { s.generateTitles = true }
}

// WithHistoryLimit bounds how many messages are fetched per conversation.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithModelCatalog replaces the capability lookup used when sending.
func WithModelCatalog(lookup func(model.ModelID) (model.Capability, bool)) Option {
	return func(s *Store) {
		if lookup != nil {
			s.lookup = lookup
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the message/conversation id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// New creates a Store. Call Close on teardown to flush pending persistence.
func New(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:           gw,
		now:          time.Now,
		newID:        id.NewOrdered,
		historyLimit: 50,
		lookup:       model.LookupModel,
		activeModel:  model.DefaultModel,
		sendingTo:    make(map[*Conversation]int),
		slots:        make(map[*Conversation]chan struct{}),
		jobs:         make(chan func(context.Context), 64),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.workerWG.Add(1)
	go s.runJobs()
	return s
}

// Close waits for title requests and queued persistence, then stops the worker.
func (s *Store) Close() {
	s.titleWG.Wait()

	s.jobsMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.jobsMu.Unlock()

	s.workerWG.Wait()
}

// runJobs executes fire-and-forget persistence in submission order.
func (s *Store) runJobs() {
	defer s.workerWG.Done()
	for job := range s.jobs {
		job(context.Background())
	}
}

func (s *Store) enqueue(job func(context.Context)) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	if s.closed {
		return
	}
	s.jobs <- job
}

func (s *Store) mirrorSave(conv Conversation) {
	if s.mirror == nil {
		return
	}
	s.enqueue(func(ctx context.Context) {
		if err := s.mirror.SaveConversation(ctx, conv); err != nil {
			log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("local mirror save failed")
		}
	})
}

func (s *Store) mirrorDelete(id string) {
	if s.mirror == nil {
		return
	}
	s.enqueue(func(ctx context.Context) {
		if err := s.mirror.DeleteConversation(ctx, id); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("local mirror delete failed")
		}
	})
}

func (s *Store) rememberActive(id string) {
	if s.prefs == nil {
		return
	}
	s.enqueue(func(ctx context.Context) {
		if err := s.prefs.SetLastConversationID(ctx, id); err != nil {
			log.Warn().Err(err).Msg("failed to persist last conversation id")
		}
	})
}

// Conversations returns a snapshot of all conversations, most recently updated first.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, len(s.convs))
	for i, c := range s.convs {
		out[i] = c.clone()
	}
	return out
}

// ListConversations is the same snapshot as Conversations; it never touches the network.
func (s *Store) ListConversations() []Conversation {
	return s.Conversations()
}

// Conversation returns a snapshot of one conversation.
func (s *Store) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.findLocked(id)
	if c == nil {
		return Conversation{}, false
	}
	return c.clone(), true
}

// ActiveConversationID returns "" when nothing is active.
func (s *Store) ActiveConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveConversation returns a snapshot of the active conversation.
func (s *Store) ActiveConversation() (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.findLocked(s.activeID)
	if c == nil {
		return Conversation{}, false
	}
	return c.clone(), true
}

// ActiveModel is the model used for new conversations and sends.
func (s *Store) ActiveModel() model.ModelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeModel
}

// SetActiveModel changes the model selection.
func (s *Store) SetActiveModel(m model.ModelID) error {
	if !m.Valid() {
		return ErrInvalidModel
	}
	s.mu.Lock()
	s.activeModel = m
	s.mu.Unlock()
	return nil
}

// IsSending reports whether any send is in flight or queued.
func (s *Store) IsSending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sending > 0
}

// IsSendingTo reports whether a send to the given conversation is in flight or queued.
func (s *Store) IsSendingTo(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.findLocked(id)
	return c != nil && s.sendingTo[c] > 0
}

// IsInitializing is true while Initialize runs.
func (s *Store) IsInitializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initializing
}

// LocalOnly reports whether the list came from the local mirror because the
// backend was unreachable at startup.
func (s *Store) LocalOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localOnly
}

// SystemPrompt returns the stored prompt and whether one is set.
func (s *Store) SystemPrompt(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.findLocked(id)
	if c == nil || c.SystemPrompt == "" {
		return "", false
	}
	return c.SystemPrompt, true
}

func (s *Store) findLocked(id string) *Conversation {
	if id == "" {
		return nil
	}
	for _, c := range s.convs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Store) containsLocked(target *Conversation) bool {
	for _, c := range s.convs {
		if c == target {
			return true
		}
	}
	return false
}

func (s *Store) moveToFrontLocked(target *Conversation) {
	for i, c := range s.convs {
		if c == target {
			copy(s.convs[1:i+1], s.convs[:i])
			s.convs[0] = target
			return
		}
	}
}

func (s *Store) removeLocked(target *Conversation) {
	for i, c := range s.convs {
		if c == target {
			s.convs = append(s.convs[:i], s.convs[i+1:]...)
			return
		}
	}
}
