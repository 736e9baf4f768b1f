package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"multichat/internal/ai"
	"multichat/internal/model"
	"multichat/internal/pkg/id"
	"multichat/internal/pkg/metrics"
	"multichat/internal/pkg/storage"
	"multichat/internal/pkg/textproc"
)

const (
	defaultTopK           = 3
	defaultMaxUploadBytes = 10 << 20
)

var documentTypes = map[string]string{
	".txt":      "text/plain; charset=utf-8",
	".md":       "text/markdown; charset=utf-8",
	".markdown": "text/markdown; charset=utf-8",
}

// DocumentOptions 文档检索配置
type DocumentOptions struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	MinSimilarity  float64
	MaxUploadBytes int64
}

// SearchHit 检索命中的分块
type SearchHit struct {
	Citation model.Citation
	Content  string
}

// DocumentService 文档服务
// 职责: 文档解析、分块、向量化或分词，保存原件，按问题检索相关分块
type DocumentService struct {
	repo      DocumentRepository
	storage   storage.Storage
	embedder  ai.Embedder
	tokenizer *textproc.Tokenizer
	opts      DocumentOptions
}

// NewDocumentService 创建文档服务；storage 和 embedder 可以为 nil，embedder 为 nil 时使用分词检索
func NewDocumentService(repo DocumentRepository, store storage.Storage, embedder ai.Embedder, tokenizer *textproc.Tokenizer, opts DocumentOptions) *DocumentService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = textproc.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = textproc.DefaultChunkOverlap
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if tokenizer == nil {
		tokenizer = textproc.NewTokenizer()
	}
	return &DocumentService{
		repo:      repo,
		storage:   store,
		embedder:  embedder,
		tokenizer: tokenizer,
		opts:      opts,
	}
}

// UploadInput 上传的文档
type UploadInput struct {
	UserID         string
	ConversationID string
	Filename       string
	Data           []byte
}

// Upload 解析并入库一个文档
func (s *DocumentService) Upload(ctx context.Context, in *UploadInput) (*model.UploadDocumentResponse, error) {
	filename := filepath.Base(strings.TrimSpace(in.Filename))
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := documentTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, filename)
	}
	if int64(len(in.Data)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, len(in.Data), s.opts.MaxUploadBytes)
	}
	if !utf8.Valid(in.Data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", ErrUnsupportedDocument, filename)
	}

	text := string(in.Data)
	if ext != ".txt" {
		text = textproc.MarkdownToText(in.Data)
	}
	pieces := textproc.Chunk(text, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, ErrEmptyDocument
	}

	logger := log.With().Str("filename", filename).Str("conversation_id", in.ConversationID).Logger()
	now := time.Now().UTC()
	doc := &model.Document{
		ID:             id.New(),
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		Filename:       filename,
		ContentType:    contentType,
		Size:           int64(len(in.Data)),
		ChunkCount:     len(pieces),
		CreatedAt:      now,
	}

	chunks := make([]*model.DocumentChunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &model.DocumentChunk{
			ID:             id.New(),
			DocumentID:     doc.ID,
			UserID:         in.UserID,
			ConversationID: in.ConversationID,
			Filename:       filename,
			Index:          i,
			Content:        p,
			Terms:          s.tokenizer.Terms(p),
			CreatedAt:      now,
		}
	}

	if s.embedder != nil {
		vectors, err := s.embedder.Embed(ctx, pieces)
		if err != nil {
			logger.Warn().Err(err).Msg("embedding failed, document will use keyword retrieval")
		} else {
			for i, v := range vectors {
				chunks[i].Embedding = v
			}
			doc.Embedded = true
		}
	}

	if s.storage != nil {
		key := storage.DocumentKey(in.UserID, doc.ID, filename)
		if _, err := s.storage.Upload(ctx, key, bytes.NewReader(in.Data), contentType); err != nil {
			logger.Warn().Err(err).Msg("failed to store original document")
		} else {
			doc.StorageKey = key
		}
	}

	if err := s.repo.Create(ctx, doc, chunks); err != nil {
		if doc.StorageKey != "" {
			_ = s.storage.Delete(ctx, doc.StorageKey)
		}
		return nil, fmt.Errorf("save document: %w", err)
	}
	metrics.DocumentsUploaded.Inc()
	logger.Info().Int("chunks", len(chunks)).Bool("embedded", doc.Embedded).Msg("document processed")

	return &model.UploadDocumentResponse{
		Success:    true,
		Message:    fmt.Sprintf("Document processed successfully into %d chunks", len(chunks)),
		DocumentID: doc.ID,
		Filename:   filename,
		ChunkCount: len(chunks),
	}, nil
}

// List 列出文档
func (s *DocumentService) List(ctx context.Context, userID, conversationID string) ([]model.Document, error) {
	docs, err := s.repo.List(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Search 返回与问题最相关的 TopK 个分块。有向量时按余弦相似度，否则按命中词数
func (s *DocumentService) Search(ctx context.Context, userID, conversationID, query string) ([]SearchHit, error) {
	if s.embedder != nil {
		hits, err := s.searchEmbedded(ctx, userID, conversationID, query)
		if err != nil {
			log.Warn().Err(err).Msg("vector search failed, falling back to keywords")
		} else if len(hits) > 0 {
			return hits, nil
		}
	}
	return s.searchTerms(ctx, userID, conversationID, query)
}

func (s *DocumentService) searchEmbedded(ctx context.Context, userID, conversationID, query string) ([]SearchHit, error) {
	chunks, err := s.repo.EmbeddedChunks(ctx, userID, conversationID)
	if err != nil || len(chunks) == 0 {
		return nil, err
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	var hits []SearchHit
	for _, c := range chunks {
		score := ai.Cosine(vectors[0], c.Embedding)
		if score < s.opts.MinSimilarity {
			continue
		}
		hits = append(hits, newHit(c, score))
	}
	return s.top(hits), nil
}

func (s *DocumentService) searchTerms(ctx context.Context, userID, conversationID, query string) ([]SearchHit, error) {
	terms := s.tokenizer.Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	chunks, err := s.repo.ChunksByTerms(ctx, userID, conversationID, terms)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	var hits []SearchHit
	for _, c := range chunks {
		n := textproc.Overlap(terms, c.Terms)
		if n == 0 {
			continue
		}
		hits = append(hits, newHit(c, float64(n)/float64(len(terms))))
	}
	return s.top(hits), nil
}

func (s *DocumentService) top(hits []SearchHit) []SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Citation.Similarity > hits[j].Citation.Similarity
	})
	if len(hits) > s.opts.TopK {
		hits = hits[:s.opts.TopK]
	}
	return hits
}

// DeleteByConversation 删除对话绑定的文档、分块和原件
func (s *DocumentService) DeleteByConversation(ctx context.Context, userID, conversationID string) error {
	docs, err := s.repo.DeleteByConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if s.storage == nil {
		return nil
	}
	for _, d := range docs {
		if d.StorageKey == "" {
			continue
		}
		if err := s.storage.Delete(ctx, d.StorageKey); err != nil {
			log.Warn().Err(err).Str("key", d.StorageKey).Msg("failed to delete stored document")
		}
	}
	return nil
}

func newHit(c model.DocumentChunk, score float64) SearchHit {
	return SearchHit{
		Citation: model.Citation{
			Source:     c.DocumentID,
			Filename:   c.Filename,
			ChunkIndex: c.Index,
			Similarity: score,
		},
		Content: c.Content,
	}
}

// BuildContextPrompt 把检索到的分块拼进用户问题
func BuildContextPrompt(hits []SearchHit, query string) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[Document Reference %d: %s]\n%s", i+1, h.Citation.Filename, h.Content)
	}
	return "You have access to relevant information from uploaded documents. Use this knowledge naturally in your response.\n\n" +
		"Available Context:\n" + strings.Join(parts, "\n\n") +
		"\n\nUser Query: " + query +
		"\n\nPlease provide a comprehensive and helpful response:"
}
