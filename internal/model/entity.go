package model

import (
	"time"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 是否为合法角色
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// AnonymousUserID 未认证请求使用的用户
const AnonymousUserID = "anonymous"

// Chat 对话实体（chats 集合）
type Chat struct {
	ID           string    `bson:"_id" json:"_id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	Title        string    `bson:"title" json:"title"`
	Model        ModelID   `bson:"model" json:"model"`
	SystemPrompt string    `bson:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// StoredMessage 消息实体（messages 集合）
type StoredMessage struct {
	ID        string     `bson:"_id" json:"id"`
	ChatID    string     `bson:"chat_id" json:"chat_id"`
	Role      Role       `bson:"role" json:"role"`
	Content   string     `bson:"content" json:"content"`
	Model     ModelID    `bson:"model,omitempty" json:"model,omitempty"`
	Citations []Citation `bson:"citations,omitempty" json:"citations,omitempty"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
}

// Citation 检索引用
type Citation struct {
	Source     string  `bson:"source" json:"source"`
	Filename   string  `bson:"filename" json:"filename"`
	ChunkIndex int     `bson:"chunk_index" json:"chunk_index"`
	Similarity float64 `bson:"similarity" json:"similarity"`
}

// Document 已上传文档（documents 集合）
type Document struct {
	ID             string    `bson:"_id" json:"id"`
	UserID         string    `bson:"user_id" json:"user_id"`
	ConversationID string    `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	Filename       string    `bson:"filename" json:"filename"`
	ContentType    string    `bson:"content_type" json:"content_type"`
	Size           int64     `bson:"size" json:"size"`
	StorageKey     string    `bson:"storage_key" json:"-"`
	ChunkCount     int       `bson:"chunk_count" json:"chunk_count"`
	Embedded       bool      `bson:"embedded" json:"embedded"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// DocumentChunk 文档分块（document_chunks 集合）
type DocumentChunk struct {
	ID             string    `bson:"_id" json:"id"`
	DocumentID     string    `bson:"document_id" json:"document_id"`
	UserID         string    `bson:"user_id" json:"user_id"`
	ConversationID string    `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	Filename       string    `bson:"filename" json:"filename"`
	Index          int       `bson:"index" json:"index"`
	Content        string    `bson:"content" json:"content"`
	Terms          []string  `bson:"terms,omitempty" json:"-"`
	Embedding      []float32 `bson:"embedding,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
