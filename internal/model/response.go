package model

// ChatResponse 对话响应
// response 与 content 相同，兼容只读取 response 字段的客户端
type ChatResponse struct {
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	Response       string      `json:"response"`
	ConversationID string      `json:"conversation_id"`
	ModelUsed      ModelID     `json:"model_used"`
	Citations      []Citation  `json:"citations,omitempty"`
	Usage          *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage Token 使用统计
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatListResponse 对话列表
type ChatListResponse struct {
	Chats []Chat `json:"chats"`
}

// HistoryResponse 消息历史
type HistoryResponse struct {
	Messages []StoredMessage `json:"messages"`
}

// SuccessResponse 操作结果
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CreateChatResponse 创建对话结果
type CreateChatResponse struct {
	Success bool   `json:"success"`
	ChatID  string `json:"chat_id"`
}

// UploadDocumentResponse 文档上传结果
type UploadDocumentResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id,omitempty"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

// DocumentListResponse 文档列表
type DocumentListResponse struct {
	Documents []Document `json:"documents"`
}

// ScrapeResponse 网页抓取结果
type ScrapeResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TitleResponse 标题生成结果
type TitleResponse struct {
	Title string `json:"title"`
}

// ModelsResponse 支持的模型
type ModelsResponse struct {
	Models []Capability `json:"models"`
}
