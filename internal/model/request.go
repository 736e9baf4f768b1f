package model

// ChatRequest 对话请求（JSON 或 multipart 表单）
type ChatRequest struct {
	Message        string  `json:"message" form:"message" binding:"required"`
	Model          ModelID `json:"model" form:"model"`
	ConversationID string  `json:"conversation_id,omitempty" form:"conversation_id"`
	SystemPrompt   string  `json:"system_prompt,omitempty" form:"system_prompt"`

	// multipart 请求中的附件，由 handler 填充
	Attachments []Attachment `json:"-" form:"-"`
}

// Attachment 随消息上传的文件
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateChatRequest 创建对话请求
type CreateChatRequest struct {
	ID           string  `json:"id,omitempty"`
	Title        string  `json:"title,omitempty"`
	Model        ModelID `json:"model" binding:"required"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// SaveMessageRequest 追加单条消息
type SaveMessageRequest struct {
	Role    Role   `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// UpdateSystemPromptRequest 更新系统提示词，空字符串表示清除
type UpdateSystemPromptRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

// ScrapeRequest 网页抓取请求
type ScrapeRequest struct {
	URL string `json:"url" binding:"required"`
}

// GenerateTitleRequest 标题生成请求
type GenerateTitleRequest struct {
	Content string  `json:"content" binding:"required"`
	Model   ModelID `json:"model,omitempty"`
}
