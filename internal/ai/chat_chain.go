package ai

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"

	"multichat/internal/model"
)

// ChatChain 对话链
// 职责: 把系统提示词、历史窗口和当前问题组装成 eino 消息并调用模型
type ChatChain struct {
	router *Router
}

// NewChatChain 创建对话链
func NewChatChain(router *Router) *ChatChain {
	return &ChatChain{router: router}
}

// Run 同步执行对话
func (c *ChatChain) Run(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	chatModel, err := c.router.Model(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	resp, err := chatModel.Generate(ctx, buildMessages(req))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("model returned no message")
	}

	out := &ChatResponse{Content: resp.Content}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     resp.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: resp.ResponseMeta.Usage.CompletionTokens,
			TotalTokens:      resp.ResponseMeta.Usage.TotalTokens,
		}
	}
	return out, nil
}

// buildMessages 历史中的 system 消息被忽略，只使用请求里解析好的系统提示词
func buildMessages(req *ChatRequest) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, schema.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.History {
		switch m.Role {
		case model.RoleUser:
			messages = append(messages, schema.UserMessage(m.Content))
		case model.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(req.Message))
	return messages
}
