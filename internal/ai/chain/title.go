package chain

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"multichat/internal/model"
)

// MaxTitleRunes 生成标题的最大长度
const MaxTitleRunes = 60

const titleSystemPrompt = "You generate short conversation titles. Reply with the title only: at most six words, no quotes, no trailing punctuation."

// ModelSource 按模型标识取 ChatModel
type ModelSource interface {
	Model(ctx context.Context, id model.ModelID) (einomodel.BaseChatModel, error)
}

// TitleChain 标题生成链
// 工作流: 首条消息 -> Prompt -> ChatModel -> 清洗后的标题
type TitleChain struct {
	models ModelSource
}

// TitleRequest 标题生成请求
type TitleRequest struct {
	Content string
	Model   model.ModelID
}

// NewTitleChain 创建标题生成链
func NewTitleChain(models ModelSource) *TitleChain {
	return &TitleChain{models: models}
}

// Run 执行标题生成，返回空字符串表示模型没有给出可用标题
func (c *TitleChain) Run(ctx context.Context, req *TitleRequest) (string, error) {
	chatModel, err := c.models.Model(ctx, req.Model)
	if err != nil {
		return "", err
	}

	messages := []*schema.Message{
		schema.SystemMessage(titleSystemPrompt),
		schema.UserMessage(buildTitlePrompt(req.Content)),
	}
	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return CleanTitle(resp.Content), nil
}

// buildTitlePrompt 构建标题提示词，过长的消息只取开头
func buildTitlePrompt(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) > 500 {
		runes = runes[:500]
	}
	return "Conversation opening message:\n" + string(runes)
}

// CleanTitle 取第一行，去掉引号、"Title:" 前缀和句末标点
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	for _, prefix := range []string{"Title:", "title:", "标题："} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.Trim(strings.TrimSpace(s), "\"'`*“”「」")
	s = strings.TrimRight(s, ".。!！")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxTitleRunes {
		s = strings.TrimSpace(string(runes[:MaxTitleRunes]))
	}
	return s
}
