package chatui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"multichat/internal/model"
	"multichat/internal/store"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10")).
				Bold(true)

	modelTagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// Renderer 把会话状态格式化为终端文本
type Renderer struct {
	theme    string
	width    int
	markdown bool
	md       *glamour.TermRenderer
}

// NewRenderer 创建渲染器；markdown 为 false 时原样输出回复
func NewRenderer(theme string, width int, markdown bool) (*Renderer, error) {
	if width <= 0 {
		width = 100
	}
	r := &Renderer{width: width, markdown: markdown}
	if err := r.SetTheme(theme); err != nil {
		return nil, err
	}
	return r, nil
}

// Theme returns the active markdown theme.
func (r *Renderer) Theme() string { return r.theme }

// SetTheme 切换 glamour 主题
func (r *Renderer) SetTheme(theme string) error {
	if theme == "" {
		theme = ThemeDark
	}
	if theme != ThemeDark && theme != ThemeLight {
		return fmt.Errorf("unknown theme %q, use dark or light", theme)
	}
	r.theme = theme
	if !r.markdown {
		return nil
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	r.md = md
	return nil
}

// Message 渲染一条消息；system 消息返回空串
func (r *Renderer) Message(m store.Message) string {
	switch m.Role {
	case model.RoleSystem:
		return ""
	case model.RoleUser:
		return userLabelStyle.Render("you") + " " + m.Content + "\n"
	}

	var b strings.Builder
	b.WriteString(assistantLabelStyle.Render("assistant"))
	if m.Model != "" {
		b.WriteString(" " + modelTagStyle.Render("("+string(m.Model)+")"))
	}
	b.WriteString("\n")
	b.WriteString(r.markdownText(m.Content))
	if len(m.Citations) > 0 {
		b.WriteString(modelTagStyle.Render("sources:") + "\n")
		for _, c := range m.Citations {
			name := c.Filename
			if name == "" {
				name = c.Source
			}
			fmt.Fprintf(&b, "  - %s #%d (%.2f)\n", name, c.ChunkIndex, c.Similarity)
		}
	}
	return b.String()
}

// Transcript 渲染会话中可见的全部消息
func (r *Renderer) Transcript(conv store.Conversation) string {
	var b strings.Builder
	b.WriteString(activeStyle.Render(conv.Title))
	if conv.Model != "" {
		b.WriteString(" " + modelTagStyle.Render("["+string(conv.Model)+"]"))
	}
	b.WriteString("\n")
	msgs := store.DisplayMessages(conv.Messages)
	if len(msgs) == 0 {
		b.WriteString(noticeStyle.Render("(no messages yet)") + "\n")
	}
	for _, m := range msgs {
		b.WriteString(r.Message(m))
	}
	return b.String()
}

// ConversationList 渲染编号列表，当前会话加 * 标记
func (r *Renderer) ConversationList(convs []store.Conversation, activeID string) string {
	if len(convs) == 0 {
		return noticeStyle.Render("no conversations yet, just type to start one") + "\n"
	}
	var b strings.Builder
	for i, c := range convs {
		marker := " "
		title := c.Title
		if c.ID == activeID {
			marker = "*"
			title = activeStyle.Render(title)
		}
		fmt.Fprintf(&b, "%s %2d. %s %s %s\n", marker, i+1, title,
			modelTagStyle.Render(string(c.Model)),
			modelTagStyle.Render(c.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
	return b.String()
}

// ModelList 渲染模型目录
func (r *Renderer) ModelList(active model.ModelID) string {
	var b strings.Builder
	for _, c := range model.Models() {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		var tags []string
		if c.Local {
			tags = append(tags, "local")
		}
		if c.SupportsFiles {
			tags = append(tags, "files")
		}
		fmt.Fprintf(&b, "%s %-18s %-28s %s\n", marker, c.ID, c.DisplayName, modelTagStyle.Render(strings.Join(tags, ",")))
	}
	return b.String()
}

// Notice 渲染提示信息
func (r *Renderer) Notice(format string, args ...any) string {
	return noticeStyle.Render(fmt.Sprintf(format, args...)) + "\n"
}

// Error 渲染错误
func (r *Renderer) Error(err error) string {
	return errorStyle.Render("error:") + " " + err.Error() + "\n"
}

// Prompt 返回输入提示符。liner 按字符计算宽度，不能带 ANSI 转义
func (r *Renderer) Prompt(m model.ModelID) string {
	return string(m) + "> "
}

func (r *Renderer) markdownText(s string) string {
	if r.md == nil {
		return s + "\n"
	}
	out, err := r.md.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}
