// Package chatui is the interactive terminal front end. It reads snapshots
// from a store.Store and mutates state only through its operations.
package chatui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	"multichat/internal/gateway"
	"multichat/internal/model"
	"multichat/internal/store"
)

// LineReader is the line editor; *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Tools are the backend calls that bypass the conversation store.
type Tools interface {
	UploadDocument(ctx context.Context, f gateway.File, conversationID string) (*model.UploadDocumentResponse, error)
	ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error)
	ScrapeURL(ctx context.Context, rawURL string) (*model.ScrapeResponse, error)
}

// ThemeSaver persists the markdown theme.
type ThemeSaver interface {
	SetTheme(ctx context.Context, theme string) error
}

// AppConfig 组装终端应用所需的依赖
type AppConfig struct {
	Store    *store.Store
	Tools    Tools
	Themes   ThemeSaver
	Renderer *Renderer
	Input    LineReader
	Output   io.Writer
	// ReadFile 默认为 gateway.ReadFile
	ReadFile func(path string) (gateway.File, error)
}

// App 终端聊天应用
type App struct {
	store    *store.Store
	tools    Tools
	themes   ThemeSaver
	render   *Renderer
	in       LineReader
	out      io.Writer
	readFile func(string) (gateway.File, error)

	pending []gateway.File
}

var errNoConversation = errors.New("no active conversation")

// NewApp 创建终端应用
func NewApp(cfg AppConfig) *App {
	readFile := cfg.ReadFile
	if readFile == nil {
		readFile = gateway.ReadFile
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &App{
		store:    cfg.Store,
		tools:    cfg.Tools,
		themes:   cfg.Themes,
		render:   cfg.Renderer,
		in:       cfg.Input,
		out:      out,
		readFile: readFile,
	}
}

// Run 进入 REPL，直到 /quit、Ctrl+C 或 EOF
func (a *App) Run(ctx context.Context) error {
	a.printf("%s", a.render.Notice("multichat, type /help for commands"))
	if a.store.LocalOnly() {
		a.printf("%s", a.render.Notice("backend unreachable, showing local copies"))
	}
	if conv, ok := a.store.ActiveConversation(); ok {
		a.printf("%s", a.render.Transcript(conv))
	}

	for {
		line, err := a.in.Prompt(a.render.Prompt(a.store.ActiveModel()))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				a.printf("\n")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		a.in.AppendHistory(line)

		if !a.Handle(ctx, line) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Handle 处理一行输入，返回 false 表示退出
func (a *App) Handle(ctx context.Context, line string) bool {
	cmd, err := ParseCommand(line)
	if err != nil {
		a.printf("%s", a.render.Error(err))
		return true
	}
	if cmd.IsMessage() {
		a.send(ctx, cmd.Arg)
		return true
	}

	switch cmd.Name {
	case CmdQuit:
		return false
	case CmdHelp:
		a.printf("%s", HelpText())
	case CmdNew:
		err = a.newConversation(cmd.Arg)
	case CmdList:
		a.printf("%s", a.render.ConversationList(a.store.Conversations(), a.store.ActiveConversationID()))
	case CmdOpen:
		err = a.open(ctx, cmd.Arg)
	case CmdDelete:
		err = a.delete(ctx, cmd.Arg)
	case CmdModel:
		err = a.model(cmd.Arg)
	case CmdModels:
		a.printf("%s", a.render.ModelList(a.store.ActiveModel()))
	case CmdPrompt:
		err = a.prompt(ctx, cmd.Arg)
	case CmdAttach:
		err = a.attach(cmd.Arg)
	case CmdUpload:
		err = a.upload(ctx, cmd.Arg)
	case CmdDocs:
		err = a.documents(ctx)
	case CmdScrape:
		err = a.scrape(ctx, cmd.Arg)
	case CmdTheme:
		err = a.theme(ctx, cmd.Arg)
	case CmdHistory:
		conv, ok := a.store.ActiveConversation()
		if !ok {
			err = errNoConversation
			break
		}
		a.printf("%s", a.render.Transcript(conv))
	}
	if err != nil {
		a.printf("%s", a.render.Error(err))
	}
	return true
}

func (a *App) send(ctx context.Context, content string) {
	// Ctrl+C during a send cancels the request instead of quitting
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	files := a.pending
	a.pending = nil

	a.printf("%s", a.render.Notice("thinking..."))
	reply, err := a.store.SendMessage(sendCtx, store.SendRequest{Content: content, Files: files})
	if err != nil {
		if errors.Is(err, store.ErrFilesNotSupported) || gateway.IsKind(err, gateway.KindValidation) {
			a.pending = files
		}
		a.printf("%s", a.render.Error(err))
		return
	}
	a.printf("%s", a.render.Message(reply))
	if reply.Failed {
		a.printf("%s", a.render.Notice("the backend did not answer, check that it is running and send again"))
	}
}

func (a *App) newConversation(arg string) error {
	var m model.ModelID
	if arg != "" {
		parsed, err := model.ParseModelID(arg)
		if err != nil {
			return err
		}
		m = parsed
	}
	conv := a.store.CreateConversation(m, "")
	a.pending = nil
	a.printf("%s", a.render.Notice("new conversation with %s", conv.Model))
	return nil
}

// resolve 把列表序号或 id 转换为会话 id
func (a *App) resolve(arg string) (string, error) {
	convs := a.store.Conversations()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(convs) {
			return "", fmt.Errorf("no conversation #%d (have %d)", n, len(convs))
		}
		return convs[n-1].ID, nil
	}
	for _, c := range convs {
		if c.ID == arg {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", store.ErrConversationNotFound, arg)
}

func (a *App) open(ctx context.Context, arg string) error {
	id, err := a.resolve(arg)
	if err != nil {
		return err
	}
	if !a.store.SelectConversation(ctx, id) {
		return store.ErrConversationNotFound
	}
	a.pending = nil
	conv, _ := a.store.Conversation(id)
	a.printf("%s", a.render.Transcript(conv))
	return nil
}

func (a *App) delete(ctx context.Context, arg string) error {
	activeID := a.store.ActiveConversationID()
	id := activeID
	if arg != "" {
		resolved, err := a.resolve(arg)
		if err != nil {
			return err
		}
		id = resolved
	}
	if id == "" {
		return errNoConversation
	}
	conv, _ := a.store.Conversation(id)
	if err := a.store.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("could not delete %q: %w", conv.Title, err)
	}
	a.printf("%s", a.render.Notice("deleted %q", conv.Title))
	if id != activeID {
		return nil
	}
	if next, ok := a.store.ActiveConversation(); ok {
		a.printf("%s", a.render.Transcript(next))
	}
	return nil
}

func (a *App) model(arg string) error {
	if arg == "" {
		a.printf("%s", a.render.Notice("active model: %s", a.store.ActiveModel()))
		return nil
	}
	m, err := model.ParseModelID(arg)
	if err != nil {
		return err
	}
	if err := a.store.SetActiveModel(m); err != nil {
		return err
	}
	a.printf("%s", a.render.Notice("active model: %s", m))
	return nil
}

func (a *App) prompt(ctx context.Context, arg string) error {
	id := a.store.ActiveConversationID()
	if arg == "" {
		if p, ok := a.store.SystemPrompt(id); ok {
			a.printf("%s", a.render.Notice("system prompt: %s", p))
		} else {
			a.printf("%s", a.render.Notice("no system prompt set"))
		}
		return nil
	}

	text := arg
	if strings.EqualFold(arg, "clear") {
		text = ""
	}
	if id == "" {
		conv := a.store.CreateConversation("", text)
		a.printf("%s", a.render.Notice("new conversation with %s", conv.Model))
		return nil
	}
	if err := a.store.SetSystemPrompt(ctx, id, text); err != nil {
		return fmt.Errorf("system prompt not saved: %w", err)
	}
	a.printf("%s", a.render.Notice("system prompt updated"))
	return nil
}

func (a *App) attach(arg string) error {
	if arg == "" {
		if len(a.pending) == 0 {
			a.printf("%s", a.render.Notice("no files attached"))
		}
		for _, f := range a.pending {
			a.printf("%s", a.render.Notice("attached: %s (%d bytes)", f.Name, len(f.Data)))
		}
		return nil
	}
	if strings.EqualFold(arg, "clear") {
		a.pending = nil
		a.printf("%s", a.render.Notice("attachments cleared"))
		return nil
	}

	if c, ok := model.LookupModel(a.store.ActiveModel()); ok && !c.SupportsFiles {
		return fmt.Errorf("%s: %w", c.ID, store.ErrFilesNotSupported)
	}
	f, err := a.readFile(arg)
	if err != nil {
		return err
	}
	next := append(append([]gateway.File(nil), a.pending...), f)
	if err := gateway.ValidateFiles(next); err != nil {
		return err
	}
	a.pending = next
	a.printf("%s", a.render.Notice("attached %s, %d file(s) will go with your next message", f.Name, len(next)))
	return nil
}

// remoteConversationID 返回后端已知的当前会话 id，草稿返回空串
func (a *App) remoteConversationID() string {
	conv, ok := a.store.ActiveConversation()
	if !ok || conv.Draft {
		return ""
	}
	return conv.ID
}

func (a *App) upload(ctx context.Context, arg string) error {
	f, err := a.readFile(arg)
	if err != nil {
		return err
	}
	if err := gateway.ValidateDocument(f); err != nil {
		return err
	}
	res, err := a.tools.UploadDocument(ctx, f, a.remoteConversationID())
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	log.Info().Str("filename", res.Filename).Int("chunks", res.ChunkCount).Msg("document uploaded")
	a.printf("%s", a.render.Notice("%s (%d chunks)", res.Message, res.ChunkCount))
	return nil
}

func (a *App) documents(ctx context.Context) error {
	docs, err := a.tools.ListDocuments(ctx, a.remoteConversationID())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		a.printf("%s", a.render.Notice("no documents uploaded"))
		return nil
	}
	for _, d := range docs {
		a.printf("  %s  %d bytes  %d chunks\n", d.Filename, d.Size, d.ChunkCount)
	}
	return nil
}

func (a *App) scrape(ctx context.Context, rawURL string) error {
	res, err := a.tools.ScrapeURL(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	a.printf("%s", a.render.Notice("fetched %q", res.Title))
	a.send(ctx, ScrapePrompt(res))
	return nil
}

// ScrapePrompt 把抓取结果包装成让模型总结的消息
func ScrapePrompt(res *model.ScrapeResponse) string {
	return fmt.Sprintf("**URL Analysis Request**\nURL: %s\nTitle: %s\n\n**Content Summary:**\n%s\n\n"+
		"Please analyze this content and provide a comprehensive summary highlighting the key points, "+
		"main topics, and important information.", res.URL, res.Title, res.Content)
}

func (a *App) theme(ctx context.Context, arg string) error {
	theme := strings.ToLower(arg)
	if err := a.render.SetTheme(theme); err != nil {
		return err
	}
	if a.themes != nil {
		if err := a.themes.SetTheme(ctx, theme); err != nil {
			log.Warn().Err(err).Msg("failed to persist theme")
		}
	}
	a.printf("%s", a.render.Notice("theme: %s", theme))
	return nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
