package chatui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"multichat/internal/gateway"
	"multichat/internal/model"
	"multichat/internal/store"
)

type stubGateway struct {
	mu      sync.Mutex
	sends   []gateway.SendRequest
	nextID  int
	sendErr error
}

func (g *stubGateway) SendMessage(ctx context.Context, req gateway.SendRequest) (*gateway.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, req)
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	id := req.ConversationID
	if id == "" {
		g.nextID++
		id = "chat-" + string(rune('0'+g.nextID))
	}
	return &gateway.SendResult{Role: model.RoleAssistant, Content: "echo: " + req.Message, ConversationID: id, Model: req.Model}, nil
}

func (g *stubGateway) ListConversations(ctx context.Context) ([]model.Chat, error) { return nil, nil }

func (g *stubGateway) CreateConversation(ctx context.Context, chat model.Chat) (string, error) {
	return chat.ID, nil
}

func (g *stubGateway) GetHistory(ctx context.Context, id string, limit int) ([]model.StoredMessage, error) {
	return nil, nil
}

func (g *stubGateway) DeleteConversation(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (g *stubGateway) UpdateSystemPrompt(ctx context.Context, id, prompt string) (bool, error) {
	return true, nil
}

func (g *stubGateway) SaveMessage(ctx context.Context, id string, role model.Role, content string) error {
	return nil
}

func (g *stubGateway) GenerateTitle(ctx context.Context, content string, m model.ModelID) (string, error) {
	return "", errors.New("disabled")
}

func (g *stubGateway) lastSend() gateway.SendRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sends[len(g.sends)-1]
}

type stubTools struct {
	uploaded []gateway.File
	scraped  []string
}

func (t *stubTools) UploadDocument(ctx context.Context, f gateway.File, conversationID string) (*model.UploadDocumentResponse, error) {
	t.uploaded = append(t.uploaded, f)
	return &model.UploadDocumentResponse{Success: true, Message: "Document processed", Filename: f.Name, ChunkCount: 3}, nil
}

func (t *stubTools) ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error) {
	return []model.Document{{Filename: "guide.md", Size: 42, ChunkCount: 3}}, nil
}

func (t *stubTools) ScrapeURL(ctx context.Context, rawURL string) (*model.ScrapeResponse, error) {
	t.scraped = append(t.scraped, rawURL)
	return &model.ScrapeResponse{Success: true, URL: rawURL, Title: "Example", Content: "Title: Example\n\nbody"}, nil
}

type themeRecorder struct{ theme string }

func (r *themeRecorder) SetTheme(ctx context.Context, theme string) error {
	r.theme = theme
	return nil
}

type scriptedInput struct {
	lines   []string
	history []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) AppendHistory(item string) { s.history = append(s.history, item) }

func newTestApp(lines ...string) (*App, *stubGateway, *stubTools, *themeRecorder, *bytes.Buffer, *store.Store) {
	gw := &stubGateway{}
	st := store.New(gw)
	tools := &stubTools{}
	themes := &themeRecorder{}
	out := &bytes.Buffer{}
	r, _ := NewRenderer(ThemeDark, 80, false)
	app := NewApp(AppConfig{
		Store:    st,
		Tools:    tools,
		Themes:   themes,
		Renderer: r,
		Input:    &scriptedInput{lines: lines},
		Output:   out,
		ReadFile: func(path string) (gateway.File, error) {
			if path == "missing.txt" {
				return gateway.File{}, errors.New("open missing.txt: no such file")
			}
			return gateway.File{Name: path, ContentType: "text/plain", Data: []byte("file body")}, nil
		},
	})
	return app, gw, tools, themes, out, st
}

func TestAppHandle(t *testing.T) {
	Convey("终端命令处理", t, func() {
		ctx := context.Background()
		app, gw, tools, themes, out, st := newTestApp()
		defer st.Close()

		Convey("普通输入发送消息并打印回复", func() {
			So(app.Handle(ctx, "hello"), ShouldBeTrue)
			So(out.String(), ShouldContainSubstring, "echo: hello")
			convs := st.Conversations()
			So(convs, ShouldHaveLength, 1)
			So(convs[0].Messages, ShouldHaveLength, 2)
		})

		Convey("发送失败时显示错误回复和提示", func() {
			gw.sendErr = &gateway.Error{Kind: gateway.KindUnreachable, Op: "send message", Err: errors.New("connection refused")}
			So(app.Handle(ctx, "hello"), ShouldBeTrue)
			So(out.String(), ShouldContainSubstring, store.ErrorReply)
			So(out.String(), ShouldContainSubstring, "the backend did not answer")
		})

		Convey("发送成功时没有失败提示", func() {
			app.Handle(ctx, "hello")
			So(out.String(), ShouldNotContainSubstring, "the backend did not answer")
		})

		Convey("/new 指定模型", func() {
			app.Handle(ctx, "/new gpt-4o")
			So(st.ActiveModel(), ShouldEqual, model.ModelGPT4o)
			So(st.Conversations(), ShouldHaveLength, 1)
		})

		Convey("/model 拒绝未知模型", func() {
			app.Handle(ctx, "/model nonsense")
			So(out.String(), ShouldContainSubstring, "error:")
			So(st.ActiveModel(), ShouldEqual, model.DefaultModel)
		})

		Convey("/open 按序号切换", func() {
			app.Handle(ctx, "first")
			app.Handle(ctx, "/new")
			app.Handle(ctx, "second")
			firstID := st.Conversations()[1].ID

			app.Handle(ctx, "/open 2")
			So(st.ActiveConversationID(), ShouldEqual, firstID)

			app.Handle(ctx, "/open 9")
			So(out.String(), ShouldContainSubstring, "no conversation #9")
		})

		Convey("/delete 删除当前会话", func() {
			app.Handle(ctx, "to be removed")
			app.Handle(ctx, "/delete")
			So(st.Conversations(), ShouldBeEmpty)
			So(out.String(), ShouldContainSubstring, "deleted")
		})

		Convey("/attach 的文件随下一条消息发送", func() {
			app.Handle(ctx, "/attach notes.txt")
			app.Handle(ctx, "read this")
			sent := gw.lastSend()
			So(sent.Files, ShouldHaveLength, 1)
			So(sent.Files[0].Name, ShouldEqual, "notes.txt")

			app.Handle(ctx, "and again")
			So(gw.lastSend().Files, ShouldBeEmpty)
		})

		Convey("/attach 在不支持文件的模型下报错", func() {
			app.Handle(ctx, "/model groq-llama")
			app.Handle(ctx, "/attach notes.txt")
			So(out.String(), ShouldContainSubstring, "does not accept file attachments")
		})

		Convey("/attach 读取失败", func() {
			app.Handle(ctx, "/attach missing.txt")
			So(out.String(), ShouldContainSubstring, "no such file")
		})

		Convey("/upload 校验并上传文档", func() {
			app.Handle(ctx, "/upload guide.md")
			So(tools.uploaded, ShouldHaveLength, 1)
			So(out.String(), ShouldContainSubstring, "3 chunks")

			app.Handle(ctx, "/upload image.png")
			So(tools.uploaded, ShouldHaveLength, 1)
		})

		Convey("/scrape 抓取后把内容发给模型", func() {
			app.Handle(ctx, "/scrape https://example.com")
			So(tools.scraped, ShouldResemble, []string{"https://example.com"})
			So(gw.lastSend().Message, ShouldContainSubstring, "URL Analysis Request")
			So(gw.lastSend().Message, ShouldContainSubstring, "https://example.com")
		})

		Convey("/prompt 无会话时新建带提示词的会话", func() {
			app.Handle(ctx, "/prompt be concise")
			id := st.ActiveConversationID()
			p, ok := st.SystemPrompt(id)
			So(ok, ShouldBeTrue)
			So(p, ShouldEqual, "be concise")

			app.Handle(ctx, "/prompt clear")
			_, ok = st.SystemPrompt(id)
			So(ok, ShouldBeFalse)
		})

		Convey("/theme 切换并保存主题", func() {
			app.Handle(ctx, "/theme light")
			So(themes.theme, ShouldEqual, ThemeLight)
			app.Handle(ctx, "/theme neon")
			So(themes.theme, ShouldEqual, ThemeLight)
			So(out.String(), ShouldContainSubstring, "unknown theme")
		})

		Convey("/quit 结束", func() {
			So(app.Handle(ctx, "/quit"), ShouldBeFalse)
		})
	})
}

func TestAppRun(t *testing.T) {
	Convey("REPL 读到 EOF 正常退出", t, func() {
		app, gw, _, _, _, st := newTestApp("", "hi", "/list")
		defer st.Close()

		err := app.Run(context.Background())
		So(err, ShouldBeNil)
		So(gw.sends, ShouldHaveLength, 1)
		So(app.in.(*scriptedInput).history, ShouldResemble, []string{"hi", "/list"})
	})
}
