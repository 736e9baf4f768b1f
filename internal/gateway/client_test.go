package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"multichat/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc, cfg Config) (*Client, *httptest.Server) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL + "/api"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNew(t *testing.T) {
	Convey("New 校验 base url", t, func() {
		_, err := New(Config{BaseURL: "localhost:8080"})
		So(err, ShouldNotBeNil)

		c, err := New(Config{BaseURL: "http://localhost:8080/api/"})
		So(err, ShouldBeNil)
		So(c.baseURL, ShouldEqual, "http://localhost:8080/api")
		So(c.timeout, ShouldEqual, DefaultTimeout)
		So(c.uploadTimeout, ShouldEqual, DefaultUploadTimeout)
	})
}

func TestSendMessage(t *testing.T) {
	Convey("SendMessage", t, func() {
		Convey("JSON 请求体与响应解析", func() {
			var got model.ChatRequest
			var auth, method, path string
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				auth = r.Header.Get("Authorization")
				_ = json.NewDecoder(r.Body).Decode(&got)
				_, _ = io.WriteString(w, `{"role":"assistant","response":"hi there","conversation_id":"c-1","model_used":"gpt-4o",
					"citations":[{"source":"doc","filename":"a.md","chunk_index":2,"similarity":0.91}]}`)
			}, Config{Token: "tok"})

			res, err := c.SendMessage(context.Background(), SendRequest{
				Message:      "hello",
				Model:        model.ModelGPT4o,
				SystemPrompt: "be brief",
			})
			So(err, ShouldBeNil)
			So(method, ShouldEqual, http.MethodPost)
			So(path, ShouldEqual, "/api/chat")
			So(auth, ShouldEqual, "Bearer tok")
			So(got.Message, ShouldEqual, "hello")
			So(got.Model, ShouldEqual, model.ModelGPT4o)
			So(got.ConversationID, ShouldEqual, "")
			So(got.SystemPrompt, ShouldEqual, "be brief")
			So(res.Content, ShouldEqual, "hi there")
			So(res.ConversationID, ShouldEqual, "c-1")
			So(res.Role, ShouldEqual, model.RoleAssistant)
			So(res.Citations, ShouldHaveLength, 1)
			So(res.Citations[0].ChunkIndex, ShouldEqual, 2)
		})

		Convey("带附件时使用 multipart", func() {
			var fields = map[string]string{}
			var fileNames []string
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				for k, v := range r.MultipartForm.Value {
					fields[k] = v[0]
				}
				for _, fh := range r.MultipartForm.File["files"] {
					fileNames = append(fileNames, fh.Filename)
				}
				_, _ = io.WriteString(w, `{"role":"assistant","content":"ok","conversation_id":"c-9"}`)
			}, Config{})

			_, err := c.SendMessage(context.Background(), SendRequest{
				ConversationID: "c-9",
				Message:        "see files",
				Model:          model.ModelPhi3Mini,
				Files: []File{
					{Name: "a.txt", Data: []byte("alpha")},
					{Name: "b.md", Data: []byte("# beta")},
				},
			})
			So(err, ShouldBeNil)
			So(fields["message"], ShouldEqual, "see files")
			So(fields["conversation_id"], ShouldEqual, "c-9")
			So(fields["model"], ShouldEqual, "phi3:mini")
			So(fileNames, ShouldResemble, []string{"a.txt", "b.md"})
		})

		Convey("非法附件在发请求前被拒绝", func() {
			called := false
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				called = true
			}, Config{})

			_, err := c.SendMessage(context.Background(), SendRequest{
				Message: "x",
				Files:   []File{{Name: "run.exe", Data: []byte("MZ")}},
			})
			So(IsKind(err, KindValidation), ShouldBeTrue)
			So(called, ShouldBeFalse)
		})
	})
}

func TestErrorClassification(t *testing.T) {
	Convey("错误分类", t, func() {
		Convey("4xx/5xx 为 rejected 并带服务端消息", func() {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, `{"code":50201,"message":"upstream model failed","detail":"quota"}`)
			}, Config{})

			_, err := c.SendMessage(context.Background(), SendRequest{Message: "x"})
			var gwErr *Error
			So(err, ShouldHaveSameTypeAs, gwErr)
			So(KindOf(err), ShouldEqual, KindRejected)
			So(err.(*Error).Status, ShouldEqual, http.StatusBadGateway)
			So(err.(*Error).Message, ShouldEqual, "upstream model failed: quota")
		})

		Convey("FastAPI 风格 detail", func() {
			So(errorMessage([]byte(`{"detail":"Chat not found"}`), "404 Not Found"), ShouldEqual, "Chat not found")
			So(errorMessage([]byte(``), "404 Not Found"), ShouldEqual, "404 Not Found")
			So(errorMessage([]byte(`plain failure`), "500"), ShouldEqual, "plain failure")
		})

		Convey("无法解析的响应为 malformed", func() {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `<html>not json</html>`)
			}, Config{})

			_, err := c.ListConversations(context.Background())
			So(IsKind(err, KindMalformed), ShouldBeTrue)
		})

		Convey("超时为 timeout", func() {
			release := make(chan struct{})
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}, Config{Timeout: 50 * time.Millisecond})
			defer close(release)

			start := time.Now()
			_, err := c.ListConversations(context.Background())
			So(IsKind(err, KindTimeout), ShouldBeTrue)
			So(time.Since(start), ShouldBeLessThan, 5*time.Second)
		})

		Convey("连接失败为 unreachable", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			base := srv.URL
			srv.Close()

			c, err := New(Config{BaseURL: base, Timeout: time.Second})
			So(err, ShouldBeNil)
			_, err = c.DeleteConversation(context.Background(), "c-1")
			So(IsKind(err, KindUnreachable), ShouldBeTrue)
		})

		Convey("Health 请求 base url 下的 /health", func() {
			var path string
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			}, Config{})
			So(c.Health(context.Background()), ShouldBeNil)
			So(path, ShouldEqual, "/api/health")
		})

		Convey("调用方取消为 canceled", func() {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			}, Config{})
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
			err := c.Health(ctx)
			So(IsKind(err, KindCanceled), ShouldBeTrue)
		})
	})
}

func TestConversationEndpoints(t *testing.T) {
	Convey("对话接口", t, func() {
		var lastPath, lastQuery, lastMethod, lastBody string
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			lastPath, lastQuery, lastMethod = r.URL.Path, r.URL.RawQuery, r.Method
			b, _ := io.ReadAll(r.Body)
			lastBody = string(b)
			switch {
			case r.URL.Path == "/api/chats" && r.Method == http.MethodGet:
				_, _ = io.WriteString(w, `{"chats":[
					{"_id":"a","title":"First","model":"phi3:mini","created_at":"2024-05-01T10:00:00.123456","updated_at":"2024-05-02T10:00:00Z","system_prompt":"sp"},
					{"id":"b","title":"Second","model":"gpt-4o","created_at":"2024-05-01T09:00:00Z"}]}`)
			case strings.HasPrefix(r.URL.Path, "/api/chats/") && r.Method == http.MethodGet:
				_, _ = io.WriteString(w, `{"messages":[
					{"role":"user","content":"q","timestamp":"2024-05-01T10:00:00Z"},
					{"_id":"m2","role":"assistant","content":"a","model":"phi3:mini","timestamp":1714557600000}]}`)
			default:
				_, _ = io.WriteString(w, `{"success":true,"chat_id":"a"}`)
			}
		}, Config{})
		ctx := context.Background()

		Convey("ListConversations 兼容 _id 与宽松时间", func() {
			chats, err := c.ListConversations(ctx)
			So(err, ShouldBeNil)
			So(chats, ShouldHaveLength, 2)
			So(chats[0].ID, ShouldEqual, "a")
			So(chats[0].SystemPrompt, ShouldEqual, "sp")
			So(chats[0].CreatedAt.Year(), ShouldEqual, 2024)
			So(chats[1].ID, ShouldEqual, "b")
			So(chats[1].UpdatedAt, ShouldEqual, chats[1].CreatedAt)
		})

		Convey("GetHistory 默认 limit 为 50", func() {
			msgs, err := c.GetHistory(ctx, "a b", 0)
			So(err, ShouldBeNil)
			So(lastPath, ShouldEqual, "/api/chats/a b")
			So(lastQuery, ShouldEqual, "limit=50")
			So(msgs, ShouldHaveLength, 2)
			So(msgs[1].ID, ShouldEqual, "m2")
			So(msgs[1].ChatID, ShouldEqual, "a b")
			So(msgs[1].Timestamp.UnixMilli(), ShouldEqual, 1714557600000)
		})

		Convey("DeleteConversation", func() {
			ok, err := c.DeleteConversation(ctx, "a")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(lastMethod, ShouldEqual, http.MethodDelete)
		})

		Convey("UpdateSystemPrompt", func() {
			ok, err := c.UpdateSystemPrompt(ctx, "a", "pirate")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(lastMethod, ShouldEqual, http.MethodPatch)
			So(lastPath, ShouldEqual, "/api/chats/a/system-prompt")
			So(lastBody, ShouldContainSubstring, `"system_prompt":"pirate"`)
		})

		Convey("SaveMessage 与 CreateConversation", func() {
			So(c.SaveMessage(ctx, "a", model.RoleUser, "hello"), ShouldBeNil)
			So(lastPath, ShouldEqual, "/api/chats/a/messages")

			id, err := c.CreateConversation(ctx, model.Chat{ID: "a", Title: "t", Model: model.ModelGPT4o})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "a")
			So(lastBody, ShouldContainSubstring, `"id":"a"`)
		})

		Convey("缺少 id 是校验错误", func() {
			_, err := c.GetHistory(ctx, "", 10)
			So(IsKind(err, KindValidation), ShouldBeTrue)
		})
	})
}

func TestToolEndpoints(t *testing.T) {
	Convey("文档、抓取与标题", t, func() {
		var docQuery string
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/upload-document":
				_ = r.ParseMultipartForm(1 << 20)
				fh := r.MultipartForm.File["file"][0]
				_ = json.NewEncoder(w).Encode(model.UploadDocumentResponse{
					Success: true, Filename: fh.Filename, ChunkCount: 3,
				})
			case "/api/scrape-url":
				_, _ = io.WriteString(w, `{"success":true,"url":"https://example.com","title":"Example","content":"Title: Example\n\nbody"}`)
			case "/api/generate-title":
				_, _ = io.WriteString(w, `{"title":"  Trip planning  "}`)
			case "/api/documents":
				docQuery = r.URL.Query().Get("conversation_id")
				_, _ = io.WriteString(w, `{"documents":[{"id":"d1","filename":"notes.md","chunk_count":3}]}`)
			}
		}, Config{})
		ctx := context.Background()

		res, err := c.UploadDocument(ctx, File{Name: "notes.md", Data: []byte("# notes")}, "c1")
		So(err, ShouldBeNil)
		So(res.Filename, ShouldEqual, "notes.md")
		So(res.ChunkCount, ShouldEqual, 3)

		_, err = c.UploadDocument(ctx, File{Name: "scan.pdf", Data: []byte("%PDF")}, "")
		So(IsKind(err, KindValidation), ShouldBeTrue)

		docs, err := c.ListDocuments(ctx, "c1")
		So(err, ShouldBeNil)
		So(docs, ShouldHaveLength, 1)
		So(docQuery, ShouldEqual, "c1")

		page, err := c.ScrapeURL(ctx, "https://example.com")
		So(err, ShouldBeNil)
		So(page.Title, ShouldEqual, "Example")

		_, err = c.ScrapeURL(ctx, "ftp://example.com")
		So(IsKind(err, KindValidation), ShouldBeTrue)

		title, err := c.GenerateTitle(ctx, "plan a trip", model.ModelGPT4o)
		So(err, ShouldBeNil)
		So(title, ShouldEqual, "Trip planning")
	})
}

func TestValidateFiles(t *testing.T) {
	Convey("附件校验", t, func() {
		So(ValidateFiles(nil), ShouldBeNil)
		So(ValidateFiles([]File{{Name: "a.PNG", Data: []byte{1}}}), ShouldBeNil)
		So(ValidateFiles([]File{{Name: "a.txt"}}), ShouldNotBeNil)
		So(ValidateFiles([]File{{Name: "big.txt", Data: make([]byte, MaxFileSize+1)}}), ShouldNotBeNil)

		many := make([]File, MaxFiles+1)
		for i := range many {
			many[i] = File{Name: "a.txt", Data: []byte("x")}
		}
		So(ValidateFiles(many), ShouldNotBeNil)
	})
}
