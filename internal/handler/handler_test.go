package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"multichat/internal/model"
	"multichat/internal/pkg/ctxutil"
	"multichat/internal/service"
)

type stubChats struct {
	lastUser string
	lastReq  *model.ChatRequest
	chatErr  error
	chats    []model.Chat
	deleted  bool
}

func (s *stubChats) Chat(ctx context.Context, userID string, req *model.ChatRequest) (*model.ChatResponse, error) {
	s.lastUser, s.lastReq = userID, req
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &model.ChatResponse{Role: model.RoleAssistant, Content: "hi", Response: "hi", ConversationID: "c1", ModelUsed: model.DefaultModel}, nil
}

func (s *stubChats) GenerateTitle(ctx context.Context, content string, id model.ModelID) (string, error) {
	return "Title", nil
}

func (s *stubChats) ListChats(ctx context.Context, userID string, limit int) ([]model.Chat, error) {
	s.lastUser = userID
	return s.chats, nil
}

func (s *stubChats) CreateChat(ctx context.Context, userID string, req *model.CreateChatRequest) (string, error) {
	if !req.Model.Valid() {
		return "", service.ErrInvalidModel
	}
	return "new-id", nil
}

func (s *stubChats) History(ctx context.Context, userID, chatID string, limit int) ([]model.StoredMessage, error) {
	if chatID != "c1" {
		return nil, fmt.Errorf("%w: %s", service.ErrChatNotFound, chatID)
	}
	return nil, nil
}

func (s *stubChats) SaveMessage(ctx context.Context, userID, chatID string, req *model.SaveMessageRequest) error {
	return nil
}

func (s *stubChats) DeleteChat(ctx context.Context, userID, chatID string) (bool, error) {
	return s.deleted, nil
}

func (s *stubChats) UpdateSystemPrompt(ctx context.Context, userID, chatID, prompt string) (bool, error) {
	return chatID == "c1", nil
}

type stubDocs struct {
	last *service.UploadInput
}

func (s *stubDocs) Upload(ctx context.Context, in *service.UploadInput) (*model.UploadDocumentResponse, error) {
	s.last = in
	if in.Filename == "a.pdf" {
		return nil, service.ErrUnsupportedDocument
	}
	return &model.UploadDocumentResponse{Success: true, Filename: in.Filename, ChunkCount: 1}, nil
}

func (s *stubDocs) List(ctx context.Context, userID, conversationID string) ([]model.Document, error) {
	return nil, nil
}

type stubScraper struct{}

func (stubScraper) Scrape(ctx context.Context, rawURL string) (*model.ScrapeResponse, error) {
	if rawURL == "bad" {
		return nil, service.ErrInvalidURL
	}
	return nil, fmt.Errorf("%w: status 500", service.ErrUpstream)
}

func newTestEngine(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), u))
		}
	})
	api := r.Group("/api")
	api.POST("/chat", h.Chat)
	api.GET("/chats", h.ListChats)
	api.POST("/chats", h.CreateChat)
	api.GET("/chats/:id", h.History)
	api.POST("/chats/:id/messages", h.SaveMessage)
	api.DELETE("/chats/:id", h.DeleteChat)
	api.PATCH("/chats/:id/system-prompt", h.UpdateSystemPrompt)
	api.POST("/upload-document", h.UploadDocument)
	api.GET("/documents", h.ListDocuments)
	api.POST("/scrape-url", h.ScrapeURL)
	api.POST("/generate-title", h.GenerateTitle)
	api.GET("/models", h.Models)
	return r
}

func doJSON(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func multipartBody(field, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, _ := mw.CreateFormFile(field, filename)
	_, _ = fw.Write(data)
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func TestHandler(t *testing.T) {
	Convey("HTTP 接口", t, func() {
		chats := &stubChats{}
		docs := &stubDocs{}
		h := NewHandler(Options{Chats: chats, Documents: docs, Scraper: stubScraper{}, MaxUploadBytes: 64})
		r := newTestEngine(h)

		Convey("POST /chat JSON", func() {
			w, body := doJSON(r, http.MethodPost, "/api/chat", `{"message":"hello","model":"gpt-4o"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["content"], ShouldEqual, "hi")
			So(body["response"], ShouldEqual, "hi")
			So(body["conversation_id"], ShouldEqual, "c1")
			So(chats.lastUser, ShouldEqual, model.AnonymousUserID)
			So(chats.lastReq.Model, ShouldEqual, model.ModelGPT4o)
		})

		Convey("POST /chat 缺少 message", func() {
			w, body := doJSON(r, http.MethodPost, "/api/chat", `{"model":"gpt-4o"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, float64(40001))
		})

		Convey("POST /chat 错误映射", func() {
			cases := []struct {
				err    error
				status int
				code   float64
			}{
				{service.ErrInvalidModel, http.StatusBadRequest, 40002},
				{fmt.Errorf("%w: timeout", service.ErrUpstream), http.StatusBadGateway, 50201},
				{fmt.Errorf("boom"), http.StatusInternalServerError, 50001},
			}
			for _, tc := range cases {
				chats.chatErr = tc.err
				w, body := doJSON(r, http.MethodPost, "/api/chat", `{"message":"x"}`)
				So(w.Code, ShouldEqual, tc.status)
				So(body["code"], ShouldEqual, tc.code)
			}
		})

		Convey("POST /chat multipart 附件", func() {
			buf, ct := multipartBody("files", "notes.txt", []byte("attached text"), map[string]string{"message": "read", "conversation_id": "c1"})
			req := httptest.NewRequest(http.MethodPost, "/api/chat", buf)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("X-Test-User", "alice")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(chats.lastUser, ShouldEqual, "alice")
			So(chats.lastReq.ConversationID, ShouldEqual, "c1")
			So(chats.lastReq.Attachments, ShouldHaveLength, 1)
			So(string(chats.lastReq.Attachments[0].Data), ShouldEqual, "attached text")
			So(chats.lastReq.Attachments[0].ContentType, ShouldStartWith, "text/plain")
		})

		Convey("POST /chat 附件超限", func() {
			buf, ct := multipartBody("files", "big.txt", bytes.Repeat([]byte("a"), 100), map[string]string{"message": "read"})
			req := httptest.NewRequest(http.MethodPost, "/api/chat", buf)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
		})

		Convey("对话管理", func() {
			chats.chats = []model.Chat{{ID: "c1", Title: "t"}}
			w, body := doJSON(r, http.MethodGet, "/api/chats?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			list := body["chats"].([]any)
			So(list, ShouldHaveLength, 1)
			first := list[0].(map[string]any)
			So(first["_id"], ShouldEqual, "c1")
			So(first["id"], ShouldEqual, "c1")

			w, _ = doJSON(r, http.MethodGet, "/api/chats?limit=abc", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w, body = doJSON(r, http.MethodPost, "/api/chats", `{"title":"x","model":"gpt-4o"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(body["chat_id"], ShouldEqual, "new-id")
			So(body["success"], ShouldEqual, true)

			w, body = doJSON(r, http.MethodPost, "/api/chats", `{"model":"nope"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, float64(40002))

			w, body = doJSON(r, http.MethodGet, "/api/chats/c1?limit=10", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["messages"], ShouldResemble, []any{})

			w, body = doJSON(r, http.MethodGet, "/api/chats/missing", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(body["code"], ShouldEqual, float64(40401))

			w, body = doJSON(r, http.MethodPost, "/api/chats/c1/messages", `{"role":"user","content":"x"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, true)

			w, body = doJSON(r, http.MethodDelete, "/api/chats/c1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, false)

			w, body = doJSON(r, http.MethodPatch, "/api/chats/c1/system-prompt", `{"system_prompt":""}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, true)
		})

		Convey("上传文档", func() {
			buf, ct := multipartBody("file", "guide.md", []byte("# hi"), map[string]string{"conversation_id": "c9"})
			req := httptest.NewRequest(http.MethodPost, "/api/upload-document", buf)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(docs.last.ConversationID, ShouldEqual, "c9")
			So(string(docs.last.Data), ShouldEqual, "# hi")

			buf, ct = multipartBody("file", "a.pdf", []byte("%PDF"), nil)
			req = httptest.NewRequest(http.MethodPost, "/api/upload-document", buf)
			req.Header.Set("Content-Type", ct)
			w = httptest.NewRecorder()
			r.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w, _ = doJSON(r, http.MethodPost, "/api/upload-document", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w, body := doJSON(r, http.MethodGet, "/api/documents", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["documents"], ShouldResemble, []any{})
		})

		Convey("工具接口", func() {
			w, body := doJSON(r, http.MethodPost, "/api/scrape-url", `{"url":"bad"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, float64(40002))

			w, _ = doJSON(r, http.MethodPost, "/api/scrape-url", `{"url":"https://down.example"}`)
			So(w.Code, ShouldEqual, http.StatusBadGateway)

			w, body = doJSON(r, http.MethodPost, "/api/generate-title", `{"content":"plan a trip"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["title"], ShouldEqual, "Title")

			w, body = doJSON(r, http.MethodGet, "/api/models", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["models"], ShouldResemble, []any{})
		})
	})
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	Convey("健康检查", t, func() {
		gin.SetMode(gin.TestMode)
		ok := pingFunc(func(context.Context) error { return nil })
		down := pingFunc(func(context.Context) error { return fmt.Errorf("connection refused") })

		r := gin.New()
		healthy := NewHealthHandler(map[string]Pinger{"mongo": ok, "redis": nil})
		broken := NewHealthHandler(map[string]Pinger{"mongo": ok, "redis": down})
		r.GET("/health", healthy.Health)
		r.GET("/ready", healthy.Ready)
		r.GET("/ready-broken", broken.Ready)

		w, _ := doJSON(r, http.MethodGet, "/health", "")
		So(w.Code, ShouldEqual, http.StatusOK)

		w, body := doJSON(r, http.MethodGet, "/ready", "")
		So(w.Code, ShouldEqual, http.StatusOK)
		So(body["checks"], ShouldResemble, map[string]any{"mongo": "ok"})

		w, body = doJSON(r, http.MethodGet, "/ready-broken", "")
		So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		So(body["checks"].(map[string]any)["redis"], ShouldEqual, "connection refused")
	})
}
