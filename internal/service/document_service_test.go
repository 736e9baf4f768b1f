package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"multichat/internal/pkg/textproc"
)

func TestDocumentUpload(t *testing.T) {
	Convey("文档上传", t, func() {
		ctx := context.Background()
		repo := &fakeDocuments{}
		svc := NewDocumentService(repo, nil, nil, textproc.NewTokenizer(), DocumentOptions{ChunkSize: 200, ChunkOverlap: 20, MaxUploadBytes: 4096})

		Convey("markdown 转纯文本后分块", func() {
			body := "# Guide\n\n" + strings.Repeat("Step one explains the setup. ", 20)
			resp, err := svc.Upload(ctx, &UploadInput{UserID: testUser, Filename: "dir/guide.md", Data: []byte(body)})
			So(err, ShouldBeNil)
			So(resp.Success, ShouldBeTrue)
			So(resp.Filename, ShouldEqual, "guide.md")
			So(resp.ChunkCount, ShouldBeGreaterThan, 1)
			So(resp.Message, ShouldStartWith, "Document processed successfully into")

			So(repo.docs, ShouldHaveLength, 1)
			So(repo.docs[0].Embedded, ShouldBeFalse)
			So(repo.chunks, ShouldHaveLength, resp.ChunkCount)
			So(repo.chunks[0].Content, ShouldNotContainSubstring, "#")
			So(repo.chunks[0].Terms, ShouldContain, "setup")
		})

		Convey("拒绝的输入", func() {
			_, err := svc.Upload(ctx, &UploadInput{UserID: testUser, Filename: "a.pdf", Data: []byte("x")})
			So(errors.Is(err, ErrUnsupportedDocument), ShouldBeTrue)

			_, err = svc.Upload(ctx, &UploadInput{UserID: testUser, Filename: "big.txt", Data: make([]byte, 5000)})
			So(errors.Is(err, ErrDocumentTooLarge), ShouldBeTrue)

			_, err = svc.Upload(ctx, &UploadInput{UserID: testUser, Filename: "bin.txt", Data: []byte{0xff, 0xfe, 0xfd}})
			So(errors.Is(err, ErrUnsupportedDocument), ShouldBeTrue)

			_, err = svc.Upload(ctx, &UploadInput{UserID: testUser, Filename: "blank.txt", Data: []byte(" \n\n ")})
			So(errors.Is(err, ErrEmptyDocument), ShouldBeTrue)

			So(repo.docs, ShouldBeEmpty)
		})
	})
}

func TestDocumentSearch(t *testing.T) {
	Convey("文档检索", t, func() {
		ctx := context.Background()
		repo := &fakeDocuments{}

		upload := func(svc *DocumentService, conv, name, body string) {
			_, err := svc.Upload(ctx, &UploadInput{UserID: testUser, ConversationID: conv, Filename: name, Data: []byte(body)})
			So(err, ShouldBeNil)
		}

		Convey("向量检索按相似度排序", func() {
			svc := NewDocumentService(repo, nil, &keywordEmbedder{}, textproc.NewTokenizer(), DocumentOptions{TopK: 2, MinSimilarity: 0.5})
			upload(svc, "", "banana.txt", "Banana bread needs ripe bananas.")
			upload(svc, "", "apple.txt", "Apple pie uses apple slices.")
			upload(svc, "", "mix.txt", "Apple and cherry tart.")
			So(repo.docs[0].Embedded, ShouldBeTrue)

			hits, err := svc.Search(ctx, testUser, "", "how to bake with apple")
			So(err, ShouldBeNil)
			So(hits, ShouldHaveLength, 2)
			So(hits[0].Citation.Filename, ShouldEqual, "apple.txt")
			So(hits[0].Citation.Similarity, ShouldAlmostEqual, 1.0, 1e-6)
			So(hits[1].Citation.Filename, ShouldEqual, "mix.txt")
		})

		Convey("向量化失败时退回分词检索", func() {
			svc := NewDocumentService(repo, nil, &keywordEmbedder{err: errBoom}, textproc.NewTokenizer(), DocumentOptions{TopK: 3})
			upload(svc, "", "orchard.txt", "The orchard grows apples and pears.")
			upload(svc, "", "garage.txt", "The garage holds two bicycles.")
			So(repo.docs[0].Embedded, ShouldBeFalse)

			hits, err := svc.Search(ctx, testUser, "", "orchard pears")
			So(err, ShouldBeNil)
			So(hits, ShouldHaveLength, 1)
			So(hits[0].Citation.Filename, ShouldEqual, "orchard.txt")
			So(hits[0].Citation.Similarity, ShouldEqual, 1.0)
		})

		Convey("对话范围: 本对话加全局文档", func() {
			svc := NewDocumentService(repo, nil, nil, textproc.NewTokenizer(), DocumentOptions{TopK: 5})
			upload(svc, "c1", "mine.txt", "quarterly budget numbers")
			upload(svc, "c2", "other.txt", "quarterly budget forecast")
			upload(svc, "", "global.txt", "quarterly budget policy")

			hits, err := svc.Search(ctx, testUser, "c1", "quarterly budget")
			So(err, ShouldBeNil)
			names := []string{}
			for _, h := range hits {
				names = append(names, h.Citation.Filename)
			}
			So(names, ShouldContain, "mine.txt")
			So(names, ShouldContain, "global.txt")
			So(names, ShouldNotContain, "other.txt")

			docs, err := svc.List(ctx, testUser, "c1")
			So(err, ShouldBeNil)
			So(docs, ShouldHaveLength, 2)

			So(svc.DeleteByConversation(ctx, testUser, "c1"), ShouldBeNil)
			docs, _ = svc.List(ctx, testUser, "c1")
			So(docs, ShouldHaveLength, 1)
		})

		Convey("没有可用词时不检索", func() {
			svc := NewDocumentService(repo, nil, nil, textproc.NewTokenizer(), DocumentOptions{})
			hits, err := svc.Search(ctx, testUser, "", "  ")
			So(err, ShouldBeNil)
			So(hits, ShouldBeEmpty)
		})
	})
}

func TestBuildContextPrompt(t *testing.T) {
	Convey("上下文提示词", t, func() {
		hits := []SearchHit{
			{Content: "alpha"},
			{Content: "beta"},
		}
		hits[0].Citation.Filename = "a.md"
		hits[1].Citation.Filename = "b.txt"
		prompt := BuildContextPrompt(hits, "question?")
		So(prompt, ShouldContainSubstring, "Available Context:\n[Document Reference 1: a.md]\nalpha\n\n[Document Reference 2: b.txt]\nbeta")
		So(prompt, ShouldContainSubstring, "User Query: question?")
		So(prompt, ShouldEndWith, "Please provide a comprehensive and helpful response:")
	})
}

func TestScrape(t *testing.T) {
	Convey("网页抓取", t, func() {
		ctx := context.Background()
		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.UserAgent()
			if r.URL.Path == "/missing" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><head><title>Example Page</title><script>var x=1;</script></head>
<body><h1>Heading</h1><p>First   paragraph.</p></body></html>`))
		}))
		defer srv.Close()

		svc := NewScrapeService(srv.Client())

		Convey("提取标题和正文", func() {
			resp, err := svc.Scrape(ctx, srv.URL+"/page")
			So(err, ShouldBeNil)
			So(resp.Success, ShouldBeTrue)
			So(resp.Title, ShouldEqual, "Example Page")
			So(resp.Content, ShouldStartWith, "Title: Example Page\n\n")
			So(resp.Content, ShouldContainSubstring, "Heading")
			So(resp.Content, ShouldContainSubstring, "First paragraph.")
			So(resp.Content, ShouldNotContainSubstring, "var x")
			So(gotUA, ShouldContainSubstring, "Mozilla/5.0")
		})

		Convey("非法地址", func() {
			for _, u := range []string{"", "ftp://x.io/file", "not a url", "http://"} {
				_, err := svc.Scrape(ctx, u)
				So(errors.Is(err, ErrInvalidURL), ShouldBeTrue)
			}
		})

		Convey("上游错误状态", func() {
			_, err := svc.Scrape(ctx, srv.URL+"/missing")
			So(errors.Is(err, ErrUpstream), ShouldBeTrue)
		})
	})
}
