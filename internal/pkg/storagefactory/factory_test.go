package storagefactory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"multichat/internal/config"
	"multichat/internal/pkg/storage"
)

func TestNewStorage(t *testing.T) {
	Convey("按配置创建存储", t, func() {
		ctx := context.Background()

		Convey("缺少 local 配置", func() {
			_, err := NewStorage(ctx, &config.StorageConfig{Type: "local"})
			So(err, ShouldNotBeNil)
		})

		Convey("缺少 oss 配置", func() {
			_, err := NewStorage(ctx, &config.StorageConfig{Type: "oss"})
			So(err, ShouldNotBeNil)
		})

		Convey("不支持的类型", func() {
			_, err := NewStorage(ctx, &config.StorageConfig{Type: "s3"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unsupported storage type")
		})
	})
}

func TestLocalStorage(t *testing.T) {
	Convey("本地存储读写", t, func() {
		ctx := context.Background()
		s, err := NewStorage(ctx, &config.StorageConfig{
			Type:  "local",
			Local: &config.LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8000/files/"},
		})
		So(err, ShouldBeNil)
		So(s.GetStorageType(), ShouldEqual, string(storage.StorageTypeLocal))

		key := storage.DocumentKey("anonymous", "doc-1", "notes.md")
		url, err := s.Upload(ctx, key, strings.NewReader("# notes"), "text/markdown")
		So(err, ShouldBeNil)
		So(url, ShouldEqual, "http://localhost:8000/files/documents/anonymous/doc-1/notes.md")

		ok, err := s.Exists(ctx, key)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		rc, err := s.Download(ctx, key)
		So(err, ShouldBeNil)
		data, _ := io.ReadAll(rc)
		rc.Close()
		So(string(data), ShouldEqual, "# notes")

		So(s.Delete(ctx, key), ShouldBeNil)
		So(s.Delete(ctx, key), ShouldBeNil)
		ok, _ = s.Exists(ctx, key)
		So(ok, ShouldBeFalse)

		_, err = s.Download(ctx, key)
		So(errors.Is(err, storage.ErrNotFound), ShouldBeTrue)

		Convey("拒绝越界 key", func() {
			_, err := s.Upload(ctx, "../escape.txt", strings.NewReader("x"), "text/plain")
			So(err, ShouldNotBeNil)
		})
	})
}
