package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// Storage 存储接口，保存上传文档的原始文件
type Storage interface {
	// Upload 上传文件，返回可访问地址
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 下载文件
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除文件，文件不存在不算错误
	Delete(ctx context.Context, key string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// DocumentKey 文档原件的存储 key: documents/<user>/<document id>/<filename>
func DocumentKey(userID, documentID, filename string) string {
	return "documents/" + userID + "/" + documentID + "/" + filename
}
