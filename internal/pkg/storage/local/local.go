package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"multichat/internal/pkg/storage"
)

// LocalStorage 本地文件系统存储
type LocalStorage struct {
	basePath string // 基础路径
	baseURL  string // 基础URL（用于生成访问URL）
}

// NewLocalStorage 创建本地文件系统存储
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	// 确保基础路径存在
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Upload 上传文件（服务端上传）
func (s *LocalStorage) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return "", err
	}

	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(fullPath) // 删除失败的文件
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return s.getFileURL(key), nil
}

// Download 下载文件
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // 文件不存在，认为删除成功
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetStorageType 获取存储类型
func (s *LocalStorage) GetStorageType() string {
	return string(storage.StorageTypeLocal)
}

// path 把 key 映射到 basePath 下，拒绝跳出 basePath 的 key
func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

// getFileURL 获取文件URL
func (s *LocalStorage) getFileURL(key string) string {
	urlKey := strings.ReplaceAll(key, "\\", "/")
	if s.baseURL == "" {
		return "file://" + filepath.ToSlash(filepath.Join(s.basePath, urlKey))
	}
	return fmt.Sprintf("%s/%s", s.baseURL, urlKey)
}
