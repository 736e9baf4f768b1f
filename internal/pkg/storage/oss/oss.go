package oss

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"multichat/internal/pkg/storage"
)

// OSSStorage 阿里云OSS存储
type OSSStorage struct {
	bucket     *oss.Bucket
	bucketName string
	prefix     string
}

// NewOSSStorage 创建阿里云OSS存储
func NewOSSStorage(endpoint, bucketName, accessKeyID, accessKeySecret, prefix string) (*OSSStorage, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &OSSStorage{
		bucket:     bucket,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// Upload 上传文件（服务端上传）
func (s *OSSStorage) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	objectKey := s.prefix + key
	err := s.bucket.PutObject(objectKey, data, oss.ContentType(contentType), oss.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	url := fmt.Sprintf("https://%s.%s/%s", s.bucketName, s.bucket.Client.Config.Endpoint, objectKey)
	return url, nil
}

// Download 下载文件
func (s *OSSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(s.prefix+key, oss.WithContext(ctx))
	if err != nil {
		if svcErr, ok := err.(oss.ServiceError); ok && svcErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return body, nil
}

// Delete 删除文件
func (s *OSSStorage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(s.prefix+key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists 检查文件是否存在
func (s *OSSStorage) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.IsObjectExist(s.prefix+key, oss.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return exists, nil
}

// GetStorageType 获取存储类型
func (s *OSSStorage) GetStorageType() string {
	return string(storage.StorageTypeOSS)
}
