package storagefactory

import (
	"context"
	"errors"
	"fmt"

	"multichat/internal/config"
	"multichat/internal/pkg/storage"
	"multichat/internal/pkg/storage/local"
	"multichat/internal/pkg/storage/oss"
)

const probeKey = "documents/.probe"

// NewStorage 按 storage.type 创建文档原件存储，并探测一次后端是否可访问
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (storage.Storage, error) {
	st, err := build(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := st.Exists(ctx, probeKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("probe %s storage: %w", st.GetStorageType(), err)
	}
	return st, nil
}

func build(cfg *config.StorageConfig) (storage.Storage, error) {
	switch storage.StorageType(cfg.Type) {
	case storage.StorageTypeLocal:
		if cfg.Local == nil {
			return nil, fmt.Errorf("storage.local is required for local storage")
		}
		return local.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
	case storage.StorageTypeOSS:
		if cfg.OSS == nil {
			return nil, fmt.Errorf("storage.oss is required for oss storage")
		}
		return oss.NewOSSStorage(
			cfg.OSS.Endpoint,
			cfg.OSS.Bucket,
			cfg.OSS.AccessKeyID,
			cfg.OSS.AccessKeySecret,
			cfg.OSS.Prefix,
		)
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", cfg.Type)
	}
}
