package checkpoint

import (
	"context"
	"fmt"

	"newsmatch/internal/config"
	"newsmatch/internal/storage"
)

// Open returns the store selected by cfg. The S3 client is only required for
// the s3 backend.
func Open(ctx context.Context, cfg config.CheckpointConfig, s3 *storage.S3) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "file":
		return NewFileStore(cfg.Directory), nil
	case "redis":
		store, err := NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL.Duration,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		if s3 == nil {
			return nil, fmt.Errorf("%w: s3 checkpoint backend needs storage settings", config.ErrConfig)
		}
		return NewS3Store(s3, cfg.S3Bucket, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("%w: unknown checkpoint backend %q", config.ErrConfig, cfg.Backend)
	}
}
