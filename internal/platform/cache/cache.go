// Package cache は IdP のトークンなど短命な値を保持するキャッシュを提供します。
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// ErrNotFound はキーが存在しない、または期限切れの場合に返されます。
var ErrNotFound = errors.New("cache: key not found")

// Cache はバックエンドに依存しないキャッシュ操作を定義します。
type Cache interface {
	// Get は値を取得します。存在しない場合は ErrNotFound を返します。
	Get(ctx context.Context, key string) (string, error)
	// Set は値を保存します。ttl が 0 の場合は期限なしです。
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New は設定に応じたキャッシュを生成します。
func New(cfg config.CacheConfig) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(cfg.Prefix), nil
	case DriverRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
