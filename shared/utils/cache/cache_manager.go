package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"backoffice-backend/shared/config"
)

type CacheManager struct {
	client *redis.Client
	prefix string
}

var (
	globalCacheManager *CacheManager
	initOnce           sync.Mutex

	DefaultTTL     = 30 * time.Minute
	DictOptionsTTL = 1 * time.Hour
	RegionLevelTTL = 2 * time.Hour

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of cache lookups broken down by key space and hit/miss.",
	}, []string{"space", "result"})
)

// NewCacheManager wraps an existing redis client. Keys are namespaced with prefix.
func NewCacheManager(client *redis.Client, prefix string) *CacheManager {
	return &CacheManager{client: client, prefix: prefix}
}

// InitCacheManager initializes the global cache manager
func InitCacheManager() error {
	cfg := config.GetConfig()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	globalCacheManager = NewCacheManager(client, "backoffice:")
	logrus.WithFields(logrus.Fields{"addr": cfg.Redis.Addr(), "db": cfg.Redis.DB}).
		Info("redis cache manager initialized")
	return nil
}

// GetCacheManager returns the global cache manager instance, or nil when
// redis is unreachable.
func GetCacheManager() *CacheManager {
	initOnce.Lock()
	defer initOnce.Unlock()
	if globalCacheManager == nil {
		if err := InitCacheManager(); err != nil {
			logrus.WithError(err).Warn("cache manager unavailable, continuing without cache")
			return nil
		}
	}
	return globalCacheManager
}

func DictOptionsKey(dictCode string) string {
	return "dict:options:" + dictCode
}

func RegionLevelKey(pid int64) string {
	return fmt.Sprintf("region:level:%d", pid)
}

func space(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// GetJSON loads key into dest. A miss reports false with a nil error.
func (cm *CacheManager) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if cm == nil || cm.client == nil {
		return false, nil
	}

	result, err := cm.client.Get(ctx, cm.prefix+key).Bytes()
	if err == redis.Nil {
		cacheRequests.WithLabelValues(space(key), "miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(result, dest); err != nil {
		// A corrupt entry is a miss; it will be overwritten.
		cacheRequests.WithLabelValues(space(key), "miss").Inc()
		return false, nil
	}
	cacheRequests.WithLabelValues(space(key), "hit").Inc()
	return true, nil
}

// SetJSON stores value under key for ttl.
func (cm *CacheManager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if cm == nil || cm.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := cm.client.Set(ctx, cm.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Invalidate deletes every key matching any of patterns.
func (cm *CacheManager) Invalidate(ctx context.Context, patterns ...string) error {
	if cm == nil || cm.client == nil {
		return nil
	}
	for _, p := range patterns {
		if err := cm.invalidateByPattern(ctx, cm.prefix+p); err != nil {
			return err
		}
	}
	return nil
}

// invalidateByPattern invalidates cache entries matching a pattern
func (cm *CacheManager) invalidateByPattern(ctx context.Context, pattern string) error {
	iter := cm.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	if len(keys) > 0 {
		if err := cm.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
		logrus.WithFields(logrus.Fields{"count": len(keys), "pattern": pattern}).Debug("cache invalidated")
	}

	return nil
}

// Ping checks the redis connection.
func (cm *CacheManager) Ping(ctx context.Context) error {
	if cm == nil || cm.client == nil {
		return fmt.Errorf("cache manager not initialized")
	}
	return cm.client.Ping(ctx).Err()
}

// Close closes the cache manager connection
func (cm *CacheManager) Close() error {
	if cm != nil && cm.client != nil {
		return cm.client.Close()
	}
	return nil
}
