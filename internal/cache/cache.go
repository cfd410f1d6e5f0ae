// Package cache provides optional Redis caching for the list endpoints.
// Cache failures are always treated as misses; the store stays the source
// of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/config"
	"github.com/spatial-annotator/backend/internal/models"
)

const (
	annotationsKey = "annotations:all"
	pointCloudsKey = "pointclouds:all"

	// Default TTL for cached lists
	defaultTTL = 5 * time.Minute
)

// Cache defines the interface for list caching. Only unfiltered lists are
// cached; every write must invalidate the corresponding list so a create
// followed by a list always observes the new record.
type Cache interface {
	// GetAnnotations retrieves the cached annotation list.
	GetAnnotations(ctx context.Context) ([]models.Annotation, bool, error)

	// SetAnnotations stores the annotation list.
	SetAnnotations(ctx context.Context, annotations []models.Annotation) error

	// InvalidateAnnotations drops the cached annotation list.
	InvalidateAnnotations(ctx context.Context) error

	// GetPointClouds retrieves the cached point cloud list.
	GetPointClouds(ctx context.Context) ([]models.PointCloud, bool, error)

	// SetPointClouds stores the point cloud list.
	SetPointClouds(ctx context.Context, pointClouds []models.PointCloud) error

	// InvalidatePointClouds drops the cached point cloud list.
	InvalidatePointClouds(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// New returns a Redis cache when CACHE_URL is configured, otherwise a no-op
// cache.
func New(cfg *config.Config, logger *zap.Logger) (Cache, error) {
	if cfg.CacheURL == "" {
		return NoopCache{}, nil
	}
	return NewRedisCache(cfg, logger)
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(cfg *config.Config, logger *zap.Logger) (Cache, error) {
	opt, err := redis.ParseURL(cfg.CacheURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	logger.Info("Connected to Redis cache")

	return &RedisCache{
		client: client,
		logger: logger,
		ttl:    defaultTTL,
	}, nil
}

// GetAnnotations retrieves the cached annotation list.
func (c *RedisCache) GetAnnotations(ctx context.Context) ([]models.Annotation, bool, error) {
	var annotations []models.Annotation
	found, err := c.get(ctx, annotationsKey, &annotations)
	return annotations, found, err
}

// SetAnnotations stores the annotation list.
func (c *RedisCache) SetAnnotations(ctx context.Context, annotations []models.Annotation) error {
	return c.set(ctx, annotationsKey, annotations)
}

// InvalidateAnnotations drops the cached annotation list.
func (c *RedisCache) InvalidateAnnotations(ctx context.Context) error {
	return c.invalidate(ctx, annotationsKey)
}

// GetPointClouds retrieves the cached point cloud list.
func (c *RedisCache) GetPointClouds(ctx context.Context) ([]models.PointCloud, bool, error) {
	var pointClouds []models.PointCloud
	found, err := c.get(ctx, pointCloudsKey, &pointClouds)
	return pointClouds, found, err
}

// SetPointClouds stores the point cloud list.
func (c *RedisCache) SetPointClouds(ctx context.Context, pointClouds []models.PointCloud) error {
	return c.set(ctx, pointCloudsKey, pointClouds)
}

// InvalidatePointClouds drops the cached point cloud list.
func (c *RedisCache) InvalidatePointClouds(ctx context.Context) error {
	return c.invalidate(ctx, pointCloudsKey)
}

func (c *RedisCache) get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return false, nil // Treat errors as cache miss
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("Failed to unmarshal cached list", zap.String("key", key), zap.Error(err))
		return false, nil
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	return true, nil
}

func (c *RedisCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal list for cache", zap.String("key", key), zap.Error(err))
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
		return err
	}

	c.logger.Debug("Cached list", zap.String("key", key))
	return nil
}

func (c *RedisCache) invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cache", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	c.logger.Info("Closing Redis cache connection")
	return c.client.Close()
}

// NoopCache is used when no cache is configured. Every read is a miss.
type NoopCache struct{}

func (NoopCache) GetAnnotations(ctx context.Context) ([]models.Annotation, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetAnnotations(ctx context.Context, annotations []models.Annotation) error {
	return nil
}

func (NoopCache) InvalidateAnnotations(ctx context.Context) error { return nil }

func (NoopCache) GetPointClouds(ctx context.Context) ([]models.PointCloud, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetPointClouds(ctx context.Context, pointClouds []models.PointCloud) error {
	return nil
}

func (NoopCache) InvalidatePointClouds(ctx context.Context) error { return nil }

func (NoopCache) Close() error { return nil }
