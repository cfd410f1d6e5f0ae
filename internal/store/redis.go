package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/config"
	"github.com/spatial-annotator/backend/internal/models"
)

// updateTextScript performs the conditional write for annotation updates:
// the existence check, the text and updatedAt mutation and the write back
// happen in one atomic step inside Redis. A concurrent delete that wins the
// race leaves the loser observing a missing id.
var updateTextScript = redis.NewScript(`
local doc = redis.call('HGET', KEYS[1], ARGV[1])
if not doc then
  return false
end
local record = cjson.decode(doc)
record['text'] = ARGV[2]
record['updatedAt'] = ARGV[3]
doc = cjson.encode(record)
redis.call('HSET', KEYS[1], ARGV[1], doc)
return doc
`)

// RedisStore is the networked document store variant. Each entity kind
// lives in one hash named by the configured store name, with the record id
// as field and the JSON document as value.
type RedisStore struct {
	client      *redis.Client
	annotations string
	pointClouds string
	logger      *zap.Logger
}

// NewRedisStore connects to Redis and returns the networked store variant.
func NewRedisStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis store",
		zap.String("annotation_store", cfg.AnnotationStore),
		zap.String("pointcloud_store", cfg.PointCloudStore),
	)

	return &RedisStore{
		client:      client,
		annotations: cfg.AnnotationStore,
		pointClouds: cfg.PointCloudStore,
		logger:      logger,
	}, nil
}

// ListAnnotations retrieves all annotations, optionally filtered by point
// cloud reference.
func (s *RedisStore) ListAnnotations(ctx context.Context, pointCloudID *string) ([]models.Annotation, error) {
	docs, err := s.client.HVals(ctx, s.annotations).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", classify(err))
	}

	annotations := []models.Annotation{}
	for _, doc := range docs {
		var annotation models.Annotation
		if err := json.Unmarshal([]byte(doc), &annotation); err != nil {
			return nil, fmt.Errorf("failed to decode annotation: %w", err)
		}
		if matchesFilter(&annotation, pointCloudID) {
			annotations = append(annotations, annotation)
		}
	}

	return annotations, nil
}

// CreateAnnotation inserts an annotation document.
func (s *RedisStore) CreateAnnotation(ctx context.Context, annotation *models.Annotation) error {
	doc, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("failed to encode annotation: %w", err)
	}

	if err := s.client.HSet(ctx, s.annotations, annotation.ID, doc).Err(); err != nil {
		s.logger.Error("Failed to create annotation", zap.Error(err))
		return fmt.Errorf("failed to create annotation: %w", classify(err))
	}

	s.logger.Info("Created annotation", zap.String("id", annotation.ID))
	return nil
}

// UpdateAnnotationText updates the text of an existing annotation.
func (s *RedisStore) UpdateAnnotationText(ctx context.Context, id, text string) (*models.Annotation, error) {
	updatedAt := time.Now().UTC().Format(time.RFC3339Nano)

	doc, err := updateTextScript.Run(ctx, s.client, []string{s.annotations}, id, text, updatedAt).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to update annotation", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update annotation: %w", classify(err))
	}

	var annotation models.Annotation
	if err := json.Unmarshal([]byte(doc), &annotation); err != nil {
		return nil, fmt.Errorf("failed to decode updated annotation: %w", err)
	}

	s.logger.Info("Updated annotation", zap.String("id", id))
	return &annotation, nil
}

// DeleteAnnotation removes an annotation. HDEL reports how many fields it
// removed, which doubles as the existence check.
func (s *RedisStore) DeleteAnnotation(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.annotations, id).Result()
	if err != nil {
		s.logger.Error("Failed to delete annotation", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete annotation: %w", classify(err))
	}
	if removed == 0 {
		return ErrNotFound
	}

	s.logger.Info("Deleted annotation", zap.String("id", id))
	return nil
}

// ListPointClouds retrieves all registered point clouds.
func (s *RedisStore) ListPointClouds(ctx context.Context) ([]models.PointCloud, error) {
	docs, err := s.client.HVals(ctx, s.pointClouds).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list point clouds: %w", classify(err))
	}

	pointClouds := []models.PointCloud{}
	for _, doc := range docs {
		var pointCloud models.PointCloud
		if err := json.Unmarshal([]byte(doc), &pointCloud); err != nil {
			return nil, fmt.Errorf("failed to decode point cloud: %w", err)
		}
		pointClouds = append(pointClouds, pointCloud)
	}

	return pointClouds, nil
}

// CreatePointCloud inserts a point cloud document.
func (s *RedisStore) CreatePointCloud(ctx context.Context, pointCloud *models.PointCloud) error {
	doc, err := json.Marshal(pointCloud)
	if err != nil {
		return fmt.Errorf("failed to encode point cloud: %w", err)
	}

	if err := s.client.HSet(ctx, s.pointClouds, pointCloud.ID, doc).Err(); err != nil {
		s.logger.Error("Failed to create point cloud", zap.Error(err))
		return fmt.Errorf("failed to create point cloud: %w", classify(err))
	}

	s.logger.Info("Created point cloud", zap.String("id", pointCloud.ID))
	return nil
}

// DeletePointCloud removes a point cloud registration.
func (s *RedisStore) DeletePointCloud(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.pointClouds, id).Result()
	if err != nil {
		s.logger.Error("Failed to delete point cloud", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete point cloud: %w", classify(err))
	}
	if removed == 0 {
		return ErrNotFound
	}

	s.logger.Info("Deleted point cloud", zap.String("id", id))
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() {
	_ = s.client.Close()
	s.logger.Info("Closed Redis store connection")
}
