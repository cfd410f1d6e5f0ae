// Package store provides the storage backends for annotations and point
// clouds. Every backend exposes the same contract with the same conditional
// semantics: create is an unconditional insert, update and delete fail with
// ErrNotFound when the id is absent.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/config"
	"github.com/spatial-annotator/backend/internal/models"
)

// Store is the capability contract shared by all backend variants.
type Store interface {
	// ListAnnotations retrieves all annotations. A non-nil pointCloudID
	// restricts the result to annotations referencing that point cloud;
	// annotations with a null reference never match a non-nil filter.
	ListAnnotations(ctx context.Context, pointCloudID *string) ([]models.Annotation, error)

	// CreateAnnotation inserts an annotation. The caller has already
	// assigned the identifier; duplicates are not checked.
	CreateAnnotation(ctx context.Context, annotation *models.Annotation) error

	// UpdateAnnotationText replaces the text of an existing annotation and
	// stamps updatedAt in the same atomic step. Returns ErrNotFound, with
	// no partial mutation, if the id does not exist.
	UpdateAnnotationText(ctx context.Context, id, text string) (*models.Annotation, error)

	// DeleteAnnotation removes an annotation. Returns ErrNotFound if the id
	// does not exist; deleting the same id twice fails the second time.
	DeleteAnnotation(ctx context.Context, id string) error

	// ListPointClouds retrieves all registered point clouds.
	ListPointClouds(ctx context.Context) ([]models.PointCloud, error)

	// CreatePointCloud inserts a point cloud registration.
	CreatePointCloud(ctx context.Context, pointCloud *models.PointCloud) error

	// DeletePointCloud removes a point cloud registration. Returns
	// ErrNotFound if the id does not exist.
	DeletePointCloud(ctx context.Context, id string) error

	// Close releases the backend connection.
	Close()
}

// New constructs the store variant selected by the configuration.
func New(cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return NewRedisStore(cfg, logger)
	case config.BackendFile:
		return NewFileStore(cfg, logger)
	case config.BackendPostgres:
		return NewPostgresStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// matchesFilter implements the backend-independent filter semantics.
func matchesFilter(annotation *models.Annotation, pointCloudID *string) bool {
	if pointCloudID == nil {
		return true
	}
	return annotation.PointCloudID != nil && *annotation.PointCloudID == *pointCloudID
}
