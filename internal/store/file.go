package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/config"
	"github.com/spatial-annotator/backend/internal/models"
)

// FileStore is the local file-backed variant. Each entity kind lives in one
// JSON file named after the configured store name, holding an id-to-record
// object. Every operation is a full read-modify-write of the file; the
// mutex serializes those cycles, since concurrent read-then-write would
// lose updates.
type FileStore struct {
	mu              sync.Mutex
	annotationsPath string
	pointCloudsPath string
	logger          *zap.Logger
}

// NewFileStore creates the data directory if needed and returns the local
// store variant.
func NewFileStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logger.Info("Using file store",
		zap.String("dir", cfg.DataDir),
		zap.String("annotation_store", cfg.AnnotationStore),
		zap.String("pointcloud_store", cfg.PointCloudStore),
	)

	return &FileStore{
		annotationsPath: filepath.Join(cfg.DataDir, cfg.AnnotationStore+".json"),
		pointCloudsPath: filepath.Join(cfg.DataDir, cfg.PointCloudStore+".json"),
		logger:          logger,
	}, nil
}

// ListAnnotations retrieves all annotations, optionally filtered by point
// cloud reference.
func (s *FileStore) ListAnnotations(ctx context.Context, pointCloudID *string) ([]models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readStore[models.Annotation](s.annotationsPath)
	if err != nil {
		return nil, err
	}

	annotations := []models.Annotation{}
	for _, annotation := range records {
		if matchesFilter(&annotation, pointCloudID) {
			annotations = append(annotations, annotation)
		}
	}

	return annotations, nil
}

// CreateAnnotation inserts an annotation record.
func (s *FileStore) CreateAnnotation(ctx context.Context, annotation *models.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readStore[models.Annotation](s.annotationsPath)
	if err != nil {
		return err
	}

	records[annotation.ID] = *annotation
	if err := writeStore(s.annotationsPath, records); err != nil {
		s.logger.Error("Failed to create annotation", zap.Error(err))
		return err
	}

	s.logger.Info("Created annotation", zap.String("id", annotation.ID))
	return nil
}

// UpdateAnnotationText updates the text of an existing annotation. The
// existence check and the write happen under the same lock, so the update
// either fully applies or fails with ErrNotFound.
func (s *FileStore) UpdateAnnotationText(ctx context.Context, id, text string) (*models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readStore[models.Annotation](s.annotationsPath)
	if err != nil {
		return nil, err
	}

	annotation, ok := records[id]
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	annotation.Text = text
	annotation.UpdatedAt = &now

	records[id] = annotation
	if err := writeStore(s.annotationsPath, records); err != nil {
		s.logger.Error("Failed to update annotation", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Updated annotation", zap.String("id", id))
	return &annotation, nil
}

// DeleteAnnotation removes an annotation record.
func (s *FileStore) DeleteAnnotation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readStore[models.Annotation](s.annotationsPath)
	if err != nil {
		return err
	}

	if _, ok := records[id]; !ok {
		return ErrNotFound
	}

	delete(records, id)
	if err := writeStore(s.annotationsPath, records); err != nil {
		s.logger.Error("Failed to delete annotation", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("Deleted annotation", zap.String("id", id))
	return nil
}

// ListPointClouds retrieves all registered point clouds.
func (s *FileStore) ListPointClouds(ctx context.Context) ([]models.PointCloud, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readStore[models.PointCloud](s.pointCloudsPath)
	if err != nil {
		return nil, err
	}

	pointClouds := []models.PointCloud{}
	for _, pointCloud := range records {
		pointClouds = append(pointClouds, pointCloud)
	}

	return pointClouds, nil
}

// CreatePointCloud inserts a point cloud record.
func (s *FileStore) CreatePointCloud(ctx context.Context, pointCloud *models.PointCloud) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readStore[models.PointCloud](s.pointCloudsPath)
	if err != nil {
		return err
	}

	records[pointCloud.ID] = *pointCloud
	if err := writeStore(s.pointCloudsPath, records); err != nil {
		s.logger.Error("Failed to create point cloud", zap.Error(err))
		return err
	}

	s.logger.Info("Created point cloud", zap.String("id", pointCloud.ID))
	return nil
}

// DeletePointCloud removes a point cloud registration.
func (s *FileStore) DeletePointCloud(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readStore[models.PointCloud](s.pointCloudsPath)
	if err != nil {
		return err
	}

	if _, ok := records[id]; !ok {
		return ErrNotFound
	}

	delete(records, id)
	if err := writeStore(s.pointCloudsPath, records); err != nil {
		s.logger.Error("Failed to delete point cloud", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("Deleted point cloud", zap.String("id", id))
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() {
	s.logger.Info("Closed file store")
}

// readStore loads an id-to-record map from disk. A missing file is an empty
// store, not an error.
func readStore[T any](path string) (map[string]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	records := map[string]T{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode store file: %w", err)
	}
	return records, nil
}

// writeStore persists the map through a temp file and rename, so a crashed
// write never leaves a truncated store behind.
func writeStore[T any](path string, records map[string]T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close store file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
