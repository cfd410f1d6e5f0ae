package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/config"
	"github.com/spatial-annotator/backend/internal/models"
)

// PostgresStore keeps each entity kind in a table named after the
// configured store name, with the full JSON document in a jsonb column.
// Conditional semantics ride on row matching: UPDATE..RETURNING and DELETE
// row counts provide the existence check atomically.
type PostgresStore struct {
	pool        *pgxpool.Pool
	annotations string
	pointClouds string
	logger      *zap.Logger
}

// NewPostgresStore connects to PostgreSQL, runs migrations and returns the
// store.
func NewPostgresStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		pool:        pool,
		annotations: pgx.Identifier{cfg.AnnotationStore}.Sanitize(),
		pointClouds: pgx.Identifier{cfg.PointCloudStore}.Sanitize(),
		logger:      logger,
	}

	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Connected to PostgreSQL store",
		zap.String("annotation_store", cfg.AnnotationStore),
		zap.String("pointcloud_store", cfg.PointCloudStore),
	)
	return store, nil
}

// migrate creates the store tables if they don't exist.
func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, table := range []string{s.annotations, s.pointClouds} {
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				doc JSONB NOT NULL
			)
		`, table)
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// ListAnnotations retrieves all annotations, optionally filtered by point
// cloud reference. The filter runs in SQL; a null pointCloudId never
// matches.
func (s *PostgresStore) ListAnnotations(ctx context.Context, pointCloudID *string) ([]models.Annotation, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s`, s.annotations)
	args := []any{}
	if pointCloudID != nil {
		query += ` WHERE doc->>'pointCloudId' = $1`
		args = append(args, *pointCloudID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list annotations", zap.Error(err))
		return nil, fmt.Errorf("failed to list annotations: %w", classify(err))
	}
	defer rows.Close()

	annotations := []models.Annotation{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		var annotation models.Annotation
		if err := json.Unmarshal(doc, &annotation); err != nil {
			return nil, fmt.Errorf("failed to decode annotation: %w", err)
		}
		annotations = append(annotations, annotation)
	}

	return annotations, rows.Err()
}

// CreateAnnotation inserts an annotation document.
func (s *PostgresStore) CreateAnnotation(ctx context.Context, annotation *models.Annotation) error {
	doc, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("failed to encode annotation: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, s.annotations)
	if _, err := s.pool.Exec(ctx, query, annotation.ID, doc); err != nil {
		s.logger.Error("Failed to create annotation", zap.Error(err))
		return fmt.Errorf("failed to create annotation: %w", classify(err))
	}

	s.logger.Info("Created annotation", zap.String("id", annotation.ID))
	return nil
}

// UpdateAnnotationText updates the text of an existing annotation. The
// mutation and the existence check are one statement.
func (s *PostgresStore) UpdateAnnotationText(ctx context.Context, id, text string) (*models.Annotation, error) {
	updatedAt := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf(`
		UPDATE %s
		SET doc = jsonb_set(jsonb_set(doc, '{text}', to_jsonb($2::text)), '{updatedAt}', to_jsonb($3::text))
		WHERE id = $1
		RETURNING doc
	`, s.annotations)

	var doc []byte
	err := s.pool.QueryRow(ctx, query, id, text, updatedAt).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to update annotation", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update annotation: %w", classify(err))
	}

	var annotation models.Annotation
	if err := json.Unmarshal(doc, &annotation); err != nil {
		return nil, fmt.Errorf("failed to decode updated annotation: %w", err)
	}

	s.logger.Info("Updated annotation", zap.String("id", id))
	return &annotation, nil
}

// DeleteAnnotation removes an annotation.
func (s *PostgresStore) DeleteAnnotation(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.annotations)

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		s.logger.Error("Failed to delete annotation", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete annotation: %w", classify(err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Info("Deleted annotation", zap.String("id", id))
	return nil
}

// ListPointClouds retrieves all registered point clouds.
func (s *PostgresStore) ListPointClouds(ctx context.Context) ([]models.PointCloud, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s`, s.pointClouds)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		s.logger.Error("Failed to list point clouds", zap.Error(err))
		return nil, fmt.Errorf("failed to list point clouds: %w", classify(err))
	}
	defer rows.Close()

	pointClouds := []models.PointCloud{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan point cloud: %w", err)
		}
		var pointCloud models.PointCloud
		if err := json.Unmarshal(doc, &pointCloud); err != nil {
			return nil, fmt.Errorf("failed to decode point cloud: %w", err)
		}
		pointClouds = append(pointClouds, pointCloud)
	}

	return pointClouds, rows.Err()
}

// CreatePointCloud inserts a point cloud document.
func (s *PostgresStore) CreatePointCloud(ctx context.Context, pointCloud *models.PointCloud) error {
	doc, err := json.Marshal(pointCloud)
	if err != nil {
		return fmt.Errorf("failed to encode point cloud: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, s.pointClouds)
	if _, err := s.pool.Exec(ctx, query, pointCloud.ID, doc); err != nil {
		s.logger.Error("Failed to create point cloud", zap.Error(err))
		return fmt.Errorf("failed to create point cloud: %w", classify(err))
	}

	s.logger.Info("Created point cloud", zap.String("id", pointCloud.ID))
	return nil
}

// DeletePointCloud removes a point cloud registration.
func (s *PostgresStore) DeletePointCloud(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.pointClouds)

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		s.logger.Error("Failed to delete point cloud", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete point cloud: %w", classify(err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Info("Deleted point cloud", zap.String("id", id))
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
	s.logger.Info("Closed database connection")
}
