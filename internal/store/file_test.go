package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/config"
	"github.com/spatial-annotator/backend/internal/models"
	"github.com/spatial-annotator/backend/internal/validate"
)

func newTestFileStore(t *testing.T) (Store, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		DataDir:         t.TempDir(),
		AnnotationStore: "annotations",
		PointCloudStore: "pointclouds",
	}

	st, err := NewFileStore(cfg, zap.NewNop())
	require.NoError(t, err)
	return st, cfg
}

func testAnnotation(pointCloudID *string) *models.Annotation {
	return &models.Annotation{
		ID:           validate.NewID(),
		PointCloudID: pointCloudID,
		Position:     models.Vec3{X: 1.5, Y: -2.0, Z: 3.25},
		Text:         "crack in the north pillar",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestFileStore_CreateThenList(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	annotation := testAnnotation(nil)
	annotation.CameraPosition = map[string]any{"x": 9.0, "y": 8.0, "z": 7.0}
	require.NoError(t, st.CreateAnnotation(ctx, annotation))

	annotations, err := st.ListAnnotations(ctx, nil)
	require.NoError(t, err)
	require.Len(t, annotations, 1)

	got := annotations[0]
	assert.Equal(t, annotation.ID, got.ID)
	assert.Equal(t, annotation.Position, got.Position)
	assert.Equal(t, annotation.Text, got.Text)
	assert.Equal(t, annotation.CameraPosition, got.CameraPosition)
	assert.Nil(t, got.UpdatedAt, "updatedAt must be absent until the first update")
}

func TestFileStore_ListEmpty(t *testing.T) {
	st, _ := newTestFileStore(t)

	annotations, err := st.ListAnnotations(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Annotation{}, annotations)

	pointClouds, err := st.ListPointClouds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.PointCloud{}, pointClouds)
}

func TestFileStore_FilterByPointCloud(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	pcA := validate.NewID()
	pcB := validate.NewID()

	inA := testAnnotation(&pcA)
	inB := testAnnotation(&pcB)
	unattached := testAnnotation(nil)

	require.NoError(t, st.CreateAnnotation(ctx, inA))
	require.NoError(t, st.CreateAnnotation(ctx, inB))
	require.NoError(t, st.CreateAnnotation(ctx, unattached))

	filtered, err := st.ListAnnotations(ctx, &pcA)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, inA.ID, filtered[0].ID)

	// A null reference never matches a non-null filter.
	for _, annotation := range filtered {
		assert.NotNil(t, annotation.PointCloudID)
	}

	all, err := st.ListAnnotations(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileStore_UpdateAnnotationText(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	annotation := testAnnotation(nil)
	require.NoError(t, st.CreateAnnotation(ctx, annotation))

	updated, err := st.UpdateAnnotationText(ctx, annotation.ID, "repaired in June")
	require.NoError(t, err)
	assert.Equal(t, "repaired in June", updated.Text)
	assert.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, annotation.Position, updated.Position, "update must not touch other fields")

	// The update is persisted, not just returned.
	annotations, err := st.ListAnnotations(ctx, nil)
	require.NoError(t, err)
	require.Len(t, annotations, 1)
	assert.Equal(t, "repaired in June", annotations[0].Text)
	assert.NotNil(t, annotations[0].UpdatedAt)
}

func TestFileStore_UpdateMissingID(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	updated, err := st.UpdateAnnotationText(ctx, validate.NewID(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, updated)

	// A failed update must not create a record.
	annotations, err := st.ListAnnotations(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, annotations)
}

func TestFileStore_DeleteTwice(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	annotation := testAnnotation(nil)
	require.NoError(t, st.CreateAnnotation(ctx, annotation))

	require.NoError(t, st.DeleteAnnotation(ctx, annotation.ID))

	// The second delete observes NotFound, not silent success.
	err := st.DeleteAnnotation(ctx, annotation.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_PointCloudLifecycle(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	pointCloud := &models.PointCloud{
		ID:        validate.NewID(),
		Name:      "Bridge scan",
		Path:      "data/bridge/",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreatePointCloud(ctx, pointCloud))

	pointClouds, err := st.ListPointClouds(ctx)
	require.NoError(t, err)
	require.Len(t, pointClouds, 1)
	assert.Equal(t, pointCloud.ID, pointClouds[0].ID)
	assert.Equal(t, "data/bridge/", pointClouds[0].Path)

	require.NoError(t, st.DeletePointCloud(ctx, pointCloud.ID))
	assert.ErrorIs(t, st.DeletePointCloud(ctx, pointCloud.ID), ErrNotFound)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	st, cfg := newTestFileStore(t)
	ctx := context.Background()

	annotation := testAnnotation(nil)
	require.NoError(t, st.CreateAnnotation(ctx, annotation))
	st.Close()

	reopened, err := NewFileStore(cfg, zap.NewNop())
	require.NoError(t, err)

	annotations, err := reopened.ListAnnotations(ctx, nil)
	require.NoError(t, err)
	require.Len(t, annotations, 1)
	assert.Equal(t, annotation.ID, annotations[0].ID)
}

func TestFileStore_ConcurrentCreates(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, st.CreateAnnotation(ctx, testAnnotation(nil)))
		}()
	}
	wg.Wait()

	// Without the writer lock, concurrent read-modify-write cycles would
	// drop records.
	annotations, err := st.ListAnnotations(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, annotations, writers)
}
