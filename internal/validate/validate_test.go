package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spatial-annotator/backend/internal/models"
)

func strPtr(s string) *string {
	return &s
}

func validPosition() map[string]any {
	return map[string]any{"x": 1.5, "y": -2.0, "z": 3.25}
}

func TestAnnotationCreate_Position(t *testing.T) {
	tests := []struct {
		name     string
		position any
		wantCode string
	}{
		{
			name:     "valid position",
			position: validPosition(),
		},
		{
			name:     "negative and fractional coordinates are valid",
			position: map[string]any{"x": -100.5, "y": 0.0, "z": 0.001},
		},
		{
			name:     "missing position",
			position: nil,
			wantCode: CodeInvalidPosition,
		},
		{
			name:     "position is not an object",
			position: []any{1.0, 2.0, 3.0},
			wantCode: CodeInvalidPosition,
		},
		{
			name:     "numeric strings are not numbers",
			position: map[string]any{"x": "1", "y": "2", "z": "3"},
			wantCode: CodeInvalidPosition,
		},
		{
			name:     "missing coordinate",
			position: map[string]any{"x": 1.0, "y": 2.0},
			wantCode: CodeInvalidPosition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			annotation, verr := AnnotationCreate(&models.CreateAnnotationRequest{
				Position: tt.position,
			})

			if tt.wantCode != "" {
				assert.Nil(t, annotation)
				assert.NotNil(t, verr)
				assert.Equal(t, tt.wantCode, verr.Code)
				return
			}

			assert.Nil(t, verr)
			assert.NotNil(t, annotation)
		})
	}
}

func TestAnnotationCreate_TextByteBudget(t *testing.T) {
	tests := []struct {
		name     string
		text     *string
		wantCode string
		wantText string
	}{
		{
			name:     "absent text defaults to empty",
			text:     nil,
			wantText: "",
		},
		{
			name:     "exactly 256 ASCII bytes",
			text:     strPtr(strings.Repeat("a", 256)),
			wantText: strings.Repeat("a", 256),
		},
		{
			name:     "257 ASCII bytes",
			text:     strPtr(strings.Repeat("a", 257)),
			wantCode: CodeTextTooLong,
		},
		{
			name: "multi-byte character pushes past the budget",
			// 255 single-byte characters plus one 2-byte character: 87
			// characters short of any rune count limit, 257 bytes.
			text:     strPtr(strings.Repeat("a", 255) + "é"),
			wantCode: CodeTextTooLong,
		},
		{
			name:     "multi-byte text inside the budget",
			text:     strPtr(strings.Repeat("é", 128)), // 256 bytes
			wantText: strings.Repeat("é", 128),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			annotation, verr := AnnotationCreate(&models.CreateAnnotationRequest{
				Position: validPosition(),
				Text:     tt.text,
			})

			if tt.wantCode != "" {
				assert.NotNil(t, verr)
				assert.Equal(t, tt.wantCode, verr.Code)
				return
			}

			assert.Nil(t, verr)
			assert.Equal(t, tt.wantText, annotation.Text)
		})
	}
}

func TestAnnotationCreate_PassThroughFields(t *testing.T) {
	camera := map[string]any{"x": 9.0, "y": 8.0, "z": 7.0, "extra": "kept"}
	target := map[string]any{"x": 0.0, "y": 0.0, "z": 0.0}

	annotation, verr := AnnotationCreate(&models.CreateAnnotationRequest{
		PointCloudID:   strPtr("not-even-checked-for-existence"),
		Position:       validPosition(),
		CameraPosition: camera,
		CameraTarget:   target,
	})

	assert.Nil(t, verr)
	assert.Equal(t, camera, annotation.CameraPosition)
	assert.Equal(t, target, annotation.CameraTarget)
	assert.Equal(t, "not-even-checked-for-existence", *annotation.PointCloudID)

	// Camera hints and the point cloud reference are optional.
	annotation, verr = AnnotationCreate(&models.CreateAnnotationRequest{
		Position: validPosition(),
	})
	assert.Nil(t, verr)
	assert.Nil(t, annotation.CameraPosition)
	assert.Nil(t, annotation.CameraTarget)
	assert.Nil(t, annotation.PointCloudID)
}

func TestAnnotationUpdate(t *testing.T) {
	text, verr := AnnotationUpdate(&models.UpdateAnnotationRequest{Text: strPtr("updated")})
	assert.Nil(t, verr)
	assert.Equal(t, "updated", text)

	// Absent text defaults to empty, same as create.
	text, verr = AnnotationUpdate(&models.UpdateAnnotationRequest{})
	assert.Nil(t, verr)
	assert.Equal(t, "", text)

	_, verr = AnnotationUpdate(&models.UpdateAnnotationRequest{
		Text: strPtr(strings.Repeat("b", 257)),
	})
	assert.NotNil(t, verr)
	assert.Equal(t, CodeTextTooLong, verr.Code)
}

func TestPointCloudCreate(t *testing.T) {
	tests := []struct {
		name     string
		req      models.CreatePointCloudRequest
		wantName string
		wantPath string
		wantCode string
	}{
		{
			name:     "path gains trailing separator",
			req:      models.CreatePointCloudRequest{Name: strPtr("Bridge scan"), Path: strPtr("data/set")},
			wantName: "Bridge scan",
			wantPath: "data/set/",
		},
		{
			name:     "path with separator is unchanged",
			req:      models.CreatePointCloudRequest{Name: strPtr("Bridge scan"), Path: strPtr("data/set/")},
			wantName: "Bridge scan",
			wantPath: "data/set/",
		},
		{
			name:     "name and path are trimmed",
			req:      models.CreatePointCloudRequest{Name: strPtr("  padded  "), Path: strPtr("  data/set  ")},
			wantName: "padded",
			wantPath: "data/set/",
		},
		{
			name:     "missing name",
			req:      models.CreatePointCloudRequest{Path: strPtr("data/set")},
			wantCode: CodeMissingName,
		},
		{
			name:     "whitespace-only name",
			req:      models.CreatePointCloudRequest{Name: strPtr("   "), Path: strPtr("data/set")},
			wantCode: CodeMissingName,
		},
		{
			name:     "missing path",
			req:      models.CreatePointCloudRequest{Name: strPtr("Bridge scan")},
			wantCode: CodeMissingPath,
		},
		{
			name:     "whitespace-only path",
			req:      models.CreatePointCloudRequest{Name: strPtr("Bridge scan"), Path: strPtr("  ")},
			wantCode: CodeMissingPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, path, verr := PointCloudCreate(&tt.req)

			if tt.wantCode != "" {
				assert.NotNil(t, verr)
				assert.Equal(t, tt.wantCode, verr.Code)
				return
			}

			assert.Nil(t, verr)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}
