// Package validate normalizes incoming payloads and enforces the shape and
// size constraints shared by every storage backend. Keeping the checks in
// one place guarantees both backends reject identical inputs identically.
package validate

import (
	"strings"

	"github.com/spatial-annotator/backend/internal/models"
)

// MaxTextBytes is the budget for annotation text, measured in UTF-8 bytes
// rather than characters. Multi-byte characters count per byte.
const MaxTextBytes = 256

// Error codes returned in the API error envelope.
const (
	CodeInvalidPayload    = "invalid_payload"
	CodeInvalidPosition   = "invalid_position"
	CodeTextTooLong       = "text_too_long"
	CodeMissingName       = "missing_name"
	CodeMissingPath       = "missing_path"
	CodeInvalidIdentifier = "invalid_identifier"
)

// Error is a rejected payload, carrying the API error code for the field
// that failed.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// AnnotationCreate checks an annotation creation payload and returns the
// normalized record, without identifier or timestamps (the handler assigns
// those). Camera hints pass through verbatim.
func AnnotationCreate(req *models.CreateAnnotationRequest) (*models.Annotation, *Error) {
	pos, ok := position(req.Position)
	if !ok {
		return nil, &Error{
			Code:    CodeInvalidPosition,
			Message: "position must be an object with numeric x, y and z",
		}
	}

	text := ""
	if req.Text != nil {
		text = *req.Text
	}
	if verr := AnnotationText(text); verr != nil {
		return nil, verr
	}

	return &models.Annotation{
		PointCloudID:   req.PointCloudID,
		Position:       pos,
		Text:           text,
		CameraPosition: req.CameraPosition,
		CameraTarget:   req.CameraTarget,
	}, nil
}

// AnnotationUpdate checks an annotation update payload and returns the
// normalized text. Absent text defaults to the empty string, same as create.
func AnnotationUpdate(req *models.UpdateAnnotationRequest) (string, *Error) {
	text := ""
	if req.Text != nil {
		text = *req.Text
	}
	if verr := AnnotationText(text); verr != nil {
		return "", verr
	}
	return text, nil
}

// AnnotationText enforces the byte-length budget on annotation text.
func AnnotationText(text string) *Error {
	if len(text) > MaxTextBytes {
		return &Error{
			Code:    CodeTextTooLong,
			Message: "text exceeds maximum length of 256 bytes",
		}
	}
	return nil
}

// PointCloudCreate checks a point cloud creation payload and returns the
// trimmed name and the path normalized to end with a path separator.
func PointCloudCreate(req *models.CreatePointCloudRequest) (name, path string, verr *Error) {
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if name == "" {
		return "", "", &Error{
			Code:    CodeMissingName,
			Message: "name must be a non-empty string",
		}
	}

	if req.Path != nil {
		path = strings.TrimSpace(*req.Path)
	}
	if path == "" {
		return "", "", &Error{
			Code:    CodeMissingPath,
			Message: "path must be a non-empty string",
		}
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return name, path, nil
}

// position extracts {x,y,z} from the raw decoded value. JSON numbers decode
// to float64; anything else, including numeric strings, is rejected.
func position(raw any) (models.Vec3, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return models.Vec3{}, false
	}

	x, okX := obj["x"].(float64)
	y, okY := obj["y"].(float64)
	z, okZ := obj["z"].(float64)
	if !okX || !okY || !okZ {
		return models.Vec3{}, false
	}

	return models.Vec3{X: x, Y: y, Z: z}, true
}
