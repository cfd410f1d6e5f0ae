// Package models contains the data models for the application.
package models

import (
	"time"
)

// Vec3 is a point in the point cloud's coordinate space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Annotation represents a spatial note pinned to a 3D position, optionally
// referencing a registered point cloud. The reference is loose: the service
// never checks that the referenced point cloud exists.
type Annotation struct {
	ID           string  `json:"id"`
	PointCloudID *string `json:"pointCloudId"`
	Position     Vec3    `json:"position"`
	Text         string  `json:"text"`

	// Viewer navigation hints, stored verbatim and never interpreted.
	CameraPosition map[string]any `json:"cameraPosition,omitempty"`
	CameraTarget   map[string]any `json:"cameraTarget,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is absent until the annotation is updated for the first time.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// CreateAnnotationRequest is the raw decoded body for annotation creation.
// Position is left untyped so the validator can tell a missing or
// non-object position apart from numeric-string coordinates.
type CreateAnnotationRequest struct {
	PointCloudID   *string        `json:"pointCloudId"`
	Position       any            `json:"position"`
	Text           *string        `json:"text"`
	CameraPosition map[string]any `json:"cameraPosition"`
	CameraTarget   map[string]any `json:"cameraTarget"`
}

// UpdateAnnotationRequest is the body for annotation updates. Only the text
// is mutable after creation.
type UpdateAnnotationRequest struct {
	Text *string `json:"text"`
}

// AnnotationResponse wraps a single annotation in the API response.
type AnnotationResponse struct {
	Data Annotation `json:"data"`
}

// AnnotationsResponse wraps multiple annotations in the API response.
type AnnotationsResponse struct {
	Data []Annotation `json:"data"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
