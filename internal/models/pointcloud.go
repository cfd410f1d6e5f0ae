package models

import (
	"time"
)

// PointCloud is a registered dataset entry. It records where the geometry
// lives, not the geometry itself.
type PointCloud struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreatePointCloudRequest is the raw decoded body for point cloud creation.
type CreatePointCloudRequest struct {
	Name *string `json:"name"`
	Path *string `json:"path"`
}

// PointCloudResponse wraps a single point cloud in the API response.
type PointCloudResponse struct {
	Data PointCloud `json:"data"`
}

// PointCloudsResponse wraps multiple point clouds in the API response.
type PointCloudsResponse struct {
	Data []PointCloud `json:"data"`
}
