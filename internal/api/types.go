// Package api defines the request and response envelopes of the terratile
// HTTP API.
package api

import "time"

// HealthStatus enumerates health states.
type HealthStatus string

const Healthy HealthStatus = "healthy"

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    *int         `json:"uptime,omitempty"`
	Version   *string      `json:"version,omitempty"`
}

// BoundingBox is a rectangular extent in the request body.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// TerrainRequest is the body of POST /api/v1/terrain.
type TerrainRequest struct {
	BBox         BoundingBox `json:"bbox"`
	MajorDim     int         `json:"major_dim"`
	MapType      *string     `json:"map_type,omitempty"`
	Preview      *bool       `json:"preview,omitempty"`
	OverlayAlpha *float64    `json:"overlay_alpha,omitempty"`
}

// TerrainResponse reports where the acquired rasters were written.
type TerrainResponse struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Size          string  `json:"size"`
	ElevationPath string  `json:"elevation_path"`
	ImageryPath   string  `json:"imagery_path"`
	PreviewPath   *string `json:"preview_path,omitempty"`
	RequestID     string  `json:"request_id"`
}

// ErrorResponse is the common error envelope.
type ErrorResponse struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	RequestID *string         `json:"request_id,omitempty"`
	Details   *map[string]any `json:"details,omitempty"`
}
