package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opentopography/terratile/internal/api"
	"github.com/opentopography/terratile/internal/arcgis"
	"github.com/opentopography/terratile/internal/terrain"
	"github.com/opentopography/terratile/pkg/geo"
)

// Server implements the terratile HTTP API on top of the acquisition
// pipeline.
type Server struct {
	startTime time.Time
	version   string
	client    *arcgis.Client
	outputDir string
}

// NewServer creates a new server instance. Acquired rasters are written
// under outputDir.
func NewServer(version string, client *arcgis.Client, outputDir string) *Server {
	return &Server{
		startTime: time.Now(),
		version:   version,
		client:    client,
		outputDir: outputDir,
	}
}

// GetHealth implements the health check endpoint.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// CreateTerrain implements the terrain acquisition endpoint.
func (s *Server) CreateTerrain(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()

	var req api.TerrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}

	if err := s.validateTerrainRequest(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR",
			err.Error(), &requestID, nil)
		return
	}

	cfg := s.convertToConfig(&req)
	pipeline := terrain.New(cfg, s.client, nil, nil)

	result, err := pipeline.Run(r.Context())
	if err != nil {
		s.handlePipelineError(w, err, &requestID)
		return
	}

	response := api.TerrainResponse{
		Width:         result.Size.Width,
		Height:        result.Size.Height,
		Size:          result.Size.String(),
		ElevationPath: result.ElevationPath,
		ImageryPath:   result.ImageryPath,
		RequestID:     requestID,
	}
	if result.PreviewPath != "" {
		response.PreviewPath = &result.PreviewPath
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding terrain response: %v", err)
	}
}

// validateTerrainRequest validates the incoming terrain request.
func (s *Server) validateTerrainRequest(req *api.TerrainRequest) error {
	if req.BBox.MinLat >= req.BBox.MaxLat {
		return fmt.Errorf("min_lat must be less than max_lat")
	}
	if req.BBox.MinLon >= req.BBox.MaxLon {
		return fmt.Errorf("min_lon must be less than max_lon")
	}
	if req.MajorDim <= 0 {
		return fmt.Errorf("major_dim must be positive")
	}
	if req.MajorDim > 10000 {
		return fmt.Errorf("major_dim must be at most 10000")
	}
	if req.OverlayAlpha != nil && (*req.OverlayAlpha < 0 || *req.OverlayAlpha > 1) {
		return fmt.Errorf("overlay_alpha must be between 0 and 1")
	}
	return nil
}

// convertToConfig converts the API request to a pipeline configuration.
func (s *Server) convertToConfig(req *api.TerrainRequest) terrain.Config {
	cfg := terrain.Config{
		MinLon:         req.BBox.MinLon,
		MinLat:         req.BBox.MinLat,
		MaxLon:         req.BBox.MaxLon,
		MaxLat:         req.BBox.MaxLat,
		MajorDimension: req.MajorDim,
		MapType:        "World_Imagery",
		BBoxSR:         geo.WKIDWGS84,
		ImageSR:        geo.WKIDWGS84,
		OverlayAlpha:   0.5,
		OutputDir:      s.outputDir,
	}
	if req.MapType != nil {
		cfg.MapType = *req.MapType
	}
	if req.Preview != nil {
		cfg.Preview = *req.Preview
	}
	if req.OverlayAlpha != nil {
		cfg.OverlayAlpha = *req.OverlayAlpha
	}
	return cfg
}

// handlePipelineError maps pipeline failures to API error responses.
func (s *Server) handlePipelineError(w http.ResponseWriter, err error, requestID *string) {
	if errors.Is(err, geo.ErrDegenerateBoundingBox) {
		s.writeErrorResponse(w, http.StatusBadRequest, "DEGENERATE_BOUNDING_BOX",
			err.Error(), requestID, nil)
		return
	}

	var reqErr *arcgis.RequestError
	if errors.As(err, &reqErr) {
		s.writeErrorResponse(w, http.StatusBadGateway, "REMOTE_REQUEST_FAILED",
			reqErr.Error(), requestID, map[string]any{
				"endpoint":    reqErr.Endpoint,
				"status_code": reqErr.StatusCode,
			})
		return
	}

	var malformed *arcgis.MalformedResponseError
	if errors.As(err, &malformed) {
		s.writeErrorResponse(w, http.StatusBadGateway, "MALFORMED_RESPONSE",
			malformed.Error(), requestID, nil)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "REMOTE_REQUEST_TIMEOUT",
			"Upstream export requests timed out", requestID, nil)
		return
	}

	s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"Internal server error", requestID, nil)
}

// writeErrorResponse writes a standard error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]any) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// Routes registers the API handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.GetHealth)
	r.Post("/terrain", s.CreateTerrain)
}

// generateRequestID generates a unique request ID.
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
