// Package terrain orchestrates the acquisition pipeline: bounding box ->
// image size -> elevation raster + basemap imagery -> optional 2D preview.
package terrain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/opentopography/terratile/internal/arcgis"
	"github.com/opentopography/terratile/internal/compose"
	"github.com/opentopography/terratile/pkg/geo"
)

// Config holds every knob of the pipeline. It replaces hand-edited constants
// so a run is fully described by one value.
type Config struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64

	MajorDimension int
	MapType        string
	BBoxSR         int
	ImageSR        int

	// OverlayAlpha is the basemap transparency in the composed preview,
	// in [0,1]. The preview is skipped when Preview is false.
	OverlayAlpha float64
	Preview      bool

	OutputDir string
}

// BoundingBoxSource supplies the bounding box to acquire. Implementations
// range from literal configuration to interactive map widgets; the pipeline
// only depends on this capability.
type BoundingBoxSource interface {
	BoundingBox() (geo.BoundingBox, error)
}

// LiteralSource returns a fixed bounding box.
type LiteralSource struct {
	Box geo.BoundingBox
}

func (s LiteralSource) BoundingBox() (geo.BoundingBox, error) {
	if err := s.Box.Validate(); err != nil {
		return geo.BoundingBox{}, err
	}
	return s.Box, nil
}

// Source builds a LiteralSource from the configured corner coordinates.
func (c Config) Source() BoundingBoxSource {
	return LiteralSource{
		Box: geo.BoundingBox{
			P1: geo.Point{Lon: c.MinLon, Lat: c.MinLat},
			P2: geo.Point{Lon: c.MaxLon, Lat: c.MaxLat},
		},
	}
}

// Result reports what a pipeline run produced.
type Result struct {
	Size          geo.ImageSize
	ElevationPath string
	ImageryPath   string
	PreviewPath   string
}

// Pipeline runs the acquisition sequence against a configured client.
type Pipeline struct {
	cfg    Config
	client *arcgis.Client
	source BoundingBoxSource
	logger *slog.Logger
}

// New creates a pipeline. A nil source falls back to the configured literal
// corners; a nil logger falls back to slog.Default.
func New(cfg Config, client *arcgis.Client, source BoundingBoxSource, logger *slog.Logger) *Pipeline {
	if source == nil {
		source = cfg.Source()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		client: client,
		source: source,
		logger: logger,
	}
}

// Fetch computes the image size and downloads the elevation raster and the
// basemap image. The two fetches share no data, so they run concurrently and
// join before returning. Either failure cancels the other fetch.
func (p *Pipeline) Fetch(ctx context.Context) (*Result, error) {
	bbox, err := p.source.BoundingBox()
	if err != nil {
		return nil, err
	}

	size, err := geo.ComputeImageSize(bbox, p.cfg.MajorDimension)
	if err != nil {
		return nil, err
	}
	p.logger.Info("computed image size", "width", size.Width, "height", size.Height)

	result := &Result{
		Size:          size,
		ElevationPath: filepath.Join(p.cfg.OutputDir, "elevation.tif"),
		ImageryPath:   filepath.Join(p.cfg.OutputDir, "imagery.png"),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := p.client.FetchElevation(ctx, bbox, size, result.ElevationPath, p.cfg.BBoxSR, p.cfg.ImageSR)
		return err
	})
	g.Go(func() error {
		_, err := p.client.FetchImagery(ctx, bbox, p.cfg.MapType, size, p.cfg.BBoxSR, result.ImageryPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Run fetches both rasters and, if enabled, composes the 2D preview next to
// them. A raster format the preview decoder cannot handle is logged and
// skipped rather than failing the run; the fetched files are the product,
// the preview is a convenience.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if !p.cfg.Preview {
		return result, nil
	}

	previewPath := filepath.Join(p.cfg.OutputDir, "preview.png")
	if err := p.composePreview(result, previewPath); err != nil {
		p.logger.Warn("skipping preview", "error", err)
		return result, nil
	}
	result.PreviewPath = previewPath
	p.logger.Info("saved preview", "path", previewPath)
	return result, nil
}

func (p *Pipeline) composePreview(result *Result, previewPath string) error {
	elevation, err := os.ReadFile(result.ElevationPath)
	if err != nil {
		return err
	}
	overlay, err := os.ReadFile(result.ImageryPath)
	if err != nil {
		return err
	}
	preview, err := compose.Preview(elevation, overlay, p.cfg.OverlayAlpha)
	if err != nil {
		return err
	}
	if err := os.WriteFile(previewPath, preview, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	return nil
}
