package geo

import (
	"errors"
	"fmt"
)

// WKIDWGS84 is the spatial reference ID for WGS84 geographic coordinates.
const WKIDWGS84 = 4326

// ErrDegenerateBoundingBox is returned when a bounding box spans zero
// longitude or zero latitude, so no aspect ratio can be derived from it.
var ErrDegenerateBoundingBox = errors.New("degenerate bounding box: zero longitude or latitude span")

// Point is a geographic coordinate (EPSG:4326 by convention).
type Point struct {
	Lon float64
	Lat float64
}

// BoundingBox represents geographic bounds as two opposite corner points.
// Corner order is not significant; use Extent for normalized bounds.
type BoundingBox struct {
	P1 Point
	P2 Point
}

// Validate checks that the box spans a non-degenerate rectangle.
func (b BoundingBox) Validate() error {
	if b.P1.Lon == b.P2.Lon || b.P1.Lat == b.P2.Lat {
		return ErrDegenerateBoundingBox
	}
	return nil
}

// Extent returns the min/max bounds of the box regardless of corner order.
func (b BoundingBox) Extent() Extent {
	return Extent{
		XMin: min(b.P1.Lon, b.P2.Lon),
		XMax: max(b.P1.Lon, b.P2.Lon),
		YMin: min(b.P1.Lat, b.P2.Lat),
		YMax: max(b.P1.Lat, b.P2.Lat),
	}
}

// Extent is a normalized rectangular extent: XMin <= XMax, YMin <= YMax.
type Extent struct {
	XMin, YMin, XMax, YMax float64
}

// String formats the extent as "xmin,ymin,xmax,ymax" for use in query
// parameters.
func (e Extent) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", e.XMin, e.YMin, e.XMax, e.YMax)
}

// ImageSize holds pixel dimensions derived from a bounding box.
type ImageSize struct {
	Width  int
	Height int
}

// String formats the size as "width,height" for use in query parameters.
func (s ImageSize) String() string {
	return fmt.Sprintf("%d,%d", s.Width, s.Height)
}
