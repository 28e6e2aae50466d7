// Package compose builds a flat 2D terrain preview from a DEM raster and a
// basemap overlay. Each step is a pure transformation from one value to the
// next; there is no shared mutable canvas. Hillshading, ray tracing and 3D
// views are left to dedicated renderers that consume the saved files.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/tiff"
)

// DecodeElevation decodes a TIFF elevation raster. Rasters with sample
// formats the TIFF decoder does not support (notably some floating-point
// encodings) return an error; the preview is skipped in that case.
func DecodeElevation(data []byte) (image.Image, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode elevation raster: %w", err)
	}
	return img, nil
}

// DecodeOverlay decodes the PNG basemap image.
func DecodeOverlay(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode overlay image: %w", err)
	}
	return img, nil
}

// Relief maps the elevation raster to an 8-bit grayscale image, stretching
// the observed luminance range to 0..255. Low ground is dark, high ground
// is light.
func Relief(elevation image.Image) *image.Gray {
	bounds := elevation.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	lum := make([]float64, width*height)
	minLum, maxLum := math.MaxFloat64, -math.MaxFloat64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(elevation.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			v := float64(g.Y)
			lum[y*width+x] = v
			if v < minLum {
				minLum = v
			}
			if v > maxLum {
				maxLum = v
			}
		}
	}

	span := maxLum - minLum
	out := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range lum {
		if span > 0 {
			out.Pix[i] = uint8(math.Round((v - minLum) / span * 255))
		} else {
			out.Pix[i] = 128
		}
	}
	return out
}

// BlendOverlay drapes the overlay onto the relief with the given overlay
// transparency: 0 keeps the bare relief, 1 shows only the overlay. The two
// images must have identical pixel dimensions.
func BlendOverlay(relief *image.Gray, overlay image.Image, alpha float64) (*image.RGBA, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("overlay alpha %g out of range [0,1]", alpha)
	}

	rb := relief.Bounds()
	ob := overlay.Bounds()
	if rb.Dx() != ob.Dx() || rb.Dy() != ob.Dy() {
		return nil, fmt.Errorf("overlay size %dx%d does not match relief %dx%d",
			ob.Dx(), ob.Dy(), rb.Dx(), rb.Dy())
	}

	width := rb.Dx()
	height := rb.Dy()
	out := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			base := float64(relief.GrayAt(rb.Min.X+x, rb.Min.Y+y).Y)
			r, g, b, _ := overlay.At(ob.Min.X+x, ob.Min.Y+y).RGBA()

			idx := out.PixOffset(x, y)
			out.Pix[idx] = blend(base, float64(r>>8), alpha)
			out.Pix[idx+1] = blend(base, float64(g>>8), alpha)
			out.Pix[idx+2] = blend(base, float64(b>>8), alpha)
			out.Pix[idx+3] = 255
		}
	}
	return out, nil
}

func blend(base, over, alpha float64) uint8 {
	return uint8(math.Round(base*(1-alpha) + over*alpha))
}

// EncodePNG encodes the composed image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Preview chains the pipeline: decode both rasters, derive the relief, blend
// the overlay and encode the result as PNG.
func Preview(elevationTIFF, overlayPNG []byte, alpha float64) ([]byte, error) {
	elevation, err := DecodeElevation(elevationTIFF)
	if err != nil {
		return nil, err
	}
	overlay, err := DecodeOverlay(overlayPNG)
	if err != nil {
		return nil, err
	}
	composed, err := BlendOverlay(Relief(elevation), overlay, alpha)
	if err != nil {
		return nil, err
	}
	return EncodePNG(composed)
}
