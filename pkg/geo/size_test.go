package geo

import (
	"errors"
	"testing"
)

func TestComputeImageSize(t *testing.T) {
	testCases := []struct {
		name     string
		bbox     BoundingBox
		majorDim int
		want     ImageSize
	}{
		{
			name: "mount hood",
			bbox: BoundingBox{
				P1: Point{Lon: -121.79031, Lat: 45.30387},
				P2: Point{Lon: -121.58707, Lat: 45.44375},
			},
			majorDim: 400,
			want:     ImageSize{Width: 400, Height: 275},
		},
		{
			name: "wide box fixes width",
			bbox: BoundingBox{
				P1: Point{Lon: 0, Lat: 0},
				P2: Point{Lon: 2, Lat: 1},
			},
			majorDim: 400,
			want:     ImageSize{Width: 400, Height: 200},
		},
		{
			name: "tall box fixes height",
			bbox: BoundingBox{
				P1: Point{Lon: 0, Lat: 0},
				P2: Point{Lon: 1, Lat: 2},
			},
			majorDim: 400,
			want:     ImageSize{Width: 200, Height: 400},
		},
		{
			name: "square box",
			bbox: BoundingBox{
				P1: Point{Lon: 10, Lat: 10},
				P2: Point{Lon: 11, Lat: 11},
			},
			majorDim: 256,
			want:     ImageSize{Width: 256, Height: 256},
		},
		{
			name: "corner order does not matter",
			bbox: BoundingBox{
				P1: Point{Lon: 2, Lat: 1},
				P2: Point{Lon: 0, Lat: 0},
			},
			majorDim: 400,
			want:     ImageSize{Width: 400, Height: 200},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeImageSize(tc.bbox, tc.majorDim)
			if err != nil {
				t.Fatalf("ComputeImageSize returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %dx%d, want %dx%d", got.Width, got.Height, tc.want.Width, tc.want.Height)
			}

			larger := got.Width
			if got.Height > larger {
				larger = got.Height
			}
			if larger != tc.majorDim {
				t.Errorf("major dimension is %d, want %d", larger, tc.majorDim)
			}

			// Pure function: same inputs, same outputs.
			again, err := ComputeImageSize(tc.bbox, tc.majorDim)
			if err != nil {
				t.Fatalf("second ComputeImageSize returned error: %v", err)
			}
			if again != got {
				t.Errorf("not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestComputeImageSize_DegenerateBox(t *testing.T) {
	testCases := []struct {
		name string
		bbox BoundingBox
	}{
		{
			name: "zero longitude span",
			bbox: BoundingBox{P1: Point{Lon: 5, Lat: 0}, P2: Point{Lon: 5, Lat: 1}},
		},
		{
			name: "zero latitude span",
			bbox: BoundingBox{P1: Point{Lon: 0, Lat: 5}, P2: Point{Lon: 1, Lat: 5}},
		},
		{
			name: "identical corners",
			bbox: BoundingBox{P1: Point{Lon: 1, Lat: 1}, P2: Point{Lon: 1, Lat: 1}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeImageSize(tc.bbox, 400)
			if !errors.Is(err, ErrDegenerateBoundingBox) {
				t.Errorf("expected ErrDegenerateBoundingBox, got %v", err)
			}
		})
	}
}

func TestComputeImageSize_InvalidMajorDim(t *testing.T) {
	bbox := BoundingBox{P1: Point{Lon: 0, Lat: 0}, P2: Point{Lon: 1, Lat: 1}}
	for _, dim := range []int{0, -1, -400} {
		if _, err := ComputeImageSize(bbox, dim); err == nil {
			t.Errorf("expected error for major dimension %d", dim)
		}
	}
}

func TestImageSizeString(t *testing.T) {
	s := ImageSize{Width: 400, Height: 275}
	if got := s.String(); got != "400,275" {
		t.Errorf("got %q, want %q", got, "400,275")
	}
}

func TestExtentNormalizesCorners(t *testing.T) {
	a := BoundingBox{P1: Point{Lon: -121.5, Lat: 45.4}, P2: Point{Lon: -121.8, Lat: 45.3}}
	b := BoundingBox{P1: Point{Lon: -121.8, Lat: 45.3}, P2: Point{Lon: -121.5, Lat: 45.4}}

	if a.Extent() != b.Extent() {
		t.Errorf("extent differs with corner order: %v vs %v", a.Extent(), b.Extent())
	}

	ext := a.Extent()
	if ext.XMin > ext.XMax || ext.YMin > ext.YMax {
		t.Errorf("extent not normalized: %+v", ext)
	}
	if got := ext.String(); got != "-121.8,45.3,-121.5,45.4" {
		t.Errorf("extent string: got %q", got)
	}
}
