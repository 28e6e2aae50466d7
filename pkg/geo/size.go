package geo

import (
	"fmt"
	"math"
)

// ComputeImageSize converts a bounding box and a target major dimension into
// pixel dimensions that preserve the box's aspect ratio. The larger of the
// two dimensions equals majorDim (up to rounding); the smaller one is scaled
// by the box's longitude/latitude ratio.
//
// An aspect ratio of exactly 1 is scaled on the width side, matching the
// height-fixed branch. Keep this tie-break: downstream rasters are compared
// pixel for pixel against previously generated output.
func ComputeImageSize(bbox BoundingBox, majorDim int) (ImageSize, error) {
	if majorDim <= 0 {
		return ImageSize{}, fmt.Errorf("major dimension must be positive, got %d", majorDim)
	}
	if err := bbox.Validate(); err != nil {
		return ImageSize{}, err
	}

	aspect := math.Abs((bbox.P1.Lon - bbox.P2.Lon) / (bbox.P1.Lat - bbox.P2.Lat))

	var size ImageSize
	if aspect > 1 {
		size.Width = majorDim
		size.Height = int(math.Round(float64(majorDim) / aspect))
	} else {
		size.Height = majorDim
		size.Width = int(math.Round(float64(majorDim) * aspect))
	}
	return size, nil
}
