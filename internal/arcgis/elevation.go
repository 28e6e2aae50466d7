package arcgis

import (
	"context"
	"net/url"
	"strconv"

	"github.com/opentopography/terratile/pkg/geo"
)

// elevationResponse is the JSON envelope returned by the image server. The
// raster itself lives behind a second download URL.
type elevationResponse struct {
	Href string `json:"href"`
}

// FetchElevation requests a DEM raster covering bbox from the elevation
// image server and writes the GeoTIFF payload to destPath. If destPath is
// empty a path in the system temp directory is generated. The saved path is
// returned; on any failure no file is left at destPath.
//
// The raster is requested as a single-band 64-bit float TIFF with bilinear
// resampling, sized per the supplied ImageSize.
func (c *Client) FetchElevation(ctx context.Context, bbox geo.BoundingBox, size geo.ImageSize, destPath string, bboxSR, imageSR int) (string, error) {
	if err := bbox.Validate(); err != nil {
		return "", err
	}
	if destPath == "" {
		destPath = tempDestPath("elevation", ".tif")
	}

	params := url.Values{}
	params.Set("bbox", bbox.Extent().String())
	params.Set("bboxSR", strconv.Itoa(bboxSR))
	params.Set("imageSR", strconv.Itoa(imageSR))
	params.Set("size", size.String())
	params.Set("format", "tiff")
	params.Set("pixelType", "F64")
	params.Set("noDataInterpretation", "esriNoDataMatchAny")
	params.Set("interpolation", "+RSP_BilinearInterpolation")
	params.Set("f", "json")

	var resp elevationResponse
	if err := c.getJSON(ctx, "elevation", c.elevationURL+"?"+params.Encode(), &resp); err != nil {
		return "", err
	}
	if resp.Href == "" {
		return "", &MalformedResponseError{Endpoint: "elevation", Field: "href"}
	}

	if err := c.download(ctx, "elevation", resp.Href, destPath); err != nil {
		return "", err
	}
	return destPath, nil
}
