package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/opentopography/terratile/pkg/geo"
)

// WebMap is the Web_Map_as_JSON request payload understood by the export
// web map task.
type WebMap struct {
	BaseMap       WebMapBaseMap       `json:"baseMap"`
	ExportOptions WebMapExportOptions `json:"exportOptions"`
	MapOptions    WebMapOptions       `json:"mapOptions"`
}

type WebMapBaseMap struct {
	BaseMapLayers []WebMapLayer `json:"baseMapLayers"`
}

type WebMapLayer struct {
	URL string `json:"url"`
}

type WebMapExportOptions struct {
	OutputSize [2]int `json:"outputSize"`
}

type WebMapOptions struct {
	Extent WebMapExtent `json:"extent"`
}

type WebMapExtent struct {
	SpatialReference SpatialReference `json:"spatialReference"`
	XMax             float64          `json:"xmax"`
	XMin             float64          `json:"xmin"`
	YMax             float64          `json:"ymax"`
	YMin             float64          `json:"ymin"`
}

type SpatialReference struct {
	WKID int `json:"wkid"`
}

// exportResponse is the JSON envelope returned by the export task. The PNG
// lives behind results[0].value.url.
type exportResponse struct {
	Results []struct {
		Value struct {
			URL string `json:"url"`
		} `json:"value"`
	} `json:"results"`
}

// NewWebMap builds the export request payload for a basemap layer covering
// bbox at the given output size. The extent is normalized across the two
// corners, so corner order never changes the payload.
func (c *Client) NewWebMap(bbox geo.BoundingBox, mapType string, size geo.ImageSize, wkid int) WebMap {
	ext := bbox.Extent()
	return WebMap{
		BaseMap: WebMapBaseMap{
			BaseMapLayers: []WebMapLayer{
				{URL: fmt.Sprintf(c.basemapURLFormat, mapType)},
			},
		},
		ExportOptions: WebMapExportOptions{
			OutputSize: [2]int{size.Width, size.Height},
		},
		MapOptions: WebMapOptions{
			Extent: WebMapExtent{
				SpatialReference: SpatialReference{WKID: wkid},
				XMax:             ext.XMax,
				XMin:             ext.XMin,
				YMax:             ext.YMax,
				YMin:             ext.YMin,
			},
		},
	}
}

// FetchImagery requests a basemap image covering bbox from the export web
// map task and writes the PNG payload to destPath. If destPath is empty a
// path in the system temp directory is generated. The saved path is
// returned; on any failure no file is left at destPath.
//
// mapType names an ArcGIS online basemap service, e.g. "World_Imagery".
func (c *Client) FetchImagery(ctx context.Context, bbox geo.BoundingBox, mapType string, size geo.ImageSize, wkid int, destPath string) (string, error) {
	if err := bbox.Validate(); err != nil {
		return "", err
	}
	if destPath == "" {
		destPath = tempDestPath("imagery", ".png")
	}

	webMap, err := json.Marshal(c.NewWebMap(bbox, mapType, size, wkid))
	if err != nil {
		return "", fmt.Errorf("encode web map: %w", err)
	}

	params := url.Values{}
	params.Set("f", "json")
	params.Set("Format", "PNG32")
	params.Set("Layout_Template", "MAP_ONLY")
	params.Set("Web_Map_as_JSON", string(webMap))

	var resp exportResponse
	if err := c.getJSON(ctx, "imagery", c.exportURL+"?"+params.Encode(), &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 || resp.Results[0].Value.URL == "" {
		return "", &MalformedResponseError{Endpoint: "imagery", Field: "results[0].value.url"}
	}

	if err := c.download(ctx, "imagery", resp.Results[0].Value.URL, destPath); err != nil {
		return "", err
	}
	return destPath, nil
}
