// Package arcgis fetches terrain data from ArcGIS-style export services:
// an elevation image server for DEM rasters and the web-map export task for
// basemap imagery. Both follow the same two-step protocol: a JSON request
// that returns a download URL, then a GET for the binary payload.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default endpoints for the public ArcGIS online services.
const (
	DefaultElevationURL     = "https://elevation.arcgis.com/arcgis/rest/services/WorldElevation/Terrain/ImageServer/exportImage"
	DefaultExportURL        = "https://utility.arcgisonline.com/arcgis/rest/services/Utilities/PrintingTools/GPServer/Export%20Web%20Map%20Task/execute"
	DefaultBasemapURLFormat = "https://services.arcgisonline.com/ArcGIS/rest/services/%s/MapServer"

	defaultUserAgent = "terratile/1.0.0"
	defaultTimeout   = 60 * time.Second
)

var (
	remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terratile_remote_requests_total",
		Help: "The total number of requests to remote export services",
	}, []string{"endpoint", "outcome"})
	payloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terratile_payload_bytes_total",
		Help: "The total number of payload bytes written to disk",
	}, []string{"endpoint"})
)

// RequestError reports a non-200 response from a remote endpoint.
type RequestError struct {
	Endpoint   string
	URL        string
	StatusCode int
	Status     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Status)
}

// MalformedResponseError reports a JSON response missing an expected field.
type MalformedResponseError struct {
	Endpoint string
	Field    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s response missing %q", e.Endpoint, e.Field)
}

// Options configures a Client. Zero values fall back to the public ArcGIS
// endpoints and defaults.
type Options struct {
	ElevationURL     string
	ExportURL        string
	BasemapURLFormat string
	UserAgent        string
	Timeout          time.Duration
	Logger           *slog.Logger
}

// Client issues export requests and downloads the derived payloads.
type Client struct {
	httpClient       *http.Client
	elevationURL     string
	exportURL        string
	basemapURLFormat string
	userAgent        string
	logger           *slog.Logger
}

// NewClient creates a client for the ArcGIS export services.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	c := &Client{
		elevationURL:     opts.ElevationURL,
		exportURL:        opts.ExportURL,
		basemapURLFormat: opts.BasemapURLFormat,
		userAgent:        opts.UserAgent,
		logger:           opts.Logger,
	}
	if c.elevationURL == "" {
		c.elevationURL = DefaultElevationURL
	}
	if c.exportURL == "" {
		c.exportURL = DefaultExportURL
	}
	if c.basemapURLFormat == "" {
		c.basemapURLFormat = DefaultBasemapURLFormat
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c
}

// getJSON issues a GET request and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, endpoint, url string, v any) error {
	body, err := c.get(ctx, endpoint, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		remoteRequests.WithLabelValues(endpoint, "malformed").Inc()
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		remoteRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		remoteRequests.WithLabelValues(endpoint, "http_error").Inc()
		return nil, &RequestError{
			Endpoint:   endpoint,
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	remoteRequests.WithLabelValues(endpoint, "ok").Inc()
	return resp.Body, nil
}

// download fetches url and writes the raw body to destPath. The payload is
// staged in a temporary file in the destination directory and renamed into
// place, so destPath exists only if the whole download succeeded.
func (c *Client) download(ctx context.Context, endpoint, url, destPath string) error {
	body, err := c.get(ctx, endpoint, url)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".terratile-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s payload: %w", endpoint, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s payload: %w", endpoint, err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	payloadBytes.WithLabelValues(endpoint).Add(float64(n))
	c.logger.Info("saved payload", "endpoint", endpoint, "path", destPath, "bytes", n)
	return nil
}

// tempDestPath generates a destination path in the system temp directory.
func tempDestPath(prefix, ext string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d%s", prefix, time.Now().UnixNano(), ext))
}
