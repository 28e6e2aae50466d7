package terrain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/opentopography/terratile/internal/arcgis"
	"github.com/opentopography/terratile/pkg/geo"
)

func testConfig(outputDir string) Config {
	return Config{
		MinLon:         -121.79031,
		MinLat:         45.30387,
		MaxLon:         -121.58707,
		MaxLat:         45.44375,
		MajorDimension: 400,
		MapType:        "World_Imagery",
		BBoxSR:         geo.WKIDWGS84,
		ImageSR:        geo.WKIDWGS84,
		OverlayAlpha:   0.5,
		OutputDir:      outputDir,
	}
}

// newUpstream serves both export endpoints with the given payloads.
func newUpstream(t *testing.T, rasterBytes, pngBytes []byte) *arcgis.Client {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/elevation", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"href": server.URL + "/raster.tif"})
	})
	mux.HandleFunc("/raster.tif", func(w http.ResponseWriter, r *http.Request) {
		w.Write(rasterBytes)
	})
	mux.HandleFunc("/export", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"results":[{"value":{"url":%q}}]}`, server.URL+"/map.png")
	})
	mux.HandleFunc("/map.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return arcgis.NewClient(&arcgis.Options{
		ElevationURL: server.URL + "/elevation",
		ExportURL:    server.URL + "/export",
	})
}

// testPayloads returns a decodable gray16 TIFF and a matching PNG at the
// size the test config produces (400x275).
func testPayloads(t *testing.T) ([]byte, []byte) {
	t.Helper()

	raster := image.NewGray16(image.Rect(0, 0, 400, 275))
	for x := 0; x < 400; x++ {
		for y := 0; y < 275; y++ {
			raster.SetGray16(x, y, color.Gray16{Y: uint16(x * 164)})
		}
	}
	var rasterBuf bytes.Buffer
	if err := tiff.Encode(&rasterBuf, raster, nil); err != nil {
		t.Fatal(err)
	}

	overlay := image.NewRGBA(image.Rect(0, 0, 400, 275))
	for i := 0; i < len(overlay.Pix); i += 4 {
		overlay.Pix[i] = 30
		overlay.Pix[i+1] = 90
		overlay.Pix[i+2] = 40
		overlay.Pix[i+3] = 255
	}
	var overlayBuf bytes.Buffer
	if err := png.Encode(&overlayBuf, overlay); err != nil {
		t.Fatal(err)
	}

	return rasterBuf.Bytes(), overlayBuf.Bytes()
}

func TestPipelineFetch(t *testing.T) {
	rasterBytes := []byte{0x01, 0x02}
	pngBytes := []byte{0x03, 0x04}
	client := newUpstream(t, rasterBytes, pngBytes)

	dir := t.TempDir()
	p := New(testConfig(dir), client, nil, nil)

	result, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if result.Size != (geo.ImageSize{Width: 400, Height: 275}) {
		t.Errorf("size %v, want 400x275", result.Size)
	}

	raster, err := os.ReadFile(result.ElevationPath)
	if err != nil {
		t.Fatalf("reading elevation: %v", err)
	}
	if !bytes.Equal(raster, rasterBytes) {
		t.Errorf("elevation payload %v, want %v", raster, rasterBytes)
	}

	overlay, err := os.ReadFile(result.ImageryPath)
	if err != nil {
		t.Fatalf("reading imagery: %v", err)
	}
	if !bytes.Equal(overlay, pngBytes) {
		t.Errorf("imagery payload %v, want %v", overlay, pngBytes)
	}

	if result.PreviewPath != "" {
		t.Errorf("Fetch must not compose a preview, got %q", result.PreviewPath)
	}
}

func TestPipelineRun_WithPreview(t *testing.T) {
	rasterBytes, pngBytes := testPayloads(t)
	client := newUpstream(t, rasterBytes, pngBytes)

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Preview = true
	p := New(cfg, client, nil, nil)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.PreviewPath == "" {
		t.Fatal("expected a preview path")
	}

	data, err := os.ReadFile(result.PreviewPath)
	if err != nil {
		t.Fatalf("reading preview: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("preview is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 275 {
		t.Errorf("preview size %v, want 400x275", img.Bounds())
	}
}

func TestPipelineRun_UndecodableRasterSkipsPreview(t *testing.T) {
	// Payload bytes that are not a decodable TIFF: the fetched files are
	// still the product, so the run must succeed without a preview.
	client := newUpstream(t, []byte{0x01, 0x02}, []byte{0x03, 0x04})

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Preview = true
	p := New(cfg, client, nil, nil)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.PreviewPath != "" {
		t.Errorf("expected preview to be skipped, got %q", result.PreviewPath)
	}
	if _, err := os.Stat(filepath.Join(dir, "preview.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("preview file must not exist, stat: %v", err)
	}
}

func TestPipelineFetch_DegenerateBox(t *testing.T) {
	client := arcgis.NewClient(nil)

	cfg := testConfig(t.TempDir())
	cfg.MinLat = cfg.MaxLat
	p := New(cfg, client, nil, nil)

	_, err := p.Fetch(context.Background())
	if !errors.Is(err, geo.ErrDegenerateBoundingBox) {
		t.Errorf("expected ErrDegenerateBoundingBox, got %v", err)
	}
}

func TestPipelineFetch_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := arcgis.NewClient(&arcgis.Options{
		ElevationURL: server.URL,
		ExportURL:    server.URL,
	})

	p := New(testConfig(t.TempDir()), client, nil, nil)

	_, err := p.Fetch(context.Background())
	var reqErr *arcgis.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
}
