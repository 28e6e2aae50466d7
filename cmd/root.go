package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opentopography/terratile/internal/arcgis"
	"github.com/opentopography/terratile/internal/terrain"
	"github.com/opentopography/terratile/pkg/geo"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "terratile",
	Short: "Fetch matched elevation and imagery rasters for any bounding box",
	Long: `terratile downloads a digital elevation model and a matching basemap
image for a geographic bounding box.

The elevation raster comes from an ArcGIS-style image export service as a
64-bit float GeoTIFF; the basemap comes from the web-map export task as a
PNG sized to the same pixel dimensions, so the pair overlays cleanly in any
terrain renderer. Optionally a flat 2D preview of the pair is composed next
to them.

Examples:
  # Mount Hood at 400px on the long edge
  terratile --min-lon -121.79031 --min-lat 45.30387 --max-lon -121.58707 --max-lat 45.44375 --major-dim 400 -o ./mthood

  # Same box as a single flag, topo basemap, with preview
  terratile --bbox -121.79031,45.30387,-121.58707,45.44375 --map-type World_Topo_Map --preview -o ./mthood

  # Start HTTP server
  terratile serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no flags at all, show help.
		if cmd.Flags().NFlag() == 0 {
			return cmd.Help()
		}
		return runFetch(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.terratile.yaml)")

	// Bounding box
	rootCmd.Flags().Float64("min-lon", 0, "minimum longitude (west boundary)")
	rootCmd.Flags().Float64("min-lat", 0, "minimum latitude (south boundary)")
	rootCmd.Flags().Float64("max-lon", 0, "maximum longitude (east boundary)")
	rootCmd.Flags().Float64("max-lat", 0, "maximum latitude (north boundary)")
	rootCmd.Flags().String("bbox", "", "bounding box as 'min-lon,min-lat,max-lon,max-lat'")

	// Raster options
	rootCmd.Flags().IntP("major-dim", "d", 400, "pixel size of the larger image dimension")
	rootCmd.Flags().StringP("map-type", "m", "World_Imagery", "ArcGIS basemap service name")
	rootCmd.Flags().Int("bbox-sr", geo.WKIDWGS84, "spatial reference ID of the bounding box")
	rootCmd.Flags().Int("image-sr", geo.WKIDWGS84, "spatial reference ID of the output raster")
	rootCmd.Flags().StringP("out-dir", "o", ".", "directory for the output files")

	// Preview options
	rootCmd.Flags().Bool("preview", false, "compose a 2D preview of the pair")
	rootCmd.Flags().Float64("overlay-alpha", 0.5, "basemap transparency in the preview [0,1]")

	// HTTP options
	rootCmd.Flags().String("elevation-url", arcgis.DefaultElevationURL, "elevation image export endpoint")
	rootCmd.Flags().String("export-url", arcgis.DefaultExportURL, "web-map export task endpoint")
	rootCmd.Flags().String("user-agent", "terratile/1.0.0", "HTTP User-Agent header")
	rootCmd.Flags().Duration("fetch-timeout", 60*time.Second, "timeout per upstream request")

	// Bind flags to viper for root command
	viper.BindPFlag("min-lon", rootCmd.Flags().Lookup("min-lon"))
	viper.BindPFlag("min-lat", rootCmd.Flags().Lookup("min-lat"))
	viper.BindPFlag("max-lon", rootCmd.Flags().Lookup("max-lon"))
	viper.BindPFlag("max-lat", rootCmd.Flags().Lookup("max-lat"))
	viper.BindPFlag("bbox", rootCmd.Flags().Lookup("bbox"))
	viper.BindPFlag("major-dim", rootCmd.Flags().Lookup("major-dim"))
	viper.BindPFlag("map-type", rootCmd.Flags().Lookup("map-type"))
	viper.BindPFlag("bbox-sr", rootCmd.Flags().Lookup("bbox-sr"))
	viper.BindPFlag("image-sr", rootCmd.Flags().Lookup("image-sr"))
	viper.BindPFlag("out-dir", rootCmd.Flags().Lookup("out-dir"))
	viper.BindPFlag("preview", rootCmd.Flags().Lookup("preview"))
	viper.BindPFlag("overlay-alpha", rootCmd.Flags().Lookup("overlay-alpha"))
	viper.BindPFlag("elevation-url", rootCmd.Flags().Lookup("elevation-url"))
	viper.BindPFlag("export-url", rootCmd.Flags().Lookup("export-url"))
	viper.BindPFlag("user-agent", rootCmd.Flags().Lookup("user-agent"))
	viper.BindPFlag("fetch-timeout", rootCmd.Flags().Lookup("fetch-timeout"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".terratile" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".terratile")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := configFromViper()
	if err != nil {
		return err
	}

	client := arcgis.NewClient(&arcgis.Options{
		ElevationURL: viper.GetString("elevation-url"),
		ExportURL:    viper.GetString("export-url"),
		UserAgent:    viper.GetString("user-agent"),
		Timeout:      viper.GetDuration("fetch-timeout"),
	})

	pipeline := terrain.New(cfg, client, nil, nil)
	result, err := pipeline.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Image size: %s\n", result.Size)
	fmt.Fprintf(cmd.ErrOrStderr(), "Elevation raster: %s\n", result.ElevationPath)
	fmt.Fprintf(cmd.ErrOrStderr(), "Basemap image: %s\n", result.ImageryPath)
	if result.PreviewPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Preview: %s\n", result.PreviewPath)
	}
	return nil
}

// configFromViper assembles the pipeline configuration from flags and the
// optional config file.
func configFromViper() (terrain.Config, error) {
	cfg := terrain.Config{
		MinLon:         viper.GetFloat64("min-lon"),
		MinLat:         viper.GetFloat64("min-lat"),
		MaxLon:         viper.GetFloat64("max-lon"),
		MaxLat:         viper.GetFloat64("max-lat"),
		MajorDimension: viper.GetInt("major-dim"),
		MapType:        viper.GetString("map-type"),
		BBoxSR:         viper.GetInt("bbox-sr"),
		ImageSR:        viper.GetInt("image-sr"),
		OverlayAlpha:   viper.GetFloat64("overlay-alpha"),
		Preview:        viper.GetBool("preview"),
		OutputDir:      viper.GetString("out-dir"),
	}

	if bbox := viper.GetString("bbox"); bbox != "" {
		var err error
		cfg.MinLon, cfg.MinLat, cfg.MaxLon, cfg.MaxLat, err = parseBBox(bbox)
		if err != nil {
			return terrain.Config{}, err
		}
	}

	if cfg.MinLon == 0 && cfg.MaxLon == 0 && cfg.MinLat == 0 && cfg.MaxLat == 0 {
		return terrain.Config{}, fmt.Errorf("specify a bounding box (--min-lon, --min-lat, --max-lon, --max-lat or --bbox)")
	}
	if cfg.OverlayAlpha < 0 || cfg.OverlayAlpha > 1 {
		return terrain.Config{}, fmt.Errorf("overlay-alpha must be between 0 and 1")
	}
	return cfg, nil
}

// parseBBox parses "min-lon,min-lat,max-lon,max-lat".
func parseBBox(bboxStr string) (minLon, minLat, maxLon, maxLat float64, err error) {
	parts := strings.Split(bboxStr, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("bbox must be in format 'min-lon,min-lat,max-lon,max-lat'")
	}

	values := make([]float64, 4)
	names := []string{"min-lon", "min-lat", "max-lon", "max-lat"}
	for i, part := range parts {
		values[i], err = strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid %s in bbox: %v", names[i], err)
		}
	}
	return values[0], values[1], values[2], values[3], nil
}
