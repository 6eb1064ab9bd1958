package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/cogeotiff/go-cogeo-mosaic/internal/mosaicconfig"
	"github.com/cogeotiff/go-cogeo-mosaic/mosaic"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cli struct {
	Create struct {
		URLs          []string `arg:"" help:"Asset URLs to index."`
		Output        string   `short:"o" help:"Output mosaic URI; prints the document to stdout if omitted."`
		Minzoom       int      `required:"" help:"Minimum zoom level."`
		Maxzoom       int      `required:"" help:"Maximum zoom level."`
		QuadkeyZoom   int      `name:"quadkey-zoom" help:"Quadkey indexing zoom level; defaults to minzoom."`
		MinTileCover  float64  `name:"min-tile-cover" help:"Minimum tile covering ratio required to include an asset in a cell."`
		TileCoverSort bool     `name:"tile-cover-sort" help:"Order each asset's covered cells by descending covering ratio; the asset order inside a cell is unchanged."`
		Threads       int      `help:"Footprint-resolution concurrency (unused: SidecarFootprintReader resolves sequentially)."`
		TMS           string   `help:"Tile matrix set identifier." default:"WebMercatorQuad"`
		Quiet         bool     `short:"q" help:"Suppress progress output."`
	} `cmd:"" help:"Create a mosaic definition from a list of asset URLs."`

	CreateFromFeatures struct {
		Features      []string `arg:"" help:"GeoJSON Feature or FeatureCollection files." type:"existingfile"`
		Output        string   `short:"o" help:"Output mosaic URI; prints the document to stdout if omitted."`
		Minzoom       int      `required:"" help:"Mosaic minimum zoom level."`
		Maxzoom       int      `required:"" help:"Mosaic maximum zoom level."`
		Property      string   `required:"" help:"Feature property holding the asset identifier."`
		QuadkeyZoom   int      `name:"quadkey-zoom" help:"Quadkey indexing zoom level; defaults to minzoom."`
		MinTileCover  float64  `name:"min-tile-cover" help:"Minimum tile covering ratio required to include a feature in a cell."`
		TileCoverSort bool     `name:"tile-cover-sort" help:"Order each feature's covered cells by descending covering ratio; the feature order inside a cell is unchanged."`
		Quiet         bool     `short:"q" help:"Suppress progress output."`
	} `cmd:"" name:"create-from-features" help:"Create a mosaic definition from GeoJSON features."`

	Footprint struct {
		URLs    []string `arg:"" help:"Asset URLs."`
		Output  string   `short:"o" help:"Output GeoJSON file; prints to stdout if omitted."`
		Threads int      `help:"Footprint-resolution concurrency (unused: resolution runs sequentially)."`
		Quiet   bool     `short:"q" help:"Suppress progress output."`
	} `cmd:"" help:"Resolve each asset URL's footprint into a FeatureCollection."`

	Info struct {
		URI string `arg:"" help:"Mosaic URI."`
	} `cmd:"" help:"Print mosaic metadata as JSON."`

	ToGeoJSON struct {
		URI string `arg:"" help:"Mosaic URI."`
	} `cmd:"" name:"to-geojson" help:"Print the mosaic's indexing cells as a GeoJSON FeatureCollection."`

	Update struct {
		URI          string   `arg:"" help:"Mosaic URI to update."`
		URLs         []string `arg:"" help:"Asset URLs to add."`
		AddFirst     bool     `name:"add-first" help:"Prepend new assets ahead of existing ones in each cell (default)."`
		AddLast      bool     `name:"add-last" help:"Append new assets after existing ones in each cell."`
		MinTileCover float64  `name:"min-tile-cover" help:"Minimum tile covering ratio required to include an asset in a cell."`
		Quiet        bool     `short:"q" help:"Suppress progress output."`
	} `cmd:"" help:"Add asset URLs to an existing mosaic definition."`

	Upload struct {
		Source         string `arg:"" help:"Local file to upload." type:"existingfile"`
		Dest           string `arg:"" help:"Destination key within --bucket."`
		Bucket         string `required:"" help:"Destination bucket URL."`
		MaxConcurrency int    `default:"2" help:"Upload concurrency."`
	} `cmd:"" help:"Upload a local file to remote storage."`

	Version struct {
	} `cmd:"" help:"Show the program version."`
}

// exitCodes mirror the backend error taxonomy: 1 user error, 2 I/O/backend
// error, 3 not found, 4 already exists. 0 is the zero value of os.Exit's
// implicit success path and is never assigned explicitly.
func exitCode(err error) int {
	var validationErr *mosaic.ValidationError
	var notFoundErr *mosaic.MosaicNotFoundError
	var existsErr *mosaic.MosaicExistsError
	switch {
	case errors.As(err, &validationErr):
		return 1
	case errors.As(err, &notFoundErr):
		return 3
	case errors.As(err, &existsErr):
		return 4
	default:
		return 2
	}
}

func main() {
	if len(os.Args) < 2 {
		os.Args = append(os.Args, "--help")
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mosaicjson: building logger:", err)
		os.Exit(2)
	}
	defer zapLogger.Sync()
	logger := zap.NewStdLog(zapLogger)

	cfg, err := mosaicconfig.Load()
	if err != nil {
		logger.Fatalf("loading configuration: %v", err)
	}
	mosaic.ConfigureCache(cfg.CacheSize, cfg.CacheTTL, cfg.CacheDisabled)
	mosaic.SetDefaultMaxThreads(cfg.MaxThreads)
	mosaic.SetDefaultAWSRegion(cfg.AWSRegion)

	ctx := kong.Parse(&cli)
	background := context.Background()

	switch ctx.Command() {
	case "create <urls>":
		runErr := runCreate(background)
		if runErr != nil {
			logger.Printf("create failed: %v", runErr)
			os.Exit(exitCode(runErr))
		}
	case "create-from-features <features>":
		runErr := runCreateFromFeatures(background)
		if runErr != nil {
			logger.Printf("create-from-features failed: %v", runErr)
			os.Exit(exitCode(runErr))
		}
	case "footprint <urls>":
		runErr := runFootprint()
		if runErr != nil {
			logger.Printf("footprint failed: %v", runErr)
			os.Exit(exitCode(runErr))
		}
	case "info <uri>":
		runErr := runInfo(background)
		if runErr != nil {
			logger.Printf("info failed: %v", runErr)
			os.Exit(exitCode(runErr))
		}
	case "to-geojson <uri>":
		runErr := runToGeoJSON(background)
		if runErr != nil {
			logger.Printf("to-geojson failed: %v", runErr)
			os.Exit(exitCode(runErr))
		}
	case "update <uri> <urls>":
		runErr := runUpdate(background)
		if runErr != nil {
			logger.Printf("update failed: %v", runErr)
			os.Exit(exitCode(runErr))
		}
	case "upload <source> <dest>":
		runErr := mosaic.Upload(background, logger, cli.Upload.Source, cli.Upload.Bucket, cli.Upload.Dest, cli.Upload.MaxConcurrency)
		if runErr != nil {
			logger.Printf("upload failed: %v", runErr)
			os.Exit(exitCode(runErr))
		}
	case "version":
		fmt.Printf("go-cogeo-mosaic %s, commit %s, built at %s\n", version, commit, date)
	default:
		panic(ctx.Command())
	}
}

func runCreate(ctx context.Context) error {
	opts := mosaic.BuildOptions{
		Minzoom:       cli.Create.Minzoom,
		Maxzoom:       cli.Create.Maxzoom,
		MinTileCover:  cli.Create.MinTileCover,
		TileCoverSort: cli.Create.TileCoverSort,
		Quiet:         cli.Create.Quiet,
	}
	if cli.Create.QuadkeyZoom > 0 {
		q := cli.Create.QuadkeyZoom
		opts.QuadkeyZoom = &q
	}
	if cli.Create.TMS != "" && cli.Create.TMS != mosaic.WebMercatorQuad.Identifier() {
		return &mosaic.ValidationError{Field: "tms", Value: cli.Create.TMS, Message: "no tile matrix set other than WebMercatorQuad is available"}
	}

	reader := mosaic.SidecarFootprintReader{}
	doc, err := mosaic.FromURLs(cli.Create.URLs, reader, opts)
	if err != nil {
		return err
	}
	return writeOrPrint(ctx, cli.Create.Output, doc)
}

func runCreateFromFeatures(ctx context.Context) error {
	features, err := loadFeatureFiles(cli.CreateFromFeatures.Features)
	if err != nil {
		return err
	}

	opts := mosaic.BuildOptions{
		Minzoom:       cli.CreateFromFeatures.Minzoom,
		Maxzoom:       cli.CreateFromFeatures.Maxzoom,
		Accessor:      mosaic.PropertyAccessor(cli.CreateFromFeatures.Property),
		MinTileCover:  cli.CreateFromFeatures.MinTileCover,
		TileCoverSort: cli.CreateFromFeatures.TileCoverSort,
		Quiet:         cli.CreateFromFeatures.Quiet,
	}
	if cli.CreateFromFeatures.QuadkeyZoom > 0 {
		q := cli.CreateFromFeatures.QuadkeyZoom
		opts.QuadkeyZoom = &q
	}

	doc, err := mosaic.FromFeatures(features, opts)
	if err != nil {
		return err
	}
	return writeOrPrint(ctx, cli.CreateFromFeatures.Output, doc)
}

func runFootprint() error {
	reader := mosaic.SidecarFootprintReader{}
	fc := geojson.NewFeatureCollection()
	for _, u := range cli.Footprint.URLs {
		f, err := reader.Footprint(u)
		if err != nil {
			return fmt.Errorf("mosaicjson: footprint for %s: %w", u, err)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["path"] = u
		fc.Append(f)
	}

	payload, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("mosaicjson: encoding footprints: %w", err)
	}
	return writeBytes(cli.Footprint.Output, payload)
}

func runInfo(ctx context.Context) error {
	backend, err := mosaic.Open(ctx, cli.Info.URI, nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	info, err := backend.Info(ctx, false)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("mosaicjson: encoding info: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}

func runToGeoJSON(ctx context.Context) error {
	backend, err := mosaic.Open(ctx, cli.ToGeoJSON.URI, nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	fc, err := backend.Document().ToGeoJSON(mosaic.WebMercatorQuad)
	if err != nil {
		return err
	}
	payload, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("mosaicjson: encoding geojson: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}

func runUpdate(ctx context.Context) error {
	backend, err := mosaic.Open(ctx, cli.Update.URI, nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	reader := mosaic.SidecarFootprintReader{}
	features := make([]*geojson.Feature, 0, len(cli.Update.URLs))
	for _, u := range cli.Update.URLs {
		f, err := reader.Footprint(u)
		if err != nil {
			return fmt.Errorf("mosaicjson: footprint for %s: %w", u, err)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["path"] = u
		features = append(features, f)
	}

	opts := mosaic.UpdateOptions{
		AddFirst:     !cli.Update.AddLast,
		MinTileCover: cli.Update.MinTileCover,
		Quiet:        cli.Update.Quiet,
	}
	return backend.Update(ctx, features, opts)
}

// writeOrPrint persists doc to a mosaic backend at uri when given, or
// prints it to stdout — mirroring the original CLI's behavior of
// printing to stdout absent --output.
func writeOrPrint(ctx context.Context, uri string, doc *mosaic.Document) error {
	if uri == "" {
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("mosaicjson: encoding document: %w", err)
		}
		fmt.Println(string(payload))
		return nil
	}

	backend, err := mosaic.Open(ctx, uri, doc)
	if err != nil {
		return err
	}
	defer backend.Close()
	return backend.Write(ctx, false)
}

func writeBytes(path string, payload []byte) error {
	if path == "" {
		fmt.Println(string(payload))
		return nil
	}
	return os.WriteFile(path, payload, 0o644)
}

// loadFeatureFiles reads each path as either a Feature or a
// FeatureCollection and flattens the result, tolerating either shape the
// way cligj's features_in_arg does for the original CLI.
func loadFeatureFiles(paths []string) ([]*geojson.Feature, error) {
	var features []*geojson.Feature
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("mosaicjson: reading %s: %w", p, err)
		}
		if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
			features = append(features, fc.Features...)
			continue
		}
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("mosaicjson: parsing %s: %w", p, err)
		}
		features = append(features, f)
	}
	return features, nil
}
