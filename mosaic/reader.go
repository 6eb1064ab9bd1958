package mosaic

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// PixelSelection names the function composing per-asset samples into a
// final pixel/value.
type PixelSelection string

const (
	SelectFirst     PixelSelection = "first"
	SelectLast      PixelSelection = "last"
	SelectHighest   PixelSelection = "highest"
	SelectLowest    PixelSelection = "lowest"
	SelectMean      PixelSelection = "mean"
	SelectMedian    PixelSelection = "median"
	SelectStdev     PixelSelection = "stdev"
	SelectDarkest   PixelSelection = "darkest"
	SelectBrightest PixelSelection = "brightest"
)

// Sample is one asset's contribution to a composed result: its decoded
// values (one per band) and the asset it came from.
type Sample struct {
	Asset  string
	Values []float64
	Mask   bool // true when the asset has no data at the query location.
}

// AssetReader is the raster-reading library's per-asset surface this
// core consumes (out of scope): only tile/point/part/feature reads
// are invoked, never pixel decoding internals.
type AssetReader interface {
	Tile(ctx context.Context, asset string, x, y uint32, z uint8, opts ReaderOptions) ([]byte, error)
	Point(ctx context.Context, asset string, lng, lat float64, opts ReaderOptions) (Sample, error)
	Part(ctx context.Context, asset string, bbox [4]float64, opts ReaderOptions) ([]byte, error)
	Feature(ctx context.Context, asset string, feature *geojson.Feature, opts ReaderOptions) ([]byte, error)
}

// ReaderOptions are the per-call options for the reader: threads,
// pixel selection policy, and reverse ordering.
type ReaderOptions struct {
	Threads        int
	PixelSelection PixelSelection
	Reverse        bool
}

func (o ReaderOptions) threads() int {
	if o.Threads > 0 {
		return o.Threads
	}
	return defaultMaxThreads
}

func (o ReaderOptions) pixelSelection() PixelSelection {
	if o.PixelSelection == "" {
		return SelectFirst
	}
	return o.PixelSelection
}

// defaultMaxThreads is overridden by MAX_THREADS through Config.
var defaultMaxThreads = 10

// SetDefaultMaxThreads overrides the package-wide reader concurrency
// default, normally called once at CLI startup with
// internal/mosaicconfig.Config.MaxThreads.
func SetDefaultMaxThreads(n int) {
	if n > 0 {
		defaultMaxThreads = n
	}
}
