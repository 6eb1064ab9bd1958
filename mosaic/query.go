package mosaic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// AssetsForTile returns, in document order, the assets covering tile t
// expressed in callerTMS (nil means the document's own TMS). Implements
// "lookup across TMSes": when the TMSes differ, t is converted to
// a geographic polygon and re-covered against the document's TMS at its
// indexing level; when they match, the cheaper integer quadkey
// conversion in findQuadkeys is used instead, since it's provably
// equivalent for an identical grid.
func (d *Document) AssetsForTile(t Tile, callerTMS TileMatrixSet) ([]string, error) {
	docTMS := WebMercatorQuad
	zoom := d.QuadkeyZoomLevel()

	var quadkeys []string
	if callerTMS == nil || callerTMS.Identifier() == docTMS.Identifier() {
		quadkeys = findQuadkeys(t, zoom)
	} else {
		bound := callerTMS.Bounds(t)
		ring := orb.Ring{
			{bound.Min.X(), bound.Min.Y()}, {bound.Max.X(), bound.Min.Y()},
			{bound.Max.X(), bound.Max.Y()}, {bound.Min.X(), bound.Max.Y()}, {bound.Min.X(), bound.Min.Y()},
		}
		cells, err := TileCover(orb.Polygon{ring}, CoverOptions{TMS: docTMS, Zoom: zoom})
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			quadkeys = append(quadkeys, quadkeyFor(c.Tile))
		}
	}
	return d.unionAssets(quadkeys), nil
}

// AssetsForPoint returns the assets covering (lng, lat) using the
// document's own TMS to resolve the quadkey.
func (d *Document) AssetsForPoint(lng, lat float64) ([]string, error) {
	zoom := d.QuadkeyZoomLevel()
	t := WebMercatorQuad.Tile(lng, lat, zoom)
	qk := quadkeyFor(t)
	return d.unionAssets([]string{qk}), nil
}

// AssetsForBBox returns the union, in document order, of every cell's
// assets whose cell intersects the box.
func (d *Document) AssetsForBBox(xmin, ymin, xmax, ymax float64) ([]string, error) {
	zoom := d.QuadkeyZoomLevel()
	ring := orb.Ring{{xmin, ymin}, {xmax, ymin}, {xmax, ymax}, {xmin, ymax}, {xmin, ymin}}
	cells, err := TileCover(orb.Polygon{ring}, CoverOptions{TMS: WebMercatorQuad, Zoom: zoom})
	if err != nil {
		return nil, err
	}
	quadkeys := make([]string, len(cells))
	for i, c := range cells {
		quadkeys[i] = quadkeyFor(c.Tile)
	}
	return d.unionAssets(quadkeys), nil
}

// unionAssets concatenates the tiles lists for each quadkey in order,
// deduplicating while preserving first occurrence.
func (d *Document) unionAssets(quadkeys []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, qk := range quadkeys {
		for _, asset := range d.Tiles[qk] {
			if seen[asset] {
				continue
			}
			seen[asset] = true
			out = append(out, asset)
		}
	}
	return out
}

// ComposedResult is the outcome of delegating tile()/point() to the
// injected reader and composing samples step 5.
type ComposedResult struct {
	AssetsUsed []string
	Bytes      []byte
}

// Tile delegates to reader for every asset covering t, fanning the calls
// out across a bounded worker pool and composing the result via the
// selected pixel-selection policy.
func (d *Document) Tile(ctx context.Context, t Tile, reader AssetReader, callerTMS TileMatrixSet, opts ReaderOptions) (*ComposedResult, error) {
	assets, err := d.AssetsForTile(t, callerTMS)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, ErrNoAssetFound
	}
	if opts.Reverse {
		assets = reverseStrings(assets)
	}

	results, err := fanOutBytes(ctx, assets, opts.threads(), func(ctx context.Context, asset string) ([]byte, error) {
		return reader.Tile(ctx, asset, t.X, t.Y, t.Z, opts)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoAssetFound
	}
	return composeBytes(assets, results, opts.pixelSelection()), nil
}

// Point delegates to reader for every asset covering (lng, lat),
// tolerating per-asset PointOutsideBounds errors, then composes the
// per-asset samples into one via the selected pixel-selection policy —
// the decoded-value counterpart to Tile's byte-level composeBytes. If
// every asset fails with PointOutsideBounds, the mosaic-level error
// surfaces.
func (d *Document) Point(ctx context.Context, lng, lat float64, reader AssetReader, opts ReaderOptions) (*Sample, []string, error) {
	assets, err := d.AssetsForPoint(lng, lat)
	if err != nil {
		return nil, nil, err
	}
	if len(assets) == 0 {
		return nil, nil, ErrNoAssetFound
	}
	if opts.Reverse {
		assets = reverseStrings(assets)
	}

	var mu sync.Mutex
	var samples []Sample
	var used []string
	outsideCount := 0

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, opts.threads())
	for _, asset := range assets {
		asset := asset
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			s, err := reader.Point(gctx, asset, lng, lat, opts)
			if err != nil {
				mu.Lock()
				outsideCount++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			samples = append(samples, s)
			used = append(used, asset)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if outsideCount == len(assets) {
		return nil, nil, ErrPointOutside
	}
	composed := composeSamples(samples, opts.pixelSelection())
	return &composed, used, nil
}

// Part delegates to reader for every asset intersecting bbox, composing
// the raw per-asset reads the same order-based way Tile does.
func (d *Document) Part(ctx context.Context, bbox [4]float64, reader AssetReader, opts ReaderOptions) (*ComposedResult, error) {
	assets, err := d.AssetsForBBox(bbox[0], bbox[1], bbox[2], bbox[3])
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, ErrNoAssetFound
	}
	if opts.Reverse {
		assets = reverseStrings(assets)
	}

	results, err := fanOutBytes(ctx, assets, opts.threads(), func(ctx context.Context, asset string) ([]byte, error) {
		return reader.Part(ctx, asset, bbox, opts)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoAssetFound
	}
	return composeBytes(assets, results, opts.pixelSelection()), nil
}

// Feature delegates to reader for every asset intersecting feature's
// bounding box, composing the same way Part does.
func (d *Document) Feature(ctx context.Context, feature *geojson.Feature, reader AssetReader, opts ReaderOptions) (*ComposedResult, error) {
	bound := feature.Geometry.Bound()
	assets, err := d.AssetsForBBox(bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y())
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, ErrNoAssetFound
	}
	if opts.Reverse {
		assets = reverseStrings(assets)
	}

	results, err := fanOutBytes(ctx, assets, opts.threads(), func(ctx context.Context, asset string) ([]byte, error) {
		return reader.Feature(ctx, asset, feature, opts)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoAssetFound
	}
	return composeBytes(assets, results, opts.pixelSelection()), nil
}

func reverseStrings(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// fanOutBytes invokes fn for each asset across a bounded worker pool,
// preserving input order in the result slice.
func fanOutBytes(ctx context.Context, assets []string, threads int, fn func(context.Context, string) ([]byte, error)) ([][]byte, error) {
	out := make([][]byte, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, threads)
	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			b, err := fn(gctx, asset)
			if err != nil {
				return fmt.Errorf("mosaicjson: reading %s: %w", asset, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// composeBytes applies the pixel-selection policy over raw per-asset
// byte results. Byte-level composition can only implement the
// order-based policies (first/last) generically — highest/lowest/mean/
// median/stdev/darkest/brightest require decoded numeric samples and are
// implemented against Sample values by composeSamples, which Point
// invokes since AssetReader.Point already hands back decoded values.
func composeBytes(assets []string, results [][]byte, policy PixelSelection) *ComposedResult {
	switch policy {
	case SelectLast:
		return &ComposedResult{AssetsUsed: []string{assets[len(assets)-1]}, Bytes: results[len(results)-1]}
	default:
		return &ComposedResult{AssetsUsed: []string{assets[0]}, Bytes: results[0]}
	}
}

// composeSamples implements the nine pixel-selection policies over
// decoded per-asset samples, ties broken by asset order (first-asset-wins
// question on tie-breaking).
func composeSamples(samples []Sample, policy PixelSelection) Sample {
	valid := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !s.Mask {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		if len(samples) > 0 {
			return samples[0]
		}
		return Sample{}
	}

	switch policy {
	case SelectLast:
		return valid[len(valid)-1]
	case SelectHighest:
		return extremeSample(valid, true)
	case SelectLowest:
		return extremeSample(valid, false)
	case SelectDarkest:
		return extremeByMean(valid, false)
	case SelectBrightest:
		return extremeByMean(valid, true)
	case SelectMean:
		return aggregateSample(valid, meanOf)
	case SelectMedian:
		return aggregateSample(valid, medianOf)
	case SelectStdev:
		return aggregateSample(valid, stdevOf)
	default: // SelectFirst
		return valid[0]
	}
}

func extremeSample(samples []Sample, highest bool) Sample {
	best := samples[0]
	bestMean := meanOf(best.Values)
	for _, s := range samples[1:] {
		m := meanOf(s.Values)
		if (highest && m > bestMean) || (!highest && m < bestMean) {
			best, bestMean = s, m
		}
	}
	return best
}

func extremeByMean(samples []Sample, brightest bool) Sample {
	return extremeSample(samples, brightest)
}

func aggregateSample(samples []Sample, agg func([]float64) float64) Sample {
	bands := len(samples[0].Values)
	out := make([]float64, bands)
	for b := 0; b < bands; b++ {
		vals := make([]float64, len(samples))
		for i, s := range samples {
			if b < len(s.Values) {
				vals[i] = s.Values[b]
			}
		}
		out[b] = agg(vals)
	}
	return Sample{Asset: samples[0].Asset, Values: out}
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func medianOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func stdevOf(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := meanOf(vals)
	sumSq := 0.0
	for _, v := range vals {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq / float64(len(vals)-1))
}
