package mosaic

import (
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
)

// FootprintReader is the raster-reading primitive this package consumes
// without implementing: given an asset identifier it yields the asset's
// footprint as a GeoJSON Feature with a WGS-84 polygon. FromURLs
// delegates to this before reusing FromFeatures's machinery.
type FootprintReader interface {
	Footprint(assetID string) (*geojson.Feature, error)
}

// BuildOptions is the builder's configuration bag, enumerated
// rather than an opaque map: {minzoom, maxzoom, quadkey_zoom, tms,
// accessor, asset_filter, min_tile_cover, tile_cover_sort, quiet}.
type BuildOptions struct {
	Minzoom       int
	Maxzoom       int
	QuadkeyZoom   *int
	TMS           TileMatrixSet
	Accessor      Accessor
	AssetFilter   AssetFilter
	MinTileCover  float64
	TileCoverSort bool
	Quiet         bool
	Name          string
	Description   string
	Attribution   string
}

func (o BuildOptions) quadkeyZoom() uint8 {
	if o.QuadkeyZoom != nil {
		return uint8(*o.QuadkeyZoom)
	}
	return uint8(o.Minzoom)
}

func (o BuildOptions) tms() TileMatrixSet {
	if o.TMS != nil {
		return o.TMS
	}
	return WebMercatorQuad
}

func (o BuildOptions) accessor() Accessor {
	if o.Accessor != nil {
		return o.Accessor
	}
	return DefaultAccessor
}

func (o BuildOptions) assetFilter() AssetFilter {
	if o.AssetFilter != nil {
		return o.AssetFilter
	}
	return DefaultAssetFilter
}

// FromFeatures builds a Document from features already materialized
// with a polygon geometry. Ordering rule: absent a custom filter, the
// first-appearing feature wins first position in each cell.
func FromFeatures(features []*geojson.Feature, opts BuildOptions) (*Document, error) {
	if err := validateMinTileCover(opts.MinTileCover); err != nil {
		return nil, err
	}
	if opts.Minzoom > opts.Maxzoom {
		return nil, newValidationError("minzoom", opts.Minzoom, "must be <= maxzoom")
	}

	zoom := opts.quadkeyZoom()
	tms := opts.tms()
	cover := CoverOptions{TMS: tms, Zoom: zoom, MinTileCover: opts.MinTileCover, TileCoverSort: opts.TileCoverSort}

	progress := progressFor(opts.Quiet).NewCountProgress(int64(len(features)), "indexing features")
	defer progress.Close()

	candidates := make(map[string][]*geojson.Feature)
	order := make([]string, 0)
	seenKey := make(map[string]bool)
	var bounds [4]float64

	for _, f := range features {
		geom := f.Geometry
		if geom == nil {
			progress.Add(1)
			continue
		}
		cells, err := TileCover(geom, cover)
		if err != nil {
			return nil, err
		}
		fb := geom.Bound()
		bounds = unionBounds(bounds, [4]float64{fb.Min.X(), fb.Min.Y(), fb.Max.X(), fb.Max.Y()})

		for _, c := range cells {
			qk := quadkeyFor(c.Tile)
			candidates[qk] = append(candidates[qk], f)
			if !seenKey[qk] {
				seenKey[qk] = true
				order = append(order, qk)
			}
		}
		progress.Add(1)
	}

	filter := opts.assetFilter()
	accessor := opts.accessor()
	tiles := make(map[string][]string, len(candidates))
	for _, qk := range order {
		tile, err := tileFromQuadkey(qk)
		if err != nil {
			return nil, err
		}
		filtered := filter(tile, candidates[qk])
		assets := make([]string, 0, len(filtered))
		for _, f := range filtered {
			assets = append(assets, accessor(f))
		}
		if len(assets) > 0 {
			tiles[qk] = assets
		}
	}

	q := int(zoom)
	doc := &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Name:        opts.Name,
		Description: opts.Description,
		Attribution: opts.Attribution,
		Version:     defaultDocumentVersion,
		Minzoom:     opts.Minzoom,
		Maxzoom:     opts.Maxzoom,
		QuadkeyZoom: &q,
		Bounds:      clipBoundsToTMS(bounds, tms),
		Tiles:       tiles,
	}
	doc.RecomputeCenter()
	now := time.Now().UTC()
	doc.Created = &now
	doc.Modified = &now

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromURLs resolves each asset URL to a feature via the injected
// FootprintReader, then delegates to FromFeatures.
func FromURLs(urls []string, reader FootprintReader, opts BuildOptions) (*Document, error) {
	features := make([]*geojson.Feature, 0, len(urls))
	progress := progressFor(opts.Quiet).NewCountProgress(int64(len(urls)), "extracting footprints")
	for _, u := range urls {
		f, err := reader.Footprint(u)
		if err != nil {
			progress.Close()
			return nil, fmt.Errorf("mosaicjson: footprint for %s: %w", u, err)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["path"] = u
		features = append(features, f)
		progress.Add(1)
	}
	progress.Close()
	return FromFeatures(features, opts)
}

// clipBoundsToTMS clips bounds to the TMS's validity bbox, since a
// document's bounds must never extend past what its tile matrix set
// can address.
func clipBoundsToTMS(bounds [4]float64, tms TileMatrixSet) [4]float64 {
	if bounds == ([4]float64{}) {
		return bounds
	}
	mb := tms.MatrixBounds()
	return [4]float64{
		maxF(bounds[0], mb.Min.X()),
		maxF(bounds[1], mb.Min.Y()),
		minF(bounds[2], mb.Max.X()),
		minF(bounds[3], mb.Max.Y()),
	}
}
