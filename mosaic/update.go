package mosaic

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// UpdateOptions configures Update: whether new assets are prepended or
// appended to each cell's existing list, the builder options used to
// re-cover the incoming features, and an optional secondary filter
// (MaxItemsPerTile truncates a merged cell to a cap, if set).
type UpdateOptions struct {
	AddFirst        bool
	MaxItemsPerTile int
	Accessor        Accessor
	AssetFilter     AssetFilter
	MinTileCover    float64
	TileCoverSort   bool
	Quiet           bool
}

// Update merges features into d, returning a new Document — d itself is
// left untouched until the caller assigns the result, keeping the merge
// transactional.
func Update(d *Document, features []*geojson.Feature, opts UpdateOptions) (*Document, error) {
	zoom := int(d.QuadkeyZoomLevel())
	partial, err := FromFeatures(features, BuildOptions{
		Minzoom:       d.Minzoom,
		Maxzoom:       d.Maxzoom,
		QuadkeyZoom:   &zoom,
		Accessor:      opts.Accessor,
		AssetFilter:   opts.AssetFilter,
		MinTileCover:  opts.MinTileCover,
		TileCoverSort: opts.TileCoverSort,
		Quiet:         opts.Quiet,
	})
	if err != nil {
		return nil, err
	}

	result := d.Clone()
	secondaryFilter := maxItemsPerTileFilter(opts.MaxItemsPerTile)

	for qk, newAssets := range partial.Tiles {
		oldAssets := result.Tiles[qk]
		var merged []string
		if opts.AddFirst {
			merged = append(append([]string{}, newAssets...), oldAssets...)
		} else {
			merged = append(append([]string{}, oldAssets...), newAssets...)
		}
		merged = truncateAssets(merged, secondaryFilter, qk)
		result.Tiles[qk] = merged
	}

	result.Bounds = unionBounds(result.Bounds, partial.Bounds)
	result.RecomputeCenter()
	result.IncreaseVersion()
	now := time.Now().UTC()
	result.Modified = &now

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// truncateAssets applies a max-items-per-cell cap by delegating to the
// AssetFilter shape so the cap shares its truncation logic with
// maxItemsPerTileFilter's per-tile semantics, without pulling
// *geojson.Feature into the update path (assets here are already plain
// strings post-accessor).
func truncateAssets(assets []string, filter AssetFilter, quadkey string) []string {
	if filter == nil {
		return assets
	}
	probe := make([]*geojson.Feature, len(assets))
	for i, a := range assets {
		f := &geojson.Feature{Properties: geojson.Properties{"path": a}}
		probe[i] = f
	}
	tile, err := tileFromQuadkey(quadkey)
	if err != nil {
		return assets
	}
	filtered := filter(tile, probe)
	out := make([]string, len(filtered))
	for i, f := range filtered {
		out[i] = f.Properties["path"].(string)
	}
	return out
}
