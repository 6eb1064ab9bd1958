package mosaic

import "github.com/paulmach/orb/geojson"

// Accessor resolves a feature to the asset identifier that should be
// stored in a tile's asset list.
type Accessor func(f *geojson.Feature) string

// DefaultAccessor reads properties.path, mirroring the original
// implementation's default_accessor.
func DefaultAccessor(f *geojson.Feature) string {
	if v, ok := f.Properties["path"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// PropertyAccessor reads the named property instead of the default
// "path", for callers indexing features whose asset identifier lives
// under a different key (the CLI's create-from-features --property
// flag).
func PropertyAccessor(name string) Accessor {
	if name == "" || name == "path" {
		return DefaultAccessor
	}
	return func(f *geojson.Feature) string {
		if v, ok := f.Properties[name]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
}

// AssetFilter may drop, sort, or deduplicate the candidate features for
// one cell. It must return a subset (in any order) of candidates; identity
// and order are otherwise preserved for whatever it keeps.
type AssetFilter func(tile Tile, candidates []*geojson.Feature) []*geojson.Feature

// DefaultAssetFilter is the identity filter: no
// minimum-tile-cover/maximum-items-per-tile constraint applied.
// Coverage filtering and sort live in the tile-cover kernel rather than
// here, since they apply uniformly regardless of the feature-level
// filter a caller supplies.
func DefaultAssetFilter(_ Tile, candidates []*geojson.Feature) []*geojson.Feature {
	return candidates
}

// maxItemsPerTileFilter truncates a cell's candidate list to a cap.
func maxItemsPerTileFilter(max int) AssetFilter {
	if max <= 0 {
		return DefaultAssetFilter
	}
	return func(_ Tile, candidates []*geojson.Feature) []*geojson.Feature {
		if len(candidates) <= max {
			return candidates
		}
		return candidates[:max]
	}
}
