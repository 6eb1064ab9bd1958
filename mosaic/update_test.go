package mosaic

import (
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAddFirstOrdering(t *testing.T) {
	// the merge scenario: update(M_v1, [F_new], add_first=True) where F_new
	// produces tiles["X"] == ["new"] and M_v1.tiles["X"] == ["old"]
	// yields M_v2.tiles["X"] == ["new","old"] and version increases.
	zero := 0
	base := &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Version:     "1.0.0",
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &zero,
		Bounds:      [4]float64{-10, -10, 10, 10},
		Tiles:       map[string][]string{"0": {"old"}},
	}

	newFeature := featureWithPath("new", squarePolygon(-5, -5, 5, 5))
	updated, err := Update(base, []*geojson.Feature{newFeature}, UpdateOptions{AddFirst: true, Quiet: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"new", "old"}, updated.Tiles["0"])
	assert.Equal(t, "1.0.1", updated.Version)
	// base is untouched — Update must not mutate its input document.
	assert.Equal(t, []string{"old"}, base.Tiles["0"])
}

func TestUpdateAddLastOrdering(t *testing.T) {
	zero := 0
	base := &Document{
		MosaicJSON: DefaultMosaicJSONVersion, Version: "1.0.0",
		Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero,
		Bounds: [4]float64{-10, -10, 10, 10},
		Tiles:  map[string][]string{"0": {"old"}},
	}
	newFeature := featureWithPath("new", squarePolygon(-5, -5, 5, 5))
	updated, err := Update(base, []*geojson.Feature{newFeature}, UpdateOptions{AddFirst: false, Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, updated.Tiles["0"])
}

func TestUpdateBoundsUnionAndVersionBump(t *testing.T) {
	zero := 0
	base := &Document{
		MosaicJSON: DefaultMosaicJSONVersion, Version: "1.0.0",
		Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero,
		Bounds: [4]float64{-1, -1, 1, 1},
		Tiles:  map[string][]string{"0": {"old"}},
	}
	f := featureWithPath("new", squarePolygon(-5, -5, 5, 5))
	updated, err := Update(base, []*geojson.Feature{f}, UpdateOptions{AddFirst: true, Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, -5.0, updated.Bounds[0])
	assert.Equal(t, 5.0, updated.Bounds[2])
}

func TestUpdateEmptyFeaturesIsVersionBumpOnly(t *testing.T) {
	zero := 0
	base := &Document{
		MosaicJSON: DefaultMosaicJSONVersion, Version: "1.0.0",
		Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero,
		Bounds: [4]float64{-1, -1, 1, 1},
		Tiles:  map[string][]string{"0": {"old"}},
	}
	updated, err := Update(base, nil, UpdateOptions{AddFirst: true, Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, base.Tiles, updated.Tiles)
	assert.Equal(t, "1.0.1", updated.Version)
}
