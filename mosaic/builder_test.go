package mosaic

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featureWithPath(path string, poly orb.Polygon) *geojson.Feature {
	f := geojson.NewFeature(poly)
	f.Properties = geojson.Properties{"path": path}
	return f
}

func squarePolygon(minLng, minLat, maxLng, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat}, {minLng, minLat},
	}}
}

func TestFromFeaturesOrderPreserved(t *testing.T) {
	// mirrors the merge scenario: two rasters covering the same bounds at
	// quadkey_zoom=0 yield tiles == {"0": ["1.tif","2.tif"]}.
	zero := 0
	f1 := featureWithPath("1.tif", squarePolygon(-10, -10, 10, 10))
	f2 := featureWithPath("2.tif", squarePolygon(-10, -10, 10, 10))

	doc, err := FromFeatures([]*geojson.Feature{f1, f2}, BuildOptions{
		Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Quiet: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.tif", "2.tif"}, doc.Tiles["0"])
}

func TestFromFeaturesMinTileCoverAboveOneRaises(t *testing.T) {
	// min_tile_cover above 1 is rejected as a validation error.
	f1 := featureWithPath("a.tif", squarePolygon(-10, -10, 10, 10))
	_, err := FromFeatures([]*geojson.Feature{f1}, BuildOptions{
		Minzoom: 0, Maxzoom: 0, MinTileCover: 2.0, Quiet: true,
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFromFeaturesDisjointFeatureExcluded(t *testing.T) {
	f1 := featureWithPath("a", squarePolygon(0, 0, 1, 1))
	f2 := featureWithPath("b", squarePolygon(170, 80, 179, 84))

	doc, err := FromFeatures([]*geojson.Feature{f1, f2}, BuildOptions{
		Minzoom: 7, Maxzoom: 12, Quiet: true,
	})
	require.NoError(t, err)

	for qk, assets := range doc.Tiles {
		assert.True(t, isValidQuadkey(qk, 7))
		assert.NotEmpty(t, assets)
		// the two footprints are far apart, so no cell lists both.
		assert.Len(t, assets, 1)
	}
}

func TestFromFeaturesValidatesMinMaxZoom(t *testing.T) {
	f1 := featureWithPath("a", squarePolygon(0, 0, 1, 1))
	_, err := FromFeatures([]*geojson.Feature{f1}, BuildOptions{Minzoom: 5, Maxzoom: 2, Quiet: true})
	require.Error(t, err)
}
