package mosaic

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands back a fixed byte payload per asset for Tile/Part/
// Feature and a fixed Sample per asset for Point, so composeBytes and
// composeSamples can be exercised without any real raster decoding.
type fakeReader struct {
	values map[string][]float64
	fail   map[string]bool
}

func (r fakeReader) Tile(ctx context.Context, asset string, x, y uint32, z uint8, opts ReaderOptions) ([]byte, error) {
	return []byte(asset), nil
}

func (r fakeReader) Point(ctx context.Context, asset string, lng, lat float64, opts ReaderOptions) (Sample, error) {
	if r.fail[asset] {
		return Sample{}, ErrPointOutside
	}
	return Sample{Asset: asset, Values: r.values[asset]}, nil
}

func (r fakeReader) Part(ctx context.Context, asset string, bbox [4]float64, opts ReaderOptions) ([]byte, error) {
	return []byte(asset), nil
}

func (r fakeReader) Feature(ctx context.Context, asset string, feature *geojson.Feature, opts ReaderOptions) ([]byte, error) {
	return []byte(asset), nil
}

// queryDocument builds a document with a single zoom-4 cell covering lng/lat
// and bbox (0,0) so AssetsForTile/Point/BBox all resolve to the same assets.
func queryDocument(assets []string) *Document {
	zoom := uint8(4)
	t := WebMercatorQuad.Tile(1, 1, zoom)
	qk := quadkeyFor(t)
	z := int(zoom)
	return &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Minzoom:     4,
		Maxzoom:     4,
		QuadkeyZoom: &z,
		Bounds:      [4]float64{-180, -85, 180, 85},
		Tiles:       map[string][]string{qk: assets},
	}
}

func TestDocumentTileComposesFirstByDefault(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif"})
	reader := fakeReader{}
	tile := WebMercatorQuad.Tile(1, 1, 4)

	result, err := d.Tile(context.Background(), tile, reader, nil, ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tif"}, result.AssetsUsed)
	assert.Equal(t, "a.tif", string(result.Bytes))
}

func TestDocumentTileComposesLast(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif"})
	reader := fakeReader{}
	tile := WebMercatorQuad.Tile(1, 1, 4)

	result, err := d.Tile(context.Background(), tile, reader, nil, ReaderOptions{PixelSelection: SelectLast})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.tif"}, result.AssetsUsed)
	assert.Equal(t, "b.tif", string(result.Bytes))
}

func TestDocumentTileNoAssetFound(t *testing.T) {
	d := queryDocument(nil)
	reader := fakeReader{}
	tile := WebMercatorQuad.Tile(1, 1, 4)

	_, err := d.Tile(context.Background(), tile, reader, nil, ReaderOptions{})
	assert.ErrorIs(t, err, ErrNoAssetFound)
}

func TestDocumentPointComposesMean(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif", "c.tif"})
	reader := fakeReader{values: map[string][]float64{
		"a.tif": {10},
		"b.tif": {20},
		"c.tif": {30},
	}}

	sample, used, err := d.Point(context.Background(), 1, 1, reader, ReaderOptions{PixelSelection: SelectMean})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.tif", "b.tif", "c.tif"}, used)
	assert.Equal(t, []float64{20}, sample.Values)
}

func TestDocumentPointComposesMedian(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif", "c.tif"})
	reader := fakeReader{values: map[string][]float64{
		"a.tif": {5},
		"b.tif": {1},
		"c.tif": {9},
	}}

	sample, _, err := d.Point(context.Background(), 1, 1, reader, ReaderOptions{PixelSelection: SelectMedian})
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, sample.Values)
}

func TestDocumentPointComposesHighestAndLowest(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif"})
	reader := fakeReader{values: map[string][]float64{
		"a.tif": {1, 1},
		"b.tif": {9, 9},
	}}

	highest, _, err := d.Point(context.Background(), 1, 1, reader, ReaderOptions{PixelSelection: SelectHighest})
	require.NoError(t, err)
	assert.Equal(t, "b.tif", highest.Asset)

	lowest, _, err := d.Point(context.Background(), 1, 1, reader, ReaderOptions{PixelSelection: SelectLowest})
	require.NoError(t, err)
	assert.Equal(t, "a.tif", lowest.Asset)
}

func TestDocumentPointComposesStdev(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif"})
	reader := fakeReader{values: map[string][]float64{
		"a.tif": {0},
		"b.tif": {10},
	}}

	sample, _, err := d.Point(context.Background(), 1, 1, reader, ReaderOptions{PixelSelection: SelectStdev})
	require.NoError(t, err)
	require.Len(t, sample.Values, 1)
	assert.InDelta(t, 7.0710678, sample.Values[0], 1e-6)
}

func TestDocumentPointAllOutsideReturnsPointOutside(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif"})
	reader := fakeReader{fail: map[string]bool{"a.tif": true, "b.tif": true}}

	_, _, err := d.Point(context.Background(), 1, 1, reader, ReaderOptions{})
	assert.ErrorIs(t, err, ErrPointOutside)
}

func TestDocumentPartComposesFirst(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif"})
	reader := fakeReader{}

	result, err := d.Part(context.Background(), [4]float64{0, 0, 2, 2}, reader, ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a.tif", string(result.Bytes))
}

func TestDocumentFeatureComposesFirst(t *testing.T) {
	d := queryDocument([]string{"a.tif", "b.tif"})
	reader := fakeReader{}
	feature := geojson.NewFeature(orb.Point{1, 1})

	result, err := d.Feature(context.Background(), feature, reader, ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a.tif", string(result.Bytes))
}

func TestComposeSamplesFallsBackToFirstSampleWhenAllMasked(t *testing.T) {
	samples := []Sample{
		{Asset: "a.tif", Mask: true},
		{Asset: "b.tif", Mask: true},
	}
	composed := composeSamples(samples, SelectMean)
	assert.Equal(t, "a.tif", composed.Asset)
}
