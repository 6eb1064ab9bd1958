package mosaic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileURI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return "file://" + filepath.ToSlash(dir) + "/mosaic.json"
}

func TestSplitBlobURIFile(t *testing.T) {
	bucketURL, key, err := splitBlobURI("file:///tmp/mosaics/a.json")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/mosaics", bucketURL)
	assert.Equal(t, "a.json", key)
}

func TestSplitBlobURIS3(t *testing.T) {
	bucketURL, key, err := splitBlobURI("s3://my-bucket/prefix/mosaic.json")
	require.NoError(t, err)
	assert.Equal(t, "s3://my-bucket/prefix", bucketURL)
	assert.Equal(t, "mosaic.json", key)
}

func TestBlobBackendWriteThenRead(t *testing.T) {
	uri := newTestFileURI(t)
	zoom := 0
	doc := &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &zoom,
		Bounds:      [4]float64{-10, -10, 10, 10},
		Tiles:       map[string][]string{"0": {"a.tif", "b.tif"}},
	}

	writer, err := Open(context.Background(), uri, doc)
	require.NoError(t, err)
	require.NoError(t, writer.Write(context.Background(), false))
	require.NoError(t, writer.Close())

	reader, err := Open(context.Background(), uri, nil)
	require.NoError(t, err)
	defer reader.Close()

	got := reader.Document()
	assert.Equal(t, []string{"a.tif", "b.tif"}, got.Tiles["0"])
	assert.Equal(t, doc.Bounds, got.Bounds)
}

func TestBlobBackendWriteRejectsOverwriteByDefault(t *testing.T) {
	uri := newTestFileURI(t)
	zoom := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zoom, Tiles: map[string][]string{}}

	b, err := Open(context.Background(), uri, doc)
	require.NoError(t, err)
	require.NoError(t, b.Write(context.Background(), false))

	var existsErr *MosaicExistsError
	err = b.Write(context.Background(), false)
	require.ErrorAs(t, err, &existsErr)
}

func TestBlobBackendReadMissingIsNotFound(t *testing.T) {
	dir := t.TempDir()
	uri := "file://" + filepath.ToSlash(dir) + "/missing.json"
	_, err := Open(context.Background(), uri, nil)
	var notFound *MosaicNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestBlobBackendUpdateMergesAndPersists(t *testing.T) {
	uri := newTestFileURI(t)
	zero := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Tiles: map[string][]string{}}

	b, err := Open(context.Background(), uri, doc)
	require.NoError(t, err)
	require.NoError(t, b.Write(context.Background(), false))

	f := featureWithPath("new.tif", squarePolygon(-1, -1, 1, 1))
	require.NoError(t, b.Update(context.Background(), []*geojson.Feature{f}, UpdateOptions{Quiet: true}))
	assert.Equal(t, StatePersisted, b.State())

	reopened, err := Open(context.Background(), uri, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []string{"new.tif"}, reopened.Document().Tiles["0"])
}
