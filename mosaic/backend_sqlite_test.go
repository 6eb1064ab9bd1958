package mosaic

import (
	"context"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteURI(mosaicName string) string {
	return "sqlite://:memory::" + mosaicName
}

func TestParseSQLiteURI(t *testing.T) {
	path, name, err := parseSQLiteURI("sqlite:///tmp/db.sqlite:imagery")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/db.sqlite", path)
	assert.Equal(t, "imagery", name)
}

func TestParseSQLiteURIMalformed(t *testing.T) {
	_, _, err := parseSQLiteURI("sqlite:///tmp/db.sqlite")
	require.Error(t, err)
}

func TestSQLiteBackendWriteThenReopen(t *testing.T) {
	uri := "sqlite://" + t.TempDir() + "/write.db:imagery"
	zero := 0
	doc := &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &zero,
		Tiles:       map[string][]string{"0": {"a.tif", "b.tif"}},
	}

	b, err := Open(context.Background(), uri, doc)
	require.NoError(t, err)
	require.NoError(t, b.Write(context.Background(), false))
	require.NoError(t, b.Close())

	reopened, err := Open(context.Background(), uri, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []string{"a.tif", "b.tif"}, reopened.Document().Tiles["0"])
}

func TestSQLiteBackendWriteRejectsOverwriteByDefault(t *testing.T) {
	uri := newTestSQLiteURI("imagery")
	zero := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Tiles: map[string][]string{}}

	b, err := Open(context.Background(), uri, doc)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Write(context.Background(), false))

	var existsErr *MosaicExistsError
	require.ErrorAs(t, b.Write(context.Background(), false), &existsErr)
}

func TestSQLiteBackendUpdateMergesAssets(t *testing.T) {
	uri := newTestSQLiteURI("imagery")
	zero := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Tiles: map[string][]string{}}

	b, err := Open(context.Background(), uri, doc)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Write(context.Background(), false))

	f := featureWithPath("new.tif", squarePolygon(-1, -1, 1, 1))
	require.NoError(t, b.Update(context.Background(), []*geojson.Feature{f}, UpdateOptions{Quiet: true}))
	assert.Equal(t, []string{"new.tif"}, b.Document().Tiles["0"])
}

func TestSQLiteBackendMultipleMosaicsInOneFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/shared.db"
	zero := 0

	a, err := Open(context.Background(), "sqlite://"+path+":mosaic-a", &Document{
		Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Tiles: map[string][]string{"0": {"a.tif"}},
	})
	require.NoError(t, err)
	require.NoError(t, a.Write(context.Background(), false))
	require.NoError(t, a.Close())

	bb, err := Open(context.Background(), "sqlite://"+path+":mosaic-b", &Document{
		Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Tiles: map[string][]string{"0": {"b.tif"}},
	})
	require.NoError(t, err)
	require.NoError(t, bb.Write(context.Background(), false))
	require.NoError(t, bb.Close())

	reopenedA, err := Open(context.Background(), "sqlite://"+path+":mosaic-a", nil)
	require.NoError(t, err)
	defer reopenedA.Close()
	assert.Equal(t, []string{"a.tif"}, reopenedA.Document().Tiles["0"])

	reopenedB, err := Open(context.Background(), "sqlite://"+path+":mosaic-b", nil)
	require.NoError(t, err)
	defer reopenedB.Close()
	assert.Equal(t, []string{"b.tif"}, reopenedB.Document().Tiles["0"])
}
