package mosaic

import (
	"context"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendOpenEmptyWhenNoInitial(t *testing.T) {
	b, err := Open(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Kind())
	assert.Empty(t, b.Document().Tiles)
}

func TestMemoryBackendOpenUsesInitialDocument(t *testing.T) {
	zoom := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zoom, Tiles: map[string][]string{"0": {"a.tif"}}}
	b, err := Open(context.Background(), ":memory:", doc)
	require.NoError(t, err)
	assert.Same(t, doc, b.Document())
}

func TestMemoryBackendWriteIsNoop(t *testing.T) {
	b, err := Open(context.Background(), "", nil)
	require.NoError(t, err)
	require.NoError(t, b.Write(context.Background(), false))
	assert.Equal(t, StatePersisted, b.State())
}

func TestMemoryBackendUpdateMergesAndPersists(t *testing.T) {
	zero := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Tiles: map[string][]string{}}
	b, err := Open(context.Background(), "", doc)
	require.NoError(t, err)

	f := featureWithPath("a.tif", squarePolygon(-10, -10, 10, 10))
	require.NoError(t, b.Update(context.Background(), []*geojson.Feature{f}, UpdateOptions{Quiet: true}))
	assert.Equal(t, []string{"a.tif"}, b.Document().Tiles["0"])
	assert.Equal(t, StatePersisted, b.State())
}

func TestMemoryBackendClose(t *testing.T) {
	b, err := Open(context.Background(), "", nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Equal(t, StateClosed, b.State())
}
