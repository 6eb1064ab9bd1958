package mosaic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stacFeature(id, path string) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{0, 0})
	f.ID = id
	f.Properties = geojson.Properties{"id": id, "path": path}
	return f
}

func TestSyntheticSTACDocumentIsGlobalAndEmpty(t *testing.T) {
	doc := syntheticSTACDocument()
	assert.Equal(t, [4]float64{-180, -90, 180, 90}, doc.Bounds)
	assert.Empty(t, doc.Tiles)
}

func TestSTACBackendRejectsInitialDocument(t *testing.T) {
	zero := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zero, Tiles: map[string][]string{}}
	_, err := Open(context.Background(), "stac+https://example.com/search", doc)
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestSTACBackendSearchPaginatesAndDedupes(t *testing.T) {
	page1 := stacSearchResponse{
		Features: []*geojson.Feature{stacFeature("a", "a.tif"), stacFeature("b", "b.tif")},
	}
	page2 := stacSearchResponse{
		Features: []*geojson.Feature{stacFeature("b", "b.tif"), stacFeature("c", "c.tif")},
	}

	var nextURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			page1.Links = []stacLink{{Rel: "next", Href: nextURL}}
			json.NewEncoder(w).Encode(page1)
			return
		}
		json.NewEncoder(w).Encode(page2)
	}))
	defer srv.Close()
	nextURL = srv.URL

	b, err := Open(context.Background(), "stac+"+srv.URL, nil)
	require.NoError(t, err)

	assets, err := b.AssetsForBBox(context.Background(), -10, -10, 10, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.tif", "b.tif", "c.tif"}, assets)
}

func TestSTACBackendHonorsMaxItems(t *testing.T) {
	page := stacSearchResponse{
		Features: []*geojson.Feature{stacFeature("a", "a.tif"), stacFeature("b", "b.tif"), stacFeature("c", "c.tif")},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	backend, err := Open(context.Background(), "stac+"+srv.URL, nil)
	require.NoError(t, err)
	b := backend.(*stacBackend).WithSTACOptions(STACOptions{MaxItems: 2})

	assets, err := b.AssetsForBBox(context.Background(), -10, -10, 10, 10)
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}

func TestSTACBackendNon200IsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b, err := Open(context.Background(), "stac+"+srv.URL, nil)
	require.NoError(t, err)

	_, err = b.AssetsForPoint(context.Background(), 0, 0)
	require.Error(t, err)
	var statusErr *RemoteStatusError
	require.ErrorAs(t, err, &statusErr)
}

func TestSTACBackendWriteAndUpdateNotImplemented(t *testing.T) {
	b, err := Open(context.Background(), "stac+https://example.com/search", nil)
	require.NoError(t, err)
	require.ErrorIs(t, b.Write(context.Background(), false), ErrNotImplemented)
	require.ErrorIs(t, b.Update(context.Background(), nil, UpdateOptions{}), ErrNotImplemented)
}
