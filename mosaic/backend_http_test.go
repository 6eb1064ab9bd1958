package mosaic

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocumentJSON(t *testing.T) []byte {
	t.Helper()
	zoom := 0
	doc := &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &zoom,
		Tiles:       map[string][]string{"0": {"a.tif"}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestHTTPBackendReadsPlainBody(t *testing.T) {
	body := testDocumentJSON(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	b, err := Open(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tif"}, b.Document().Tiles["0"])
	assert.True(t, b.ReadOnly())
}

func TestHTTPBackendDecodesGzipBody(t *testing.T) {
	body := testDocumentJSON(t)
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(body)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	b, err := Open(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tif"}, b.Document().Tiles["0"])
}

func TestHTTPBackend404IsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), srv.URL, nil)
	var notFound *MosaicNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestHTTPBackendNon2xxIsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), srv.URL, nil)
	require.Error(t, err)
	var statusErr *RemoteStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestHTTPBackendRejectsInitialDocument(t *testing.T) {
	zoom := 0
	doc := &Document{Minzoom: 0, Maxzoom: 0, QuadkeyZoom: &zoom, Tiles: map[string][]string{}}
	_, err := Open(context.Background(), "http://example.com/a.json", doc)
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestHTTPBackendWriteAndUpdateNotImplemented(t *testing.T) {
	body := testDocumentJSON(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	b, err := Open(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.ErrorIs(t, b.Write(context.Background(), false), ErrNotImplemented)
	require.ErrorIs(t, b.Update(context.Background(), nil, UpdateOptions{}), ErrNotImplemented)
}
