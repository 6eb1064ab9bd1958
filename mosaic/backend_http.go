package mosaic

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/paulmach/orb/geojson"
)

func init() {
	registerScheme("http", newHTTPBackend)
}

// httpBackend is a read-only fetch of a mosaic document over plain
// HTTP(S), grounded on pmtiles/bucket.go:HTTPBucket's injectable
// HTTPClient and tracing.go:tracedHTTPClient for outbound
// instrumentation. Unlike HTTPBucket it performs one whole-body GET: a
// MosaicJSON document has no internal byte-range directory the way a
// PMTiles archive does.
type httpBackend struct {
	baseBackend
	client *http.Client
}

func newHTTPBackend(ctx context.Context, uri string, initial, cached *Document) (Backend, error) {
	if initial != nil {
		return nil, newBackendError("http", uri, "open", ErrNotImplemented)
	}

	b := &httpBackend{
		baseBackend: baseBackend{uri: uri, kind: "http", readOnly: true},
		client:      tracedHTTPClient(http.DefaultClient),
	}

	if cached != nil {
		b.doc = cached
		b.state = StateLoaded
		return b, nil
	}

	doc, err := b.read(ctx)
	if err != nil {
		return nil, err
	}
	b.doc = doc
	b.state = StateLoaded
	return b, nil
}

func (b *httpBackend) read(ctx context.Context) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.uri, nil)
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}
	resp, err := b.client.Do(req)
	recordBackendRead(b.kind, err)
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, newMosaicNotFoundError(b.uri)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newBackendError(b.kind, b.uri, "read", &RemoteStatusError{Code: resp.StatusCode})
	}

	body := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" || strings.HasSuffix(b.uri, ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, newBackendError(b.kind, b.uri, "gunzip", err)
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newBackendError(b.kind, b.uri, "decode", err)
	}
	return &doc, nil
}

func (b *httpBackend) Write(context.Context, bool) error {
	return newBackendError(b.kind, b.uri, "write", ErrNotImplemented)
}

func (b *httpBackend) Update(context.Context, []*geojson.Feature, UpdateOptions) error {
	return newBackendError(b.kind, b.uri, "update", ErrNotImplemented)
}

func (b *httpBackend) Close() error {
	b.state = StateClosed
	return nil
}

// RemoteStatusError reports a non-2xx response from an HTTP or STAC
// endpoint the backend treats as a hard failure rather than a not-found.
type RemoteStatusError struct{ Code int }

func (e *RemoteStatusError) Error() string {
	return "mosaicjson: unexpected HTTP status " + http.StatusText(e.Code)
}
