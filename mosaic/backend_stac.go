package mosaic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func init() {
	registerScheme("stac", newSTACBackend)
}

// STACOptions configures the dynamic STAC backend's search query and
// pagination limits: {query, max_items, stac_query_limit,
// stac_next_link_key, accessor}.
type STACOptions struct {
	Query           map[string]interface{}
	MaxItems        int
	StacQueryLimit  int
	StacNextLinkKey string
	Accessor        Accessor
}

func (o STACOptions) maxItems() int {
	if o.MaxItems <= 0 {
		return 10000
	}
	return o.MaxItems
}

func (o STACOptions) queryLimit() int {
	if o.StacQueryLimit <= 0 {
		return 100
	}
	return o.StacQueryLimit
}

func (o STACOptions) nextLinkKey() string {
	if o.StacNextLinkKey == "" {
		return "next"
	}
	return o.StacNextLinkKey
}

func (o STACOptions) accessor() Accessor {
	if o.Accessor == nil {
		return DefaultAccessor
	}
	return o.Accessor
}

// stacBackend has no stored document: every assets_for_* call issues a
// paginated POST search against a STAC-API endpoint and materializes
// the result on the fly. A synthetic header keeps
// minzoom/maxzoom/bounds readable through the same Document-shaped
// Info() every other backend exposes.
type stacBackend struct {
	baseBackend
	client    *http.Client
	searchURL string
	opts      STACOptions
}

func newSTACBackend(ctx context.Context, uri string, initial, cached *Document) (Backend, error) {
	if initial != nil {
		return nil, newBackendError("stac", uri, "open", ErrNotImplemented)
	}

	searchURL := strings.TrimPrefix(uri, "stac+")
	b := &stacBackend{
		baseBackend: baseBackend{uri: uri, kind: "stac", readOnly: true},
		client:      tracedHTTPClient(http.DefaultClient),
		searchURL:   searchURL,
		opts:        STACOptions{},
		// doc is synthesized below; no remote fetch is needed to open a
		// dynamic index, only to resolve a particular query.
	}
	b.doc = syntheticSTACDocument()
	b.state = StateLoaded
	return b, nil
}

func syntheticSTACDocument() *Document {
	zoom := 0
	return &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Minzoom:     0,
		Maxzoom:     24,
		QuadkeyZoom: &zoom,
		Bounds:      [4]float64{-180, -90, 180, 90},
		Tiles:       map[string][]string{},
	}
}

// WithSTACOptions returns a copy of the backend configured with opts,
// used by callers that need a non-default query/accessor/pagination cap
// before resolving a tile/point/bbox.
func (b *stacBackend) WithSTACOptions(opts STACOptions) *stacBackend {
	clone := *b
	clone.opts = opts
	return &clone
}

// OpenSTAC opens a stac+ URI the same way Open does, then applies opts —
// Open's (ctx, uri, initial, cached) constructor signature has nowhere
// to carry a query/max_items/accessor configuration, so callers that
// need anything but STACOptions{}'s defaults go through here instead.
func OpenSTAC(ctx context.Context, uri string, opts STACOptions) (Backend, error) {
	backend, err := Open(ctx, uri, nil)
	if err != nil {
		return nil, err
	}
	b, ok := backend.(*stacBackend)
	if !ok {
		return nil, newBackendError(schemeOf(uri), uri, "open", fmt.Errorf("%q is not a stac+ URI", uri))
	}
	return b.WithSTACOptions(opts), nil
}

func (b *stacBackend) AssetsForTile(ctx context.Context, t Tile, tms TileMatrixSet) ([]string, error) {
	if tms == nil {
		tms = WebMercatorQuad
	}
	bound := tms.Bounds(t)
	return b.search(ctx, boundPolygon(bound))
}

func (b *stacBackend) AssetsForPoint(ctx context.Context, lng, lat float64) ([]string, error) {
	return b.search(ctx, orb.Polygon{pointBox(lng, lat)})
}

func (b *stacBackend) AssetsForBBox(ctx context.Context, xmin, ymin, xmax, ymax float64) ([]string, error) {
	return b.search(ctx, boundPolygon(orb.Bound{Min: orb.Point{xmin, ymin}, Max: orb.Point{xmax, ymax}}))
}

func boundPolygon(bound orb.Bound) orb.Polygon {
	ring := orb.Ring{
		{bound.Min.X(), bound.Min.Y()}, {bound.Max.X(), bound.Min.Y()},
		{bound.Max.X(), bound.Max.Y()}, {bound.Min.X(), bound.Max.Y()}, {bound.Min.X(), bound.Min.Y()},
	}
	return orb.Polygon{ring}
}

func pointBox(lng, lat float64) orb.Ring {
	const eps = 1e-9
	return orb.Ring{
		{lng - eps, lat - eps}, {lng + eps, lat - eps},
		{lng + eps, lat + eps}, {lng - eps, lat + eps}, {lng - eps, lat - eps},
	}
}

// search POSTs the configured query merged with {intersects: geom},
// follows next links until they run out or max_items is reached
// (stac_query_limit sets the per-request page size), and applies the
// accessor to each returned feature.
//
// Seen item IDs are tracked in a roaring.Bitmap of their xxhash-64
// truncated to 32 bits rather than a map[string]bool: STAC searches can
// return results in the tens of thousands across pages, and a bitmap of
// hashed IDs is far denser than a Go string-keyed set for that volume.
// A hash collision could in principle drop a distinct item; cogeo's own
// STAC paginator accepts the same kind of approximate dedup trade-off
// when defending against duplicate items across overlapping pages.
func (b *stacBackend) search(ctx context.Context, geom orb.Geometry) ([]string, error) {
	geomJSON, err := json.Marshal(geojson.NewGeometry(geom))
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "search", err)
	}
	var intersects map[string]interface{}
	if err := json.Unmarshal(geomJSON, &intersects); err != nil {
		return nil, newBackendError(b.kind, b.uri, "search", err)
	}

	body := map[string]interface{}{}
	for k, v := range b.opts.Query {
		body[k] = v
	}
	body["intersects"] = intersects
	body["limit"] = b.opts.queryLimit()

	seen := roaring.New()
	var assets []string
	nextURL := b.searchURL
	fetched := 0

	for nextURL != "" && fetched < b.opts.maxItems() {
		page, next, err := b.fetchPage(ctx, nextURL, body)
		if err != nil {
			return nil, err
		}
		stacPageFetchesTotal.WithLabelValues("ok").Inc()

		for _, f := range page.Features {
			if fetched >= b.opts.maxItems() {
				break
			}
			id, _ := f.Properties["id"].(string)
			if id == "" {
				id, _ = f.ID.(string)
			}
			h := uint32(xxhash.Sum64String(id))
			if seen.Contains(h) {
				continue
			}
			seen.Add(h)
			fetched++
			stacItemsReturnedTotal.Inc()
			if asset := b.opts.accessor()(f); asset != "" {
				assets = append(assets, asset)
			}
		}

		nextURL = next
		body = nil // subsequent pages are driven entirely by the next link
	}
	return assets, nil
}

type stacSearchResponse struct {
	Features []*geojson.Feature `json:"features"`
	Links    []stacLink         `json:"links"`
}

type stacLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

func (b *stacBackend) fetchPage(ctx context.Context, url string, body map[string]interface{}) (*stacSearchResponse, string, error) {
	var req *http.Request
	var err error
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return nil, "", newBackendError(b.kind, b.uri, "search", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
	if err != nil {
		return nil, "", newBackendError(b.kind, b.uri, "search", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		stacPageFetchesTotal.WithLabelValues("error").Inc()
		return nil, "", newBackendError(b.kind, b.uri, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		stacPageFetchesTotal.WithLabelValues("error").Inc()
		return nil, "", newBackendError(b.kind, b.uri, "search", &RemoteStatusError{Code: resp.StatusCode})
	}

	var page stacSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", newBackendError(b.kind, b.uri, "decode", err)
	}

	next := ""
	linkKey := b.opts.nextLinkKey()
	for _, l := range page.Links {
		if l.Rel == linkKey || l.Rel == "next" {
			next = l.Href
			break
		}
	}
	return &page, next, nil
}

func (b *stacBackend) Write(context.Context, bool) error {
	return newBackendError(b.kind, b.uri, "write", ErrNotImplemented)
}

func (b *stacBackend) Update(context.Context, []*geojson.Feature, UpdateOptions) error {
	return newBackendError(b.kind, b.uri, "update", ErrNotImplemented)
}

func (b *stacBackend) Close() error {
	b.state = StateClosed
	return nil
}
