package mosaic

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

// BackendState is the document lifecycle state machine: FRESH -> LOADED
// -> (optionally) DIRTY -> PERSISTED -> CLOSED.
type BackendState int

const (
	StateFresh BackendState = iota
	StateLoaded
	StateDirty
	StatePersisted
	StateClosed
)

// Backend is the common capability set every concrete backend
// implements; construction lives in each concrete backend's own
// constructor, registered with registerScheme below. Grounded on
// pmtiles/bucket.go's Bucket interface and
// jobrunner-ortus/internal/ports/output.ObjectStorage's "narrow
// capability interface, concrete adapters elsewhere" shape.
type Backend interface {
	// URI returns the canonical identity this backend was opened with.
	URI() string
	// Kind names the backend (file, s3, gs, az, http, dynamodb, sqlite,
	// stac, memory), used as the first half of the cache key.
	Kind() string
	// ReadOnly reports whether Write/Update always fail with
	// ErrNotImplemented (HTTP and STAC backends).
	ReadOnly() bool
	// State returns the current lifecycle state.
	State() BackendState

	// Document returns the currently loaded/materialized document. Read-
	// initialized backends populate it from storage on construction;
	// write-initialized backends return the document supplied at
	// construction.
	Document() *Document

	AssetsForTile(ctx context.Context, t Tile, tms TileMatrixSet) ([]string, error)
	AssetsForPoint(ctx context.Context, lng, lat float64) ([]string, error)
	AssetsForBBox(ctx context.Context, xmin, ymin, xmax, ymax float64) ([]string, error)
	// GeographicBounds returns Document().Bounds clipped to tms's valid
	// extent (nil means the document's own TMS).
	GeographicBounds(ctx context.Context, tms TileMatrixSet) ([4]float64, error)

	// Write persists Document(). overwrite=false and an existing mosaic
	// at URI() yields MosaicExistsError.
	Write(ctx context.Context, overwrite bool) error
	// Update merges features into Document() and, unless the backend was
	// constructed write-initialized-only, persists via Write.
	Update(ctx context.Context, features []*geojson.Feature, opts UpdateOptions) error
	// Info returns metadata, optionally including the tiles map.
	Info(ctx context.Context, quadkeys bool) (map[string]interface{}, error)

	// Close releases connections/handles. Errors during Close do not
	// mask errors the scope body already observed — callers should
	// prefer the first error they saw.
	Close() error
}

// constructor builds a Backend for a URI. initial, when non-nil, is a
// write-initializing mosaic_def (state FRESH). cached, when non-nil and
// initial is nil, is a still-valid document this construction should
// reuse in place of issuing its own read (state LOADED either way).
type constructor func(ctx context.Context, uri string, initial, cached *Document) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]constructor{}
)

// registerScheme installs a constructor for a URI scheme prefix. Concrete
// backend files call this from their init().
func registerScheme(scheme string, ctor constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = ctor
}

// globalCache is the process-wide TTL+LRU cache every read-initialized
// Open call consults and populates, keyed by (backend kind, URI).
// ConfigureCache installs settings read from the environment (see
// internal/mosaicconfig); until called, it runs with these defaults.
var globalCache = NewDocumentCache(512, 5*time.Minute, false)

// ConfigureCache replaces the process-wide document cache, normally
// called once at CLI startup with internal/mosaicconfig.Config's
// cache settings.
func ConfigureCache(maxSize int, ttl time.Duration, disabled bool) {
	globalCache = NewDocumentCache(maxSize, ttl, disabled)
}

// Open dispatches uri to its concrete backend by URI scheme, grounded on
// pmtiles/bucket.go:OpenBucket's scheme-to-constructor dispatch, extended
// with gs://, az://, sqlite:///, stac+, and memory. Read-initialized opens
// (initial == nil) are served from globalCache when a fresh entry exists,
// and populate it on a successful cold open.
func Open(ctx context.Context, uri string, initial *Document) (Backend, error) {
	registryMu.RLock()
	ctor, ok := registry[schemeOf(uri)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mosaicjson: no backend registered for scheme %q (uri %q)", schemeOf(uri), uri)
	}

	key := CacheKey{Kind: schemeOf(uri), URI: uri}
	var cached *Document
	if initial == nil {
		cached, _ = globalCache.Get(key)
	}

	backend, err := ctor(ctx, uri, initial, cached)
	if err != nil {
		return nil, err
	}
	if initial == nil && cached == nil {
		globalCache.Put(key, backend.Document())
	}
	return backend, nil
}

func schemeOf(uri string) string {
	if uri == "" || uri == ":memory:" {
		return "memory"
	}
	switch {
	case strings.HasPrefix(uri, "stac+"):
		return "stac"
	case strings.HasPrefix(uri, "s3://"):
		return "s3"
	case strings.HasPrefix(uri, "gs://"):
		return "gs"
	case strings.HasPrefix(uri, "az://"):
		return "az"
	case strings.HasPrefix(uri, "dynamodb://"):
		return "dynamodb"
	case strings.HasPrefix(uri, "sqlite://"):
		return "sqlite"
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return "http"
	default:
		return "file"
	}
}

// baseBackend holds the bookkeeping common to every concrete backend
// (state machine, document), letting each backend_*.go embed it and
// implement only Write/Update/Info/Close plus construction.
type baseBackend struct {
	uri      string
	kind     string
	readOnly bool
	state    BackendState
	doc      *Document
}

func (b *baseBackend) URI() string          { return b.uri }
func (b *baseBackend) Kind() string         { return b.kind }
func (b *baseBackend) ReadOnly() bool       { return b.readOnly }
func (b *baseBackend) State() BackendState  { return b.state }
func (b *baseBackend) Document() *Document  { return b.doc }

func (b *baseBackend) cacheKey() CacheKey { return CacheKey{Kind: b.kind, URI: b.uri} }

func (b *baseBackend) AssetsForTile(_ context.Context, t Tile, tms TileMatrixSet) ([]string, error) {
	if b.doc == nil {
		return nil, newMosaicNotFoundError(b.uri)
	}
	return b.doc.AssetsForTile(t, tms)
}

func (b *baseBackend) AssetsForPoint(_ context.Context, lng, lat float64) ([]string, error) {
	if b.doc == nil {
		return nil, newMosaicNotFoundError(b.uri)
	}
	return b.doc.AssetsForPoint(lng, lat)
}

func (b *baseBackend) AssetsForBBox(_ context.Context, xmin, ymin, xmax, ymax float64) ([]string, error) {
	if b.doc == nil {
		return nil, newMosaicNotFoundError(b.uri)
	}
	return b.doc.AssetsForBBox(xmin, ymin, xmax, ymax)
}

func (b *baseBackend) GeographicBounds(_ context.Context, tms TileMatrixSet) ([4]float64, error) {
	if b.doc == nil {
		return [4]float64{}, newMosaicNotFoundError(b.uri)
	}
	return b.doc.GeographicBounds(tms), nil
}

func (b *baseBackend) Info(_ context.Context, quadkeys bool) (map[string]interface{}, error) {
	if b.doc == nil {
		return nil, newMosaicNotFoundError(b.uri)
	}
	info := map[string]interface{}{
		"mosaicjson":   b.doc.MosaicJSON,
		"name":         b.doc.Name,
		"version":      b.doc.Version,
		"minzoom":      b.doc.Minzoom,
		"maxzoom":      b.doc.Maxzoom,
		"quadkey_zoom": b.doc.QuadkeyZoomLevel(),
		"bounds":       b.doc.Bounds,
		"center":       b.doc.Center,
	}
	if quadkeys {
		info["quadkeys"] = b.doc.WithAssetPrefix()
	}
	return info, nil
}
