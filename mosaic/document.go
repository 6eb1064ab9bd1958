package mosaic

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Document is the canonical in-memory representation of a MosaicJSON
// index, sole persistent entity.
type Document struct {
	MosaicJSON    string              `json:"mosaicjson"`
	Name          string              `json:"name,omitempty"`
	Description   string              `json:"description,omitempty"`
	Attribution   string              `json:"attribution,omitempty"`
	Version       string              `json:"version"`
	Minzoom       int                 `json:"minzoom"`
	Maxzoom       int                 `json:"maxzoom"`
	QuadkeyZoom   *int                `json:"quadkey_zoom,omitempty"`
	Bounds        [4]float64          `json:"bounds"`
	Center        [3]float64          `json:"center"`
	Tiles         map[string][]string `json:"tiles"`
	TileMatrixSet json.RawMessage     `json:"tilematrixset,omitempty"`
	AssetType     string              `json:"asset_type,omitempty"`
	AssetPrefix   string              `json:"asset_prefix,omitempty"`
	DataType      string              `json:"data_type,omitempty"`
	Colormap      map[string][4]int   `json:"colormap,omitempty"`
	Layers        map[string]Layer    `json:"layers,omitempty"`
	Created       *time.Time          `json:"created,omitempty"`
	Modified      *time.Time          `json:"modified,omitempty"`
}

// Layer describes a named asset sub-selection (layers field).
type Layer struct {
	Assets []string `json:"assets,omitempty"`
}

const (
	// DefaultMosaicJSONVersion is written by builders that do not
	// otherwise specify a MosaicJSON format version.
	DefaultMosaicJSONVersion = "0.0.3"
	defaultDocumentVersion   = "1.0.0"
)

// QuadkeyZoomLevel returns the indexing level: quadkey_zoom when present,
// otherwise minzoom.
func (d *Document) QuadkeyZoomLevel() uint8 {
	if d.QuadkeyZoom != nil {
		return uint8(*d.QuadkeyZoom)
	}
	return uint8(d.Minzoom)
}

// Clone deep-copies a Document so update() can build a candidate result
// without mutating the caller's document until the merge has fully
// succeeded — keeping DIRTY transition transactional.
func (d *Document) Clone() *Document {
	clone := *d
	clone.Tiles = make(map[string][]string, len(d.Tiles))
	for k, v := range d.Tiles {
		assets := make([]string, len(v))
		copy(assets, v)
		clone.Tiles[k] = assets
	}
	if d.QuadkeyZoom != nil {
		z := *d.QuadkeyZoom
		clone.QuadkeyZoom = &z
	}
	if d.Colormap != nil {
		clone.Colormap = make(map[string][4]int, len(d.Colormap))
		for k, v := range d.Colormap {
			clone.Colormap[k] = v
		}
	}
	if d.Layers != nil {
		clone.Layers = make(map[string]Layer, len(d.Layers))
		for k, v := range d.Layers {
			clone.Layers[k] = v
		}
	}
	return &clone
}

// Validate enforces invariants, returning a *ValidationError naming
// the first offending field.
func (d *Document) Validate() error {
	if d.Minzoom < 0 || d.Minzoom > 30 {
		return newValidationError("minzoom", d.Minzoom, "must be in [0,30]")
	}
	if d.Maxzoom < 0 || d.Maxzoom > 30 {
		return newValidationError("maxzoom", d.Maxzoom, "must be in [0,30]")
	}
	if d.Minzoom > d.Maxzoom {
		return newValidationError("minzoom", d.Minzoom, "must be <= maxzoom")
	}
	depth := quadkeyDepth(d.QuadkeyZoomLevel())
	for qk, assets := range d.Tiles {
		if !isValidQuadkey(qk, depth) {
			return newValidationError("tiles", qk, fmt.Sprintf("not a valid quadkey at depth %d", depth))
		}
		if len(assets) == 0 {
			return newValidationError("tiles", qk, "asset list must be non-empty")
		}
	}
	if d.Bounds[0] > d.Bounds[2] || d.Bounds[1] > d.Bounds[3] {
		return newValidationError("bounds", d.Bounds, "west/south must not exceed east/north")
	}
	return nil
}

// RecomputeCenter derives center as the bounds centroid with z=minzoom.
// Callers that set a user-overridden center should not call this.
func (d *Document) RecomputeCenter() {
	d.Center = [3]float64{
		(d.Bounds[0] + d.Bounds[2]) / 2,
		(d.Bounds[1] + d.Bounds[3]) / 2,
		float64(d.Minzoom),
	}
}

// IncreaseVersion bumps the PATCH digit of version, initializing to
// "1.0.0" if absent.
func (d *Document) IncreaseVersion() {
	if d.Version == "" {
		d.Version = defaultDocumentVersion
		return
	}
	parts := strings.Split(d.Version, ".")
	last := len(parts) - 1
	n, err := strconv.Atoi(parts[last])
	if err != nil {
		d.Version = defaultDocumentVersion
		return
	}
	parts[last] = strconv.Itoa(n + 1)
	d.Version = strings.Join(parts, ".")
}

// MosaicID is a deterministic SHA-224 content identifier: the hex digest
// of the canonical JSON encoding (sorted keys, no whitespace) of the
// document with tiles excluded.
func (d *Document) MosaicID() (string, error) {
	withoutTiles := *d
	withoutTiles.Tiles = nil
	canonical, err := canonicalJSON(withoutTiles)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum224(canonical)
	return fmt.Sprintf("%x", sum), nil
}

// canonicalJSON re-marshals v through a map so that object keys sort
// lexicographically, matching Python's json.dumps(sort_keys=True).
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			b.Write(vb)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	case []interface{}:
		var b strings.Builder
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			ib, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			b.Write(ib)
		}
		b.WriteByte(']')
		return []byte(b.String()), nil
	default:
		return json.Marshal(val)
	}
}

// WithAssetPrefix returns a copy of tiles with prefix prepended to every
// asset, the read-side half of "stripped on write, prepended on
// read" rule.
func (d *Document) WithAssetPrefix() map[string][]string {
	if d.AssetPrefix == "" {
		return d.Tiles
	}
	out := make(map[string][]string, len(d.Tiles))
	for qk, assets := range d.Tiles {
		prefixed := make([]string, len(assets))
		for i, a := range assets {
			prefixed[i] = d.AssetPrefix + a
		}
		out[qk] = prefixed
	}
	return out
}

// stripAssetPrefix removes prefix from asset, a no-op if it is already
// absent — resolving the "double-strip" open question in DESIGN.md by
// relying on TrimPrefix's natural idempotence.
func stripAssetPrefix(asset, prefix string) string {
	if prefix == "" {
		return asset
	}
	return strings.TrimPrefix(asset, prefix)
}

// StrippedTiles returns tiles with AssetPrefix removed from every asset,
// the write-side half of "stripped on write, prepended on read" —
// every backend's Write/Update persists this instead of d.Tiles
// directly, since callers may populate Tiles with full asset URIs
// before (or after) setting AssetPrefix.
func (d *Document) StrippedTiles() map[string][]string {
	if d.AssetPrefix == "" {
		return d.Tiles
	}
	out := make(map[string][]string, len(d.Tiles))
	for qk, assets := range d.Tiles {
		stripped := make([]string, len(assets))
		for i, a := range assets {
			stripped[i] = stripAssetPrefix(a, d.AssetPrefix)
		}
		out[qk] = stripped
	}
	return out
}

// ToGeoJSON emits a feature collection with one feature per indexing
// quadkey, geometry set to the cell polygon and properties.files set to
// the asset list.
func (d *Document) ToGeoJSON(tms TileMatrixSet) (*geojson.FeatureCollection, error) {
	if tms == nil {
		tms = WebMercatorQuad
	}
	fc := geojson.NewFeatureCollection()
	for qk, assets := range d.Tiles {
		tile, err := tileFromQuadkey(qk)
		if err != nil {
			return nil, err
		}
		bound := tms.Bounds(tile)
		ring := orb.Ring{
			{bound.Min.X(), bound.Min.Y()},
			{bound.Max.X(), bound.Min.Y()},
			{bound.Max.X(), bound.Max.Y()},
			{bound.Min.X(), bound.Max.Y()},
			{bound.Min.X(), bound.Min.Y()},
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties = geojson.Properties{
			"files":   assets,
			"quadkey": qk,
		}
		fc.Append(f)
	}
	return fc, nil
}

// GeographicBounds returns the document's bounds clipped to tms's valid
// extent (nil means the document's own TMS). Document.Bounds is already
// stored geographic (WGS-84); this is the pure TMS-math half of the
// backend contract's get_geographic_bounds — reprojecting into an
// arbitrary target CRS needs a projection library this package doesn't
// carry, so the clip is the extent of what it can do without one.
func (d *Document) GeographicBounds(tms TileMatrixSet) [4]float64 {
	if tms == nil {
		tms = WebMercatorQuad
	}
	mb := tms.MatrixBounds()
	return [4]float64{
		maxF(d.Bounds[0], mb.Min.X()),
		maxF(d.Bounds[1], mb.Min.Y()),
		minF(d.Bounds[2], mb.Max.X()),
		minF(d.Bounds[3], mb.Max.Y()),
	}
}

// unionBounds extends base to contain extra, used both when building a
// document from features and when merging bounds on update.
func unionBounds(base, extra [4]float64) [4]float64 {
	if extra == ([4]float64{}) {
		return base
	}
	if base == ([4]float64{}) {
		return extra
	}
	return [4]float64{
		minF(base[0], extra[0]),
		minF(base[1], extra[1]),
		maxF(base[2], extra[2]),
		maxF(base[3], extra[3]),
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
