package mosaic

import (
	"math"

	"github.com/paulmach/orb"
)

// TileMatrixSet is the minimum surface the tile-cover kernel and query
// layer need from a tile-pyramid CRS: convert a geographic point to a
// tile address at a given zoom, and a tile address back to its
// geographic bounding box. This is an injected collaborator, not owned
// by the core — WebMercatorQuad below is the one concrete
// implementation this package carries so it is runnable without an
// external TMS library present.
type TileMatrixSet interface {
	// Identifier names the TMS, stored in tilematrixset when non-default.
	Identifier() string
	// Tile returns the tile address covering (lng, lat) at zoom z.
	Tile(lng, lat float64, z uint8) Tile
	// Bounds returns the geographic bounding box of tile t.
	Bounds(t Tile) orb.Bound
	// MatrixBounds is the overall validity bbox of the TMS at zoom 0.
	MatrixBounds() orb.Bound
}

// webMercatorQuad is the EPSG:3857 square-quad pyramid, the default TMS
// for MosaicJSON documents that omit tilematrixset.
type webMercatorQuad struct{}

// WebMercatorQuad is the default TileMatrixSet used when a document omits
// tilematrixset.
var WebMercatorQuad TileMatrixSet = webMercatorQuad{}

func (webMercatorQuad) Identifier() string { return "WebMercatorQuad" }

func (webMercatorQuad) MatrixBounds() orb.Bound {
	return orb.Bound{Min: orb.Point{-180, -85.0511287798066}, Max: orb.Point{180, 85.0511287798066}}
}

func (webMercatorQuad) Tile(lng, lat float64, z uint8) Tile {
	lat = clampLat(lat)
	n := math.Exp2(float64(z))
	x := (lng + 180.0) / 360.0 * n
	latRad := lat * math.Pi / 180.0
	y := (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n
	tx := clampTileCoord(int64(math.Floor(x)), n)
	ty := clampTileCoord(int64(math.Floor(y)), n)
	return Tile{X: uint32(tx), Y: uint32(ty), Z: z}
}

func (webMercatorQuad) Bounds(t Tile) orb.Bound {
	n := math.Exp2(float64(t.Z))
	lngMin := float64(t.X)/n*360.0 - 180.0
	lngMax := float64(t.X+1)/n*360.0 - 180.0
	latMax := mercatorYToLat(float64(t.Y) / n)
	latMin := mercatorYToLat(float64(t.Y+1) / n)
	return orb.Bound{Min: orb.Point{lngMin, latMin}, Max: orb.Point{lngMax, latMax}}
}

func mercatorYToLat(y float64) float64 {
	merc := math.Pi * (1.0 - 2.0*y)
	return 180.0 / math.Pi * math.Atan(math.Sinh(merc))
}

func clampLat(lat float64) float64 {
	const limit = 85.0511287798066
	if lat > limit {
		return limit
	}
	if lat < -limit {
		return -limit
	}
	return lat
}

func clampTileCoord(v int64, n float64) int64 {
	if v < 0 {
		return 0
	}
	if float64(v) >= n {
		return int64(n) - 1
	}
	return v
}
