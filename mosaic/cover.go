package mosaic

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// CoveredTile is one output cell of the tile-cover kernel: the cell
// address and the fraction of its area covered by the input geometry.
type CoveredTile struct {
	Tile     Tile
	Coverage float64
}

// CoverOptions configures the tile-cover kernel.
type CoverOptions struct {
	TMS           TileMatrixSet
	Zoom          uint8
	MinTileCover  float64 // 0 means "no filter"; must be in (0,1] if set.
	TileCoverSort bool
}

// TileCover computes, for a WGS-84 polygon/multipolygon, the set of cells
// at opts.Zoom whose cell polygon intersects geom, each tagged with its
// coverage fraction. Reprojects first (identity for WebMercatorQuad,
// since Tile()/Bounds() already work in lng/lat), derives the candidate
// tile range from the geometry's bbox corners, intersects each
// candidate cell against the input, and keeps non-empty intersections.
func TileCover(geom orb.Geometry, opts CoverOptions) ([]CoveredTile, error) {
	if opts.MinTileCover > 1 {
		return nil, newValidationError("min_tile_cover", opts.MinTileCover, "min_tile_cover must be <= 1")
	}
	tms := opts.TMS
	if tms == nil {
		tms = WebMercatorQuad
	}

	polys := polygonsOf(geom)
	if len(polys) == 0 {
		return nil, nil
	}

	var out []CoveredTile
	seen := make(map[string]int) // quadkey -> index into out, for antimeridian-split union
	for _, poly := range polys {
		for _, part := range splitAntimeridian(poly) {
			cells, err := coverPolygon(part, tms, opts.Zoom)
			if err != nil {
				return nil, err
			}
			for _, c := range cells {
				key := quadkeyFor(c.Tile)
				if idx, ok := seen[key]; ok {
					if c.Coverage > out[idx].Coverage {
						out[idx].Coverage = c.Coverage
					}
					continue
				}
				seen[key] = len(out)
				out = append(out, c)
			}
		}
	}

	if opts.MinTileCover > 0 {
		filtered := out[:0]
		for _, c := range out {
			if c.Coverage >= opts.MinTileCover {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}

	if opts.TileCoverSort {
		tileCoverSort(out)
	}

	return out, nil
}

// polygonsOf normalizes the geometry types the builder is expected to
// accept (Polygon, MultiPolygon, and degenerate Point/LineString inputs
// cases) into a flat list of rings-with-holes.
func polygonsOf(geom orb.Geometry) []orb.Polygon {
	switch g := geom.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	case orb.Point:
		return []orb.Polygon{pointAsDegeneratePolygon(g)}
	case orb.LineString:
		return []orb.Polygon{lineAsDegeneratePolygon(g)}
	case orb.MultiPoint:
		var out []orb.Polygon
		for _, p := range g {
			out = append(out, pointAsDegeneratePolygon(p))
		}
		return out
	default:
		return nil
	}
}

// pointAsDegeneratePolygon and lineAsDegeneratePolygon give point/line
// inputs a zero-area footprint that coverPolygon still treats as
// intersecting any cell whose interior contains them, rather than only
// cells it merely touches at the boundary.
func pointAsDegeneratePolygon(p orb.Point) orb.Polygon {
	return orb.Polygon{orb.Ring{p, p, p, p}}
}

func lineAsDegeneratePolygon(l orb.LineString) orb.Polygon {
	ring := make(orb.Ring, 0, len(l)+1)
	ring = append(ring, l...)
	ring = append(ring, l[0])
	return orb.Polygon{ring}
}

// splitAntimeridian splits a polygon whose bbox width exceeds 180deg
// (the signature of a naive ±180 wraparound) into two polygons shifted
// into a contiguous [-180,180] range. A polygon that does not cross the
// antimeridian is returned unchanged.
func splitAntimeridian(poly orb.Polygon) []orb.Polygon {
	bound := poly.Bound()
	if bound.Max.X()-bound.Min.X() <= 180 {
		return []orb.Polygon{poly}
	}

	west := shiftPolygon(poly, func(x float64) float64 {
		if x > 0 {
			return x - 360
		}
		return x
	})
	east := shiftPolygon(poly, func(x float64) float64 {
		if x < 0 {
			return x + 360
		}
		return x
	})
	return []orb.Polygon{west, east}
}

func shiftPolygon(poly orb.Polygon, shift func(float64) float64) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		shifted := make(orb.Ring, len(ring))
		for j, pt := range ring {
			shifted[j] = orb.Point{shift(pt.X()), pt.Y()}
		}
		out[i] = shifted
	}
	return out
}

// intersectBound returns the bound covered by both a and b. orb.Bound has
// no Intersect method (only the boolean Intersects), so compute it here.
func intersectBound(a, b orb.Bound) orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Max(a.Min.X(), b.Min.X()), math.Max(a.Min.Y(), b.Min.Y())},
		Max: orb.Point{math.Min(a.Max.X(), b.Max.X()), math.Min(a.Max.Y(), b.Max.Y())},
	}
}

// coverPolygon is the inner loop of TileCover for a single (already
// antimeridian-safe) polygon.
func coverPolygon(poly orb.Polygon, tms TileMatrixSet, z uint8) ([]CoveredTile, error) {
	bound := poly.Bound()
	clipped := intersectBound(bound, tms.MatrixBounds())
	if clipped.IsEmpty() {
		return nil, nil
	}

	minTile := tms.Tile(clipped.Min.X(), clipped.Max.Y(), z) // NW corner
	maxTile := tms.Tile(clipped.Max.X(), clipped.Min.Y(), z) // SE corner

	var out []CoveredTile
	for y := minTile.Y; y <= maxTile.Y; y++ {
		for x := minTile.X; x <= maxTile.X; x++ {
			t := Tile{X: x, Y: y, Z: z}
			cellBound := tms.Bounds(t)
			cellArea := boundArea(cellBound)
			if cellArea <= 0 {
				continue
			}
			clippedRing := clipRingToBound(outerRing(poly), cellBound)
			if len(clippedRing) < 3 {
				if !ringTouchesBoundInterior(poly, cellBound) {
					continue
				}
				out = append(out, CoveredTile{Tile: t, Coverage: 0})
				continue
			}
			interArea := math.Abs(planar.Area(clippedRing))
			coverage := interArea / cellArea
			if coverage <= 0 {
				if ringTouchesBoundInterior(poly, cellBound) {
					out = append(out, CoveredTile{Tile: t, Coverage: 0})
				}
				continue
			}
			out = append(out, CoveredTile{Tile: t, Coverage: math.Min(coverage, 1)})
		}
	}
	return out, nil
}

func outerRing(poly orb.Polygon) orb.Ring {
	if len(poly) == 0 {
		return nil
	}
	return poly[0]
}

// boundArea is the area of an axis-aligned bound treated as a planar
// rectangle in geographic degrees — adequate for a coverage *ratio*
// between a cell and its own intersection, since both sides of the ratio
// share the same projection distortion.
func boundArea(b orb.Bound) float64 {
	w := b.Max.X() - b.Min.X()
	h := b.Max.Y() - b.Min.Y()
	return w * h
}

// clipRingToBound is Sutherland-Hodgman polygon clipping of ring against
// the four half-planes of an axis-aligned rectangle. Because every cell
// from a TMS is itself an axis-aligned rectangle, this suffices for
// polygon∩cell without a general polygon-polygon boolean library.
func clipRingToBound(ring orb.Ring, b orb.Bound) orb.Ring {
	if len(ring) == 0 {
		return nil
	}
	poly := append(orb.Ring{}, ring...)

	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p.X() >= b.Min.X() },
		func(a, c orb.Point) orb.Point { return intersectVertical(a, c, b.Min.X()) })
	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p.X() <= b.Max.X() },
		func(a, c orb.Point) orb.Point { return intersectVertical(a, c, b.Max.X()) })
	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p.Y() >= b.Min.Y() },
		func(a, c orb.Point) orb.Point { return intersectHorizontal(a, c, b.Min.Y()) })
	poly = clipHalfPlane(poly, func(p orb.Point) bool { return p.Y() <= b.Max.Y() },
		func(a, c orb.Point) orb.Point { return intersectHorizontal(a, c, b.Max.Y()) })

	return poly
}

func clipHalfPlane(poly orb.Ring, inside func(orb.Point) bool, intersect func(a, b orb.Point) orb.Point) orb.Ring {
	if len(poly) == 0 {
		return poly
	}
	var out orb.Ring
	for i := range poly {
		cur := poly[i]
		prev := poly[(i-1+len(poly))%len(poly)]
		curIn := inside(cur)
		prevIn := inside(prev)
		if curIn != prevIn {
			out = append(out, intersect(prev, cur))
		}
		if curIn {
			out = append(out, cur)
		}
	}
	return out
}

func intersectVertical(a, b orb.Point, x float64) orb.Point {
	t := (x - a.X()) / (b.X() - a.X())
	return orb.Point{x, a.Y() + t*(b.Y()-a.Y())}
}

func intersectHorizontal(a, b orb.Point, y float64) orb.Point {
	t := (y - a.Y()) / (b.Y() - a.Y())
	return orb.Point{a.X() + t*(b.X()-a.X()), y}
}

// ringTouchesBoundInterior handles the degenerate point/line case: the
// clip produced no area (fewer than 3 vertices, or a zero-area ring), but the footprint may
// still be a point or line strictly inside the cell, which must count as
// intersecting (boundary-exclusive property).
func ringTouchesBoundInterior(poly orb.Polygon, b orb.Bound) bool {
	for _, ring := range poly {
		for _, p := range ring {
			if p.X() > b.Min.X() && p.X() < b.Max.X() && p.Y() > b.Min.Y() && p.Y() < b.Max.Y() {
				return true
			}
		}
	}
	return false
}

// tileCoverSort re-orders cells by descending coverage fraction, used by
// the builder when an individual feature covers more than one cell and
// a secondary per-feature ranking by coverage is requested.
func tileCoverSort(cells []CoveredTile) {
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].Coverage > cells[j].Coverage })
}

func validateMinTileCover(v float64) error {
	if v > 1 {
		return newValidationError("min_tile_cover", v, "min_tile_cover must be <= 1")
	}
	return nil
}
