package mosaic

import "fmt"

// Tile is a (x, y, z) address in some tile matrix set's grid.
type Tile struct {
	X uint32
	Y uint32
	Z uint8
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// quadkeyFor encodes a tile's position in a quad-tree as a string over
// {0,1,2,3}, NW=0 NE=1 SW=2 SE=3, length equal to the zoom level. Zoom 0
// has no bits to encode and is represented by the literal "0".
func quadkeyFor(t Tile) string {
	if t.Z == 0 {
		return "0"
	}
	digits := make([]byte, t.Z)
	for i := int(t.Z) - 1; i >= 0; i-- {
		digit := byte(0)
		if t.X&1 != 0 {
			digit |= 1
		}
		if t.Y&1 != 0 {
			digit |= 2
		}
		digits[i] = '0' + digit
		t.X >>= 1
		t.Y >>= 1
	}
	return string(digits)
}

// tileFromQuadkey decodes a quadkey string back into a Tile.
func tileFromQuadkey(quadkey string) (Tile, error) {
	if quadkey == "0" {
		return Tile{0, 0, 0}, nil
	}
	var x, y uint32
	for i := 0; i < len(quadkey); i++ {
		x <<= 1
		y <<= 1
		switch quadkey[i] {
		case '0':
		case '1':
			x |= 1
		case '2':
			y |= 1
		case '3':
			x |= 1
			y |= 1
		default:
			return Tile{}, fmt.Errorf("mosaicjson: invalid quadkey digit %q in %q", quadkey[i], quadkey)
		}
	}
	if len(quadkey) > 255 {
		return Tile{}, fmt.Errorf("mosaicjson: quadkey %q exceeds maximum zoom", quadkey)
	}
	return Tile{X: x, Y: y, Z: uint8(len(quadkey))}, nil
}

// isValidQuadkey reports whether s is a well-formed quadkey of exactly
// depth digits (the literal "0" is the sole valid depth-0 representation).
func isValidQuadkey(s string, depth int) bool {
	if depth == 0 {
		return s == "0"
	}
	if len(s) != depth {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '3' {
			return false
		}
	}
	return true
}

// parentTile returns the ancestor of t at zoom z (z <= t.Z).
func parentTile(t Tile, z uint8) Tile {
	shift := t.Z - z
	return Tile{X: t.X >> shift, Y: t.Y >> shift, Z: z}
}

// childTiles returns every descendant of t at zoom z (z >= t.Z).
func childTiles(t Tile, z uint8) []Tile {
	shift := z - t.Z
	n := uint32(1) << shift
	out := make([]Tile, 0, n*n)
	baseX, baseY := t.X<<shift, t.Y<<shift
	for dy := uint32(0); dy < n; dy++ {
		for dx := uint32(0); dx < n; dx++ {
			out = append(out, Tile{X: baseX + dx, Y: baseY + dy, Z: z})
		}
	}
	return out
}

// findQuadkeys resolves a tile expressed at an arbitrary zoom against a
// document indexed at quadkeyZoom, mirroring
// cogeo_mosaic.backends.utils.find_quadkeys: ancestor lookup when the
// query is finer than the index, descendant enumeration when coarser,
// identity otherwise.
func findQuadkeys(t Tile, quadkeyZoom uint8) []string {
	switch {
	case t.Z > quadkeyZoom:
		return []string{quadkeyFor(parentTile(t, quadkeyZoom))}
	case t.Z < quadkeyZoom:
		children := childTiles(t, quadkeyZoom)
		keys := make([]string, len(children))
		for i, c := range children {
			keys[i] = quadkeyFor(c)
		}
		return keys
	default:
		return []string{quadkeyFor(t)}
	}
}

// quadkeyDepth returns the number of digits a quadkey at zoom z has,
// accounting for the zoom-0 special case.
func quadkeyDepth(z uint8) int {
	if z == 0 {
		return 0
	}
	return int(z)
}
