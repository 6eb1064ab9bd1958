package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuadkeyRoundTrip(t *testing.T) {
	cases := []Tile{
		{X: 0, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 2},
		{X: 1, Y: 0, Z: 1},
		{X: 0, Y: 1, Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: 1012123 >> 0, Y: 100, Z: 20},
		{X: 5, Y: 17, Z: 10},
	}
	for _, tile := range cases {
		qk := quadkeyFor(tile)
		decoded, err := tileFromQuadkey(qk)
		assert.NoError(t, err)
		assert.Equal(t, tile, decoded)
	}
}

func TestQuadkeyForKnownCells(t *testing.T) {
	assert.Equal(t, "0", quadkeyFor(Tile{0, 0, 0}))
	assert.Equal(t, "1", quadkeyFor(Tile{1, 0, 1}))
	assert.Equal(t, "2", quadkeyFor(Tile{0, 1, 1}))
	assert.Equal(t, "3", quadkeyFor(Tile{1, 1, 1}))
}

func TestIsValidQuadkey(t *testing.T) {
	assert.True(t, isValidQuadkey("0", 0))
	assert.False(t, isValidQuadkey("1", 0))
	assert.True(t, isValidQuadkey("123", 3))
	assert.False(t, isValidQuadkey("124", 3))
	assert.False(t, isValidQuadkey("12", 3))
}

func TestFindQuadkeysFiner(t *testing.T) {
	// query at z=7 against an index at quadkey_zoom=5: ancestor lookup.
	q := findQuadkeys(Tile{X: 10, Y: 20, Z: 7}, 5)
	assert.Len(t, q, 1)
	parent, err := tileFromQuadkey(q[0])
	assert.NoError(t, err)
	assert.Equal(t, uint8(5), parent.Z)
}

func TestFindQuadkeysCoarser(t *testing.T) {
	// query at z=3 against an index at quadkey_zoom=5: four children.
	q := findQuadkeys(Tile{X: 1, Y: 2, Z: 3}, 5)
	assert.Len(t, q, 4)
	for _, qk := range q {
		tile, err := tileFromQuadkey(qk)
		assert.NoError(t, err)
		assert.Equal(t, uint8(5), tile.Z)
		assert.Equal(t, parentTile(tile, 3), Tile{X: 1, Y: 2, Z: 3})
	}
}

func TestFindQuadkeysSameZoom(t *testing.T) {
	q := findQuadkeys(Tile{X: 4, Y: 4, Z: 5}, 5)
	assert.Equal(t, []string{quadkeyFor(Tile{4, 4, 5})}, q)
}
