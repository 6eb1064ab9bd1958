package mosaic

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDynamoDBURI(t *testing.T) {
	region, table, name, err := parseDynamoDBURI("dynamodb://us-east-1/mosaics:imagery")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)
	assert.Equal(t, "mosaics", table)
	assert.Equal(t, "imagery", name)
}

func TestParseDynamoDBURIMissingRegionIsEmptyNotError(t *testing.T) {
	region, table, name, err := parseDynamoDBURI("dynamodb:///mosaics:imagery")
	require.NoError(t, err)
	assert.Empty(t, region)
	assert.Equal(t, "mosaics", table)
	assert.Equal(t, "imagery", name)
}

func TestParseDynamoDBURIMalformed(t *testing.T) {
	_, _, _, err := parseDynamoDBURI("dynamodb://us-east-1/mosaics")
	require.Error(t, err)
}

func TestAtoiOrFallback(t *testing.T) {
	assert.Equal(t, 7, atoiOr("7", 0))
	assert.Equal(t, 0, atoiOr("not-a-number", 0))
}

func TestNumberListToBounds(t *testing.T) {
	list := []types.AttributeValue{
		&types.AttributeValueMemberN{Value: "-10"},
		&types.AttributeValueMemberN{Value: "-5"},
		&types.AttributeValueMemberN{Value: "10"},
		&types.AttributeValueMemberN{Value: "5"},
	}
	bounds := numberListToBounds(list)
	assert.Equal(t, [4]float64{-10, -5, 10, 5}, bounds)
}

func TestBoundsToAttributeListRoundTrips(t *testing.T) {
	avl := boundsToAttributeList([]float64{-10, -5, 10, 5})
	assert.Len(t, avl.Value, 4)
	bounds := numberListToBounds(avl.Value)
	assert.Equal(t, [4]float64{-10, -5, 10, 5}, bounds)
}

func TestStringSlicesEqual(t *testing.T) {
	assert.True(t, stringSlicesEqual([]string{"a", "b"}, []string{"a", "b"}))
	assert.False(t, stringSlicesEqual([]string{"a", "b"}, []string{"a"}))
	assert.False(t, stringSlicesEqual([]string{"a", "b"}, []string{"a", "c"}))
}

func TestBuildItemsIncludesHeaderAndEveryQuadkey(t *testing.T) {
	zero := 0
	b := &dynamoDBBackend{
		baseBackend: baseBackend{uri: "dynamodb://us-east-1/t:m", kind: "dynamodb"},
		table:       "t",
		mosaic:      "m",
	}
	b.doc = &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Minzoom:     0,
		Maxzoom:     4,
		QuadkeyZoom: &zero,
		Bounds:      [4]float64{-10, -10, 10, 10},
		Tiles: map[string][]string{
			"0": {"a.tif"},
			"1": {"b.tif", "c.tif"},
		},
	}

	items := b.buildItems()
	require.Len(t, items, 3)

	var header map[string]types.AttributeValue
	for _, item := range items {
		if qk, ok := item["quadkey"].(*types.AttributeValueMemberS); ok && qk.Value == "-1" {
			header = item
		}
	}
	require.NotNil(t, header)
	assert.Equal(t, "m", header["mosaic"].(*types.AttributeValueMemberS).Value)
}

func TestBuildHeaderItemMatchesDocument(t *testing.T) {
	zero := 3
	b := &dynamoDBBackend{
		baseBackend: baseBackend{kind: "dynamodb"},
		table:       "t",
		mosaic:      "m",
	}
	b.doc = &Document{
		MosaicJSON:  DefaultMosaicJSONVersion,
		Name:        "imagery",
		Minzoom:     0,
		Maxzoom:     9,
		QuadkeyZoom: &zero,
		Bounds:      [4]float64{-1, -1, 1, 1},
		Tiles:       map[string][]string{},
	}

	header := b.buildHeaderItem()
	assert.Equal(t, "-1", header["quadkey"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "imagery", header["name"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "9", header["maxzoom"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "3", header["quadkey_zoom"].(*types.AttributeValueMemberN).Value)
}
