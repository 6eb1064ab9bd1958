package mosaic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func init() {
	registerScheme("dynamodb", newDynamoDBBackend)
}

// defaultAWSRegion backs an empty region segment in a dynamodb:// URI
// (dynamodb:///table:mosaic), overridden by internal/mosaicconfig's
// AWS_REGION through SetDefaultAWSRegion.
var defaultAWSRegion = "us-east-1"

// SetDefaultAWSRegion overrides defaultAWSRegion, normally called once at
// CLI startup with internal/mosaicconfig.Config.AWSRegion.
func SetDefaultAWSRegion(region string) {
	if region != "" {
		defaultAWSRegion = region
	}
}

// dynamoDBBackend stores a mosaic across many items in one table, keyed
// by (mosaic, quadkey): "-1" holds the document header, every other
// quadkey holds that cell's asset list. Grounded on the original
// implementation's DynamoDBBackend, translated from boto3's
// resource/Table surface to aws-sdk-go-v2's dynamodb.Client.
type dynamoDBBackend struct {
	baseBackend
	client *dynamodb.Client
	table  string
	mosaic string
}

func newDynamoDBBackend(ctx context.Context, uri string, initial, cached *Document) (Backend, error) {
	region, table, mosaicName, err := parseDynamoDBURI(uri)
	if err != nil {
		return nil, newBackendError("dynamodb", uri, "open", err)
	}
	if region == "" {
		region = defaultAWSRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, newBackendError("dynamodb", uri, "open", err)
	}

	b := &dynamoDBBackend{
		baseBackend: baseBackend{uri: uri, kind: "dynamodb"},
		client:      dynamodb.NewFromConfig(cfg),
		table:       table,
		mosaic:      mosaicName,
	}

	if initial != nil {
		b.doc = initial
		b.state = StateFresh
		return b, nil
	}

	if cached != nil {
		b.doc = cached
		b.state = StateLoaded
		return b, nil
	}

	doc, err := b.readHeader(ctx)
	if err != nil {
		return nil, err
	}
	b.doc = doc
	b.state = StateLoaded
	return b, nil
}

// parseDynamoDBURI splits "dynamodb://[region]/table:mosaic_name". A
// missing region leaves three slashes in a row (dynamodb:///table:mosaic).
func parseDynamoDBURI(uri string) (region, table, mosaicName string, err error) {
	rest := strings.TrimPrefix(uri, "dynamodb://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("malformed dynamodb URI %q", uri)
	}
	region = parts[0]
	tableAndMosaic := parts[1]
	tm := strings.SplitN(tableAndMosaic, ":", 2)
	if len(tm) != 2 {
		return "", "", "", fmt.Errorf("malformed dynamodb URI %q: expected table:mosaic_name", uri)
	}
	return region, tm[0], tm[1], nil
}

func (b *dynamoDBBackend) readHeader(ctx context.Context) (*Document, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.table),
		Key: map[string]types.AttributeValue{
			"quadkey": &types.AttributeValueMemberS{Value: "-1"},
			"mosaic":  &types.AttributeValueMemberS{Value: b.mosaic},
		},
	})
	recordBackendRead(b.kind, err)
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}
	if out.Item == nil {
		return nil, newMosaicNotFoundError(b.uri)
	}

	doc := &Document{Tiles: map[string][]string{}}
	if v, ok := out.Item["mosaicjson"].(*types.AttributeValueMemberS); ok {
		doc.MosaicJSON = v.Value
	}
	if v, ok := out.Item["name"].(*types.AttributeValueMemberS); ok {
		doc.Name = v.Value
	}
	if v, ok := out.Item["version"].(*types.AttributeValueMemberS); ok {
		doc.Version = v.Value
	}
	if v, ok := out.Item["asset_type"].(*types.AttributeValueMemberS); ok {
		doc.AssetType = v.Value
	}
	if v, ok := out.Item["asset_prefix"].(*types.AttributeValueMemberS); ok {
		doc.AssetPrefix = v.Value
	}
	if v, ok := out.Item["minzoom"].(*types.AttributeValueMemberN); ok {
		doc.Minzoom = atoiOr(v.Value, 0)
	}
	if v, ok := out.Item["maxzoom"].(*types.AttributeValueMemberN); ok {
		doc.Maxzoom = atoiOr(v.Value, 0)
	}
	if v, ok := out.Item["quadkey_zoom"].(*types.AttributeValueMemberN); ok {
		zoom := atoiOr(v.Value, 0)
		doc.QuadkeyZoom = &zoom
	}
	if v, ok := out.Item["bounds"].(*types.AttributeValueMemberL); ok {
		doc.Bounds = numberListToBounds(v.Value)
	}
	if v, ok := out.Item["center"].(*types.AttributeValueMemberL); ok {
		c := numberListToBounds(append(v.Value, &types.AttributeValueMemberN{Value: "0"}))
		doc.Center = [3]float64{c[0], c[1], c[2]}
	}
	return doc, nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func numberListToBounds(list []types.AttributeValue) [4]float64 {
	var out [4]float64
	for i, v := range list {
		if i >= 4 {
			break
		}
		if n, ok := v.(*types.AttributeValueMemberN); ok {
			f, _ := strconv.ParseFloat(n.Value, 64)
			out[i] = f
		}
	}
	return out
}

// AssetsForTile overrides baseBackend's in-memory lookup with a single
// lazily-fetched GetItem per candidate quadkey, keyed by (mosaic,
// quadkey), rather than loading the whole tiles map up front.
func (b *dynamoDBBackend) AssetsForTile(ctx context.Context, t Tile, tms TileMatrixSet) ([]string, error) {
	zoom := b.doc.QuadkeyZoomLevel()
	quadkeys := findQuadkeys(t, zoom)
	var assets []string
	seen := map[string]bool{}
	for _, qk := range quadkeys {
		items, err := b.fetchAssets(ctx, qk)
		if err != nil {
			return nil, err
		}
		for _, a := range items {
			if !seen[a] {
				seen[a] = true
				assets = append(assets, a)
			}
		}
	}
	return assets, nil
}

func (b *dynamoDBBackend) fetchAssets(ctx context.Context, quadkey string) ([]string, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.table),
		Key: map[string]types.AttributeValue{
			"quadkey": &types.AttributeValueMemberS{Value: quadkey},
			"mosaic":  &types.AttributeValueMemberS{Value: b.mosaic},
		},
	})
	recordBackendRead(b.kind, err)
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	v, ok := out.Item["assets"].(*types.AttributeValueMemberL)
	if !ok {
		return nil, nil
	}
	assets := make([]string, 0, len(v.Value))
	for _, item := range v.Value {
		if s, ok := item.(*types.AttributeValueMemberS); ok {
			assets = append(assets, s.Value)
		}
	}
	return assets, nil
}

func (b *dynamoDBBackend) AssetsForPoint(ctx context.Context, lng, lat float64) ([]string, error) {
	t := b.tmsOrDefault().Tile(lng, lat, b.doc.QuadkeyZoomLevel())
	return b.AssetsForTile(ctx, t, b.tmsOrDefault())
}

func (b *dynamoDBBackend) AssetsForBBox(ctx context.Context, xmin, ymin, xmax, ymax float64) ([]string, error) {
	ring := orb.Ring{{xmin, ymin}, {xmax, ymin}, {xmax, ymax}, {xmin, ymax}, {xmin, ymin}}
	cover, err := TileCover(orb.Polygon{ring}, CoverOptions{
		TMS:  b.tmsOrDefault(),
		Zoom: b.doc.QuadkeyZoomLevel(),
	})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var assets []string
	for _, c := range cover {
		items, err := b.fetchAssets(ctx, quadkeyFor(c.Tile))
		if err != nil {
			return nil, err
		}
		for _, a := range items {
			if !seen[a] {
				seen[a] = true
				assets = append(assets, a)
			}
		}
	}
	return assets, nil
}

func (b *dynamoDBBackend) tmsOrDefault() TileMatrixSet {
	return WebMercatorQuad
}

// Write creates the table if absent and batch-writes every item: the
// "-1" metadata row plus one item per quadkey, mirroring
// DynamoDBBackend._create_items/_write_items.
func (b *dynamoDBBackend) Write(ctx context.Context, overwrite bool) error {
	if !overwrite {
		if _, err := b.readHeader(ctx); err == nil {
			return newMosaicExistsError(b.uri)
		}
	}

	if err := b.ensureTable(ctx); err != nil {
		return err
	}

	items := b.buildItems()
	err := b.batchWrite(ctx, items)
	recordBackendWrite(b.kind, err)
	if err != nil {
		return newBackendError(b.kind, b.uri, "write", err)
	}
	b.state = StatePersisted
	globalCache.InvalidateWritten(b.cacheKey(), b.doc)
	return nil
}

func (b *dynamoDBBackend) ensureTable(ctx context.Context) error {
	_, err := b.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(b.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("quadkey"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("mosaic"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("mosaic"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("quadkey"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return newBackendError(b.kind, b.uri, "create-table", err)
	}
	waiter := dynamodb.NewTableExistsWaiter(b.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(b.table)}, 2*time.Minute)
}

func (b *dynamoDBBackend) buildHeaderItem() map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"quadkey":      &types.AttributeValueMemberS{Value: "-1"},
		"mosaic":       &types.AttributeValueMemberS{Value: b.mosaic},
		"mosaicjson":   &types.AttributeValueMemberS{Value: b.doc.MosaicJSON},
		"name":         &types.AttributeValueMemberS{Value: b.doc.Name},
		"version":      &types.AttributeValueMemberS{Value: b.doc.Version},
		"minzoom":      &types.AttributeValueMemberN{Value: strconv.Itoa(b.doc.Minzoom)},
		"maxzoom":      &types.AttributeValueMemberN{Value: strconv.Itoa(b.doc.Maxzoom)},
		"quadkey_zoom": &types.AttributeValueMemberN{Value: strconv.Itoa(int(b.doc.QuadkeyZoomLevel()))},
		"bounds":       boundsToAttributeList(b.doc.Bounds[:]),
		"center":       boundsToAttributeList([]float64{b.doc.Center[0], b.doc.Center[1], b.doc.Center[2]}),
	}
	if b.doc.AssetPrefix != "" {
		item["asset_prefix"] = &types.AttributeValueMemberS{Value: b.doc.AssetPrefix}
	}
	if b.doc.AssetType != "" {
		item["asset_type"] = &types.AttributeValueMemberS{Value: b.doc.AssetType}
	}
	return item
}

func (b *dynamoDBBackend) buildItems() []map[string]types.AttributeValue {
	stripped := b.doc.StrippedTiles()
	items := make([]map[string]types.AttributeValue, 0, len(stripped)+1)
	items = append(items, b.buildHeaderItem())
	for qk, assets := range stripped {
		avs := make([]types.AttributeValue, len(assets))
		for i, a := range assets {
			avs[i] = &types.AttributeValueMemberS{Value: a}
		}
		items = append(items, map[string]types.AttributeValue{
			"quadkey": &types.AttributeValueMemberS{Value: qk},
			"mosaic":  &types.AttributeValueMemberS{Value: b.mosaic},
			"assets":  &types.AttributeValueMemberL{Value: avs},
		})
	}
	return items
}

func boundsToAttributeList(values []float64) *types.AttributeValueMemberL {
	avs := make([]types.AttributeValue, len(values))
	for i, v := range values {
		avs[i] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
	}
	return &types.AttributeValueMemberL{Value: avs}
}

func (b *dynamoDBBackend) batchWrite(ctx context.Context, items []map[string]types.AttributeValue) error {
	const batchSize = 25
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		reqs := make([]types.WriteRequest, 0, end-i)
		for _, item := range items[i:end] {
			reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}
		_, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{b.table: reqs},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Update writes only the changed quadkey items rather than the whole
// table.
func (b *dynamoDBBackend) Update(ctx context.Context, features []*geojson.Feature, opts UpdateOptions) error {
	before := b.doc.Clone()
	merged, err := Update(b.doc, features, opts)
	if err != nil {
		return err
	}
	b.doc = merged
	b.state = StateDirty

	if err := b.ensureTable(ctx); err != nil {
		return err
	}

	beforeStripped := before.StrippedTiles()
	changed := []map[string]types.AttributeValue{b.buildHeaderItem()}
	for qk, assets := range merged.StrippedTiles() {
		if old, ok := beforeStripped[qk]; ok && stringSlicesEqual(old, assets) {
			continue
		}
		avs := make([]types.AttributeValue, len(assets))
		for i, a := range assets {
			avs[i] = &types.AttributeValueMemberS{Value: a}
		}
		changed = append(changed, map[string]types.AttributeValue{
			"quadkey": &types.AttributeValueMemberS{Value: qk},
			"mosaic":  &types.AttributeValueMemberS{Value: b.mosaic},
			"assets":  &types.AttributeValueMemberL{Value: avs},
		})
	}

	err = b.batchWrite(ctx, changed)
	recordBackendWrite(b.kind, err)
	if err != nil {
		return newBackendError(b.kind, b.uri, "update", err)
	}
	b.state = StatePersisted
	globalCache.InvalidateWritten(b.cacheKey(), b.doc)
	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (b *dynamoDBBackend) Close() error {
	b.state = StateClosed
	return nil
}
