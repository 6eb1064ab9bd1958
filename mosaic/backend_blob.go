package mosaic

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/paulmach/orb/geojson"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

func init() {
	registerScheme("s3", newBlobBackend)
	registerScheme("gs", newBlobBackend)
	registerScheme("az", newBlobBackend)
	registerScheme("file", newBlobBackend)
}

// blobBackend stores a document as a single JSON object under a cloud
// bucket or the local filesystem, unified over gocloud.dev/blob the way
// pmtiles/bucket.go:OpenBucket unifies S3/GCS/Azure/file for range
// reads. A MosaicJSON document is one small object rather than a large
// tiled archive, so blobBackend reads and writes it whole instead of by
// byte range.
type blobBackend struct {
	baseBackend
	bucket   *blob.Bucket
	key      string
	bucketID string
}

func newBlobBackend(ctx context.Context, uri string, initial, cached *Document) (Backend, error) {
	bucketURL, key, err := splitBlobURI(uri)
	if err != nil {
		return nil, newBackendError("blob", uri, "open", err)
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, newBackendError(schemeOf(uri), uri, "open", err)
	}

	b := &blobBackend{
		baseBackend: baseBackend{uri: uri, kind: schemeOf(uri)},
		bucket:      bucket,
		key:         key,
		bucketID:    bucketURL,
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

	doc, err := b.read(ctx)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	b.doc = doc
	b.state = StateLoaded
	return b, nil
}

// splitBlobURI separates a mosaicjson:// style URI into the bucket-level
// URL gocloud.dev/blob.OpenBucket expects and the object key within it,
// mirroring pmtiles/bucket.go:NormalizeBucketKey's split for schemes
// gocloud doesn't address as a single opaque URL.
func splitBlobURI(uri string) (bucketURL, key string, err error) {
	if strings.HasPrefix(uri, "file://") {
		p := strings.TrimPrefix(uri, "file://")
		dir, file := path.Split(p)
		if dir == "" {
			dir = "."
		}
		return "file://" + strings.TrimSuffix(dir, "/"), file, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	dir, file := path.Split(u.Path)
	u.Path = strings.TrimSuffix(dir, "/")
	return u.String(), strings.TrimPrefix(file, "/"), nil
}

func (b *blobBackend) read(ctx context.Context) (*Document, error) {
	r, err := b.bucket.NewReader(ctx, b.key, nil)
	if err != nil {
		recordBackendRead(b.kind, err)
		return nil, newMosaicNotFoundError(b.uri)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	recordBackendRead(b.kind, err)
	if err != nil {
		return nil, newBackendError(b.kind, b.uri, "read", err)
	}

	if strings.HasSuffix(b.key, ".gz") {
		data, err = gunzipBytes(data)
		if err != nil {
			return nil, newBackendError(b.kind, b.uri, "gunzip", err)
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newBackendError(b.kind, b.uri, "decode", err)
	}
	return &doc, nil
}

// gunzipBytes reverses gzipJSON, used when the object key ends in .gz —
// compression is indicated purely by that suffix, never a header.
func gunzipBytes(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// gzipJSON gzips payload when the object key ends in .gz, a no-op
// otherwise.
func gzipJSON(key string, payload []byte) ([]byte, error) {
	if !strings.HasSuffix(key, ".gz") {
		return payload, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *blobBackend) Write(ctx context.Context, overwrite bool) error {
	if !overwrite {
		if exists, err := b.bucket.Exists(ctx, b.key); err == nil && exists {
			return newMosaicExistsError(b.uri)
		}
	}

	toWrite := *b.doc
	toWrite.Tiles = b.doc.StrippedTiles()
	payload, err := json.MarshalIndent(&toWrite, "", "  ")
	if err != nil {
		return newBackendError(b.kind, b.uri, "encode", err)
	}
	payload, err = gzipJSON(b.key, payload)
	if err != nil {
		return newBackendError(b.kind, b.uri, "gzip", err)
	}

	w, err := b.bucket.NewWriter(ctx, b.key, &blob.WriterOptions{ContentType: "application/json"})
	if err != nil {
		recordBackendWrite(b.kind, err)
		return newBackendError(b.kind, b.uri, "write", err)
	}
	if _, err := w.Write(payload); err != nil {
		w.Close()
		recordBackendWrite(b.kind, err)
		return newBackendError(b.kind, b.uri, "write", err)
	}
	err = w.Close()
	recordBackendWrite(b.kind, err)
	if err != nil {
		return newBackendError(b.kind, b.uri, "write", err)
	}

	b.state = StatePersisted
	globalCache.InvalidateWritten(b.cacheKey(), b.doc)
	return nil
}

func (b *blobBackend) Update(ctx context.Context, features []*geojson.Feature, opts UpdateOptions) error {
	merged, err := Update(b.doc, features, opts)
	if err != nil {
		return err
	}
	b.doc = merged
	b.state = StateDirty
	return b.Write(ctx, true)
}

func (b *blobBackend) Close() error {
	b.state = StateClosed
	return b.bucket.Close()
}
