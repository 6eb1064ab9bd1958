package mosaic

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gocloud.dev/blob"
)

// Upload copies a local file to dst under bucketURL, chunk by chunk with
// progress reporting, grounded on pmtiles/upload.go's read-loop/
// bucket.NewWriter pattern — generalized here to any local file rather
// than only a finished .pmtiles archive, since a MosaicJSON deployment
// uploads arbitrary artifacts (the document itself, a packaged asset)
// the same way.
func Upload(ctx context.Context, logger *log.Logger, source, bucketURL, dst string, maxConcurrency int) error {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("mosaicjson: opening bucket %s: %w", bucketURL, err)
	}
	defer b.Close()

	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("mosaicjson: opening %s: %w", source, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("mosaicjson: stat %s: %w", source, err)
	}

	progress := progressFor(false).NewBytesProgress(stat.Size(), "uploading "+dst)
	defer progress.Close()

	w, err := b.NewWriter(ctx, dst, &blob.WriterOptions{
		BufferSize:     256 * 1024 * 1024,
		MaxConcurrency: maxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("mosaicjson: opening writer for %s: %w", dst, err)
	}

	buffer := make([]byte, 8*1024)
	for {
		n, readErr := f.Read(buffer)
		if n > 0 {
			if _, err := w.Write(buffer[:n]); err != nil {
				w.Close()
				return fmt.Errorf("mosaicjson: writing to %s: %w", dst, err)
			}
			progress.Add(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			w.Close()
			return fmt.Errorf("mosaicjson: reading %s: %w", source, readErr)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("mosaicjson: closing %s: %w", dst, err)
	}
	logger.Printf("uploaded %s to %s%s", source, bucketURL, dst)
	return nil
}
