package mosaic

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadCopiesFileToBucket(t *testing.T) {
	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "mosaic.json")
	payload := []byte(`{"mosaicjson":"0.0.3","tiles":{}}`)
	require.NoError(t, os.WriteFile(source, payload, 0o644))

	destDir := t.TempDir()
	bucketURL := "file://" + filepath.ToSlash(destDir)
	logger := log.New(os.Stderr, "", 0)

	err := Upload(context.Background(), logger, source, bucketURL, "mosaic.json", 1)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(destDir, "mosaic.json"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestUploadMissingSourceErrors(t *testing.T) {
	destDir := t.TempDir()
	bucketURL := "file://" + filepath.ToSlash(destDir)
	logger := log.New(os.Stderr, "", 0)

	err := Upload(context.Background(), logger, filepath.Join(t.TempDir(), "missing.json"), bucketURL, "mosaic.json", 1)
	assert.Error(t, err)
}
