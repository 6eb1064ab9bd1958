package mosaic

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
)

// SidecarFootprintReader is this core's one concrete FootprintReader:
// decoding a raster's CRS, bounds, and overview resolutions is the
// raster-reading library's job, out of scope here, so Footprint instead
// reads a companion "<asset>.footprint.geojson" file holding a single
// Feature with the asset's WGS-84 footprint polygon. This mirrors how a
// real deployment would wire FromURLs to whatever raster-reading
// library it already depends on; the sidecar convention keeps the CLI
// runnable without pulling in one.
type SidecarFootprintReader struct {
	// Suffix overrides the default ".footprint.geojson" sidecar suffix.
	Suffix string
}

func (r SidecarFootprintReader) suffix() string {
	if r.Suffix != "" {
		return r.Suffix
	}
	return ".footprint.geojson"
}

func (r SidecarFootprintReader) Footprint(assetID string) (*geojson.Feature, error) {
	path := assetID + r.suffix()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mosaicjson: reading sidecar footprint %s: %w", path, err)
	}

	f, err := geojson.UnmarshalFeature(data)
	if err == nil {
		return f, nil
	}

	// Tolerate a bare geometry or a single-feature FeatureCollection, the
	// two other shapes a hand-authored sidecar commonly takes.
	if fc, fcErr := geojson.UnmarshalFeatureCollection(data); fcErr == nil && len(fc.Features) > 0 {
		return fc.Features[0], nil
	}

	geom, geomErr := geojson.UnmarshalGeometry(data)
	if geomErr != nil {
		return nil, fmt.Errorf("mosaicjson: parsing sidecar footprint %s: %w", path, err)
	}
	return geojson.NewFeature(geom.Geometry()), nil
}
