package geo

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// FormatGeoJSON is the only interchange format the pipeline decodes.
const FormatGeoJSON = "GeoJSON"

// Request describes one conversion: read Source, optionally keep only the
// features matching the attribute filter Where, and emit Format.
type Request struct {
	Source string
	Format string
	Where  string
}

// Converter is the vector-format conversion capability the filter delegates
// to. Implementations return the decoded collection or an error, never a
// partial result.
type Converter interface {
	Convert(ctx context.Context, req Request) (*geojson.FeatureCollection, error)
}
