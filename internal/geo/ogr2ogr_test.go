package geo

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOGR2OGR_Args(t *testing.T) {
	o := &OGR2OGR{}
	assert.Equal(t,
		[]string{"-f", "GeoJSON", "/vsistdout/", "-where", "ADM0_A3 IN ('FRA')", "in.shp"},
		o.Args(Request{Source: "in.shp", Format: "GeoJSON", Where: "ADM0_A3 IN ('FRA')"}))
	assert.Equal(t,
		[]string{"-f", "GeoJSON", "/vsistdout/", "in.shp"},
		o.Args(Request{Source: "in.shp", Format: "GeoJSON"}))
}

// fakeTool writes an executable shell script standing in for ogr2ogr.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	p := filepath.Join(t.TempDir(), "ogr2ogr")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func TestOGR2OGR_Convert(t *testing.T) {
	bin := fakeTool(t, `cat <<'JSON'
{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"ADM0_A3":"FRA"},"geometry":{"type":"Point","coordinates":[2,48]}}
]}
JSON`)
	o := &OGR2OGR{Bin: bin, Timeout: 10 * time.Second}

	fc, err := o.Convert(context.Background(), Request{Source: "in.shp", Format: FormatGeoJSON})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "FRA", fc.Features[0].Properties["ADM0_A3"])
}

func TestOGR2OGR_Failure(t *testing.T) {
	bin := fakeTool(t, `echo "FAILURE: Unable to open datasource" >&2; exit 1`)
	o := &OGR2OGR{Bin: bin}

	_, err := o.Convert(context.Background(), Request{Source: "missing.shp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to open datasource")
}

func TestOGR2OGR_BadOutput(t *testing.T) {
	bin := fakeTool(t, `echo "not json"`)
	_, err := (&OGR2OGR{Bin: bin}).Convert(context.Background(), Request{Source: "in.shp"})
	assert.Error(t, err)
}

func TestOGR2OGR_Timeout(t *testing.T) {
	bin := fakeTool(t, `exec sleep 5`)
	o := &OGR2OGR{Bin: bin, Timeout: 50 * time.Millisecond}

	_, err := o.Convert(context.Background(), Request{Source: "in.shp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestOGR2OGR_UnsupportedFormat(t *testing.T) {
	_, err := (&OGR2OGR{}).Convert(context.Background(), Request{Source: "in.shp", Format: "KML"})
	assert.Error(t, err)
}
