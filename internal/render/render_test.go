package render

import (
	"encoding/xml"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agentic-research/mapmaker/api"
	"github.com/agentic-research/mapmaker/internal/cache"
	"github.com/agentic-research/mapmaker/internal/geo/geotest"
)

func degrees() api.Projection {
	return api.Projection{
		Type:      "equirectangular",
		Scale:     180 / math.Pi,
		Width:     100,
		Height:    50,
		Translate: []float64{0, 0},
	}
}

func TestRender_Document(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 0}}})
	f.Properties["ADM0_A3"] = "FRA"
	f.Properties["SU_A3"] = "FXX"
	fc.Append(f)

	svg, err := Render(fc, "path{fill:#ddd;}\n", degrees(), nil)
	require.NoError(t, err)
	assert.Equal(t,
		`<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">`+
			`<path class="ADM0_A3-FRA SU_A3-FXX" d="M0,0L10,0L10,-10Z"></path>`+
			`<style><![CDATA[path{fill:#ddd;}`+"\n"+`]]></style></svg>`,
		string(svg))
}

func TestRender_OnePathPerFeatureInOrder(t *testing.T) {
	svg, err := Render(geotest.Countries(), ".ADM0_A3-FRA{fill:red;}", degrees(), nil)
	require.NoError(t, err)

	var doc svgDoc
	require.NoError(t, xml.Unmarshal(svg, &doc))
	require.Len(t, doc.Paths, 3)
	assert.Equal(t, "ADM0_A3-FRA SU_A3-FRA GU_A3-FRA", doc.Paths[0].Class)
	assert.Equal(t, "ADM0_A3-DEU SU_A3-DEU GU_A3-DEU", doc.Paths[1].Class)
	assert.Equal(t, "ADM0_A3-ESP SU_A3-ESP GU_A3-ESP", doc.Paths[2].Class)
	assert.Equal(t, ".ADM0_A3-FRA{fill:red;}", doc.Style.CSS)
	assert.Equal(t, 1, strings.Count(string(svg), "<style>"))
}

func TestRender_CustomClasses(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties["ISO_N3"] = 250.0
	f.Properties["NAME"] = "France"
	fc.Append(f)

	svg, err := Render(fc, "", degrees(), []string{"ISO_N3", "MISSING"})
	require.NoError(t, err)
	var doc svgDoc
	require.NoError(t, xml.Unmarshal(svg, &doc))
	require.Len(t, doc.Paths, 1)
	assert.Equal(t, "ISO_N3-250", doc.Paths[0].Class)
}

func TestRender_Empty(t *testing.T) {
	svg, err := Render(geojson.NewFeatureCollection(), "", degrees(), nil)
	require.NoError(t, err)
	assert.NotContains(t, string(svg), "<path")
	assert.Contains(t, string(svg), "<style>")
}

func TestRender_UnknownProjection(t *testing.T) {
	proj := degrees()
	proj.Type = "orthographic"
	_, err := Render(geotest.Countries(), "", proj, nil)
	assert.ErrorIs(t, err, api.ErrProjection)
}

func TestRender_EscapesStyle(t *testing.T) {
	svg, err := Render(nil, "a > b{fill:red;}", degrees(), nil)
	require.NoError(t, err)
	var doc svgDoc
	require.NoError(t, xml.Unmarshal(svg, &doc))
	assert.Equal(t, "a > b{fill:red;}", doc.Style.CSS)
}

func TestClasses(t *testing.T) {
	assert.Equal(t, DefaultClasses, Classes(nil))
	assert.Equal(t, []string{"SU_A3", "ADM0_A3"}, Classes([]string{"SU_A3", " ", "ADM0_A3", "SU_A3"}))
}

func TestRenderer_Persist(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(cache.New(dir), nil)

	require.NoError(t, r.Persist(filepath.Join("output", "abc.svg"), []byte("<svg/>")))
	data, err := os.ReadFile(filepath.Join(dir, "output", "abc.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}

func TestRenderer_PersistFailure(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the output directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output"), []byte("x"), 0o644))
	r := NewRenderer(cache.New(dir), nil)

	err := r.Persist(filepath.Join("output", "abc.svg"), []byte("<svg/>"))
	assert.ErrorIs(t, err, api.ErrRender)
}

func TestRenderer_LegacyTranslateWarns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRenderer(cache.New(t.TempDir()), zap.New(core))

	proj := degrees()
	proj.Translate = nil
	proj.LegacyTranslate = true
	_, err := r.Render(geotest.Countries(), "", proj, nil)
	require.NoError(t, err)

	warns := logs.FilterMessageSnippet("legacy_translate").All()
	require.Len(t, warns, 1)
	assert.Equal(t, zapcore.WarnLevel, warns[0].Level)
	assert.Equal(t, []any{50.0, 50.0}, warns[0].ContextMap()["translate"])
}

func TestRenderer_BadPrecision(t *testing.T) {
	r := NewRenderer(cache.New(t.TempDir()), nil)
	proj := degrees()
	digits := 400
	proj.Precision = &digits

	_, err := r.Render(geotest.Countries(), "", proj, nil)
	assert.ErrorIs(t, err, api.ErrProjection)
}
