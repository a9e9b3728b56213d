package render

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/mapmaker/internal/cache"
)

const square = `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 20 20">` +
	`<path class="ADM0_A3-FRA" d="M0,0L20,0L20,20L0,20Z"></path><style>path{fill:red;}</style></svg>`

func TestRasterize(t *testing.T) {
	img, err := Rasterize([]byte(square), 20, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	_, _, _, a := img.At(10, 10).RGBA()
	assert.NotZero(t, a, "square interior is painted")
}

func TestRasterize_InvalidSize(t *testing.T) {
	_, err := Rasterize([]byte(square), 0, 10)
	assert.Error(t, err)
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, []byte(square), 20, 20))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestRenderer_PersistPNG(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(cache.New(dir), nil)
	require.NoError(t, r.PersistPNG(filepath.Join("output", "abc.png"), []byte(square), 20, 20))

	f, err := os.Open(filepath.Join(dir, "output", "abc.png"))
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}
