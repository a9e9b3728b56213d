package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/agentic-research/mapmaker/api"
)

// Rasterize draws svg onto a w x h RGBA canvas. Only geometry is drawn:
// class-based CSS is not applied, so the preview shows shapes in the
// default fill.
func Rasterize(svg []byte, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", w, h)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return img, nil
}

// WritePNG rasterizes svg and encodes it as PNG to out.
func WritePNG(out io.Writer, svg []byte, w, h int) error {
	img, err := Rasterize(svg, w, h)
	if err != nil {
		return err
	}
	return png.Encode(out, img)
}

// PersistPNG stores a PNG preview of svg at rel.
func (r *Renderer) PersistPNG(rel string, svg []byte, w, h int) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, svg, w, h); err != nil {
		return api.Errorf(api.KindRender, "rasterize %s: %w", rel, err)
	}
	return r.Persist(rel, buf.Bytes())
}
