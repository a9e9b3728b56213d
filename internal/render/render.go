// Package render draws filtered features as an SVG document and persists
// the result.
package render

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/agentic-research/mapmaker/api"
	"github.com/agentic-research/mapmaker/internal/cache"
	"github.com/agentic-research/mapmaker/internal/logging"
	"github.com/agentic-research/mapmaker/internal/projection"
	"github.com/agentic-research/mapmaker/internal/style"
)

const svgNS = "http://www.w3.org/2000/svg"

// DefaultClasses label each path when the spec names none.
var DefaultClasses = []string{"ADM0_A3", "SU_A3", "GU_A3"}

type svgDoc struct {
	XMLName xml.Name  `xml:"svg"`
	Xmlns   string    `xml:"xmlns,attr"`
	Width   string    `xml:"width,attr"`
	Height  string    `xml:"height,attr"`
	ViewBox string    `xml:"viewBox,attr"`
	Paths   []svgPath `xml:"path"`
	Style   svgStyle  `xml:"style"`
}

type svgStyle struct {
	CSS string `xml:",cdata"`
}

type svgPath struct {
	Class string `xml:"class,attr,omitempty"`
	D     string `xml:"d,attr"`
}

// Render returns the SVG for fc: a path per feature in input order, each
// labelled "<prop>-<value>" for every class property the feature carries,
// followed by a single style element holding css. The projection is built
// before any feature is touched, so a bad projection fails fast with a
// ProjectionError.
func Render(fc *geojson.FeatureCollection, css string, proj api.Projection, classes []string) ([]byte, error) {
	p, err := projection.New(proj)
	if err != nil {
		return nil, err
	}
	return draw(fc, css, p, proj, classes)
}

func draw(fc *geojson.FeatureCollection, css string, p *projection.Projector, proj api.Projection, classes []string) ([]byte, error) {
	if classes == nil {
		classes = DefaultClasses
	}

	w, h := formatDim(proj.Width), formatDim(proj.Height)
	doc := svgDoc{
		Xmlns:   svgNS,
		Width:   w,
		Height:  h,
		ViewBox: "0 0 " + w + " " + h,
		Style:   svgStyle{CSS: css},
	}
	if fc != nil {
		doc.Paths = make([]svgPath, 0, len(fc.Features))
		for _, f := range fc.Features {
			doc.Paths = append(doc.Paths, svgPath{
				Class: classAttr(f, classes),
				D:     p.Path(f.Geometry),
			})
		}
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, api.Errorf(api.KindRender, "encode svg: %w", err)
	}
	return out, nil
}

func classAttr(f *geojson.Feature, classes []string) string {
	tokens := make([]string, 0, len(classes))
	for _, c := range classes {
		v, ok := f.Properties[c]
		if !ok || v == nil {
			continue
		}
		tokens = append(tokens, style.ClassName(c, propString(v)))
	}
	return strings.Join(tokens, " ")
}

func propString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func formatDim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Renderer renders and persists maps through an artifact store.
type Renderer struct {
	store *cache.Store
	log   *zap.Logger
}

// NewRenderer returns a Renderer writing into store.
func NewRenderer(store *cache.Store, log *zap.Logger) *Renderer {
	return &Renderer{store: store, log: logging.OrNop(log)}
}

// Render is the package-level Render with logging.
func (r *Renderer) Render(fc *geojson.FeatureCollection, css string, proj api.Projection, classes []string) ([]byte, error) {
	p, err := projection.New(proj)
	if err != nil {
		return nil, err
	}
	offset := p.TranslateOffset()
	if len(proj.Translate) == 0 && proj.LegacyTranslate {
		r.log.Warn("legacy_translate is set: vertical offset uses width/2",
			zap.Float64("width", proj.Width), zap.Float64("height", proj.Height),
			zap.Float64s("translate", offset[:]))
	} else {
		r.log.Debug("Projection", zap.String("type", proj.Type), zap.Float64s("translate", offset[:]))
	}
	svg, err := draw(fc, css, p, proj, classes)
	if err != nil {
		return nil, err
	}
	n := 0
	if fc != nil {
		n = len(fc.Features)
	}
	r.log.Debug("Rendered svg", zap.Int("features", n), zap.Int("bytes", len(svg)))
	return svg, nil
}

// Persist writes svg to rel. The file appears whole or not at all; failures
// are RenderErrors.
func (r *Renderer) Persist(rel string, svg []byte) error {
	if err := r.store.Store(rel, svg); err != nil {
		return api.Errorf(api.KindRender, "save %s: %w", rel, err)
	}
	r.log.Info("Saved", zap.String("path", rel))
	return nil
}

// Classes returns the class properties configured for a build, or
// DefaultClasses, deduplicated in order.
func Classes(configured []string) []string {
	if len(configured) == 0 {
		return DefaultClasses
	}
	seen := make(map[string]bool, len(configured))
	out := make([]string, 0, len(configured))
	for _, c := range configured {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
