package projection

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// PointRadius is the radius of the circle drawn for point geometries.
const PointRadius = 4.5

// Path returns SVG path data for g. Polygon rings are closed with Z, lines
// are left open, and points become small circles. A ring or line whose
// rotated longitude jumps across the antimeridian is broken into separate
// subpaths rather than drawn across the whole map. Empty geometries yield "".
func (p *Projector) Path(g orb.Geometry) string {
	var b strings.Builder
	p.writeGeometry(&b, g)
	return b.String()
}

func (p *Projector) writeGeometry(b *strings.Builder, g orb.Geometry) {
	switch g := g.(type) {
	case nil:
	case orb.Point:
		p.writePoint(b, g)
	case orb.MultiPoint:
		for _, pt := range g {
			p.writePoint(b, pt)
		}
	case orb.LineString:
		p.writeLine(b, g, false)
	case orb.MultiLineString:
		for _, ls := range g {
			p.writeLine(b, ls, false)
		}
	case orb.Ring:
		p.writeLine(b, g, true)
	case orb.Polygon:
		for _, r := range g {
			p.writeLine(b, r, true)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, r := range poly {
				p.writeLine(b, r, true)
			}
		}
	case orb.Collection:
		for _, gg := range g {
			p.writeGeometry(b, gg)
		}
	case orb.Bound:
		p.writeLine(b, g.ToRing(), true)
	}
}

func (p *Projector) writePoint(b *strings.Builder, pt orb.Point) {
	x, y, _ := p.forward(pt)
	if !finite(x, y) {
		return
	}
	r := p.num(PointRadius)
	d := p.num(2 * PointRadius)
	b.WriteString("M" + p.num(x) + "," + p.num(y))
	b.WriteString("m0," + r)
	b.WriteString("a" + r + "," + r + " 0 1,1 0,-" + d)
	b.WriteString("a" + r + "," + r + " 0 1,1 0," + d)
	b.WriteString("z")
}

func (p *Projector) writeLine(b *strings.Builder, pts []orb.Point, closed bool) {
	if closed && len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	var (
		started bool
		broken  bool
		prev    float64
		n       int
	)
	for _, pt := range pts {
		x, y, lambda := p.forward(pt)
		if !finite(x, y) {
			continue
		}
		switch {
		case !started:
			b.WriteString("M")
			started = true
		case math.Abs(lambda-prev) > math.Pi:
			b.WriteString("M")
			broken = true
		default:
			b.WriteString("L")
		}
		b.WriteString(p.num(x))
		b.WriteByte(',')
		b.WriteString(p.num(y))
		prev = lambda
		n++
	}
	if closed && started && !broken && n > 1 {
		b.WriteString("Z")
	}
}

func (p *Projector) num(v float64) string {
	if p.digits >= 0 {
		scale := math.Pow(10, float64(p.digits))
		v = math.Round(v*scale) / scale
		if v == 0 {
			v = 0 // drop negative zero
		}
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
