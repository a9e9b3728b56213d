// Package projection maps geographic coordinates onto the SVG canvas.
//
// The supported projections follow the d3-geo conventions: angles are given
// in degrees, the projected point is scaled by Scale, the Center is moved to
// the translate offset, and a [λ, φ, γ] rotation is applied before
// projecting.
package projection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agentic-research/mapmaker/api"
	"github.com/paulmach/orb"
)

const (
	epsilon = 1e-6
	radians = math.Pi / 180
	tau     = 2 * math.Pi
)

// Projection type names.
const (
	Mercator        = "mercator"
	Albers          = "albers"
	Equirectangular = "equirectangular"
)

// DefaultParallels are the standard parallels used by albers when none are set.
var DefaultParallels = []float64{50, 60}

type rawFunc func(lambda, phi float64) (x, y float64)

var constructors = map[string]func(p api.Projection) (rawFunc, error){
	Mercator: func(api.Projection) (rawFunc, error) { return mercatorRaw, nil },
	Albers: func(p api.Projection) (rawFunc, error) {
		par := p.Parallels
		if len(par) == 0 {
			par = DefaultParallels
		}
		if len(par) != 2 {
			return nil, fmt.Errorf("parallels must have 2 values, got %d", len(par))
		}
		return conicEqualAreaRaw(par[0]*radians, par[1]*radians), nil
	},
	Equirectangular: func(api.Projection) (rawFunc, error) { return equirectangularRaw, nil },
}

// Types lists the supported projection names.
func Types() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MaxPrecision is the most decimals path data can keep; a negative
// precision disables rounding.
const MaxPrecision = 15

// Projector projects longitude/latitude points to canvas coordinates.
type Projector struct {
	raw    rawFunc
	rotate func(lambda, phi float64) (float64, float64)
	k      float64
	dx, dy float64

	translate [2]float64
	digits    int
}

// New validates p and builds a projector. Every failure is a ProjectionError.
func New(p api.Projection) (*Projector, error) {
	name := strings.ToLower(strings.TrimSpace(p.Type))
	ctor, ok := constructors[name]
	if !ok {
		return nil, api.Errorf(api.KindProjection, "unrecognized projection %q (supported: %s)",
			p.Type, strings.Join(Types(), ", "))
	}
	raw, err := ctor(p)
	if err != nil {
		return nil, api.Errorf(api.KindProjection, "%s: %w", name, err)
	}
	if p.Scale <= 0 || math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0) {
		return nil, api.Errorf(api.KindProjection, "scale must be positive, got %v", p.Scale)
	}

	center, err := pair("center", p.Center, [2]float64{0, 0})
	if err != nil {
		return nil, err
	}
	rot, err := rotation(p.Rotation)
	if err != nil {
		return nil, err
	}
	translate, err := Translate(p)
	if err != nil {
		return nil, err
	}

	digits := 3
	if p.Precision != nil {
		digits = *p.Precision
	}
	if digits > MaxPrecision {
		return nil, api.Errorf(api.KindProjection, "precision must be at most %d, got %d", MaxPrecision, digits)
	}

	pr := &Projector{
		raw:       raw,
		rotate:    rotateRadians(rot[0]*radians, rot[1]*radians, rot[2]*radians),
		k:         p.Scale,
		translate: translate,
		digits:    digits,
	}
	cx, cy := raw(center[0]*radians, center[1]*radians)
	pr.dx = translate[0] - p.Scale*cx
	pr.dy = translate[1] + p.Scale*cy
	return pr, nil
}

// Translate returns the canvas offset of the projection center: an explicit
// translate if given, the historical [width/2, width/2] when
// legacy_translate is set, and [width/2, height/2] otherwise.
func Translate(p api.Projection) ([2]float64, error) {
	if len(p.Translate) > 0 {
		return pair("translate", p.Translate, [2]float64{})
	}
	if p.LegacyTranslate {
		return [2]float64{p.Width / 2, p.Width / 2}, nil
	}
	return [2]float64{p.Width / 2, p.Height / 2}, nil
}

// TranslateOffset is the offset this projector was built with.
func (p *Projector) TranslateOffset() [2]float64 { return p.translate }

// Project maps a [lon, lat] point in degrees to canvas coordinates.
func (p *Projector) Project(pt orb.Point) (x, y float64) {
	x, y, _ = p.forward(pt)
	return x, y
}

// forward also returns the rotated longitude, used to detect antimeridian
// crossings.
func (p *Projector) forward(pt orb.Point) (x, y, lambda float64) {
	lambda, phi := p.rotate(pt[0]*radians, pt[1]*radians)
	px, py := p.raw(lambda, phi)
	return p.dx + p.k*px, p.dy - p.k*py, lambda
}

func mercatorRaw(lambda, phi float64) (float64, float64) {
	// Clamp to the square Web Mercator extent so the poles stay finite.
	const limit = 1.4844222297453322 // atan(sinh(π))
	phi = math.Max(-limit, math.Min(limit, phi))
	return lambda, math.Log(math.Tan((math.Pi/2 + phi) / 2))
}

func equirectangularRaw(lambda, phi float64) (float64, float64) {
	return lambda, phi
}

func conicEqualAreaRaw(y0, y1 float64) rawFunc {
	sy0 := math.Sin(y0)
	n := (sy0 + math.Sin(y1)) / 2
	if math.Abs(n) < epsilon {
		cosPhi0 := math.Cos(y0)
		return func(lambda, phi float64) (float64, float64) {
			return lambda * cosPhi0, math.Sin(phi) / cosPhi0
		}
	}
	c := 1 + sy0*(2*n-sy0)
	r0 := math.Sqrt(c) / n
	return func(lambda, phi float64) (float64, float64) {
		r := math.Sqrt(math.Max(0, c-2*n*math.Sin(phi))) / n
		lambda *= n
		return r * math.Sin(lambda), r0 - r*math.Cos(lambda)
	}
}

// rotateRadians composes a longitude shift with a φ/γ rotation of the sphere.
func rotateRadians(dLambda, dPhi, dGamma float64) func(lambda, phi float64) (float64, float64) {
	dLambda = math.Mod(dLambda, tau)
	shift := func(lambda, phi float64) (float64, float64) {
		lambda += dLambda
		switch {
		case lambda > math.Pi:
			lambda -= tau
		case lambda < -math.Pi:
			lambda += tau
		}
		return lambda, phi
	}
	if dPhi == 0 && dGamma == 0 {
		if dLambda == 0 {
			return identity
		}
		return shift
	}

	cosDPhi, sinDPhi := math.Cos(dPhi), math.Sin(dPhi)
	cosDGamma, sinDGamma := math.Cos(dGamma), math.Sin(dGamma)
	tilt := func(lambda, phi float64) (float64, float64) {
		cosPhi := math.Cos(phi)
		x := math.Cos(lambda) * cosPhi
		y := math.Sin(lambda) * cosPhi
		z := math.Sin(phi)
		k := z*cosDPhi + x*sinDPhi
		return math.Atan2(y*cosDGamma-k*sinDGamma, x*cosDPhi-z*sinDPhi),
			math.Asin(math.Max(-1, math.Min(1, k*cosDGamma+y*sinDGamma)))
	}
	if dLambda == 0 {
		return tilt
	}
	return func(lambda, phi float64) (float64, float64) {
		return tilt(shift(lambda, phi))
	}
}

func identity(lambda, phi float64) (float64, float64) {
	if math.Abs(lambda) > math.Pi {
		lambda -= math.Round(lambda/tau) * tau
	}
	return lambda, phi
}

func pair(name string, v []float64, def [2]float64) ([2]float64, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 2:
		return [2]float64{v[0], v[1]}, nil
	default:
		return def, api.Errorf(api.KindProjection, "%s must have 2 values, got %d", name, len(v))
	}
}

func rotation(v []float64) ([3]float64, error) {
	switch len(v) {
	case 0:
		return [3]float64{}, nil
	case 2:
		return [3]float64{v[0], v[1], 0}, nil
	case 3:
		return [3]float64{v[0], v[1], v[2]}, nil
	default:
		return [3]float64{}, api.Errorf(api.KindProjection, "rotation must have 2 or 3 values, got %d", len(v))
	}
}
