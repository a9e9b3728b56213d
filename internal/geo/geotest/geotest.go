// Package geotest provides an in-memory Converter and a small dataset for
// tests that must not depend on GDAL.
package geotest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/agentic-research/mapmaker/internal/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Countries returns three square "countries" with ADM0_A3 codes FRA, DEU and
// ESP, plus SU_A3 and GU_A3 codes and long names.
func Countries() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	add := func(code, name string, lon, lat float64) {
		f := geojson.NewFeature(orb.Polygon{{
			{lon, lat}, {lon + 2, lat}, {lon + 2, lat + 2}, {lon, lat + 2}, {lon, lat},
		}})
		f.Properties["ADM0_A3"] = code
		f.Properties["SU_A3"] = code
		f.Properties["GU_A3"] = code
		f.Properties["NAME_LONG"] = name
		f.Properties["CONTINENT"] = "Europe"
		fc.Append(f)
	}
	add("FRA", "France", 0, 45)
	add("DEU", "Germany", 8, 50)
	add("ESP", "Spain", -5, 38)
	return fc
}

var inRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*) IN \((.*)\)$`)

// Converter serves a fixed collection and evaluates "KEY IN ('a', 'b')"
// where clauses the way ogr2ogr would. It records every request.
type Converter struct {
	FC  *geojson.FeatureCollection
	Err error

	mu       sync.Mutex
	requests []geo.Request
}

// Convert implements geo.Converter.
func (c *Converter) Convert(_ context.Context, req geo.Request) (*geojson.FeatureCollection, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if req.Where == "" {
		return c.FC, nil
	}
	m := inRe.FindStringSubmatch(req.Where)
	if m == nil {
		return nil, fmt.Errorf("unsupported where clause %q", req.Where)
	}
	want := map[string]bool{}
	for _, v := range strings.Split(m[2], ", ") {
		v = strings.TrimSuffix(strings.TrimPrefix(v, "'"), "'")
		want[strings.ReplaceAll(v, "''", "'")] = true
	}
	out := geojson.NewFeatureCollection()
	for _, f := range c.FC.Features {
		if v, ok := f.Properties[m[1]].(string); ok && want[v] {
			out.Append(f)
		}
	}
	return out, nil
}

// Calls returns how many conversions were requested.
func (c *Converter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Requests returns a copy of the recorded requests.
func (c *Converter) Requests() []geo.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]geo.Request(nil), c.requests...)
}
