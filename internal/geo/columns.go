package geo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/paulmach/orb/geojson"
)

// DefaultColumns are tabulated by `list` when no columns are given.
var DefaultColumns = []string{"ADM0_A3", "SU_A3", "CONTINENT"}

// NameColumn always leads the table.
const NameColumn = "NAME_LONG"

// Column is a named lookup into a feature. Plain names read a property;
// names starting with "$" are JSONPath expressions over
// {"id": ..., "properties": {...}}.
type Column struct {
	Name string
	expr jp.Expr
}

// ParseColumns compiles column names.
func ParseColumns(names []string) ([]Column, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.HasPrefix(n, "$") {
			x, err := jp.ParseString(n)
			if err != nil {
				return nil, fmt.Errorf("invalid jsonpath '%s': %w", n, err)
			}
			cols = append(cols, Column{Name: n, expr: x})
			continue
		}
		cols = append(cols, Column{Name: n, expr: jp.C("properties").C(n)})
	}
	return cols, nil
}

// Lookup returns the column's value for f, or "" when absent.
func (c Column) Lookup(f *geojson.Feature) string {
	results := c.expr.Get(featureDoc(f))
	if len(results) == 0 || results[0] == nil {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprint(r))
	}
	return strings.Join(parts, ",")
}

// Table returns one row per feature with a cell per column.
func Table(fc *geojson.FeatureCollection, cols []Column) [][]string {
	rows := make([][]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = c.Lookup(f)
		}
		rows = append(rows, row)
	}
	return rows
}

// PropertyKeys lists the property names of the first feature, sorted.
func PropertyKeys(fc *geojson.FeatureCollection) []string {
	if fc == nil || len(fc.Features) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fc.Features[0].Properties))
	for k := range fc.Features[0].Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func featureDoc(f *geojson.Feature) map[string]any {
	props := map[string]any{}
	for k, v := range f.Properties {
		props[k] = v
	}
	return map[string]any{"id": f.ID, "properties": props}
}
