package geo

import (
	"strings"
	"testing"

	"github.com/agentic-research/mapmaker/api"
)

func FuzzWhereClause(f *testing.F) {
	f.Add("ADM0_A3", "FRA")
	f.Add("SU_A3", "O'Brien")
	f.Add("1=1;--", "x")
	f.Fuzz(func(t *testing.T, key, value string) {
		clause, err := WhereClause(api.Parameters{
			Filter: &api.Filter{Type: api.FilterArray, Key: key, Array: []string{value}},
		})
		if err != nil {
			return
		}
		if !strings.HasPrefix(clause, key+" IN ('") || !strings.HasSuffix(clause, "')") {
			t.Fatalf("unexpected clause %q", clause)
		}
		if strings.Count(clause, "'")%2 != 0 {
			t.Fatalf("unbalanced quotes in %q", clause)
		}
	})
}
